package model_test

import (
	"testing"

	"github.com/google/uuid"

	"SettleCore/internal/model"
)

func validCardRequisite() *model.Requisite {
	return &model.Requisite{
		FullName:      "Ivan Petrov",
		PaymentMethod: model.PaymentMethodCard,
		CardNumber:    "4276000011112222",
		MinAmount:     100,
		MaxAmount:     10000,
	}
}

func TestRequisiteValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.Requisite)
		ok     bool
	}{
		{"valid card", func(r *model.Requisite) {}, true},
		{"valid sbp", func(r *model.Requisite) {
			r.PaymentMethod = model.PaymentMethodSBP
			r.CardNumber = ""
			r.PhoneNumber = "+79990001122"
			r.BankName = "Sber"
		}, true},
		{"both instruments", func(r *model.Requisite) {
			r.PhoneNumber = "+79990001122"
			r.BankName = "Sber"
		}, false},
		{"neither instrument", func(r *model.Requisite) {
			r.CardNumber = ""
		}, false},
		{"phone without bank", func(r *model.Requisite) {
			r.PaymentMethod = model.PaymentMethodSBP
			r.CardNumber = ""
			r.PhoneNumber = "+79990001122"
		}, false},
		{"card under sbp method", func(r *model.Requisite) {
			r.PaymentMethod = model.PaymentMethodSBP
		}, false},
		{"inverted window", func(r *model.Requisite) {
			r.MinAmount = 500
			r.MaxAmount = 100
		}, false},
		{"negative daily cap", func(r *model.Requisite) {
			r.MaxDailyAmount = -1
		}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := validCardRequisite()
			c.mutate(r)
			err := r.Validate()
			if c.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !c.ok && err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestRequisiteAccepts(t *testing.T) {
	r := validCardRequisite()
	if !r.Accepts(model.PaymentMethodCard, 100) || !r.Accepts(model.PaymentMethodCard, 10000) {
		t.Error("window edges should be accepted")
	}
	if r.Accepts(model.PaymentMethodCard, 99) || r.Accepts(model.PaymentMethodCard, 10001) {
		t.Error("amounts outside the window should be rejected")
	}
	if r.Accepts(model.PaymentMethodSBP, 500) {
		t.Error("wrong payment method should be rejected")
	}
}

func TestTransactionObligor(t *testing.T) {
	payIn := &model.Transaction{Type: model.TransactionTypePayIn}
	payOut := &model.Transaction{Type: model.TransactionTypePayOut}
	payIn.TraderID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	payIn.MerchantID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	payOut.TraderID = payIn.TraderID
	payOut.MerchantID = payIn.MerchantID

	if payIn.Obligor() != payIn.TraderID {
		t.Error("pay-in obligor should be the trader")
	}
	if payOut.Obligor() != payOut.MerchantID {
		t.Error("pay-out obligor should be the merchant")
	}
}
