package engine_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"SettleCore/internal/model"
)

func TestRequisiteOwnership(t *testing.T) {
	f := newFixture(t)
	traderID := f.addAccount(t, 0)
	outsider := f.addAccount(t, 0)
	r := f.addCardRequisite(t, traderID, 1, 1000, 0, 0)

	update := *r
	update.MaxAmount = 2000

	// A foreign caller is told the requisite does not exist.
	if err := f.eng.UpdateRequisite(context.Background(), outsider, false, &update); !model.IsNotFound(err) {
		t.Errorf("foreign update error = %v, want not found", err)
	}
	if err := f.eng.DeleteRequisite(context.Background(), outsider, false, r.ID); !model.IsNotFound(err) {
		t.Errorf("foreign delete error = %v, want not found", err)
	}

	// The owner and an admin both may.
	if err := f.eng.UpdateRequisite(context.Background(), traderID, false, &update); err != nil {
		t.Errorf("owner update: %v", err)
	}
	if err := f.eng.DeleteRequisite(context.Background(), outsider, true, r.ID); err != nil {
		t.Errorf("admin delete: %v", err)
	}
}

func TestCreateRequisiteValidates(t *testing.T) {
	f := newFixture(t)
	traderID := f.addAccount(t, 0)

	bad := &model.Requisite{
		ID:            uuid.New(),
		TraderID:      traderID,
		FullName:      "Ivan Petrov",
		PaymentMethod: model.PaymentMethodCard,
		// Both card and phone+bank set.
		CardNumber:  "4276000011112222",
		PhoneNumber: "+79990001122",
		BankName:    "Sber",
		MinAmount:   1,
		MaxAmount:   100,
	}
	if err := f.eng.CreateRequisite(context.Background(), traderID, false, bad); !model.IsBadRequest(err) {
		t.Errorf("invalid requisite error = %v, want bad request", err)
	}
}

func TestDeleteBusyRequisiteConflicts(t *testing.T) {
	f := newFixture(t)
	merchantID := f.addAccount(t, 0)
	traderID := f.addAccount(t, 0)
	r := f.addCardRequisite(t, traderID, 1, 10000, 0, 0)

	txn, err := f.eng.CreateFundingRequest(
		context.Background(), merchantID, 100, model.PaymentMethodCard, model.TransactionTypePayIn,
	)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.eng.DeleteRequisite(context.Background(), traderID, false, r.ID); !model.IsConflict(err) {
		t.Errorf("busy delete error = %v, want conflict", err)
	}

	if err := f.eng.Confirm(context.Background(), txn.ID, traderID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := f.eng.DeleteRequisite(context.Background(), traderID, false, r.ID); err != nil {
		t.Errorf("delete after settle: %v", err)
	}
}
