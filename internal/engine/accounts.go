package engine

import (
	"context"

	"github.com/google/uuid"

	"SettleCore/internal/model"
	"SettleCore/internal/store"
)

// CreateAccount provisions an account row. Accounts start inactive; an
// inactive trader's requisites are invisible to the matcher.
func (e *Engine) CreateAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}
	account := &model.Account{ID: id}
	err := e.store.ExecTx(ctx, func(tx store.Tx) error {
		return tx.Accounts().Create(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("account_id", account.ID.String()).Msg("account created")
	return account, nil
}

// SetAccountActive flips the matching eligibility of an account's requisites.
// Deactivation does not touch open transactions; they run to completion.
func (e *Engine) SetAccountActive(ctx context.Context, id uuid.UUID, active bool) error {
	err := e.store.ExecTx(ctx, func(tx store.Tx) error {
		return tx.Accounts().SetActive(ctx, id, active)
	})
	if err != nil {
		return err
	}
	e.log.Info().Str("account_id", id.String()).Bool("active", active).Msg("account activity changed")
	return nil
}
