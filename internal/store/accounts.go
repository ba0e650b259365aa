package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"SettleCore/internal/model"
)

type pgAccountRepo struct {
	tx *sql.Tx
}

const accountColumns = `id, balance, amount_frozen, is_active, is_2fa_enabled, created_at, updated_at`

func scanAccount(row *sql.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Balance, &a.AmountFrozen, &a.IsActive, &a.Is2FAEnabled, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, model.NotFoundf("account")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *pgAccountRepo) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	row := r.tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetForUpdate takes the row lock. Every read-modify-write of the
// balance/amount_frozen pair goes through here first.
func (r *pgAccountRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	row := r.tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return scanAccount(row)
}

func (r *pgAccountRepo) Create(ctx context.Context, a *model.Account) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO accounts (id, balance, amount_frozen, is_active, is_2fa_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())`,
		a.ID, a.Balance, a.AmountFrozen, a.IsActive, a.Is2FAEnabled)
	if isUniqueViolation(err) {
		return model.Conflictf("account %s already exists", a.ID)
	}
	return err
}

func (r *pgAccountRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := r.tx.ExecContext(ctx,
		`UPDATE accounts SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NotFoundf("account")
	}
	return nil
}

func (r *pgAccountRepo) AdjustBalances(ctx context.Context, id uuid.UUID, balanceDelta, frozenDelta int64) (int64, error) {
	var newFrozen int64
	err := r.tx.QueryRowContext(ctx, `
		UPDATE accounts
		SET balance = balance + $2, amount_frozen = amount_frozen + $3, updated_at = now()
		WHERE id = $1
		RETURNING amount_frozen`,
		id, balanceDelta, frozenDelta).Scan(&newFrozen)
	if err == sql.ErrNoRows {
		return 0, model.NotFoundf("account")
	}
	if err != nil {
		return 0, fmt.Errorf("adjust balances for %s: %w", id, err)
	}
	return newFrozen, nil
}
