package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"SettleCore/internal/model"
)

type pgRequisiteRepo struct {
	tx *sql.Tx
}

const requisiteColumns = `id, trader_id, full_name, payment_method, card_number, phone_number,
	bank_name, min_amount, max_amount, max_daily_amount, priority, created_at, updated_at`

func (r *pgRequisiteRepo) Get(ctx context.Context, id uuid.UUID) (*model.Requisite, error) {
	row := r.tx.QueryRowContext(ctx,
		`SELECT `+requisiteColumns+` FROM requisites WHERE id = $1`, id)
	var q model.Requisite
	err := row.Scan(&q.ID, &q.TraderID, &q.FullName, &q.PaymentMethod, &q.CardNumber,
		&q.PhoneNumber, &q.BankName, &q.MinAmount, &q.MaxAmount, &q.MaxDailyAmount,
		&q.Priority, &q.CreatedAt, &q.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, model.NotFoundf("requisite")
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *pgRequisiteRepo) Create(ctx context.Context, q *model.Requisite) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO requisites (id, trader_id, full_name, payment_method, card_number,
			phone_number, bank_name, min_amount, max_amount, max_daily_amount, priority,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())`,
		q.ID, q.TraderID, q.FullName, q.PaymentMethod, q.CardNumber, q.PhoneNumber,
		q.BankName, q.MinAmount, q.MaxAmount, q.MaxDailyAmount, q.Priority)
	if isUniqueViolation(err) {
		return model.Conflictf("requisite %s already exists", q.ID)
	}
	return err
}

func (r *pgRequisiteRepo) Update(ctx context.Context, q *model.Requisite) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE requisites
		SET full_name = $2, payment_method = $3, card_number = $4, phone_number = $5,
			bank_name = $6, min_amount = $7, max_amount = $8, max_daily_amount = $9,
			priority = $10, updated_at = now()
		WHERE id = $1`,
		q.ID, q.FullName, q.PaymentMethod, q.CardNumber, q.PhoneNumber, q.BankName,
		q.MinAmount, q.MaxAmount, q.MaxDailyAmount, q.Priority)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NotFoundf("requisite")
	}
	return nil
}

func (r *pgRequisiteRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.tx.ExecContext(ctx, `DELETE FROM requisites WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NotFoundf("requisite")
	}
	return nil
}

// ListEligible applies the priority-then-age selection rule. Busy-requisite
// exclusion and the daily cap are applied by the matcher on top of this list.
func (r *pgRequisiteRepo) ListEligible(ctx context.Context, method model.PaymentMethod, amount int64) ([]*model.Requisite, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT q.id, q.trader_id, q.full_name, q.payment_method, q.card_number, q.phone_number,
			q.bank_name, q.min_amount, q.max_amount, q.max_daily_amount, q.priority,
			q.created_at, q.updated_at
		FROM requisites q
		JOIN accounts a ON a.id = q.trader_id
		WHERE q.payment_method = $1
		  AND q.min_amount <= $2 AND q.max_amount >= $2
		  AND a.is_active
		ORDER BY q.priority ASC, q.created_at ASC`,
		method, amount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Requisite
	for rows.Next() {
		var q model.Requisite
		if err := rows.Scan(&q.ID, &q.TraderID, &q.FullName, &q.PaymentMethod, &q.CardNumber,
			&q.PhoneNumber, &q.BankName, &q.MinAmount, &q.MaxAmount, &q.MaxDailyAmount,
			&q.Priority, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &q)
	}
	return out, rows.Err()
}
