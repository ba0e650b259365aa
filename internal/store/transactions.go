package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"SettleCore/internal/model"
)

type pgTransactionRepo struct {
	tx *sql.Tx
}

const transactionColumns = `id, merchant_id, trader_id, requisite_id, amount, payment_method,
	type, status, expires_at, created_at, updated_at`

func scanTransaction(scan func(dest ...interface{}) error) (*model.Transaction, error) {
	var t model.Transaction
	var traderID, requisiteID uuid.NullUUID
	err := scan(&t.ID, &t.MerchantID, &traderID, &requisiteID, &t.Amount,
		&t.PaymentMethod, &t.Type, &t.Status, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, model.NotFoundf("transaction")
	}
	if err != nil {
		return nil, err
	}
	if traderID.Valid {
		t.TraderID = traderID.UUID
	}
	if requisiteID.Valid {
		t.RequisiteID = requisiteID.UUID
	}
	return &t, nil
}

func nullableUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

func (r *pgTransactionRepo) Get(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	row := r.tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row.Scan)
}

// GetForUpdate locks the transaction row so that two concurrent confirm calls
// serialize; the loser observes a non-PENDING status and fails cleanly.
func (r *pgTransactionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	row := r.tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
	return scanTransaction(row.Scan)
}

func (r *pgTransactionRepo) Create(ctx context.Context, t *model.Transaction) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO transactions (id, merchant_id, trader_id, requisite_id, amount,
			payment_method, type, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())`,
		t.ID, t.MerchantID, nullableUUID(t.TraderID), nullableUUID(t.RequisiteID),
		t.Amount, t.PaymentMethod, t.Type, t.Status, t.ExpiresAt)
	if isUniqueViolation(err) {
		return model.Conflictf("transaction %s already exists", t.ID)
	}
	return err
}

func (r *pgTransactionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.TransactionStatus) error {
	res, err := r.tx.ExecContext(ctx,
		`UPDATE transactions SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NotFoundf("transaction")
	}
	return nil
}

func (r *pgTransactionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NotFoundf("transaction")
	}
	return nil
}

func (r *pgTransactionRepo) ExistsPendingByRequisite(ctx context.Context, requisiteID uuid.UUID) (bool, error) {
	var exists bool
	err := r.tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions WHERE requisite_id = $1 AND status = $2
		)`, requisiteID, model.TransactionStatusPending).Scan(&exists)
	return exists, err
}

func (r *pgTransactionRepo) ExistsPendingByMerchantAndType(ctx context.Context, merchantID uuid.UUID, typ model.TransactionType) (bool, error) {
	var exists bool
	err := r.tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions WHERE merchant_id = $1 AND type = $2 AND status = $3
		)`, merchantID, typ, model.TransactionStatusPending).Scan(&exists)
	return exists, err
}

func (r *pgTransactionRepo) SumByRequisiteSince(ctx context.Context, requisiteID uuid.UUID, since time.Time) (int64, error) {
	var total int64
	err := r.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE requisite_id = $1 AND created_at >= $2 AND status IN ($3, $4)`,
		requisiteID, since, model.TransactionStatusPending, model.TransactionStatusSuccess).Scan(&total)
	return total, err
}

func (r *pgTransactionRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.Transaction, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at ASC
		LIMIT $3`,
		model.TransactionStatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
