package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"SettleCore/internal/model"
)

type pgTransferRepo struct {
	tx *sql.Tx
}

const transferColumns = `id, user_id, to_address, from_address, amount, type, status,
	hash, expires_at, created_at, updated_at`

func scanTransfer(scan func(dest ...interface{}) error) (*model.BlockchainTransfer, error) {
	var bt model.BlockchainTransfer
	var fromAddr, hash sql.NullString
	err := scan(&bt.ID, &bt.UserID, &bt.ToAddress, &fromAddr, &bt.Amount,
		&bt.Type, &bt.Status, &hash, &bt.ExpiresAt, &bt.CreatedAt, &bt.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, model.NotFoundf("blockchain transfer")
	}
	if err != nil {
		return nil, err
	}
	bt.FromAddress = fromAddr.String
	bt.Hash = hash.String
	return &bt, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *pgTransferRepo) Get(ctx context.Context, id uuid.UUID) (*model.BlockchainTransfer, error) {
	row := r.tx.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM blockchain_transfers WHERE id = $1`, id)
	return scanTransfer(row.Scan)
}

func (r *pgTransferRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.BlockchainTransfer, error) {
	row := r.tx.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM blockchain_transfers WHERE id = $1 FOR UPDATE`, id)
	return scanTransfer(row.Scan)
}

func (r *pgTransferRepo) Create(ctx context.Context, bt *model.BlockchainTransfer) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO blockchain_transfers (id, user_id, to_address, from_address, amount,
			type, status, hash, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())`,
		bt.ID, bt.UserID, bt.ToAddress, nullableString(bt.FromAddress), bt.Amount,
		bt.Type, bt.Status, nullableString(bt.Hash), bt.ExpiresAt)
	if isUniqueViolation(err) {
		return model.Conflictf("transfer %s already exists", bt.ID)
	}
	return err
}

func (r *pgTransferRepo) Update(ctx context.Context, bt *model.BlockchainTransfer) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE blockchain_transfers
		SET from_address = $2, status = $3, hash = $4, updated_at = now()
		WHERE id = $1`,
		bt.ID, nullableString(bt.FromAddress), bt.Status, nullableString(bt.Hash))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NotFoundf("blockchain transfer")
	}
	return nil
}

func (r *pgTransferRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.BlockchainTransfer, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT `+transferColumns+`
		FROM blockchain_transfers
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at ASC
		LIMIT $3`,
		model.TransferStatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.BlockchainTransfer
	for rows.Next() {
		bt, err := scanTransfer(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, bt)
	}
	return out, rows.Err()
}
