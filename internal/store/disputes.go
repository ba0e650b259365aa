package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"SettleCore/internal/model"
)

type pgDisputeRepo struct {
	tx *sql.Tx
}

const disputeColumns = `id, transaction_id, description, image_urls, status, winner_id,
	trader_replied, expires_at, created_at, updated_at`

func scanDispute(scan func(dest ...interface{}) error) (*model.Dispute, error) {
	var d model.Dispute
	var winnerID uuid.NullUUID
	err := scan(&d.ID, &d.TransactionID, &d.Description, pq.Array(&d.ImageURLs),
		&d.Status, &winnerID, &d.TraderReplied, &d.ExpiresAt, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, model.NotFoundf("dispute")
	}
	if err != nil {
		return nil, err
	}
	if winnerID.Valid {
		d.WinnerID = winnerID.UUID
	}
	return &d, nil
}

func (r *pgDisputeRepo) Get(ctx context.Context, id uuid.UUID) (*model.Dispute, error) {
	row := r.tx.QueryRowContext(ctx,
		`SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id)
	return scanDispute(row.Scan)
}

func (r *pgDisputeRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Dispute, error) {
	row := r.tx.QueryRowContext(ctx,
		`SELECT `+disputeColumns+` FROM disputes WHERE id = $1 FOR UPDATE`, id)
	return scanDispute(row.Scan)
}

func (r *pgDisputeRepo) GetByTransaction(ctx context.Context, transactionID uuid.UUID) (*model.Dispute, error) {
	row := r.tx.QueryRowContext(ctx,
		`SELECT `+disputeColumns+` FROM disputes WHERE transaction_id = $1`, transactionID)
	return scanDispute(row.Scan)
}

func (r *pgDisputeRepo) Create(ctx context.Context, d *model.Dispute) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO disputes (id, transaction_id, description, image_urls, status,
			winner_id, trader_replied, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())`,
		d.ID, d.TransactionID, d.Description, pq.Array(d.ImageURLs), d.Status,
		nullableUUID(d.WinnerID), d.TraderReplied, d.ExpiresAt)
	if isUniqueViolation(err) {
		// The unique index on transaction_id enforces at most one dispute
		// per transaction even under racing opens.
		return model.Conflictf("transaction %s already has a dispute", d.TransactionID)
	}
	return err
}

func (r *pgDisputeRepo) Update(ctx context.Context, d *model.Dispute) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE disputes
		SET description = $2, image_urls = $3, status = $4, winner_id = $5,
			trader_replied = $6, updated_at = now()
		WHERE id = $1`,
		d.ID, d.Description, pq.Array(d.ImageURLs), d.Status,
		nullableUUID(d.WinnerID), d.TraderReplied)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NotFoundf("dispute")
	}
	return nil
}

func (r *pgDisputeRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.Dispute, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT `+disputeColumns+`
		FROM disputes
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at ASC
		LIMIT $3`,
		model.DisputeStatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Dispute
	for rows.Next() {
		d, err := scanDispute(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
