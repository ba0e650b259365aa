package store

import (
	"context"
	"database/sql"

	"SettleCore/internal/model"
)

type pgWalletRepo struct {
	tx *sql.Tx
}

func (r *pgWalletRepo) Create(ctx context.Context, w *model.Wallet) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO wallets (id, address, private_key, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())`,
		w.ID, w.Address, w.PrivateKey)
	if isUniqueViolation(err) {
		return model.Conflictf("wallet address %s already exists", w.Address)
	}
	return err
}

func (r *pgWalletRepo) GetByAddress(ctx context.Context, address string) (*model.Wallet, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT id, address, private_key, created_at, updated_at
		FROM wallets WHERE address = $1`, address)
	var w model.Wallet
	err := row.Scan(&w.ID, &w.Address, &w.PrivateKey, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, model.NotFoundf("wallet")
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *pgWalletRepo) List(ctx context.Context) ([]*model.Wallet, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, address, private_key, created_at, updated_at
		FROM wallets ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Wallet
	for rows.Next() {
		var w model.Wallet
		if err := rows.Scan(&w.ID, &w.Address, &w.PrivateKey, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}
