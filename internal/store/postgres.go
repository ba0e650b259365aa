package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// SQLStore implements Store on top of database/sql with the lib/pq driver.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// ExecTx runs fn inside a single database transaction.
func (s *SQLStore) ExecTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// pgTx binds the repositories to one open *sql.Tx.
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Accounts() AccountRepo         { return &pgAccountRepo{tx: t.tx} }
func (t *pgTx) Requisites() RequisiteRepo     { return &pgRequisiteRepo{tx: t.tx} }
func (t *pgTx) Transactions() TransactionRepo { return &pgTransactionRepo{tx: t.tx} }
func (t *pgTx) Disputes() DisputeRepo         { return &pgDisputeRepo{tx: t.tx} }
func (t *pgTx) Transfers() TransferRepo       { return &pgTransferRepo{tx: t.tx} }
func (t *pgTx) Wallets() WalletRepo           { return &pgWalletRepo{tx: t.tx} }
func (t *pgTx) Journal() JournalWriter        { return &pgJournalWriter{tx: t.tx} }

// isUniqueViolation reports whether err is a Postgres unique_violation,
// used to map racing duplicate inserts onto the Conflict taxonomy.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
