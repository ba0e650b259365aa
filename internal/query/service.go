// Package query is the read side: plain SQL against the settlement tables,
// no engine involvement. Callers see only rows they are a party to; a row
// that exists but belongs to someone else reads as not found.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"SettleCore/internal/model"
)

// Service provides read-only access to settlement state.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetBalance returns the caller's own balance view.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*BalanceResponse, error) {
	var r BalanceResponse
	r.UserID = userID
	err := s.db.QueryRowContext(ctx, `
		SELECT balance, amount_frozen, is_active
		FROM accounts WHERE id = $1
	`, userID).Scan(&r.Balance, &r.AmountFrozen, &r.IsActive)
	if err == sql.ErrNoRows {
		return nil, model.NotFoundf("account %s", userID)
	}
	if err != nil {
		return nil, err
	}
	r.Available = r.Balance - r.AmountFrozen
	return &r, nil
}

const transactionSelect = `
	SELECT id, merchant_id, trader_id, requisite_id, amount,
	       payment_method, type, status, expires_at, created_at, updated_at
	FROM transactions
`

// GetTransaction returns a transaction the caller is a party to.
func (s *Service) GetTransaction(ctx context.Context, transactionID, callerID uuid.UUID) (*TransactionResponse, error) {
	row := s.db.QueryRowContext(ctx, transactionSelect+`
		WHERE id = $1 AND (merchant_id = $2 OR trader_id = $2)
	`, transactionID, callerID)

	t, err := scanTransactionRow(row)
	if err == sql.ErrNoRows {
		return nil, model.NotFoundf("transaction %s", transactionID)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTransactions pages the caller's transactions, newest first, with
// cursor-based pagination on created_at.
func (s *Service) ListTransactions(
	ctx context.Context,
	callerID uuid.UUID,
	status string,
	limit int,
	before *time.Time,
) ([]TransactionResponse, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := transactionSelect + ` WHERE (merchant_id = $1 OR trader_id = $1)`
	args := []interface{}{callerID}
	argIdx := 2

	if status != "" {
		q += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}
	if before != nil {
		q += fmt.Sprintf(" AND created_at < $%d", argIdx)
		args = append(args, *before)
		argIdx++
	}

	q += " ORDER BY created_at DESC"
	q += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TransactionResponse
	for rows.Next() {
		t, err := scanTransactionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// GetDispute returns a dispute on a transaction the caller is a party to.
func (s *Service) GetDispute(ctx context.Context, disputeID, callerID uuid.UUID) (*DisputeResponse, error) {
	var d DisputeResponse
	var winnerID uuid.NullUUID
	err := s.db.QueryRowContext(ctx, `
		SELECT d.id, d.transaction_id, d.description, d.image_urls, d.status,
		       d.winner_id, d.trader_replied, d.expires_at, d.created_at
		FROM disputes d
		JOIN transactions t ON t.id = d.transaction_id
		WHERE d.id = $1 AND (t.merchant_id = $2 OR t.trader_id = $2)
	`, disputeID, callerID).Scan(
		&d.ID, &d.TransactionID, &d.Description, pq.Array(&d.ImageURLs),
		&d.Status, &winnerID, &d.TraderReplied, &d.ExpiresAt, &d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, model.NotFoundf("dispute %s", disputeID)
	}
	if err != nil {
		return nil, err
	}
	d.WinnerID = winnerID.UUID
	return &d, nil
}

// GetTransfer returns a blockchain transfer owned by the caller.
func (s *Service) GetTransfer(ctx context.Context, transferID, callerID uuid.UUID) (*TransferResponse, error) {
	var t TransferResponse
	var fromAddress, hash sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, to_address, from_address, amount, type, status,
		       hash, expires_at, created_at
		FROM blockchain_transfers
		WHERE id = $1 AND user_id = $2
	`, transferID, callerID).Scan(
		&t.ID, &t.UserID, &t.ToAddress, &fromAddress, &t.Amount,
		&t.Type, &t.Status, &hash, &t.ExpiresAt, &t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, model.NotFoundf("transfer %s", transferID)
	}
	if err != nil {
		return nil, err
	}
	t.FromAddress = fromAddress.String
	t.Hash = hash.String
	return &t, nil
}

// ListRequisites returns the trader's own requisites ordered as the matcher
// would consider them.
func (s *Service) ListRequisites(ctx context.Context, traderID uuid.UUID) ([]RequisiteResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trader_id, full_name, payment_method, card_number,
		       phone_number, bank_name, min_amount, max_amount,
		       max_daily_amount, priority, created_at
		FROM requisites
		WHERE trader_id = $1
		ORDER BY priority ASC, created_at ASC
	`, traderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RequisiteResponse
	for rows.Next() {
		var r RequisiteResponse
		if err := rows.Scan(
			&r.ID, &r.TraderID, &r.FullName, &r.PaymentMethod, &r.CardNumber,
			&r.PhoneNumber, &r.BankName, &r.MinAmount, &r.MaxAmount,
			&r.MaxDailyAmount, &r.Priority, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListJournal pages the caller's ledger movements, newest first.
func (s *Service) ListJournal(
	ctx context.Context,
	accountID uuid.UUID,
	limit int,
	before *time.Time,
) ([]JournalEntryResponse, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := `
		SELECT id, ref_kind, ref_id, account_id, op, amount,
		       balance_delta, frozen_delta, created_at
		FROM ledger_journal
		WHERE account_id = $1
	`
	args := []interface{}{accountID}
	argIdx := 2

	if before != nil {
		q += fmt.Sprintf(" AND created_at < $%d", argIdx)
		args = append(args, *before)
		argIdx++
	}

	q += " ORDER BY created_at DESC"
	q += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalEntryResponse
	for rows.Next() {
		var e JournalEntryResponse
		if err := rows.Scan(
			&e.ID, &e.RefKind, &e.RefID, &e.AccountID, &e.Op,
			&e.Amount, &e.BalanceDelta, &e.FrozenDelta, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransactionRow(row rowScanner) (*TransactionResponse, error) {
	var t TransactionResponse
	var traderID, requisiteID uuid.NullUUID
	if err := row.Scan(
		&t.ID, &t.MerchantID, &traderID, &requisiteID, &t.Amount,
		&t.PaymentMethod, &t.Type, &t.Status, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.TraderID = traderID.UUID
	t.RequisiteID = requisiteID.UUID
	return &t, nil
}
