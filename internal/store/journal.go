package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// pgJournalWriter appends ledger movement rows with a multi-row INSERT,
// inside the same transaction as the account and status writes they record.
type pgJournalWriter struct {
	tx *sql.Tx
}

func (w *pgJournalWriter) Append(ctx context.Context, entries ...JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `INSERT INTO ledger_journal
		(id, ref_kind, ref_id, account_id, op, amount, balance_delta, frozen_delta, created_at)
		VALUES `

	values := make([]string, 0, len(entries))
	args := make([]interface{}, 0, len(entries)*8)

	for i, e := range entries {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, now())",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			e.ID, e.RefKind, e.RefID, e.AccountID,
			e.Op, e.Amount, e.BalanceDelta, e.FrozenDelta,
		)
	}

	query += strings.Join(values, ", ")

	_, err := w.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}
