package bigquery

import (
	"context"
	"time"
)

// TransactionMirror keeps the analytics copy of transactions in step with
// the primary store.
type TransactionMirror interface {
	// UpsertTransaction inserts or replaces a row unless the stored row
	// already reflects a later change.
	UpsertTransaction(ctx context.Context, row *TransactionRow) error

	// DeleteTransaction removes a row.
	DeleteTransaction(ctx context.Context, userID, transactionID string) error

	// QueryMonthlyTotals reads the monthly_totals view for one user.
	QueryMonthlyTotals(ctx context.Context, userID string, start, end time.Time) ([]*MonthlyTotalRow, error)
}
