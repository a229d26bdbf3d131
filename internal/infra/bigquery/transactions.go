package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dompet-app/dompet/internal/domain"
)

const (
	transactionsTable = "transactions"
	monthlyTotalsView = "monthly_totals"
)

// TransactionRow mirrors one domain.Transaction in the analytics dataset.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED
	Type          string `bigquery:"type"`           // REQUIRED

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC
	Category string   `bigquery:"category"` // REQUIRED

	Note bigquery.NullString `bigquery:"note"` // NULLABLE

	TransactionDate bigquery.NullDate      `bigquery:"transaction_date"` // NULLABLE, unknown date
	OccurredAt      bigquery.NullTimestamp `bigquery:"occurred_at"`      // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
	UpdatedTS time.Time `bigquery:"updated_ts"` // REQUIRED, event time of the last change
}

// NewTransactionRow converts tx. updated is the time of the change being
// mirrored; older changes never overwrite newer ones.
func NewTransactionRow(tx domain.Transaction, updated time.Time) *TransactionRow {
	row := &TransactionRow{
		TransactionID: tx.ID,
		UserID:        tx.Owner,
		Type:          string(tx.Kind),
		Amount:        tx.Amount.Rat(),
		Category:      tx.Category,
		Note:          bigquery.NullString{StringVal: tx.Note, Valid: tx.Note != ""},
		CreatedTS:     tx.CreatedAt.UTC(),
		UpdatedTS:     updated.UTC(),
	}
	if !tx.OccurredAt.IsZero() {
		row.TransactionDate = bigquery.NullDate{Date: civil.DateOf(tx.OccurredAt), Valid: true}
		row.OccurredAt = bigquery.NullTimestamp{Timestamp: tx.OccurredAt.UTC(), Valid: true}
	}
	if row.CreatedTS.IsZero() {
		row.CreatedTS = row.UpdatedTS
	}
	return row
}

// MonthlyTotalRow is one row of the monthly_totals view.
type MonthlyTotalRow struct {
	Month        civil.Date `bigquery:"month"`
	Income       *big.Rat   `bigquery:"income"`
	Expense      *big.Rat   `bigquery:"expense"`
	Transactions int64      `bigquery:"transactions"`
}
