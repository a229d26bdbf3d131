// Package export renders transactions and trends as CSV or XLSX files.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dompet-app/dompet/internal/aggregate"
	"github.com/dompet-app/dompet/internal/domain"
)

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Scope selects what an export contains.
type Scope string

const (
	ScopeTransactions Scope = "transactions"
	ScopeTrend        Scope = "trend"
)

// ParseFormat parses "csv" or "xlsx", case-insensitively. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unknown export format %q (want csv or xlsx)", s)
}

// ParseScope parses "transactions" or "trend". Empty means transactions.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeTransactions:
		return ScopeTransactions, nil
	case ScopeTrend:
		return ScopeTrend, nil
	}
	return "", fmt.Errorf("unknown export scope %q (want transactions or trend)", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FileName builds a download name such as "dompet-transactions-20240301.csv".
func FileName(scope Scope, f Format, at time.Time) string {
	return fmt.Sprintf("dompet-%s-%s.%s", scope, at.Format("20060102"), f)
}

// Table is a rectangular export. Columns listed in Numeric hold decimal
// strings and are written as numbers where the format supports it.
type Table struct {
	Sheet   string
	Header  []string
	Rows    [][]string
	Numeric map[int]bool
}

// TransactionsTable lists transactions in the given order. Undated
// transactions get an empty date cell.
func TransactionsTable(txs []domain.Transaction) Table {
	t := Table{
		Sheet:   "Transactions",
		Header:  []string{"Type", "Amount", "Category", "Date", "Note"},
		Rows:    make([][]string, 0, len(txs)),
		Numeric: map[int]bool{1: true},
	}
	for _, tx := range txs {
		date := ""
		if !tx.OccurredAt.IsZero() {
			date = tx.OccurredAt.Format("2006-01-02")
		}
		t.Rows = append(t.Rows, []string{
			string(tx.Kind),
			tx.Amount.String(),
			tx.Category,
			date,
			tx.Note,
		})
	}
	return t
}

// TrendTable lists one row per bucket, chronologically.
func TrendTable(trend aggregate.Trend) Table {
	t := Table{
		Sheet:   "Trend",
		Header:  []string{"Period", "Income", "Expense", "Balance"},
		Rows:    make([][]string, 0, len(trend.Buckets)),
		Numeric: map[int]bool{1: true, 2: true, 3: true},
	}
	for _, b := range trend.Buckets {
		t.Rows = append(t.Rows, []string{
			b.Label,
			b.Income.String(),
			b.Expense.String(),
			b.Balance.String(),
		})
	}
	return t
}

// Render writes t to w in format f.
func Render(w io.Writer, f Format, t Table) error {
	switch f {
	case FormatCSV:
		return writeCSV(w, t)
	case FormatXLSX:
		return writeXLSX(w, t)
	}
	return fmt.Errorf("Render: unknown format %q", f)
}
