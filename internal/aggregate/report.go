package aggregate

import (
	"fmt"
	"time"

	"github.com/dompet-app/dompet/internal/domain"
)

// Report is the dashboard view: totals, expense breakdown and a trend.
type Report struct {
	Summary    Summary         `json:"summary"`
	Categories []CategoryTotal `json:"categories"`
	Trend      Trend           `json:"trend"`
	Count      int             `json:"count"`
}

// BuildReport computes all dashboard aggregates over txs.
func BuildReport(txs []domain.Transaction, g Granularity) Report {
	return Report{
		Summary:    Summarize(txs),
		Categories: BreakdownByCategory(txs),
		Trend:      BucketByPeriod(txs, g),
		Count:      len(txs),
	}
}

// MonthRange returns the first and last instant of a calendar month in loc.
func MonthRange(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

// ParseMonth parses a "2006-01" month reference in loc.
func ParseMonth(s string, loc *time.Location) (int, time.Month, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01", s, loc)
	if err != nil {
		return 0, 0, fmt.Errorf("ParseMonth: %q is not YYYY-MM: %w", s, err)
	}
	return t.Year(), t.Month(), nil
}

// MonthlyReport restricts txs to one month and buckets it by day.
type MonthlyReport struct {
	Month string    `json:"month"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Report
}

// BuildMonthlyReport filters txs to the given month and reports on it with
// daily buckets.
func BuildMonthlyReport(txs []domain.Transaction, year int, month time.Month, loc *time.Location) MonthlyReport {
	start, end := MonthRange(year, month, loc)
	inMonth := FilterByPeriod(txs, start, end)
	return MonthlyReport{
		Month:  start.Format(MonthLabelLayout),
		Start:  start,
		End:    end,
		Report: BuildReport(inMonth, Day),
	}
}
