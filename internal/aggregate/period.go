package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dompet-app/dompet/internal/domain"
	"github.com/shopspring/decimal"
)

// Granularity selects the calendar period used for bucketing.
type Granularity string

const (
	Day   Granularity = "day"
	Month Granularity = "month"
)

const (
	MonthLabelLayout = "Jan 2006"
	DayLabelLayout   = "2006-01-02"
)

// ParseGranularity accepts "day" or "month" in any case.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case Day:
		return Day, nil
	case Month:
		return Month, nil
	default:
		return "", fmt.Errorf("unknown granularity %q (want day or month)", s)
	}
}

// Bucket aggregates the transactions of one calendar day or month.
type Bucket struct {
	Start   time.Time       `json:"start"`
	Label   string          `json:"label"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// Trend is a chronological, sparse bucket series. Skipped counts the
// transactions left out because they had no date.
type Trend struct {
	Granularity Granularity `json:"granularity"`
	Buckets     []Bucket    `json:"buckets"`
	Skipped     int         `json:"skipped"`
}

type periodKey struct {
	year  int
	month time.Month
	day   int
}

func (k periodKey) before(o periodKey) bool {
	if k.year != o.year {
		return k.year < o.year
	}
	if k.month != o.month {
		return k.month < o.month
	}
	return k.day < o.day
}

// BucketByPeriod groups transactions by the calendar day or month of
// OccurredAt, read in whatever location each time already carries.
// Periods without transactions produce no bucket. An unknown granularity
// is a programming error and panics.
func BucketByPeriod(txs []domain.Transaction, g Granularity) Trend {
	if g != Day && g != Month {
		panic(fmt.Sprintf("aggregate: unknown granularity %q", g))
	}

	trend := Trend{Granularity: g, Buckets: []Bucket{}}
	buckets := make(map[periodKey]*Bucket)
	var keys []periodKey

	for _, tx := range txs {
		if tx.OccurredAt.IsZero() {
			trend.Skipped++
			continue
		}

		y, m, d := tx.OccurredAt.Date()
		key := periodKey{year: y, month: m, day: 1}
		if g == Day {
			key.day = d
		}

		b, ok := buckets[key]
		if !ok {
			start := time.Date(key.year, key.month, key.day, 0, 0, 0, 0, tx.OccurredAt.Location())
			b = &Bucket{
				Start:   start,
				Label:   label(start, g),
				Income:  decimal.Zero,
				Expense: decimal.Zero,
			}
			buckets[key] = b
			keys = append(keys, key)
		}

		switch tx.Kind {
		case domain.KindIncome:
			b.Income = b.Income.Add(tx.Amount)
		case domain.KindExpense:
			b.Expense = b.Expense.Add(tx.Amount)
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].before(keys[j]) })

	for _, key := range keys {
		b := buckets[key]
		b.Balance = b.Income.Sub(b.Expense)
		trend.Buckets = append(trend.Buckets, *b)
	}

	return trend
}

func label(start time.Time, g Granularity) string {
	if g == Day {
		return start.Format(DayLabelLayout)
	}
	return start.Format(MonthLabelLayout)
}

// FilterByPeriod keeps transactions whose OccurredAt lies in [start, end],
// preserving input order. Undated transactions never match. A zero start
// or end leaves that side of the range open.
func FilterByPeriod(txs []domain.Transaction, start, end time.Time) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.OccurredAt.IsZero() {
			continue
		}
		if !start.IsZero() && tx.OccurredAt.Before(start) {
			continue
		}
		if !end.IsZero() && tx.OccurredAt.After(end) {
			continue
		}
		out = append(out, tx)
	}
	return out
}
