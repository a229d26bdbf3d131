// Package aggregate computes summaries, category breakdowns and time
// buckets over a snapshot of transactions. Every function is pure: inputs
// are never mutated and nothing is cached between calls.
package aggregate

import (
	"github.com/dompet-app/dompet/internal/domain"
	"github.com/shopspring/decimal"
)

// Summary holds running totals over a set of transactions.
type Summary struct {
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Balance      decimal.Decimal `json:"balance"`
}

// CategoryTotal is the summed expense of one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// Summarize totals income and expense. Transactions of unknown kind are
// ignored. The result does not depend on input order.
func Summarize(txs []domain.Transaction) Summary {
	income := decimal.Zero
	expense := decimal.Zero

	for _, tx := range txs {
		switch tx.Kind {
		case domain.KindIncome:
			income = income.Add(tx.Amount)
		case domain.KindExpense:
			expense = expense.Add(tx.Amount)
		}
	}

	return Summary{
		TotalIncome:  income,
		TotalExpense: expense,
		Balance:      income.Sub(expense),
	}
}

// BreakdownByCategory sums expenses per category. Entries appear in order
// of each category's first expense; income never contributes.
func BreakdownByCategory(txs []domain.Transaction) []CategoryTotal {
	out := []CategoryTotal{}
	index := make(map[string]int)

	for _, tx := range txs {
		if tx.Kind != domain.KindExpense {
			continue
		}
		i, ok := index[tx.Category]
		if !ok {
			i = len(out)
			index[tx.Category] = i
			out = append(out, CategoryTotal{Category: tx.Category, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(tx.Amount)
	}

	return out
}
