package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTaxonomy_Lookup(t *testing.T) {
	tax := DefaultTaxonomy()

	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"exact match", "Food & Drink", "Food & Drink", true},
		{"different case", "food & drink", "Food & Drink", true},
		{"extra spaces", "  Bills  ", "Bills", true},
		{"inner spaces collapsed", "Food  &   Drink", "Food & Drink", true},
		{"unknown", "Groceries", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tax.Lookup(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Lookup(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTaxonomy_ResolveFallsBackToOther(t *testing.T) {
	tax := NewTaxonomy("Makanan & Minuman", "Transportasi")

	if got := tax.Resolve("Tabungan"); got != CategoryOther {
		t.Errorf("Resolve() = %q, want %q", got, CategoryOther)
	}
	if !tax.Contains(CategoryOther) {
		t.Error("expected fallback to be part of the taxonomy")
	}
	names := tax.Names()
	if len(names) != 3 || names[0] != "Makanan & Minuman" || names[2] != CategoryOther {
		t.Errorf("Names() = %v", names)
	}
}

func TestTaxonomy_CustomFallback(t *testing.T) {
	tax := NewTaxonomyWithFallback("Lainnya", "Belanja", "Lainnya")

	if got := tax.Resolve("???"); got != "Lainnya" {
		t.Errorf("Resolve() = %q, want Lainnya", got)
	}
	if len(tax.Names()) != 2 {
		t.Errorf("expected duplicates to be dropped, got %v", tax.Names())
	}
}

func TestTaxonomy_ZeroValue(t *testing.T) {
	var tax Taxonomy
	if tax.Fallback() != CategoryOther {
		t.Errorf("Fallback() = %q", tax.Fallback())
	}
	if !tax.Contains(CategoryOther) || tax.Contains("Bills") {
		t.Error("zero taxonomy should only contain the fallback")
	}
}

func TestTransaction_Validate(t *testing.T) {
	tax := DefaultTaxonomy()
	valid := Transaction{
		Owner:      "user-1",
		Kind:       KindExpense,
		Amount:     decimal.NewFromInt(25000),
		Category:   "Food & Drink",
		OccurredAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{"valid", func(*Transaction) {}, nil},
		{"zero amount", func(tx *Transaction) { tx.Amount = decimal.Zero }, nil},
		{"missing owner", func(tx *Transaction) { tx.Owner = " " }, ErrMissingOwner},
		{"bad kind", func(tx *Transaction) { tx.Kind = "transfer" }, ErrInvalidKind},
		{"negative amount", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-1) }, ErrNegativeAmount},
		{"unknown category", func(tx *Transaction) { tx.Category = "Groceries" }, ErrUnknownCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mutate(&tx)
			err := tx.Validate(tax)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransaction_Apply(t *testing.T) {
	tx := Transaction{ID: "tx-1", Owner: "user-1", Kind: KindIncome, Amount: decimal.NewFromInt(1)}
	tx.Apply(TransactionFields{Kind: KindExpense, Amount: decimal.NewFromInt(5), Category: "Bills"})

	if tx.ID != "tx-1" || tx.Owner != "user-1" {
		t.Error("Apply must not touch identity fields")
	}
	if tx.Kind != KindExpense || !tx.Amount.Equal(decimal.NewFromInt(5)) || tx.Category != "Bills" {
		t.Errorf("Apply did not replace fields: %+v", tx)
	}
}
