package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Kind is the direction of a transaction.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

var (
	ErrInvalidKind     = errors.New("invalid transaction kind")
	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrUnknownCategory = errors.New("unknown category")
	ErrMissingOwner    = errors.New("transaction has no owner")
	ErrNoteTooLong     = errors.New("note too long (max 500 characters)")
	ErrAmountTooLarge  = errors.New("amount out of range (max 18 integer digits and 9 decimal places)")
)

// MaxNoteLength bounds the free-text note stored with a transaction.
const MaxNoteLength = 500

// TruncateNote trims note and cuts it to MaxNoteLength characters.
func TruncateNote(note string) string {
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) <= MaxNoteLength {
		return note
	}
	runes := []rune(note)
	return strings.TrimSpace(string(runes[:MaxNoteLength]))
}

// Amount limits. Both fit a Decimal128 and a BigQuery NUMERIC column.
const (
	MaxAmountIntegerDigits = 18
	MaxAmountScale         = 9
)

// ValidateAmount rejects negative amounts and amounts outside the storable
// range. It only inspects the coefficient and exponent, so an input such as
// 1e8000000 is rejected without being expanded.
func ValidateAmount(a decimal.Decimal) error {
	if a.IsNegative() {
		return ErrNegativeAmount
	}
	if a.IsZero() {
		return nil
	}

	exp := int64(a.Exponent())
	digits := int64(len(a.Coefficient().String()))
	if digits+exp > MaxAmountIntegerDigits {
		return ErrAmountTooLarge
	}
	if exp >= -MaxAmountScale {
		return nil
	}
	// Dropping more places than the coefficient has digits would need a
	// zero coefficient, which was handled above.
	if extra := -MaxAmountScale - exp; extra > digits {
		return ErrAmountTooLarge
	}
	if !a.Equal(a.Truncate(MaxAmountScale)) {
		return ErrAmountTooLarge
	}
	return nil
}

// Transaction is one income or expense record belonging to a single owner.
// OccurredAt is the date the transaction is attributed to; a zero value
// means the date is unknown and the record is left out of time-bucketed views.
type Transaction struct {
	ID         string          `json:"id"`
	Owner      string          `json:"owner"`
	Kind       Kind            `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Category   string          `json:"category"`
	Note       string          `json:"note"`
	OccurredAt time.Time       `json:"date"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TransactionFields holds the user-editable fields of a transaction.
// Updates replace all of them at once.
type TransactionFields struct {
	Kind       Kind
	Amount     decimal.Decimal
	Category   string
	Note       string
	OccurredAt time.Time
}

// Fields returns the editable part of t.
func (t Transaction) Fields() TransactionFields {
	return TransactionFields{
		Kind:       t.Kind,
		Amount:     t.Amount,
		Category:   t.Category,
		Note:       t.Note,
		OccurredAt: t.OccurredAt,
	}
}

// Apply overwrites the editable fields of t with f.
func (t *Transaction) Apply(f TransactionFields) {
	t.Kind = f.Kind
	t.Amount = f.Amount
	t.Category = f.Category
	t.Note = f.Note
	t.OccurredAt = f.OccurredAt
}

// Validate checks the editable fields against the taxonomy.
func (f TransactionFields) Validate(taxonomy Taxonomy) error {
	if !f.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := ValidateAmount(f.Amount); err != nil {
		return err
	}
	if !taxonomy.Contains(f.Category) {
		return ErrUnknownCategory
	}
	if utf8.RuneCountInString(strings.TrimSpace(f.Note)) > MaxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}

// Validate checks every invariant of a stored transaction.
func (t Transaction) Validate(taxonomy Taxonomy) error {
	if strings.TrimSpace(t.Owner) == "" {
		return ErrMissingOwner
	}
	return t.Fields().Validate(taxonomy)
}
