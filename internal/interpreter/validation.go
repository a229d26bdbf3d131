package interpreter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dompet-app/dompet/internal/domain"
	"github.com/shopspring/decimal"
)

// ParsedCommand is the structured result of interpreting a command,
// before it is persisted as a transaction.
type ParsedCommand struct {
	Kind     domain.Kind     `json:"type"`
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category"`
	Note     string          `json:"note"`
}

// Fields turns the command into transaction fields dated occurredAt.
func (p ParsedCommand) Fields(occurredAt time.Time) domain.TransactionFields {
	return domain.TransactionFields{
		Kind:       p.Kind,
		Amount:     p.Amount,
		Category:   p.Category,
		Note:       p.Note,
		OccurredAt: occurredAt,
	}
}

var (
	errNoJSONObject  = errors.New("no JSON object in completion")
	errMissingKind   = errors.New("transaction type is missing")
	errAmountMissing = errors.New("amount is missing")
)

// parseCompletion extracts and validates a ParsedCommand from raw model text.
func parseCompletion(text string, taxonomy domain.Taxonomy) (*ParsedCommand, error) {
	obj, ok := extractJSONObject(text)
	if !ok {
		return nil, newError(Unparseable, errNoJSONObject)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return nil, newError(Unparseable, fmt.Errorf("decode completion object: %w", err))
	}

	kind, err := parseKind(fields)
	if err != nil {
		return nil, err
	}

	amount, err := parseAmount(fields["amount"])
	if err != nil {
		return nil, err
	}

	return &ParsedCommand{
		Kind:     kind,
		Amount:   amount,
		Category: taxonomy.Resolve(stringField(fields["category"])),
		Note:     domain.TruncateNote(stringField(fields["note"])),
	}, nil
}

// parseKind reads "type", falling back to "kind". An absent kind leaves the
// record without its mandatory minimum; a present but unknown one is invalid.
func parseKind(fields map[string]json.RawMessage) (domain.Kind, error) {
	raw, ok := fields["type"]
	if !ok || isNull(raw) {
		raw, ok = fields["kind"]
	}
	if !ok || isNull(raw) {
		return "", newError(Unparseable, errMissingKind)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", newError(InvalidKind, fmt.Errorf("type is not a string: %s", raw))
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", newError(Unparseable, errMissingKind)
	}

	kind := domain.Kind(s)
	if !kind.Valid() {
		return "", newError(InvalidKind, fmt.Errorf("unknown type %q", s))
	}
	return kind, nil
}

// parseAmount accepts a JSON number or a numeric string and requires a
// non-negative value within the storable range. Amounts are kept as exact
// decimals.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || isNull(raw) {
		return decimal.Zero, newError(MissingAmount, errAmountMissing)
	}

	text := string(bytes.TrimSpace(raw))
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, newError(MissingAmount, fmt.Errorf("decode amount: %w", err))
		}
		text = strings.TrimSpace(s)
	}
	if text == "" {
		return decimal.Zero, newError(MissingAmount, errAmountMissing)
	}

	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, newError(MissingAmount, fmt.Errorf("amount %q is not a number", text))
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return decimal.Zero, newError(MissingAmount, fmt.Errorf("amount %q: %w", text, err))
	}
	return amount, nil
}

// stringField decodes raw as a string, returning "" for anything else.
func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
