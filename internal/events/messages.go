// Package events carries transaction change notifications from the API to
// the analytics mirror over AMQP.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dompet-app/dompet/internal/domain"
)

// EventType names the change a TransactionEvent describes.
type EventType string

const (
	TransactionCreated EventType = "transaction.created"
	TransactionUpdated EventType = "transaction.updated"
	TransactionDeleted EventType = "transaction.deleted"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case TransactionCreated, TransactionUpdated, TransactionDeleted:
		return true
	}
	return false
}

// TransactionEvent is one change to one transaction. Transaction is nil for
// deletions.
type TransactionEvent struct {
	Type          EventType           `json:"type"`
	TransactionID string              `json:"transaction_id"`
	Owner         string              `json:"owner"`
	Transaction   *domain.Transaction `json:"transaction,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
}

// NewTransactionEvent describes a create or update of tx.
func NewTransactionEvent(t EventType, tx domain.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Type:          t,
		TransactionID: tx.ID,
		Owner:         tx.Owner,
		Transaction:   &tx,
		Timestamp:     time.Now().UTC(),
	}
}

// NewDeleteEvent describes the removal of a transaction.
func NewDeleteEvent(owner, id string) *TransactionEvent {
	return &TransactionEvent{
		Type:          TransactionDeleted,
		TransactionID: id,
		Owner:         owner,
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and checks an event.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if !e.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.TransactionID == "" || e.Owner == "" {
		return nil, fmt.Errorf("event %s is missing transaction id or owner", e.Type)
	}
	if e.Type != TransactionDeleted && e.Transaction == nil {
		return nil, fmt.Errorf("event %s has no transaction", e.Type)
	}
	return &e, nil
}
