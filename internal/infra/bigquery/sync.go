package bigquery

import (
	"context"
	"fmt"

	"github.com/dompet-app/dompet/internal/events"
)

// EventHandler returns an events.Handler that applies transaction events
// to mirror.
func EventHandler(mirror TransactionMirror) events.Handler {
	return func(ctx context.Context, event *events.TransactionEvent) error {
		return ApplyEvent(ctx, mirror, event)
	}
}

// ApplyEvent upserts created and updated transactions and deletes removed
// ones.
func ApplyEvent(ctx context.Context, mirror TransactionMirror, event *events.TransactionEvent) error {
	switch event.Type {
	case events.TransactionCreated, events.TransactionUpdated:
		if event.Transaction == nil {
			return fmt.Errorf("ApplyEvent: %s event has no transaction", event.Type)
		}
		return mirror.UpsertTransaction(ctx, NewTransactionRow(*event.Transaction, event.Timestamp))
	case events.TransactionDeleted:
		return mirror.DeleteTransaction(ctx, event.Owner, event.TransactionID)
	default:
		return fmt.Errorf("ApplyEvent: unknown event type %q", event.Type)
	}
}
