// Package store defines the persistence contracts shared by every storage
// backend. Implementations live under internal/infra.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/dompet-app/dompet/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to
	// another owner.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when an email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
)

// TransactionRepository provides an interface for owner-scoped transaction
// storage. Every method takes the owner so one user can never read or change
// another user's records.
type TransactionRepository interface {
	// InsertTransaction stores tx and returns its id. An empty ID is
	// assigned by the repository.
	InsertTransaction(ctx context.Context, tx *domain.Transaction) (string, error)

	// FindTransactionsByOwner returns the owner's transactions matching
	// filter, newest OccurredAt first.
	FindTransactionsByOwner(ctx context.Context, owner string, filter TransactionFilter) ([]domain.Transaction, error)

	// GetTransaction retrieves one transaction by id.
	GetTransaction(ctx context.Context, owner, id string) (*domain.Transaction, error)

	// UpdateTransaction replaces the editable fields and returns the result.
	UpdateTransaction(ctx context.Context, owner, id string, fields domain.TransactionFields) (*domain.Transaction, error)

	// DeleteTransaction removes one transaction.
	DeleteTransaction(ctx context.Context, owner, id string) error

	// DeleteTransactionsByOwner removes all of the owner's transactions and
	// returns how many were deleted.
	DeleteTransactionsByOwner(ctx context.Context, owner string) (int64, error)
}

// UserRepository provides an interface for account storage.
type UserRepository interface {
	// CreateUser stores u, assigning an ID when empty.
	CreateUser(ctx context.Context, u *domain.User) error

	// FindUserByEmail looks a user up by (lower-cased) email.
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// FindUserByID looks a user up by id.
	FindUserByID(ctx context.Context, id string) (*domain.User, error)

	// UpdateUserProfile changes name and email.
	UpdateUserProfile(ctx context.Context, id, name, email string) (*domain.User, error)

	// UpdateUserPassword replaces the stored password hash.
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error

	// DeleteUser removes the account. Transactions are removed separately.
	DeleteUser(ctx context.Context, id string) error
}

// Store bundles both repositories with the backend's lifecycle.
type Store interface {
	TransactionRepository
	UserRepository

	// Close releases the backend's connections.
	Close(ctx context.Context) error
}

// TransactionFilter narrows FindTransactionsByOwner. Zero fields match
// everything; Start and End are inclusive.
type TransactionFilter struct {
	Start    time.Time
	End      time.Time
	Kind     domain.Kind
	Category string
	Limit    int
}

// Matches reports whether tx satisfies the filter (ignoring Limit).
func (f TransactionFilter) Matches(tx domain.Transaction) bool {
	if !f.Start.IsZero() && tx.OccurredAt.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && tx.OccurredAt.After(f.End) {
		return false
	}
	if f.Kind != "" && tx.Kind != f.Kind {
		return false
	}
	if f.Category != "" && tx.Category != f.Category {
		return false
	}
	return true
}

// SortNewestFirst orders txs by OccurredAt descending, breaking ties by
// CreatedAt descending and then ID.
func SortNewestFirst(txs []domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].OccurredAt.Equal(txs[j].OccurredAt) {
			return txs[i].OccurredAt.After(txs[j].OccurredAt)
		}
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.After(txs[j].CreatedAt)
		}
		return txs[i].ID < txs[j].ID
	})
}

// SortInsertionOrder orders txs by CreatedAt ascending, then ID. This is the
// order records were entered in, which category breakdowns follow.
func SortInsertionOrder(txs []domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.Before(txs[j].CreatedAt)
		}
		return txs[i].ID < txs[j].ID
	})
}
