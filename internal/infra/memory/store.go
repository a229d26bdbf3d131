// Package memory is an in-memory store.Store for tests and local runs.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dompet-app/dompet/internal/domain"
	"github.com/dompet-app/dompet/internal/store"
	"github.com/google/uuid"
)

// Store keeps users and transactions in maps and is safe for concurrent use.
// Data is lost on restart.
type Store struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction
	users        map[string]*domain.User
	now          func() time.Time
	lastCreated  time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		transactions: make(map[string]*domain.Transaction),
		users:        make(map[string]*domain.User),
		now:          time.Now,
	}
}

// InsertTransaction implements store.TransactionRepository.
func (s *Store) InsertTransaction(ctx context.Context, tx *domain.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := *tx
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now().UTC()
		// Keep creation times strictly increasing so insertion order
		// survives a coarse clock.
		if !row.CreatedAt.After(s.lastCreated) {
			row.CreatedAt = s.lastCreated.Add(time.Nanosecond)
		}
		s.lastCreated = row.CreatedAt
	}
	s.transactions[row.ID] = &row

	tx.ID = row.ID
	tx.CreatedAt = row.CreatedAt
	return row.ID, nil
}

// FindTransactionsByOwner implements store.TransactionRepository.
func (s *Store) FindTransactionsByOwner(ctx context.Context, owner string, filter store.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	result := []domain.Transaction{}
	for _, tx := range s.transactions {
		if tx.Owner == owner && filter.Matches(*tx) {
			result = append(result, *tx)
		}
	}
	s.mu.RUnlock()

	store.SortNewestFirst(result)
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// GetTransaction implements store.TransactionRepository.
func (s *Store) GetTransaction(ctx context.Context, owner, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok || tx.Owner != owner {
		return nil, store.ErrNotFound
	}
	out := *tx
	return &out, nil
}

// UpdateTransaction implements store.TransactionRepository.
func (s *Store) UpdateTransaction(ctx context.Context, owner, id string, fields domain.TransactionFields) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok || tx.Owner != owner {
		return nil, store.ErrNotFound
	}
	tx.Apply(fields)
	out := *tx
	return &out, nil
}

// DeleteTransaction implements store.TransactionRepository.
func (s *Store) DeleteTransaction(ctx context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok || tx.Owner != owner {
		return store.ErrNotFound
	}
	delete(s.transactions, id)
	return nil
}

// DeleteTransactionsByOwner implements store.TransactionRepository.
func (s *Store) DeleteTransactionsByOwner(ctx context.Context, owner string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, tx := range s.transactions {
		if tx.Owner == owner {
			delete(s.transactions, id)
			n++
		}
	}
	return n, nil
}

// CreateUser implements store.UserRepository.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(u.Email))
	if s.emailTakenLocked(email, "") {
		return store.ErrDuplicateEmail
	}

	row := *u
	row.Email = email
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now().UTC()
	}
	s.users[row.ID] = &row

	u.ID, u.Email, u.CreatedAt = row.ID, row.Email, row.CreatedAt
	return nil
}

// FindUserByEmail implements store.UserRepository.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

// FindUserByID implements store.UserRepository.
func (s *Store) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *u
	return &out, nil
}

// UpdateUserProfile implements store.UserRepository.
func (s *Store) UpdateUserProfile(ctx context.Context, id, name, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if s.emailTakenLocked(email, id) {
		return nil, store.ErrDuplicateEmail
	}
	u.Name = name
	u.Email = email
	out := *u
	return &out, nil
}

// UpdateUserPassword implements store.UserRepository.
func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// DeleteUser implements store.UserRepository.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// Close implements store.Store.
func (s *Store) Close(ctx context.Context) error {
	return nil
}

func (s *Store) emailTakenLocked(email, exceptID string) bool {
	for id, u := range s.users {
		if u.Email == email && id != exceptID {
			return true
		}
	}
	return false
}

var _ store.Store = (*Store)(nil)
