// Package sqlite implements store.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dompet-app/dompet/internal/domain"
	"github.com/dompet-app/dompet/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a SQLite-backed store.Store.
type Store struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report unreadable rows.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// Open creates the database file if needed, runs migrations and returns a
// ready Store.
func Open(dbPath string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("Open: create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("Open: open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: %w", err)
	}

	s := &Store{db: db, now: time.Now, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close implements store.Store.
func (s *Store) Close(ctx context.Context) error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// occurredLayouts are tried in order for occurred_at. Rows written by other
// tools may hold RFC 3339 or a bare date.
var occurredLayouts = []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

func parseOccurredAt(s string) (time.Time, bool) {
	for _, layout := range occurredLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type rowScanner interface {
	Scan(dest ...any) error
}

const transactionColumns = "id, owner, kind, amount, category, note, occurred_at, created_at"

// scanTransaction reads one row. An unreadable occurred_at leaves the
// transaction undated so time buckets skip it instead of the query failing.
func (s *Store) scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		tx         domain.Transaction
		kind       string
		amount     string
		occurredAt sql.NullString
		createdAt  string
	)
	if err := row.Scan(&tx.ID, &tx.Owner, &kind, &amount, &tx.Category, &tx.Note, &occurredAt, &createdAt); err != nil {
		return domain.Transaction{}, err
	}

	tx.Kind = domain.Kind(kind)

	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Transaction{}, fmt.Errorf("amount %q: %w", amount, err)
	}
	if occurredAt.Valid {
		var ok bool
		if tx.OccurredAt, ok = parseOccurredAt(occurredAt.String); !ok {
			s.log.Warn().
				Str("transaction_id", tx.ID).
				Str("owner", tx.Owner).
				Str("occurred_at", occurredAt.String).
				Msg("Unreadable transaction date, treating it as undated")
		}
	}
	if tx.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Transaction{}, fmt.Errorf("created_at %q: %w", createdAt, err)
	}
	return tx, nil
}

// InsertTransaction implements store.TransactionRepository.
func (s *Store) InsertTransaction(ctx context.Context, tx *domain.Transaction) (string, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Owner, string(tx.Kind), tx.Amount.String(), tx.Category, tx.Note,
		nullableTime(tx.OccurredAt), formatTime(tx.CreatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("InsertTransaction: insert: %w", err)
	}
	return tx.ID, nil
}

// FindTransactionsByOwner implements store.TransactionRepository.
func (s *Store) FindTransactionsByOwner(ctx context.Context, owner string, filter store.TransactionFilter) ([]domain.Transaction, error) {
	var (
		where = []string{"owner = ?"}
		args  = []any{owner}
	)
	if !filter.Start.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, formatTime(filter.Start))
	}
	if !filter.End.IsZero() {
		where = append(where, "occurred_at <= ?")
		args = append(args, formatTime(filter.End))
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") +
		` ORDER BY occurred_at IS NULL, occurred_at DESC, created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("FindTransactionsByOwner: query: %w", err)
	}
	defer rows.Close()

	result := []domain.Transaction{}
	for rows.Next() {
		tx, err := s.scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("FindTransactionsByOwner: scan: %w", err)
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindTransactionsByOwner: rows: %w", err)
	}
	return result, nil
}

// GetTransaction implements store.TransactionRepository.
func (s *Store) GetTransaction(ctx context.Context, owner, id string) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND owner = ?`, id, owner)
	tx, err := s.scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", notFound(err))
	}
	return &tx, nil
}

// UpdateTransaction implements store.TransactionRepository.
func (s *Store) UpdateTransaction(ctx context.Context, owner, id string, fields domain.TransactionFields) (*domain.Transaction, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET kind = ?, amount = ?, category = ?, note = ?, occurred_at = ?
		 WHERE id = ? AND owner = ?`,
		string(fields.Kind), fields.Amount.String(), fields.Category, fields.Note,
		nullableTime(fields.OccurredAt), id, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("UpdateTransaction: update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetTransaction(ctx, owner, id)
}

// DeleteTransaction implements store.TransactionRepository.
func (s *Store) DeleteTransaction(ctx context.Context, owner, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteTransactionsByOwner implements store.TransactionRepository.
func (s *Store) DeleteTransactionsByOwner(ctx context.Context, owner string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE owner = ?`, owner)
	if err != nil {
		return 0, fmt.Errorf("DeleteTransactionsByOwner: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteTransactionsByOwner: rows affected: %w", err)
	}
	return n, nil
}

const userColumns = "id, name, email, password_hash, created_at"

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAt); err != nil {
		return nil, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("created_at %q: %w", createdAt, err)
	}
	u.CreatedAt = t
	return &u, nil
}

// CreateUser implements store.UserRepository.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	u.Email = normalizeEmail(u.Email)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, formatTime(u.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateEmail
		}
		return fmt.Errorf("CreateUser: insert: %w", err)
	}
	return nil
}

// FindUserByEmail implements store.UserRepository.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(email)))
	if err != nil {
		return nil, fmt.Errorf("FindUserByEmail: %w", notFound(err))
	}
	return u, nil
}

// FindUserByID implements store.UserRepository.
func (s *Store) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("FindUserByID: %w", notFound(err))
	}
	return u, nil
}

// UpdateUserProfile implements store.UserRepository.
func (s *Store) UpdateUserProfile(ctx context.Context, id, name, email string) (*domain.User, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ? WHERE id = ?`, name, normalizeEmail(email), id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("UpdateUserProfile: update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.FindUserByID(ctx, id)
}

// UpdateUserPassword implements store.UserRepository.
func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("UpdateUserPassword: update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteUser implements store.UserRepository.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteUser: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ store.Store = (*Store)(nil)
