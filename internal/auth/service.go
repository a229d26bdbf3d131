// Package auth manages accounts: registration, login, profile changes and
// account deletion, plus the bearer tokens that identify a transaction owner.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/dompet-app/dompet/internal/domain"
	"github.com/dompet-app/dompet/internal/store"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password. The two cases are not distinguished.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrWrongPassword is returned when the current password does not match.
	ErrWrongPassword = errors.New("current password is incorrect")

	ErrMissingName  = errors.New("name is required")
	ErrInvalidEmail = errors.New("a valid email is required")
)

// Session is what a successful register or login returns.
type Session struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Service implements the account operations over the user and transaction
// repositories.
type Service struct {
	users        store.UserRepository
	transactions store.TransactionRepository
	tokens       *TokenIssuer
	cost         int
	log          zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// NewService creates an account service.
func NewService(users store.UserRepository, transactions store.TransactionRepository, tokens *TokenIssuer, opts ...Option) *Service {
	s := &Service{
		users:        users,
		transactions: transactions,
		tokens:       tokens,
		cost:         bcrypt.DefaultCost,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account and signs the user in.
func (s *Service) Register(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMissingName
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("Register: create user: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("User registered")
	return s.session(user)
}

// Login checks the credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("Login: find user: %w", err)
	}

	ok, err := CheckPassword(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("Login: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return s.session(user)
}

// Authenticate resolves a bearer token to its claims.
func (s *Service) Authenticate(token string) (*Claims, error) {
	return s.tokens.Parse(token)
}

// Profile returns the user behind userID.
func (s *Service) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Profile: %w", err)
	}
	return user, nil
}

// UpdateProfile replaces the user's name and email.
func (s *Service) UpdateProfile(ctx context.Context, userID, name, email string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMissingName
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := s.users.UpdateUserProfile(ctx, userID, name, email)
	if err != nil {
		return nil, fmt.Errorf("UpdateProfile: %w", err)
	}
	return user, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ChangePassword: find user: %w", err)
	}

	ok, err := CheckPassword(user.PasswordHash, current)
	if err != nil {
		return fmt.Errorf("ChangePassword: %w", err)
	}
	if !ok {
		return ErrWrongPassword
	}

	hash, err := HashPassword(next, s.cost)
	if err != nil {
		return err
	}
	if err := s.users.UpdateUserPassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("ChangePassword: update password: %w", err)
	}

	s.log.Info().Str("user_id", userID).Msg("Password changed")
	return nil
}

// DeleteAccount removes the user's transactions and then the user. It
// returns how many transactions were removed.
func (s *Service) DeleteAccount(ctx context.Context, userID string) (int64, error) {
	if _, err := s.users.FindUserByID(ctx, userID); err != nil {
		return 0, fmt.Errorf("DeleteAccount: find user: %w", err)
	}

	n, err := s.transactions.DeleteTransactionsByOwner(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("DeleteAccount: delete transactions: %w", err)
	}
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return n, fmt.Errorf("DeleteAccount: delete user: %w", err)
	}

	s.log.Info().Str("user_id", userID).Int64("transactions", n).Msg("Account deleted")
	return n, nil
}

func (s *Service) session(user *domain.User) (*Session, error) {
	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
