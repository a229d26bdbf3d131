package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dompet-app/dompet/internal/domain"
	"github.com/dompet-app/dompet/internal/infra/memory"
	"github.com/dompet-app/dompet/internal/store"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func newTestService() (*Service, *memory.Store) {
	st := memory.NewStore()
	svc := NewService(st, st, NewTokenIssuer("0123456789abcdef", time.Hour), WithBcryptCost(bcrypt.MinCost))
	return svc, st
}

func TestService_RegisterAndLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	session, err := svc.Register(ctx, " Sari ", "Sari@Example.com", "rahasia123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if session.User.Email != "sari@example.com" || session.User.Name != "Sari" {
		t.Errorf("unexpected user: %+v", session.User)
	}
	if session.User.PasswordHash == "rahasia123" {
		t.Error("password stored in clear text")
	}

	claims, err := svc.Authenticate(session.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if claims.UserID != session.User.ID {
		t.Errorf("token user = %q, want %q", claims.UserID, session.User.ID)
	}

	login, err := svc.Login(ctx, "SARI@example.com", "rahasia123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if login.User.ID != session.User.ID {
		t.Error("login returned a different user")
	}
}

func TestService_RegisterValidation(t *testing.T) {
	tests := []struct {
		name     string
		userName string
		email    string
		password string
		wantErr  error
	}{
		{"missing name", "", "a@example.com", "secret1", ErrMissingName},
		{"bad email", "A", "not-an-email", "secret1", ErrInvalidEmail},
		{"display name email", "A", "A <a@example.com>", "secret1", ErrInvalidEmail},
		{"short password", "A", "a@example.com", "123", ErrPasswordTooShort},
		{"password over bcrypt limit", "A", "a@example.com", strings.Repeat("p", MaxPasswordLength+1), ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			_, err := svc.Register(context.Background(), tt.userName, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_RegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "A", "a@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Register(ctx, "B", "A@example.com", "secret2")
	if !errors.Is(err, store.ErrDuplicateEmail) {
		t.Errorf("Register() error = %v, want ErrDuplicateEmail", err)
	}
}

func TestService_LoginFailures(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, "A", "a@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Login(ctx, "a@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: error = %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: error = %v", err)
	}
}

func TestService_ChangePassword(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	session, err := svc.Register(ctx, "A", "a@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	id := session.User.ID

	if err := svc.ChangePassword(ctx, id, "bad-guess", "secret2"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("error = %v, want ErrWrongPassword", err)
	}
	if err := svc.ChangePassword(ctx, id, "secret1", "abc"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("error = %v, want ErrPasswordTooShort", err)
	}
	if err := svc.ChangePassword(ctx, id, "secret1", strings.Repeat("p", MaxPasswordLength+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("error = %v, want ErrPasswordTooLong", err)
	}
	if err := svc.ChangePassword(ctx, id, strings.Repeat("p", 100), "secret2"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("over-long current password: error = %v, want ErrWrongPassword", err)
	}
	if err := svc.ChangePassword(ctx, id, "secret1", "secret2"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	if _, err := svc.Login(ctx, "a@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Error("old password still accepted")
	}
	if _, err := svc.Login(ctx, "a@example.com", "secret2"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestService_UpdateProfile(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	a, _ := svc.Register(ctx, "A", "a@example.com", "secret1")
	if _, err := svc.Register(ctx, "B", "b@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}

	user, err := svc.UpdateProfile(ctx, a.User.ID, "Ani", "Ani@Example.com")
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if user.Name != "Ani" || user.Email != "ani@example.com" {
		t.Errorf("unexpected user: %+v", user)
	}

	if _, err := svc.UpdateProfile(ctx, a.User.ID, "Ani", "b@example.com"); !errors.Is(err, store.ErrDuplicateEmail) {
		t.Errorf("error = %v, want ErrDuplicateEmail", err)
	}
	if _, err := svc.UpdateProfile(ctx, "missing", "X", "x@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestService_DeleteAccount(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()
	a, _ := svc.Register(ctx, "A", "a@example.com", "secret1")
	b, _ := svc.Register(ctx, "B", "b@example.com", "secret1")

	for _, owner := range []string{a.User.ID, a.User.ID, b.User.ID} {
		tx := &domain.Transaction{Owner: owner, Kind: domain.KindExpense, Amount: decimal.NewFromInt(1000), Category: "Bills"}
		if _, err := st.InsertTransaction(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	n, err := svc.DeleteAccount(ctx, a.User.ID)
	if err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d transactions, want 2", n)
	}
	if _, err := svc.Profile(ctx, a.User.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("user still present: %v", err)
	}

	left, _ := st.FindTransactionsByOwner(ctx, b.User.ID, store.TransactionFilter{})
	if len(left) != 1 {
		t.Errorf("other user's transactions touched: %d left", len(left))
	}

	if _, err := svc.DeleteAccount(ctx, a.User.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}
