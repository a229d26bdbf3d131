package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dompet-app/dompet/internal/domain"
	"github.com/dompet-app/dompet/internal/store"
	"github.com/shopspring/decimal"
)

func newTx(owner string, kind domain.Kind, amount int64, category string, at time.Time) *domain.Transaction {
	return &domain.Transaction{
		Owner:      owner,
		Kind:       kind,
		Amount:     decimal.NewFromInt(amount),
		Category:   category,
		OccurredAt: at,
	}
}

func TestStore_TransactionsAreOwnerScoped(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	alice := newTx("alice", domain.KindExpense, 100, "Bills", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	id, err := s.InsertTransaction(ctx, alice)
	if err != nil || id == "" {
		t.Fatalf("InsertTransaction() = %q, %v", id, err)
	}
	if alice.ID != id || alice.CreatedAt.IsZero() {
		t.Errorf("insert should populate ID and CreatedAt: %+v", alice)
	}

	if _, err := s.GetTransaction(ctx, "bob", id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("bob read alice's transaction: %v", err)
	}
	if _, err := s.UpdateTransaction(ctx, "bob", id, alice.Fields()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("bob updated alice's transaction: %v", err)
	}
	if err := s.DeleteTransaction(ctx, "bob", id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("bob deleted alice's transaction: %v", err)
	}

	got, err := s.GetTransaction(ctx, "alice", id)
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if !got.Amount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Amount = %s", got.Amount)
	}
}

func TestStore_FindAndFilter(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	for _, tx := range []*domain.Transaction{
		newTx("alice", domain.KindIncome, 1, "Other", jan),
		newTx("alice", domain.KindExpense, 2, "Bills", feb),
		newTx("alice", domain.KindExpense, 3, "Health", mar),
		newTx("bob", domain.KindExpense, 4, "Bills", feb),
	} {
		if _, err := s.InsertTransaction(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	all, _ := s.FindTransactionsByOwner(ctx, "alice", store.TransactionFilter{})
	if len(all) != 3 {
		t.Fatalf("got %d, want 3", len(all))
	}
	if !all[0].OccurredAt.Equal(mar) || !all[2].OccurredAt.Equal(jan) {
		t.Errorf("not newest first: %v, %v", all[0].OccurredAt, all[2].OccurredAt)
	}

	tests := []struct {
		name   string
		filter store.TransactionFilter
		want   int
	}{
		{"range", store.TransactionFilter{Start: feb, End: mar}, 2},
		{"kind", store.TransactionFilter{Kind: domain.KindExpense}, 2},
		{"category", store.TransactionFilter{Category: "Bills"}, 1},
		{"limit", store.TransactionFilter{Limit: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindTransactionsByOwner(ctx, "alice", tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d, want %d", len(got), tt.want)
			}
		})
	}

	n, _ := s.DeleteTransactionsByOwner(ctx, "alice")
	if n != 3 {
		t.Errorf("deleted %d, want 3", n)
	}
	left, _ := s.FindTransactionsByOwner(ctx, "bob", store.TransactionFilter{})
	if len(left) != 1 {
		t.Errorf("bob's data was touched: %d left", len(left))
	}
}

func TestStore_UpdateReplacesFields(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	tx := newTx("alice", domain.KindExpense, 10, "Bills", time.Now())
	tx.Note = "listrik"
	id, _ := s.InsertTransaction(ctx, tx)

	fields := domain.TransactionFields{
		Kind:       domain.KindIncome,
		Amount:     decimal.NewFromInt(20),
		Category:   "Other",
		OccurredAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	got, err := s.UpdateTransaction(ctx, "alice", id, fields)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != domain.KindIncome || got.Note != "" || got.ID != id || got.Owner != "alice" {
		t.Errorf("unexpected update result %+v", got)
	}
}

func TestStore_Users(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	u := &domain.User{Name: "Sari", Email: " Sari@Example.com ", PasswordHash: "h"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	if u.Email != "sari@example.com" || u.ID == "" {
		t.Errorf("user not normalised: %+v", u)
	}

	if err := s.CreateUser(ctx, &domain.User{Email: "SARI@example.com"}); !errors.Is(err, store.ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}

	found, err := s.FindUserByEmail(ctx, "sari@EXAMPLE.com")
	if err != nil || found.ID != u.ID {
		t.Fatalf("FindUserByEmail() = %+v, %v", found, err)
	}

	other := &domain.User{Email: "budi@example.com"}
	_ = s.CreateUser(ctx, other)
	if _, err := s.UpdateUserProfile(ctx, other.ID, "Budi", "sari@example.com"); !errors.Is(err, store.ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail on profile update, got %v", err)
	}

	updated, err := s.UpdateUserProfile(ctx, u.ID, "Sari W", "sari.w@example.com")
	if err != nil || updated.Name != "Sari W" {
		t.Fatalf("UpdateUserProfile() = %+v, %v", updated, err)
	}

	if err := s.UpdateUserPassword(ctx, u.ID, "h2"); err != nil {
		t.Fatal(err)
	}
	byID, _ := s.FindUserByID(ctx, u.ID)
	if byID.PasswordHash != "h2" {
		t.Errorf("PasswordHash = %q", byID.PasswordHash)
	}

	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FindUserByID(ctx, u.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStore_CreatedAtIsStrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	var ids []string
	for i := 0; i < 3; i++ {
		tx := newTx("u", domain.KindExpense, int64(i+1), "Bills", fixed)
		id, err := s.InsertTransaction(ctx, tx)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	got, err := s.FindTransactionsByOwner(ctx, "u", store.TransactionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	store.SortInsertionOrder(got)
	for i, tx := range got {
		if tx.ID != ids[i] {
			t.Fatalf("insertion order lost: position %d has %s, want %s", i, tx.ID, ids[i])
		}
	}
}
