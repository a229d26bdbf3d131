package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dompet-app/dompet/internal/domain"
	"github.com/dompet-app/dompet/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store implements store.Store on top of a CollectionProvider.
type Store struct {
	provider CollectionProvider
	client   *mongo.Client
	now      func() time.Time
	log      zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report unreadable documents.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// NewStore creates a Store. client may be nil when provider is a fake; Close
// is then a no-op.
func NewStore(provider CollectionProvider, client *mongo.Client, opts ...Option) *Store {
	s := &Store{
		provider: provider,
		client:   client,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// transaction converts a stored document. An unreadable date leaves the
// transaction undated so it is skipped by time buckets instead of failing
// the whole query.
func (s *Store) transaction(doc *storedTransactionDoc) (domain.Transaction, error) {
	tx, dateOK, err := doc.toDomain()
	if err != nil {
		return domain.Transaction{}, err
	}
	if !dateOK {
		s.log.Warn().
			Str("transaction_id", doc.ID).
			Str("owner", doc.Owner).
			Str("date_type", doc.Date.Type.String()).
			Msg("Unreadable transaction date, treating it as undated")
	}
	return tx, nil
}

// EnsureIndexes creates the unique email index and the owner/date index
// used by FindTransactionsByOwner.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	err := s.provider.Collection(UsersCollection).CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("EnsureIndexes: users: %w", err)
	}

	err = s.provider.Collection(TransactionsCollection).CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "date", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("EnsureIndexes: transactions: %w", err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// InsertTransaction implements store.TransactionRepository.
func (s *Store) InsertTransaction(ctx context.Context, tx *domain.Transaction) (string, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.now().UTC()
	}

	doc, err := newTransactionDoc(tx)
	if err != nil {
		return "", fmt.Errorf("InsertTransaction: %w", err)
	}
	if _, err := s.provider.Collection(TransactionsCollection).InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("InsertTransaction: insert: %w", err)
	}
	return tx.ID, nil
}

// transactionQuery builds the Mongo filter for owner and f.
func transactionQuery(owner string, f store.TransactionFilter) bson.M {
	q := bson.M{"owner": owner}

	date := bson.M{}
	if !f.Start.IsZero() {
		date["$gte"] = f.Start.UTC()
	}
	if !f.End.IsZero() {
		date["$lte"] = f.End.UTC()
	}
	if len(date) > 0 {
		q["date"] = date
	}
	if f.Kind != "" {
		q["type"] = string(f.Kind)
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	return q
}

// FindTransactionsByOwner implements store.TransactionRepository.
func (s *Store) FindTransactionsByOwner(ctx context.Context, owner string, filter store.TransactionFilter) ([]domain.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cur, err := s.provider.Collection(TransactionsCollection).Find(ctx, transactionQuery(owner, filter), opts)
	if err != nil {
		return nil, fmt.Errorf("FindTransactionsByOwner: find: %w", err)
	}
	defer cur.Close(ctx)

	result := []domain.Transaction{}
	for cur.Next(ctx) {
		var doc storedTransactionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("FindTransactionsByOwner: decode: %w", err)
		}
		tx, err := s.transaction(&doc)
		if err != nil {
			return nil, fmt.Errorf("FindTransactionsByOwner: %w", err)
		}
		result = append(result, tx)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("FindTransactionsByOwner: cursor: %w", err)
	}
	return result, nil
}

// GetTransaction implements store.TransactionRepository.
func (s *Store) GetTransaction(ctx context.Context, owner, id string) (*domain.Transaction, error) {
	var doc storedTransactionDoc
	err := s.provider.Collection(TransactionsCollection).
		FindOne(ctx, bson.M{"_id": id, "owner": owner}).
		Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", notFound(err))
	}
	tx, err := s.transaction(&doc)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return &tx, nil
}

// UpdateTransaction implements store.TransactionRepository.
func (s *Store) UpdateTransaction(ctx context.Context, owner, id string, fields domain.TransactionFields) (*domain.Transaction, error) {
	amount, err := toDecimal128(fields.Amount)
	if err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}

	set := bson.M{
		"type":     string(fields.Kind),
		"amount":   amount,
		"category": fields.Category,
		"note":     fields.Note,
	}
	update := bson.M{"$set": set}
	if at := occurredPtr(fields.OccurredAt); at != nil {
		set["date"] = *at
	} else {
		update["$unset"] = bson.M{"date": ""}
	}

	var doc storedTransactionDoc
	err = s.provider.Collection(TransactionsCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": id, "owner": owner}, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After)).
		Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", notFound(err))
	}
	tx, err := s.transaction(&doc)
	if err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}
	return &tx, nil
}

// DeleteTransaction implements store.TransactionRepository.
func (s *Store) DeleteTransaction(ctx context.Context, owner, id string) error {
	res, err := s.provider.Collection(TransactionsCollection).DeleteOne(ctx, bson.M{"_id": id, "owner": owner})
	if err != nil {
		return fmt.Errorf("DeleteTransaction: delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteTransactionsByOwner implements store.TransactionRepository.
func (s *Store) DeleteTransactionsByOwner(ctx context.Context, owner string) (int64, error) {
	res, err := s.provider.Collection(TransactionsCollection).DeleteMany(ctx, bson.M{"owner": owner})
	if err != nil {
		return 0, fmt.Errorf("DeleteTransactionsByOwner: delete: %w", err)
	}
	return res.DeletedCount, nil
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

	doc := userDoc{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
	if _, err := s.provider.Collection(UsersCollection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicateEmail
		}
		return fmt.Errorf("CreateUser: insert: %w", err)
	}
	return nil
}

// FindUserByEmail implements store.UserRepository.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, "FindUserByEmail", bson.M{"email": normalizeEmail(email)})
}

// FindUserByID implements store.UserRepository.
func (s *Store) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.findUser(ctx, "FindUserByID", bson.M{"_id": id})
}

func (s *Store) findUser(ctx context.Context, op string, filter bson.M) (*domain.User, error) {
	var doc userDoc
	if err := s.provider.Collection(UsersCollection).FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return doc.toDomain(), nil
}

// UpdateUserProfile implements store.UserRepository.
func (s *Store) UpdateUserProfile(ctx context.Context, id, name, email string) (*domain.User, error) {
	update := bson.M{"$set": bson.M{"name": name, "email": normalizeEmail(email)}}

	var doc userDoc
	err := s.provider.Collection(UsersCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After)).
		Decode(&doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, store.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("UpdateUserProfile: %w", notFound(err))
	}
	return doc.toDomain(), nil
}

// UpdateUserPassword implements store.UserRepository.
func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.provider.Collection(UsersCollection).
		UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"password": passwordHash}})
	if err != nil {
		return fmt.Errorf("UpdateUserPassword: update: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteUser implements store.UserRepository.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.provider.Collection(UsersCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("DeleteUser: delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ store.Store = (*Store)(nil)
