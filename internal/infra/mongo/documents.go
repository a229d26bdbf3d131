package mongo

import (
	"fmt"
	"time"

	"github.com/dompet-app/dompet/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TransactionsCollection = "transactions"
	UsersCollection        = "users"
)

type transactionDoc struct {
	ID         string               `bson:"_id"`
	Owner      string               `bson:"owner"`
	Kind       string               `bson:"type"`
	Amount     primitive.Decimal128 `bson:"amount"`
	Category   string               `bson:"category"`
	Note       string               `bson:"note"`
	OccurredAt *time.Time           `bson:"date,omitempty"`
	CreatedAt  time.Time            `bson:"createdAt"`
}

// storedTransactionDoc is the read side of transactionDoc. The date stays
// raw so older documents holding strings or garbage still decode.
type storedTransactionDoc struct {
	ID        string               `bson:"_id"`
	Owner     string               `bson:"owner"`
	Kind      string               `bson:"type"`
	Amount    primitive.Decimal128 `bson:"amount"`
	Category  string               `bson:"category"`
	Note      string               `bson:"note"`
	Date      bson.RawValue        `bson:"date"`
	CreatedAt time.Time            `bson:"createdAt"`
}

// storedDateLayouts are the string forms accepted for a stored date.
var storedDateLayouts = []string{time.RFC3339Nano, "2006-01-02"}

// decodeDate reads a stored date. Absent and null dates are a valid zero
// time; anything unreadable is a zero time with ok false.
func decodeDate(v bson.RawValue) (time.Time, bool) {
	switch v.Type {
	case 0, bsontype.Null, bsontype.Undefined:
		return time.Time{}, true
	case bsontype.DateTime:
		if ms, ok := v.DateTimeOK(); ok {
			return time.UnixMilli(ms).UTC(), true
		}
	case bsontype.String:
		if str, ok := v.StringValueOK(); ok {
			for _, layout := range storedDateLayouts {
				if t, err := time.Parse(layout, str); err == nil {
					return t.UTC(), true
				}
			}
		}
	}
	return time.Time{}, false
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("toDecimal128: %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("fromDecimal128: %s: %w", v, err)
	}
	return d, nil
}

func occurredPtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func newTransactionDoc(tx *domain.Transaction) (*transactionDoc, error) {
	amount, err := toDecimal128(tx.Amount)
	if err != nil {
		return nil, err
	}
	return &transactionDoc{
		ID:         tx.ID,
		Owner:      tx.Owner,
		Kind:       string(tx.Kind),
		Amount:     amount,
		Category:   tx.Category,
		Note:       tx.Note,
		OccurredAt: occurredPtr(tx.OccurredAt),
		CreatedAt:  tx.CreatedAt.UTC(),
	}, nil
}

// toDomain converts the document. dateOK is false when the stored date was
// unreadable and OccurredAt was left zero.
func (d *storedTransactionDoc) toDomain() (tx domain.Transaction, dateOK bool, err error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	occurredAt, dateOK := decodeDate(d.Date)
	return domain.Transaction{
		ID:         d.ID,
		Owner:      d.Owner,
		Kind:       domain.Kind(d.Kind),
		Amount:     amount,
		Category:   d.Category,
		Note:       d.Note,
		OccurredAt: occurredAt,
		CreatedAt:  d.CreatedAt,
	}, dateOK, nil
}

func (d *userDoc) toDomain() *domain.User {
	return &domain.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
	}
}
