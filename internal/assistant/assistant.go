// Package assistant answers free-form questions about an owner's
// transactions with the text-completion service.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dompet-app/dompet/internal/aggregate"
	"github.com/dompet-app/dompet/internal/domain"
	"github.com/dompet-app/dompet/internal/store"
	"github.com/rs/zerolog"
)

const (
	DefaultTimeout   = 20 * time.Second
	DefaultMaxTokens = 500

	// DefaultHistory caps how many recent transactions go into the prompt.
	DefaultHistory = 200
)

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrTimeout       = errors.New("assistant timed out")
	ErrUnavailable   = errors.New("assistant unavailable")
)

// Completer is a text-completion service.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Answer is the assistant's reply.
type Answer struct {
	Response     string `json:"response"`
	Transactions int    `json:"transactions"`
}

// Assistant answers questions. It is safe for concurrent use.
type Assistant struct {
	completer    Completer
	transactions store.TransactionRepository
	timeout      time.Duration
	maxTokens    int
	history      int
	language     string
	log          zerolog.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

func WithTimeout(d time.Duration) Option {
	return func(a *Assistant) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithLanguage sets the language answers are written in.
func WithLanguage(language string) Option {
	return func(a *Assistant) {
		if language != "" {
			a.language = language
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(a *Assistant) {
		a.log = log
	}
}

// New creates an Assistant.
func New(completer Completer, transactions store.TransactionRepository, opts ...Option) *Assistant {
	a := &Assistant{
		completer:    completer,
		transactions: transactions,
		timeout:      DefaultTimeout,
		maxTokens:    DefaultMaxTokens,
		history:      DefaultHistory,
		language:     "Indonesian",
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask answers question using only the owner's own transactions.
func (a *Assistant) Ask(ctx context.Context, owner, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	txs, err := a.transactions.FindTransactionsByOwner(ctx, owner, store.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("Ask: load transactions: %w", err)
	}

	prompt, err := buildPrompt(question, txs, a.history, a.language)
	if err != nil {
		return nil, fmt.Errorf("Ask: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	started := time.Now()
	text, err := a.completer.Complete(ctx, prompt, a.maxTokens)
	if err != nil {
		a.log.Warn().Err(err).Str("owner", owner).Dur("duration", time.Since(started)).Msg("Assistant completion failed")
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	return &Answer{Response: text, Transactions: len(txs)}, nil
}

type promptTransaction struct {
	Type     domain.Kind `json:"type"`
	Amount   string      `json:"amount"`
	Category string      `json:"category"`
	Date     string      `json:"date,omitempty"`
	Note     string      `json:"note,omitempty"`
}

// buildPrompt embeds totals over every transaction plus the most recent
// history entries. txs must be newest first.
func buildPrompt(question string, txs []domain.Transaction, history int, language string) (string, error) {
	recent := txs
	if history > 0 && len(recent) > history {
		recent = recent[:history]
	}

	rows := make([]promptTransaction, 0, len(recent))
	for _, tx := range recent {
		row := promptTransaction{
			Type:     tx.Kind,
			Amount:   tx.Amount.String(),
			Category: tx.Category,
			Note:     tx.Note,
		}
		if !tx.OccurredAt.IsZero() {
			row.Date = tx.OccurredAt.Format(aggregate.DayLabelLayout)
		}
		rows = append(rows, row)
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode transactions: %w", err)
	}

	summary := aggregate.Summarize(txs)

	var b strings.Builder
	b.WriteString("You are a financial assistant. Answer the user's question based on their transaction data.\n\n")
	fmt.Fprintf(&b, "Totals over all %d transactions: income %s, expense %s, balance %s.\n\n",
		len(txs), summary.TotalIncome, summary.TotalExpense, summary.Balance)
	if len(recent) < len(txs) {
		fmt.Fprintf(&b, "The %d most recent transactions in JSON format:\n", len(recent))
	} else {
		b.WriteString("The user's transactions in JSON format:\n")
	}
	b.Write(data)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "User's question: %s\n\n", question)
	fmt.Fprintf(&b, "Provide a helpful, concise response in %s.\n", language)
	return b.String(), nil
}
