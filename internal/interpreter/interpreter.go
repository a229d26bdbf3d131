// Package interpreter turns free-text commands such as "nabung 30rb" into
// structured transactions by delegating language understanding to an
// external text-completion service.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dompet-app/dompet/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout bounds a single completion request.
	DefaultTimeout = 8 * time.Second

	// DefaultMaxTokens is the completion budget for one command.
	DefaultMaxTokens = 500
)

// ErrEmptyCommand is wrapped in an Unparseable error for blank input.
var ErrEmptyCommand = errors.New("command is empty")

// Completer is a text-completion service: prompt in, text out.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// CompleterFunc adapts a plain function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f(ctx, prompt, maxTokens)
}

// Interpreter resolves commands to ParsedCommand values. It holds no
// per-request state and is safe for concurrent use.
type Interpreter struct {
	completer Completer
	timeout   time.Duration
	maxTokens int
	log       zerolog.Logger
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(i *Interpreter) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// WithMaxTokens overrides DefaultMaxTokens.
func WithMaxTokens(n int) Option {
	return func(i *Interpreter) {
		if n > 0 {
			i.maxTokens = n
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(i *Interpreter) {
		i.log = log
	}
}

// New creates an Interpreter backed by completer.
func New(completer Completer, opts ...Option) *Interpreter {
	i := &Interpreter{
		completer: completer,
		timeout:   DefaultTimeout,
		maxTokens: DefaultMaxTokens,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Interpret resolves command against taxonomy with a single completion
// request. Every failure is returned as *Error; nothing is retried.
func (i *Interpreter) Interpret(ctx context.Context, command string, taxonomy domain.Taxonomy) (*ParsedCommand, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, newError(Unparseable, ErrEmptyCommand)
	}

	started := time.Now()
	text, err := i.complete(ctx, buildPrompt(command, taxonomy))
	if err != nil {
		i.log.Warn().
			Err(err).
			Str("command", command).
			Dur("duration", time.Since(started)).
			Msg("Completion request failed")
		return nil, err
	}

	parsed, err := parseCompletion(text, taxonomy)
	if err != nil {
		i.log.Warn().
			Err(err).
			Str("command", command).
			Str("completion", text).
			Msg("Could not interpret completion")
		return nil, err
	}

	i.log.Debug().
		Str("command", command).
		Str("type", string(parsed.Kind)).
		Str("amount", parsed.Amount.String()).
		Str("category", parsed.Category).
		Dur("duration", time.Since(started)).
		Msg("Command interpreted")

	return parsed, nil
}

type completion struct {
	text string
	err  error
}

// complete runs one completion bounded by the interpreter timeout. The
// deadline holds even if the completer ignores its context.
func (i *Interpreter) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	done := make(chan completion, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- completion{err: fmt.Errorf("completer panicked: %v", r)}
			}
		}()
		text, err := i.completer.Complete(ctx, prompt, i.maxTokens)
		done <- completion{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", newError(Timeout, res.err)
			}
			return "", newError(ServiceFailure, res.err)
		}
		if strings.TrimSpace(res.text) == "" {
			return "", newError(Unparseable, errors.New("empty completion"))
		}
		return res.text, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", newError(Timeout, ctx.Err())
		}
		return "", newError(ServiceFailure, ctx.Err())
	}
}
