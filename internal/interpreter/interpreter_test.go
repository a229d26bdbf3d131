package interpreter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dompet-app/dompet/internal/domain"
	"github.com/shopspring/decimal"
)

// stubCompleter returns a fixed response and records the prompt it got.
type stubCompleter struct {
	CompleteFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)
	prompts      []string
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.CompleteFunc != nil {
		return s.CompleteFunc(ctx, prompt, maxTokens)
	}
	return "", nil
}

func respond(text string) *stubCompleter {
	return &stubCompleter{
		CompleteFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			return text, nil
		},
	}
}

func kindOf(t *testing.T, err error) ErrorKind {
	t.Helper()
	var ie *Error
	if !errors.As(err, &ie) {
		t.Fatalf("expected *interpreter.Error, got %T (%v)", err, err)
	}
	return ie.Kind
}

func TestInterpret_IndonesianScenario(t *testing.T) {
	taxonomy := domain.NewTaxonomy("Makanan & Minuman", "Transportasi", "Tagihan")
	stub := respond(`{"type":"expense","amount":25000,"category":"Makanan & Minuman","note":"Makanan"}`)

	got, err := New(stub).Interpret(context.Background(), "beli makanan 25000", taxonomy)
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}

	if got.Kind != domain.KindExpense {
		t.Errorf("Kind = %q, want expense", got.Kind)
	}
	if !got.Amount.Equal(decimal.NewFromInt(25000)) {
		t.Errorf("Amount = %s, want 25000", got.Amount)
	}
	if got.Category != "Makanan & Minuman" {
		t.Errorf("Category = %q", got.Category)
	}
	if got.Note != "Makanan" {
		t.Errorf("Note = %q", got.Note)
	}
}

func TestInterpret_ExtractsObjectFromSurroundingText(t *testing.T) {
	taxonomy := domain.DefaultTaxonomy()
	object := `{"type":"income","amount":30000,"category":"Other","note":"Tabungan {harian}"}`

	wrappers := []struct {
		name string
		text string
	}{
		{"bare", object},
		{"prose before and after", "Sure! Here is the transaction:\n" + object + "\nLet me know if you need more."},
		{"markdown fence", "```json\n" + object + "\n```"},
		{"stray brace in prose", "Result {see below}:\n" + object},
		{"unbalanced brace first", "{ oops\n" + object},
	}

	for _, tt := range wrappers {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(respond(tt.text)).Interpret(context.Background(), "nabung 30rb", taxonomy)
			if err != nil {
				t.Fatalf("Interpret() error = %v", err)
			}
			if got.Kind != domain.KindIncome || !got.Amount.Equal(decimal.NewFromInt(30000)) ||
				got.Category != "Other" || got.Note != "Tabungan {harian}" {
				t.Errorf("unexpected result: %+v", got)
			}
		})
	}
}

func TestInterpret_NoJSONIsUnparseable(t *testing.T) {
	responses := []string{
		"I'm sorry, I could not understand that command.",
		"{not json at all}",
		"[1, 2, 3]",
		"   ",
		"",
	}

	for _, text := range responses {
		t.Run(text, func(t *testing.T) {
			_, err := New(respond(text)).Interpret(context.Background(), "something", domain.DefaultTaxonomy())
			if got := kindOf(t, err); got != Unparseable {
				t.Errorf("kind = %q, want %q", got, Unparseable)
			}
		})
	}
}

func TestInterpret_CategoryDefaultsToOther(t *testing.T) {
	responses := []string{
		`{"type":"expense","amount":10000,"category":"Groceries","note":"x"}`,
		`{"type":"expense","amount":10000,"category":"","note":"x"}`,
		`{"type":"expense","amount":10000,"note":"x"}`,
		`{"type":"expense","amount":10000,"category":42}`,
	}

	for _, text := range responses {
		t.Run(text, func(t *testing.T) {
			got, err := New(respond(text)).Interpret(context.Background(), "beli sesuatu 10000", domain.DefaultTaxonomy())
			if err != nil {
				t.Fatalf("Interpret() error = %v", err)
			}
			if got.Category != domain.CategoryOther {
				t.Errorf("Category = %q, want %q", got.Category, domain.CategoryOther)
			}
		})
	}
}

func TestInterpret_CategoryIsCanonicalized(t *testing.T) {
	text := `{"type":"expense","amount":"150000","category":"  bills ","note":"listrik"}`

	got, err := New(respond(text)).Interpret(context.Background(), "bayar tagihan listrik 150000", domain.DefaultTaxonomy())
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if got.Category != "Bills" {
		t.Errorf("Category = %q, want Bills", got.Category)
	}
	if !got.Amount.Equal(decimal.NewFromInt(150000)) {
		t.Errorf("Amount = %s", got.Amount)
	}
}

func TestInterpret_Validation(t *testing.T) {
	tests := []struct {
		name string
		text string
		want ErrorKind
	}{
		{"unknown type", `{"type":"transfer","amount":1000,"category":"Other"}`, InvalidKind},
		{"type wrong case is not exact", `{"type":"Expense","amount":1000}`, InvalidKind},
		{"type not a string", `{"type":1,"amount":1000}`, InvalidKind},
		{"type missing", `{"amount":1000,"category":"Other"}`, Unparseable},
		{"type empty", `{"type":"","amount":1000}`, Unparseable},
		{"amount missing", `{"type":"expense","category":"Bills"}`, MissingAmount},
		{"amount null", `{"type":"expense","amount":null}`, MissingAmount},
		{"amount not numeric", `{"type":"expense","amount":"tiga puluh ribu"}`, MissingAmount},
		{"amount negative", `{"type":"expense","amount":-5}`, MissingAmount},
		{"amount object", `{"type":"expense","amount":{"value":5}}`, MissingAmount},
		{"amount NaN string", `{"type":"expense","amount":"NaN"}`, MissingAmount},
		{"amount huge exponent", `{"type":"expense","amount":1e8000000}`, MissingAmount},
		{"amount huge exponent string", `{"type":"expense","amount":"1e8000000"}`, MissingAmount},
		{"amount tiny exponent", `{"type":"expense","amount":1e-8000000}`, MissingAmount},
		{"amount nineteen digits", `{"type":"expense","amount":1000000000000000000}`, MissingAmount},
		{"amount too many decimals", `{"type":"expense","amount":0.0000000001}`, MissingAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(respond(tt.text)).Interpret(context.Background(), "cmd", domain.DefaultTaxonomy())
			if got := kindOf(t, err); got != tt.want {
				t.Errorf("kind = %q, want %q (err: %v)", got, tt.want, err)
			}
		})
	}
}

func TestInterpret_HugeAmountIsRejectedQuickly(t *testing.T) {
	stub := respond(`{"type":"expense","amount":1e8000000,"category":"Bills","note":"x"}`)

	start := time.Now()
	_, err := New(stub).Interpret(context.Background(), "bayar tagihan", domain.DefaultTaxonomy())
	if got := kindOf(t, err); got != MissingAmount {
		t.Errorf("kind = %q, want %q", got, MissingAmount)
	}
	if !errors.Is(err, domain.ErrAmountTooLarge) {
		t.Errorf("expected ErrAmountTooLarge, got %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Errorf("rejecting the amount took %v", time.Since(start))
	}
}

func TestInterpret_LargestStorableAmount(t *testing.T) {
	text := `{"type":"income","amount":"999999999999999999.123456789"}`
	got, err := New(respond(text)).Interpret(context.Background(), "cmd", domain.DefaultTaxonomy())
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if got.Amount.String() != "999999999999999999.123456789" {
		t.Errorf("Amount = %s", got.Amount)
	}
}

func TestInterpret_LongNoteIsTruncated(t *testing.T) {
	note := strings.Repeat("é", domain.MaxNoteLength+100)
	text := `{"type":"expense","amount":1000,"category":"Bills","note":"` + note + `"}`

	got, err := New(respond(text)).Interpret(context.Background(), "cmd", domain.DefaultTaxonomy())
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if n := len([]rune(got.Note)); n != domain.MaxNoteLength {
		t.Errorf("note has %d characters, want %d", n, domain.MaxNoteLength)
	}
	if err := got.Fields(time.Now()).Validate(domain.DefaultTaxonomy()); err != nil {
		t.Errorf("interpreted fields do not validate: %v", err)
	}
}

func TestInterpret_KindAliasAndDefaults(t *testing.T) {
	got, err := New(respond(`{"kind":"income","amount":0.5}`)).Interpret(context.Background(), "cmd", domain.DefaultTaxonomy())
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if got.Kind != domain.KindIncome {
		t.Errorf("Kind = %q", got.Kind)
	}
	if got.Note != "" {
		t.Errorf("Note = %q, want empty", got.Note)
	}
	if got.Amount.String() != "0.5" {
		t.Errorf("Amount = %s, want 0.5", got.Amount)
	}
}

func TestInterpret_ServiceFailure(t *testing.T) {
	stub := &stubCompleter{
		CompleteFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			return "", errors.New("503 service unavailable")
		},
	}

	_, err := New(stub).Interpret(context.Background(), "nabung 30rb", domain.DefaultTaxonomy())
	if got := kindOf(t, err); got != ServiceFailure {
		t.Errorf("kind = %q, want %q", got, ServiceFailure)
	}
	if !errors.Is(err, &Error{Kind: ServiceFailure}) {
		t.Error("errors.Is should match on kind")
	}
}

func TestInterpret_TimeoutWhenCompleterHonoursContext(t *testing.T) {
	stub := &stubCompleter{
		CompleteFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}

	_, err := New(stub, WithTimeout(20*time.Millisecond)).Interpret(context.Background(), "nabung 30rb", domain.DefaultTaxonomy())
	if got := kindOf(t, err); got != Timeout {
		t.Errorf("kind = %q, want %q", got, Timeout)
	}
}

func TestInterpret_TimeoutWhenCompleterHangs(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	stub := &stubCompleter{
		CompleteFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			<-release
			return `{"type":"income","amount":1}`, nil
		},
	}

	start := time.Now()
	_, err := New(stub, WithTimeout(20*time.Millisecond)).Interpret(context.Background(), "nabung", domain.DefaultTaxonomy())
	if got := kindOf(t, err); got != Timeout {
		t.Errorf("kind = %q, want %q", got, Timeout)
	}
	if time.Since(start) > time.Second {
		t.Error("Interpret did not honour its timeout")
	}
}

func TestInterpret_PanickingCompleterIsServiceFailure(t *testing.T) {
	stub := &stubCompleter{
		CompleteFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			panic("boom")
		},
	}

	_, err := New(stub).Interpret(context.Background(), "nabung", domain.DefaultTaxonomy())
	if got := kindOf(t, err); got != ServiceFailure {
		t.Errorf("kind = %q, want %q", got, ServiceFailure)
	}
}

func TestInterpret_EmptyCommandSkipsService(t *testing.T) {
	stub := respond(`{"type":"income","amount":1}`)

	_, err := New(stub).Interpret(context.Background(), "   ", domain.DefaultTaxonomy())
	if got := kindOf(t, err); got != Unparseable {
		t.Errorf("kind = %q, want %q", got, Unparseable)
	}
	if !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}
	if len(stub.prompts) != 0 {
		t.Error("completion service should not be called for an empty command")
	}
}

func TestInterpret_SingleAttemptAndMaxTokens(t *testing.T) {
	calls := 0
	var gotTokens int
	stub := &stubCompleter{
		CompleteFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			calls++
			gotTokens = maxTokens
			return `{"type":"expense"}`, nil
		},
	}

	_, err := New(stub, WithMaxTokens(256)).Interpret(context.Background(), "beli kopi", domain.DefaultTaxonomy())
	if kindOf(t, err) != MissingAmount {
		t.Fatalf("unexpected error %v", err)
	}
	if calls != 1 {
		t.Errorf("completion called %d times, want 1", calls)
	}
	if gotTokens != 256 {
		t.Errorf("maxTokens = %d, want 256", gotTokens)
	}
}

func TestBuildPrompt(t *testing.T) {
	taxonomy := domain.NewTaxonomy("Makanan & Minuman", "Tagihan")
	prompt := buildPrompt("bayar listrik 150000", taxonomy)

	for _, want := range []string{
		`User command: "bayar listrik 150000"`,
		"  - Makanan & Minuman\n  - Tagihan\n  - Other\n",
		`"type"`, `"amount"`, `"category"`, `"note"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	if prompt != buildPrompt("bayar listrik 150000", taxonomy) {
		t.Error("prompt must be deterministic")
	}
}

func TestErrorUserMessage(t *testing.T) {
	for _, kind := range []ErrorKind{Unparseable, MissingAmount, InvalidKind, Timeout, ServiceFailure} {
		if (&Error{Kind: kind}).UserMessage() == "" {
			t.Errorf("no user message for %q", kind)
		}
	}
}
