package completion

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"
)

type mockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.GenerateContentFunc(ctx, model, contents, config)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func TestGeminiCompleter_Complete(t *testing.T) {
	var gotModel string
	var gotConfig *genai.GenerateContentConfig
	var gotContents []*genai.Content

	gen := &mockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel, gotContents, gotConfig = model, contents, config
			return textResponse(`{"type":"expense"}`), nil
		},
	}

	c := newGeminiCompleter(gen, "")
	text, err := c.Complete(context.Background(), "hello", 500)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != `{"type":"expense"}` {
		t.Errorf("text = %q", text)
	}
	if gotModel != DefaultModelName {
		t.Errorf("model = %q, want %q", gotModel, DefaultModelName)
	}
	if gotConfig == nil || gotConfig.MaxOutputTokens != 500 {
		t.Errorf("MaxOutputTokens not forwarded: %+v", gotConfig)
	}
	if gotConfig.ThinkingConfig == nil || gotConfig.ThinkingConfig.ThinkingBudget == nil || *gotConfig.ThinkingConfig.ThinkingBudget != 0 {
		t.Errorf("thinking should be disabled when output is capped: %+v", gotConfig.ThinkingConfig)
	}
	if len(gotContents) != 1 || gotContents[0].Parts[0].Text != "hello" {
		t.Errorf("unexpected contents: %+v", gotContents)
	}
}

func TestGeminiCompleter_UncappedKeepsThinking(t *testing.T) {
	var gotConfig *genai.GenerateContentConfig
	gen := &mockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotConfig = config
			return textResponse("ok"), nil
		},
	}

	if _, err := newGeminiCompleter(gen, "").Complete(context.Background(), "p", 0); err != nil {
		t.Fatal(err)
	}
	if gotConfig.MaxOutputTokens != 0 || gotConfig.ThinkingConfig != nil {
		t.Errorf("uncapped request should use model defaults: %+v", gotConfig)
	}
}

func TestGeminiCompleter_Errors(t *testing.T) {
	apiErr := errors.New("quota exceeded")

	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		err     error
		wantErr error
	}{
		{"api error", nil, apiErr, apiErr},
		{"no candidates", &genai.GenerateContentResponse{}, nil, ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{
				GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return tt.resp, tt.err
				},
			}
			_, err := newGeminiCompleter(gen, "gemini-test").Complete(context.Background(), "p", 0)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
