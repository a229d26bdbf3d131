// Package completion provides text-completion backends for the command
// interpreter and the finance assistant.
package completion

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiCompleter sends prompts to a Gemini model.
type GeminiCompleter struct {
	models      contentGenerator
	model       string
	temperature float32
}

// GeminiConfig holds the settings for NewGeminiCompleter. An empty APIKey
// lets the client read GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// NewGeminiCompleter creates a GenAI client for the Gemini API.
func NewGeminiCompleter(ctx context.Context, cfg GeminiConfig) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiCompleter: create genai client: %w", err)
	}
	return newGeminiCompleter(client.Models, cfg.Model), nil
}

func newGeminiCompleter(models contentGenerator, model string) *GeminiCompleter {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiCompleter{
		models:      models,
		model:       model,
		temperature: 0.2,
	}
}

// Model returns the model name requests are sent to.
func (c *GeminiCompleter) Model() string {
	return c.model
}

// Complete sends prompt as a single user turn and returns the response text.
func (c *GeminiCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	temperature := c.temperature
	config := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if maxTokens > 0 {
		// Thinking tokens count against MaxOutputTokens on 2.5 models and
		// can leave nothing for the answer, so thinking is switched off
		// whenever the output is capped.
		budget := int32(0)
		config.MaxOutputTokens = int32(maxTokens)
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: &budget}
	}

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("GeminiCompleter.Complete: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("GeminiCompleter.Complete: %w", ErrEmptyResponse)
	}
	return text, nil
}
