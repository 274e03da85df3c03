// Package gemini adapts Google's Gemini models to the pipeline.Oracle interface.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/finance-wrapped/internal/pipeline"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// contentGenerator is the subset of *genai.Models the oracle uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config configures the Gemini oracle.
type Config struct {
	APIKey string // empty falls back to GEMINI_API_KEY / GOOGLE_API_KEY
	Model  string
}

// Oracle sends prompts to Gemini with deterministic sampling.
type Oracle struct {
	models contentGenerator
	model  string
}

// New creates a Gemini-backed oracle.
func New(ctx context.Context, cfg Config) (*Oracle, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini.New: create genai client: %w", err)
	}
	return newWithGenerator(client.Models, cfg.Model), nil
}

func newWithGenerator(g contentGenerator, model string) *Oracle {
	if model == "" {
		model = DefaultModel
	}
	return &Oracle{models: g, model: model}
}

// Generate implements pipeline.Oracle.
func (o *Oracle) Generate(ctx context.Context, req pipeline.OracleRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
		TopK:        genai.Ptr[float32](1),
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: req.User}},
		},
	}

	resp, err := o.models.GenerateContent(ctx, o.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("Generate: generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("Generate: empty response from model")
	}
	return text, nil
}
