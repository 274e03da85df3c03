// Package openai adapts OpenAI-compatible chat completion endpoints
// (OpenAI, NVIDIA NIM, vLLM, Ollama's /v1) to the pipeline.Oracle interface.
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/dvloznov/finance-wrapped/internal/pipeline"
)

// DefaultModel is the NVIDIA-hosted Llama model used when Config.Model is empty.
const DefaultModel = "nvidia/llama-3.1-nemotron-70b-instruct"

// Config configures the chat completion oracle.
type Config struct {
	APIKey  string
	BaseURL string // e.g. https://integrate.api.nvidia.com/v1; empty means api.openai.com
	Model   string
}

// Oracle sends prompts to a chat completion endpoint with deterministic sampling.
type Oracle struct {
	client *goopenai.Client
	model  string
}

// New creates an oracle.
func New(cfg Config) (*Oracle, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai.New: api key is required")
	}
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Oracle{client: goopenai.NewClientWithConfig(clientCfg), model: model}, nil
}

// Generate implements pipeline.Oracle.
func (o *Oracle) Generate(ctx context.Context, req pipeline.OracleRequest) (string, error) {
	var messages []goopenai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: req.User})

	resp, err := o.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
		// A literal 0 is dropped by omitempty and the server default applies.
		Temperature: math.SmallestNonzeroFloat32,
		TopP:        1,
		MaxTokens:   int(req.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("Generate: create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("Generate: response has no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("Generate: empty response from model")
	}
	return text, nil
}
