package pipeline

import (
	"context"
)

// OracleRequest is a single prompt sent to a language-model oracle.
type OracleRequest struct {
	System    string
	User      string
	MaxTokens int32
}

// Oracle is the narrow capability the pipeline needs from a language model.
// Implementations must sample deterministically (zero temperature, top-1).
type Oracle interface {
	Generate(ctx context.Context, req OracleRequest) (string, error)
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func(ctx context.Context, req OracleRequest) (string, error)

// Generate calls f.
func (f OracleFunc) Generate(ctx context.Context, req OracleRequest) (string, error) {
	return f(ctx, req)
}

// Classification is the outcome of categorizing one merchant.
type Classification struct {
	Category  string `json:"category"`
	Reasoning string `json:"reasoning"`
}

// ClassificationCache remembers merchant classifications across runs.
// Implementations must be safe for concurrent use.
type ClassificationCache interface {
	// Get returns the cached classification for a merchant key.
	Get(ctx context.Context, merchant string) (Classification, bool, error)

	// Put stores a successful classification.
	Put(ctx context.Context, merchant string, c Classification) error
}
