package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finance-wrapped/internal/domain"
)

// NarrativeWriter asks an oracle for a short "Year in Review" text.
// The text is opaque to the pipeline.
type NarrativeWriter struct {
	oracle    Oracle
	timeout   time.Duration
	maxTokens int32
}

// NewNarrativeWriter creates a writer.
func NewNarrativeWriter(oracle Oracle, timeout time.Duration, maxTokens int32) *NarrativeWriter {
	if timeout <= 0 {
		timeout = DefaultOracleTimeout
	}
	if maxTokens <= 0 {
		maxTokens = DefaultPersonaMaxTokens
	}
	return &NarrativeWriter{oracle: oracle, timeout: timeout, maxTokens: maxTokens}
}

// Write returns the narrative for records.
func (w *NarrativeWriter) Write(ctx context.Context, records []*domain.Transaction) (string, error) {
	recordsJSON, err := renderRecords(records)
	if err != nil {
		return "", fmt.Errorf("Write: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	text, err := w.oracle.Generate(callCtx, OracleRequest{
		System:    narrativeSystemPrompt,
		User:      buildTransactionsUserPrompt(recordsJSON, "Please write the \"Year in Review\" narrative as described."),
		MaxTokens: w.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("Write: oracle call: %w", err)
	}
	return strings.TrimSpace(text), nil
}
