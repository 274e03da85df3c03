package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-wrapped/internal/domain"
	"github.com/dvloznov/finance-wrapped/internal/logger"
)

// PersonaInference is the validated outcome of the persona-scoring oracle.
type PersonaInference struct {
	PersonaID          int
	Scores             map[int]float64
	ConversationPoints []string
}

// PersonaEngine infers a financial persona from categorized records.
type PersonaEngine struct {
	oracle    Oracle
	personas  domain.PersonaTable
	timeout   time.Duration
	maxTokens int32
	system    string
}

// NewPersonaEngine creates an engine scoring against personas.
func NewPersonaEngine(oracle Oracle, personas domain.PersonaTable, timeout time.Duration, maxTokens int32) *PersonaEngine {
	if timeout <= 0 {
		timeout = DefaultOracleTimeout
	}
	if maxTokens <= 0 {
		maxTokens = DefaultPersonaMaxTokens
	}
	return &PersonaEngine{
		oracle:    oracle,
		personas:  personas,
		timeout:   timeout,
		maxTokens: maxTokens,
		system:    buildPersonaPrompt(personas),
	}
}

// Infer makes exactly one oracle call. Any oracle failure or contract
// violation is returned wrapped in domain.ErrOracleContract.
func (e *PersonaEngine) Infer(ctx context.Context, records []*domain.Transaction) (*PersonaInference, error) {
	log := logger.FromContext(ctx)

	recordsJSON, err := renderRecords(records)
	if err != nil {
		return nil, fmt.Errorf("Infer: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.oracle.Generate(callCtx, OracleRequest{
		System:    e.system,
		User:      buildTransactionsUserPrompt(recordsJSON, "Generate the JSON as specified."),
		MaxTokens: e.maxTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("Infer: %w", ctx.Err())
		}
		return nil, fmt.Errorf("Infer: oracle call: %w: %v", domain.ErrOracleContract, err)
	}

	inf, err := parsePersonaResponse(raw, e.personas.Len())
	if err != nil {
		log.Error().Err(err).Str("raw_response", raw).Msg("persona oracle response rejected")
		return nil, fmt.Errorf("Infer: %w", err)
	}

	if n := len(inf.ConversationPoints); n < MinConversationPoints || n > MaxConversationPoints {
		log.Warn().Int("conversation_points", n).Msg("conversation point count outside expected range")
	}

	log.Info().Int("persona_id", inf.PersonaID).Msg("persona inferred")
	return inf, nil
}
