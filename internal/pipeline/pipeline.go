package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/finance-wrapped/internal/domain"
	"github.com/dvloznov/finance-wrapped/internal/logger"
)

// Config wires the analytics pipeline. Zero values fall back to defaults.
type Config struct {
	// ClassifierOracle answers merchant categorization prompts. Required.
	ClassifierOracle Oracle
	// PersonaOracle answers the persona-scoring prompt. Required.
	PersonaOracle Oracle
	// NarrativeOracle writes the optional year-in-review text; nil disables the step.
	NarrativeOracle Oracle

	Taxonomy domain.Taxonomy
	Personas domain.PersonaTable
	Cache    ClassificationCache

	Concurrency   int
	OracleTimeout time.Duration
	MaxTokens     int32
	// RatePerSecond caps categorization calls; 0 means unlimited.
	RatePerSecond float64
}

// AnalyticsPipeline turns raw transactions into an AnalyticsResult.
type AnalyticsPipeline struct {
	taxonomy   domain.Taxonomy
	personas   domain.PersonaTable
	classifier *CategoryClassifier
	aggregator *MetricsAggregator
	detector   *PeakDetector
	engine     *PersonaEngine
	narrative  *NarrativeWriter
}

// New validates cfg and builds the pipeline components.
func New(cfg Config) (*AnalyticsPipeline, error) {
	if cfg.ClassifierOracle == nil {
		return nil, errors.New("pipeline.New: classifier oracle is required")
	}
	if cfg.PersonaOracle == nil {
		return nil, errors.New("pipeline.New: persona oracle is required")
	}
	if len(cfg.Taxonomy.Names()) == 0 {
		cfg.Taxonomy = domain.DefaultTaxonomy()
	}
	if cfg.Personas.Len() == 0 {
		cfg.Personas = domain.DefaultPersonas()
	}

	p := &AnalyticsPipeline{
		taxonomy:   cfg.Taxonomy,
		personas:   cfg.Personas,
		classifier: NewCategoryClassifier(cfg.ClassifierOracle, cfg.Taxonomy, ClassifierOptions{
			Cache:         cfg.Cache,
			Concurrency:   cfg.Concurrency,
			Timeout:       cfg.OracleTimeout,
			RatePerSecond: cfg.RatePerSecond,
		}),
		aggregator: NewMetricsAggregator(cfg.Taxonomy),
		detector:   NewPeakDetector(),
		engine:     NewPersonaEngine(cfg.PersonaOracle, cfg.Personas, cfg.OracleTimeout, cfg.MaxTokens),
	}
	if cfg.NarrativeOracle != nil {
		p.narrative = NewNarrativeWriter(cfg.NarrativeOracle, cfg.OracleTimeout, cfg.MaxTokens)
	}
	return p, nil
}

// Taxonomy returns the category taxonomy the pipeline classifies into.
func (p *AnalyticsPipeline) Taxonomy() domain.Taxonomy { return p.taxonomy }

// Personas returns the persona table the pipeline scores against.
func (p *AnalyticsPipeline) Personas() domain.PersonaTable { return p.personas }

// Run executes the full analysis. Records are validated, sanitized and
// classified in place.
func (p *AnalyticsPipeline) Run(ctx context.Context, raw []*domain.Transaction) (*domain.AnalyticsResult, error) {
	state := &AnalysisState{RunID: uuid.NewString(), Records: raw}
	ctx = logger.ContextWithFields(ctx, map[string]interface{}{"run_id": state.RunID})
	log := logger.FromContext(ctx)
	log.Info().Int("transactions", len(raw)).Msg("analysis started")

	steps := []PipelineStep{
		&ValidateInputStep{},
		&ClassifyStep{Classifier: p.classifier},
		&FilterUncategorizedStep{},
		&AggregateStep{Aggregator: p.aggregator},
		&DetectPeaksStep{Detector: p.detector},
		&InferPersonaStep{Engine: p.engine},
	}
	if p.narrative != nil {
		steps = append(steps, &NarrativeStep{Writer: p.narrative})
	}
	steps = append(steps, &AssembleStep{Personas: p.personas})

	if err := NewPipeline(steps...).Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("analysis failed")
		return nil, fmt.Errorf("Run: %w", err)
	}

	log.Info().
		Int("transactions", state.Result.TransactionCount).
		Int("dropped", state.Result.DroppedCount).
		Str("persona", state.Result.FinancialPersonality).
		Msg("analysis finished")
	return state.Result, nil
}

// Classify validates and classifies records without aggregating them.
// Uncategorized records are kept with an empty category.
func (p *AnalyticsPipeline) Classify(ctx context.Context, raw []*domain.Transaction) (ClassificationReport, error) {
	state := &AnalysisState{RunID: uuid.NewString(), Records: raw}
	ctx = logger.ContextWithFields(ctx, map[string]interface{}{"run_id": state.RunID})

	err := NewPipeline(
		&ValidateInputStep{},
		&ClassifyStep{Classifier: p.classifier},
	).Execute(ctx, state)
	if err != nil {
		return ClassificationReport{}, fmt.Errorf("Classify: %w", err)
	}
	return state.Report, nil
}
