package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-wrapped/internal/domain"
	"github.com/dvloznov/finance-wrapped/internal/logger"
)

// PipelineStep represents a single step in the analytics pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *AnalysisState) error
}

// AnalysisState holds the shared state across all pipeline steps.
type AnalysisState struct {
	RunID     string
	Records   []*domain.Transaction
	Dropped   []*domain.Transaction
	Report    ClassificationReport
	Metrics   *Metrics
	Peaks     []string
	Persona   *PersonaInference
	Narrative string
	Result    *domain.AnalyticsResult
}

// Step 1: ValidateInputStep rejects malformed records and sanitizes descriptions.
type ValidateInputStep struct{}

func (s *ValidateInputStep) Name() string { return "validate" }

func (s *ValidateInputStep) Execute(ctx context.Context, state *AnalysisState) error {
	return validateInput(state.Records)
}

// Step 2: ClassifyStep assigns categories through the categorization oracle.
type ClassifyStep struct {
	Classifier *CategoryClassifier
}

func (s *ClassifyStep) Name() string { return "classify" }

func (s *ClassifyStep) Execute(ctx context.Context, state *AnalysisState) error {
	report, err := s.Classifier.Classify(ctx, state.Records)
	if err != nil {
		return err
	}
	state.Report = report
	return nil
}

// Step 3: FilterUncategorizedStep drops records the classifier could not handle.
type FilterUncategorizedStep struct{}

func (s *FilterUncategorizedStep) Name() string { return "filter" }

func (s *FilterUncategorizedStep) Execute(ctx context.Context, state *AnalysisState) error {
	state.Records, state.Dropped = splitCategorized(state.Records)
	if len(state.Dropped) > 0 {
		log := logger.FromContext(ctx)
		log.Warn().Int("dropped", len(state.Dropped)).Msg("dropping uncategorized transactions")
	}
	return nil
}

// Step 4: AggregateStep computes the spending metrics.
type AggregateStep struct {
	Aggregator *MetricsAggregator
}

func (s *AggregateStep) Name() string { return "aggregate" }

func (s *AggregateStep) Execute(ctx context.Context, state *AnalysisState) error {
	m, err := s.Aggregator.Compute(state.Records)
	if err != nil {
		return err
	}
	state.Metrics = m
	return nil
}

// Step 5: DetectPeaksStep finds the peak months.
type DetectPeaksStep struct {
	Detector *PeakDetector
}

func (s *DetectPeaksStep) Name() string { return "peaks" }

func (s *DetectPeaksStep) Execute(ctx context.Context, state *AnalysisState) error {
	state.Peaks = s.Detector.Detect(state.Records)
	return nil
}

// Step 6: InferPersonaStep scores the personas.
type InferPersonaStep struct {
	Engine *PersonaEngine
}

func (s *InferPersonaStep) Name() string { return "persona" }

func (s *InferPersonaStep) Execute(ctx context.Context, state *AnalysisState) error {
	inf, err := s.Engine.Infer(ctx, state.Records)
	if err != nil {
		return err
	}
	state.Persona = inf
	return nil
}

// Step 7 (optional): NarrativeStep writes the year-in-review text. Failures are logged only.
type NarrativeStep struct {
	Writer *NarrativeWriter
}

func (s *NarrativeStep) Name() string { return "narrative" }

func (s *NarrativeStep) Execute(ctx context.Context, state *AnalysisState) error {
	text, err := s.Writer.Write(ctx, state.Records)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("narrative generation failed, continuing without it")
		return nil
	}
	state.Narrative = text
	return nil
}

// Step 8: AssembleStep builds the AnalyticsResult.
type AssembleStep struct {
	Personas domain.PersonaTable
}

func (s *AssembleStep) Name() string { return "assemble" }

func (s *AssembleStep) Execute(ctx context.Context, state *AnalysisState) error {
	if state.Metrics == nil || state.Persona == nil {
		return fmt.Errorf("assemble: metrics or persona missing")
	}
	profile, ok := s.Personas.Get(state.Persona.PersonaID)
	if !ok {
		return fmt.Errorf("assemble: %w: unknown persona id %d", domain.ErrOracleContract, state.Persona.PersonaID)
	}

	m := state.Metrics
	topMerchants := m.TopMerchants
	if topMerchants == nil {
		topMerchants = []domain.MerchantStat{}
	}
	peaks := state.Peaks
	if peaks == nil {
		peaks = []string{}
	}

	state.Result = &domain.AnalyticsResult{
		RunID:                state.RunID,
		Categories:           m.Categories,
		TopMerchants:         topMerchants,
		SpendingBreakdown:    m.SpendingBreakdown,
		WeekdaySpending:      m.WeekdaySpending,
		FinancialPersonality: profile.Name,
		PersonaID:            profile.ID,
		PersonaScores:        state.Persona.Scores,
		ConversationPoints:   state.Persona.ConversationPoints,
		PeakMonths:           peaks,
		TransactionCount:     len(state.Records),
		DroppedCount:         len(state.Dropped),
		Narrative:            state.Narrative,
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially and stops at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *AnalysisState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d (%s) aborted: %w", i+1, step.Name(), err)
		}
		stepCtx := logger.ContextWithFields(ctx, map[string]interface{}{"step": step.Name()})
		if err := step.Execute(stepCtx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}
