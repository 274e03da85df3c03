package pipeline

import "time"

// Default values for the analytics pipeline.
// Commands override them from configuration.
const (
	// DefaultConcurrency is the number of merchants classified in parallel.
	DefaultConcurrency = 4

	// DefaultOracleTimeout bounds every single oracle call.
	DefaultOracleTimeout = 30 * time.Second

	// DefaultClassifyMaxTokens is the completion budget of one classification call.
	DefaultClassifyMaxTokens = 256

	// DefaultPersonaMaxTokens is the completion budget of the persona and narrative calls.
	DefaultPersonaMaxTokens = 1024

	// PeakMonthCount is the number of peak months reported.
	PeakMonthCount = 2

	// TopMerchantCount is the length of the top merchants list.
	TopMerchantCount = 3

	// TopCategoryCount is the length of Metrics.TopCategories.
	TopCategoryCount = 5

	// ScoreSumTolerance is how far persona scores may drift from 1.0 before renormalization.
	ScoreSumTolerance = 1e-3

	// Expected range for the number of conversation points.
	MinConversationPoints = 4
	MaxConversationPoints = 6
)
