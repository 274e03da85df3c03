package domain

// CategoryStats summarizes one category of the analyzed record set.
type CategoryStats struct {
	Percentage    int64 `json:"percentage"`
	Count         int   `json:"count"`
	AverageAmount int64 `json:"average_amount"`
}

// MerchantStat is one entry of the top merchants list.
type MerchantStat struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	VisitCount int    `json:"visit_count"`
}

// SpendingBreakdown is the experiences/essentials split of total absolute spend.
type SpendingBreakdown struct {
	ExperiencesPct int64 `json:"experiences_pct"`
	EssentialsPct  int64 `json:"essentials_pct"`
}

// Weekday keys of AnalyticsResult.WeekdaySpending, Monday first.
var WeekdayKeys = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// AnalyticsResult is the "year in review" produced by one pipeline run.
type AnalyticsResult struct {
	RunID string `json:"run_id"`

	Categories        map[string]CategoryStats `json:"categories"`
	TopMerchants      []MerchantStat           `json:"top_merchants"`
	SpendingBreakdown SpendingBreakdown        `json:"spending_breakdown"`
	WeekdaySpending   map[string]float64       `json:"weekday_spending"`

	FinancialPersonality string          `json:"financial_personality"`
	PersonaID            int             `json:"persona_id"`
	PersonaScores        map[int]float64 `json:"persona_scores"`
	ConversationPoints   []string        `json:"conversation_points"`

	PeakMonths       []string `json:"peak_months"`
	TransactionCount int      `json:"transaction_count"`
	DroppedCount     int      `json:"dropped_count"`
	Narrative        string   `json:"narrative,omitempty"`
}
