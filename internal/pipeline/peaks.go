package pipeline

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-wrapped/internal/domain"
)

// PeakDetector finds the months with the highest signed net amount.
// Inflows count positively, so a salary month can outrank a spending month.
type PeakDetector struct {
	limit int
}

// NewPeakDetector returns a detector reporting up to PeakMonthCount months.
func NewPeakDetector() *PeakDetector {
	return &PeakDetector{limit: PeakMonthCount}
}

// Detect returns up to two "YYYY-MM" months ordered by descending signed sum,
// earlier month first on ties.
func (d *PeakDetector) Detect(records []*domain.Transaction) []string {
	sums := make(map[string]decimal.Decimal)
	for _, r := range records {
		m := r.Month()
		sums[m] = sums[m].Add(r.Amount)
	}

	months := make([]string, 0, len(sums))
	for m := range sums {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool {
		if c := sums[months[i]].Cmp(sums[months[j]]); c != 0 {
			return c > 0
		}
		return months[i] < months[j]
	})

	if len(months) > d.limit {
		months = months[:d.limit]
	}
	return months
}
