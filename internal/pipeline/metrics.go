package pipeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-wrapped/internal/domain"
)

// Metrics is the deterministic aggregation of a classified record set.
type Metrics struct {
	Categories        map[string]domain.CategoryStats
	TopMerchants      []domain.MerchantStat
	TopCategories     []string
	SpendingBreakdown domain.SpendingBreakdown
	WeekdaySpending   map[string]float64
	TotalSpend        decimal.Decimal
	TransactionCount  int
}

// MetricsAggregator computes spending metrics over classified records.
type MetricsAggregator struct {
	taxonomy domain.Taxonomy
}

// NewMetricsAggregator creates an aggregator using tax for the experiences split.
func NewMetricsAggregator(tax domain.Taxonomy) *MetricsAggregator {
	return &MetricsAggregator{taxonomy: tax}
}

var hundred = decimal.NewFromInt(100)

// Compute aggregates records. It fails with domain.ErrEmptyInput on an empty set
// and with domain.ErrMalformedInput when a record lacks a taxonomy category.
func (a *MetricsAggregator) Compute(records []*domain.Transaction) (*Metrics, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("Compute: %w", domain.ErrEmptyInput)
	}
	if err := requireCategorized(records, a.taxonomy); err != nil {
		return nil, fmt.Errorf("Compute: %w", err)
	}

	total := len(records)

	type bucket struct {
		count int
		sum   decimal.Decimal
	}
	byCategory := make(map[string]*bucket)
	var categoryOrder []string

	type merchantBucket struct {
		count    int
		category string
	}
	byMerchant := make(map[string]*merchantBucket)
	var merchantOrder []string

	weekday := make(map[time.Weekday]decimal.Decimal, 7)
	var experiences, essentials decimal.Decimal

	for _, r := range records {
		abs := r.Amount.Abs()

		cb, ok := byCategory[r.Category]
		if !ok {
			cb = &bucket{}
			byCategory[r.Category] = cb
			categoryOrder = append(categoryOrder, r.Category)
		}
		cb.count++
		cb.sum = cb.sum.Add(abs)

		mb, ok := byMerchant[r.Merchant]
		if !ok {
			mb = &merchantBucket{}
			byMerchant[r.Merchant] = mb
			merchantOrder = append(merchantOrder, r.Merchant)
		}
		mb.count++
		mb.category = r.Category

		if a.taxonomy.IsExperience(r.Category) {
			experiences = experiences.Add(abs)
		} else {
			essentials = essentials.Add(abs)
		}

		if r.IsOutflow() {
			wd := r.Date.In(time.UTC).Weekday()
			weekday[wd] = weekday[wd].Add(abs)
		}
	}

	m := &Metrics{
		Categories:       make(map[string]domain.CategoryStats, len(byCategory)),
		WeekdaySpending:  make(map[string]float64, 7),
		TotalSpend:       experiences.Add(essentials),
		TransactionCount: total,
	}

	for c, b := range byCategory {
		m.Categories[c] = domain.CategoryStats{
			Count:         b.count,
			Percentage:    roundPercent(decimal.NewFromInt(int64(b.count)), decimal.NewFromInt(int64(total))),
			AverageAmount: b.sum.Div(decimal.NewFromInt(int64(b.count))).RoundBank(0).IntPart(),
		}
	}

	sort.SliceStable(merchantOrder, func(i, j int) bool {
		return byMerchant[merchantOrder[i]].count > byMerchant[merchantOrder[j]].count
	})
	for _, name := range merchantOrder[:min(TopMerchantCount, len(merchantOrder))] {
		mb := byMerchant[name]
		m.TopMerchants = append(m.TopMerchants, domain.MerchantStat{
			Name:       name,
			Category:   mb.category,
			VisitCount: mb.count,
		})
	}

	sort.SliceStable(categoryOrder, func(i, j int) bool {
		return byCategory[categoryOrder[i]].count > byCategory[categoryOrder[j]].count
	})
	m.TopCategories = append([]string(nil), categoryOrder[:min(TopCategoryCount, len(categoryOrder))]...)

	if m.TotalSpend.IsPositive() {
		m.SpendingBreakdown = domain.SpendingBreakdown{
			ExperiencesPct: roundPercent(experiences, m.TotalSpend),
			EssentialsPct:  roundPercent(essentials, m.TotalSpend),
		}
	}

	for i, key := range domain.WeekdayKeys {
		// WeekdayKeys starts on Monday; time.Weekday starts on Sunday.
		wd := time.Weekday((i + 1) % 7)
		m.WeekdaySpending[key] = weekday[wd].InexactFloat64()
	}

	return m, nil
}

// roundPercent returns part/whole*100 rounded half to even.
func roundPercent(part, whole decimal.Decimal) int64 {
	return part.Mul(hundred).Div(whole).RoundBank(0).IntPart()
}
