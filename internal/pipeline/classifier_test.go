package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-wrapped/internal/domain"
)

func TestClassify_OneMerchantUnparsable(t *testing.T) {
	oracle := newMerchantOracle(map[string]string{
		"Albert Heijn": classification("groceries"),
		"Shell":        classification("transport"),
		"Pathé":        classification("entertainment"),
		"Vattenfall":   classification("utilities"),
		"Mystery Shop": "this merchant sells many things",
	})
	records := []*domain.Transaction{
		tx(t, "2024-01-01", "Albert Heijn", "-10", ""),
		tx(t, "2024-01-02", "Shell", "-40", ""),
		tx(t, "2024-01-03", "Mystery Shop", "-15", ""),
		tx(t, "2024-01-04", "Pathé", "-12", ""),
		tx(t, "2024-01-05", "Vattenfall", "-80", ""),
	}

	c := NewCategoryClassifier(oracle, domain.DefaultTaxonomy(), ClassifierOptions{Concurrency: 2, Timeout: time.Second})
	report, err := c.Classify(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Merchants)
	assert.Equal(t, []string{"Mystery Shop"}, report.FailedMerchants)
	assert.Equal(t, 1, report.Uncategorized)

	assert.Equal(t, "groceries", records[0].Category)
	assert.Equal(t, "because", records[0].Reasoning)
	assert.Equal(t, "transport", records[1].Category)
	assert.Empty(t, records[2].Category)
	assert.Equal(t, "entertainment", records[3].Category)
	assert.Equal(t, "utilities", records[4].Category)
}

func TestClassify_NormalizesAndFallsBack(t *testing.T) {
	oracle := newMerchantOracle(map[string]string{
		"Landlord":   classification("Rent and Mortgage"),
		"Uber":       classification(" Transport "),
		"Art Dealer": classification("collectibles"),
	})
	records := []*domain.Transaction{
		tx(t, "2024-01-01", "Landlord", "-900", ""),
		tx(t, "2024-01-02", "Uber", "-18", ""),
		tx(t, "2024-01-03", "Art Dealer", "-300", ""),
	}

	c := NewCategoryClassifier(oracle, domain.DefaultTaxonomy(), ClassifierOptions{})
	report, err := c.Classify(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, "rent_and_mortgage", records[0].Category)
	assert.Equal(t, "transport", records[1].Category)
	assert.Equal(t, "other", records[2].Category)
	assert.Equal(t, []string{"Art Dealer"}, report.FallbackMerchants)
	assert.Empty(t, report.FailedMerchants)
}

func TestClassify_OneCallPerDistinctMerchant(t *testing.T) {
	oracle := newMerchantOracle(nil)
	records := []*domain.Transaction{
		tx(t, "2024-01-01", "Shell", "-40", ""),
		tx(t, "2024-01-08", "Shell", "-42", ""),
		tx(t, "2024-01-15", "Shell", "-38", ""),
		tx(t, "2024-01-16", "BP", "-50", ""),
	}

	c := NewCategoryClassifier(oracle, domain.DefaultTaxonomy(), ClassifierOptions{Concurrency: 4, Timeout: time.Second})
	_, err := c.Classify(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 1, oracle.callCount("Shell"))
	assert.Equal(t, 1, oracle.callCount("BP"))
	for _, r := range records {
		assert.Equal(t, "transport", r.Category)
	}
}

func TestClassify_OracleErrorIsNonFatal(t *testing.T) {
	oracle := newMerchantOracle(nil)
	oracle.errs["Flaky"] = errors.New("503 service unavailable")
	records := []*domain.Transaction{
		tx(t, "2024-01-01", "Flaky", "-1", ""),
		tx(t, "2024-01-02", "Shell", "-40", ""),
	}

	c := NewCategoryClassifier(oracle, domain.DefaultTaxonomy(), ClassifierOptions{Concurrency: 1, Timeout: time.Second})
	report, err := c.Classify(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, []string{"Flaky"}, report.FailedMerchants)
	assert.Empty(t, records[0].Category)
	assert.Equal(t, "transport", records[1].Category)
}

func TestClassify_PerCallTimeout(t *testing.T) {
	slow := OracleFunc(func(ctx context.Context, req OracleRequest) (string, error) {
		if req.User == "Merchant: Slow" {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return classification("food"), nil
	})
	records := []*domain.Transaction{
		tx(t, "2024-01-01", "Slow", "-1", ""),
		tx(t, "2024-01-02", "Cafe", "-4", ""),
	}

	c := NewCategoryClassifier(slow, domain.DefaultTaxonomy(), ClassifierOptions{Concurrency: 2, Timeout: 20 * time.Millisecond})
	report, err := c.Classify(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, []string{"Slow"}, report.FailedMerchants)
	assert.Equal(t, "food", records[1].Category)
}

func TestClassify_BoundedConcurrency(t *testing.T) {
	var inFlight, peak int32
	oracle := OracleFunc(func(ctx context.Context, req OracleRequest) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return classification("shopping"), nil
	})

	var records []*domain.Transaction
	for _, m := range []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"} {
		records = append(records, tx(t, "2024-01-01", m, "-1", ""))
	}

	c := NewCategoryClassifier(oracle, domain.DefaultTaxonomy(), ClassifierOptions{Concurrency: 3, Timeout: time.Second})
	_, err := c.Classify(context.Background(), records)
	require.NoError(t, err)

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestClassify_UsesCache(t *testing.T) {
	cache := newMemoryCache()
	require.NoError(t, cache.Put(context.Background(), "shell", Classification{Category: "transport", Reasoning: "cached"}))

	oracle := newMerchantOracle(map[string]string{"Jumbo": classification("groceries")})
	records := []*domain.Transaction{
		tx(t, "2024-01-01", "SHELL", "-40", ""),
		tx(t, "2024-01-02", "Jumbo", "-20", ""),
	}

	c := NewCategoryClassifier(oracle, domain.DefaultTaxonomy(), ClassifierOptions{Cache: cache, Concurrency: 2, Timeout: time.Second})
	report, err := c.Classify(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 1, report.CacheHits)
	assert.Equal(t, 0, oracle.callCount("SHELL"))
	assert.Equal(t, "cached", records[0].Reasoning)

	stored, ok, err := cache.Get(context.Background(), "jumbo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "groceries", stored.Category)
}

func TestClassify_CancelledContext(t *testing.T) {
	oracle := newMerchantOracle(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCategoryClassifier(oracle, domain.DefaultTaxonomy(), ClassifierOptions{Concurrency: 2, Timeout: time.Second})
	_, err := c.Classify(ctx, []*domain.Transaction{tx(t, "2024-01-01", "Shell", "-1", "")})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, oracle.totalCalls())
}

func TestClassify_RateLimited(t *testing.T) {
	oracle := newMerchantOracle(nil)
	var records []*domain.Transaction
	for _, m := range []string{"A", "B", "C"} {
		records = append(records, tx(t, "2024-01-01", m, "-1", ""))
	}

	c := NewCategoryClassifier(oracle, domain.DefaultTaxonomy(), ClassifierOptions{Concurrency: 3, RatePerSecond: 20})
	start := time.Now()
	_, err := c.Classify(context.Background(), records)
	require.NoError(t, err)

	// Burst of one: the second and third calls wait ~50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, 3, oracle.totalCalls())
}
