package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-wrapped/internal/domain"
)

// tx builds a record; category may be empty.
func tx(t *testing.T, date, merchant, amount, category string) *domain.Transaction {
	t.Helper()
	d, err := civil.ParseDate(date)
	if err != nil {
		t.Fatalf("bad test date %q: %v", date, err)
	}
	return &domain.Transaction{
		Date:        d,
		Merchant:    merchant,
		Amount:      decimal.RequireFromString(amount),
		Description: "Payment to " + merchant,
		AccountName: "Main",
		Category:    category,
	}
}

// merchantOracle answers classification prompts from a merchant → response table.
// Merchants missing from the table get a transport classification.
type merchantOracle struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     map[string]int
}

func newMerchantOracle(responses map[string]string) *merchantOracle {
	return &merchantOracle{responses: responses, errs: map[string]error{}, calls: map[string]int{}}
}

func (o *merchantOracle) Generate(ctx context.Context, req OracleRequest) (string, error) {
	merchant := strings.TrimPrefix(req.User, "Merchant: ")
	o.mu.Lock()
	o.calls[merchant]++
	o.mu.Unlock()
	if err, ok := o.errs[merchant]; ok {
		return "", err
	}
	if resp, ok := o.responses[merchant]; ok {
		return resp, nil
	}
	return `{"category": "transport", "reasoning": "default"}`, nil
}

func (o *merchantOracle) callCount(merchant string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[merchant]
}

func (o *merchantOracle) totalCalls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, c := range o.calls {
		n += c
	}
	return n
}

func classification(category string) string {
	return fmt.Sprintf(`{"category": %q, "reasoning": "because"}`, category)
}

// staticOracle always returns the same response.
func staticOracle(resp string) Oracle {
	return OracleFunc(func(ctx context.Context, req OracleRequest) (string, error) {
		return resp, nil
	})
}

const validPersonaResponse = `{
  "conversationPoints": ["Cook at home more", "Set a dining budget", "Review subscriptions", "Automate savings"],
  "persona_id": 2,
  "persona_scores": [0.05, 0.6, 0.05, 0.05, 0.1, 0.05, 0.05, 0.05]
}`

// memoryCache is a minimal ClassificationCache for tests.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]Classification
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]Classification{}}
}

func (c *memoryCache) Get(ctx context.Context, merchant string) (Classification, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[merchant]
	return v, ok, nil
}

func (c *memoryCache) Put(ctx context.Context, merchant string, v Classification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[merchant] = v
	return nil
}
