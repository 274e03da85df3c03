package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dvloznov/finance-wrapped/internal/domain"
	"github.com/dvloznov/finance-wrapped/internal/logger"
)

// ClassificationReport summarizes one classification pass.
type ClassificationReport struct {
	Merchants         int      `json:"merchants"`
	FailedMerchants   []string `json:"failed_merchants"`
	Uncategorized     int      `json:"uncategorized"`
	FallbackMerchants []string `json:"fallback_merchants"`
	CacheHits         int      `json:"cache_hits"`
}

// ClassifierOptions tunes a CategoryClassifier. Zero values mean defaults.
type ClassifierOptions struct {
	Cache       ClassificationCache // optional
	Concurrency int
	Timeout     time.Duration
	// RatePerSecond caps oracle calls per second; 0 means unlimited.
	RatePerSecond float64
}

// CategoryClassifier assigns taxonomy categories to records by asking the
// categorization oracle about each distinct merchant.
type CategoryClassifier struct {
	oracle      Oracle
	taxonomy    domain.Taxonomy
	cache       ClassificationCache
	limiter     *rate.Limiter
	concurrency int
	timeout     time.Duration
	maxTokens   int32
	system      string
}

// NewCategoryClassifier creates a classifier.
func NewCategoryClassifier(oracle Oracle, tax domain.Taxonomy, opts ClassifierOptions) *CategoryClassifier {
	c := &CategoryClassifier{
		oracle:      oracle,
		taxonomy:    tax,
		cache:       opts.Cache,
		concurrency: opts.Concurrency,
		timeout:     opts.Timeout,
		maxTokens:   DefaultClassifyMaxTokens,
		system:      buildClassificationPrompt(tax),
	}
	if c.concurrency <= 0 {
		c.concurrency = DefaultConcurrency
	}
	if c.timeout <= 0 {
		c.timeout = DefaultOracleTimeout
	}
	if opts.RatePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	return c
}

type merchantOutcome struct {
	result   Classification
	ok       bool
	fallback bool
	cached   bool
}

// Classify fills Category and Reasoning of every record whose merchant could be
// classified. Per-merchant failures are logged and reported, never returned.
// The error is non-nil only when ctx is cancelled.
func (c *CategoryClassifier) Classify(ctx context.Context, records []*domain.Transaction) (ClassificationReport, error) {
	log := logger.FromContext(ctx)

	var merchants []string
	seen := make(map[string]int)
	for _, r := range records {
		if _, ok := seen[r.Merchant]; !ok {
			seen[r.Merchant] = len(merchants)
			merchants = append(merchants, r.Merchant)
		}
	}

	outcomes := make([]merchantOutcome, len(merchants))
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, m := range merchants {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = c.classifyMerchant(ctx, m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ClassificationReport{}, fmt.Errorf("Classify: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return ClassificationReport{}, fmt.Errorf("Classify: %w", err)
	}

	report := ClassificationReport{
		Merchants:         len(merchants),
		FailedMerchants:   []string{},
		FallbackMerchants: []string{},
	}
	for i, m := range merchants {
		o := outcomes[i]
		switch {
		case !o.ok:
			report.FailedMerchants = append(report.FailedMerchants, m)
		case o.fallback:
			report.FallbackMerchants = append(report.FallbackMerchants, m)
		}
		if o.cached {
			report.CacheHits++
		}
	}

	for _, r := range records {
		o := outcomes[seen[r.Merchant]]
		if !o.ok {
			report.Uncategorized++
			continue
		}
		r.Category = o.result.Category
		r.Reasoning = o.result.Reasoning
	}

	log.Info().
		Int("merchants", report.Merchants).
		Int("failed", len(report.FailedMerchants)).
		Int("uncategorized", report.Uncategorized).
		Int("cache_hits", report.CacheHits).
		Msg("classification finished")

	return report, nil
}

func (c *CategoryClassifier) classifyMerchant(ctx context.Context, merchant string) merchantOutcome {
	log := logger.FromContext(ctx).With().Str("merchant", merchant).Logger()
	key := cacheKey(merchant)

	if c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msg("classification cache lookup failed")
		} else if ok && c.taxonomy.Contains(cached.Category) {
			return merchantOutcome{result: cached, ok: true, cached: true}
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			log.Warn().Err(err).Msg("rate limiter wait aborted")
			return merchantOutcome{}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.oracle.Generate(callCtx, OracleRequest{
		System:    c.system,
		User:      buildClassificationUserPrompt(merchant),
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		log.Warn().Err(fmt.Errorf("%w: %v", domain.ErrClassificationFailure, err)).Msg("categorization oracle call failed")
		return merchantOutcome{}
	}

	parsed, err := parseClassification(raw)
	if err != nil {
		log.Warn().Err(err).Str("raw_response", raw).Msg("unusable categorization response")
		return merchantOutcome{}
	}

	category, known := c.taxonomy.Resolve(parsed.Category)
	if !known {
		log.Warn().Str("returned_category", parsed.Category).Str("category", category).
			Msg("category outside taxonomy, using fallback")
	}
	result := Classification{Category: category, Reasoning: strings.TrimSpace(parsed.Reasoning)}

	if c.cache != nil {
		if err := c.cache.Put(ctx, key, result); err != nil {
			log.Warn().Err(err).Msg("classification cache store failed")
		}
	}

	log.Debug().Str("category", category).Msg("merchant classified")
	return merchantOutcome{result: result, ok: true, fallback: !known}
}

// cacheKey folds case and whitespace so "SHELL " and "shell" share a cache entry.
func cacheKey(merchant string) string {
	return strings.ToLower(strings.Join(strings.Fields(merchant), " "))
}
