// Package app wires configuration into the analytics pipeline, its oracle,
// cache and transaction sources. The api and cli commands share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/dvloznov/finance-wrapped/internal/classcache"
	"github.com/dvloznov/finance-wrapped/internal/config"
	"github.com/dvloznov/finance-wrapped/internal/domain"
	"github.com/dvloznov/finance-wrapped/internal/gcs"
	bq "github.com/dvloznov/finance-wrapped/internal/infra/bigquery"
	"github.com/dvloznov/finance-wrapped/internal/jobs"
	"github.com/dvloznov/finance-wrapped/internal/logger"
	"github.com/dvloznov/finance-wrapped/internal/oracle/gemini"
	"github.com/dvloznov/finance-wrapped/internal/oracle/openai"
	"github.com/dvloznov/finance-wrapped/internal/pipeline"
	"github.com/dvloznov/finance-wrapped/internal/source"
)

// ErrUnknownUser is returned when a user id has no transaction source.
var ErrUnknownUser = errors.New("unknown user")

// App holds the long-lived dependencies of a command.
type App struct {
	cfg      *config.Config
	Pipeline *pipeline.AnalyticsPipeline

	store    gcs.ObjectStore
	bqReader source.TransactionQuerier
	closers  []func() error
}

// New builds the oracle, cache and pipeline described by cfg. Cloud clients
// are only created for the configured source kind.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	oracle, err := NewOracle(ctx, cfg.Oracle)
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}

	a := &App{cfg: cfg}
	if err := a.init(ctx, oracle); err != nil {
		a.Close()
		return nil, fmt.Errorf("app.New: %w", err)
	}

	switch {
	case cfg.Source.Kind == config.SourceGCS || strings.HasPrefix(cfg.Source.Path, "gs://") || strings.HasPrefix(cfg.Source.DataDir, "gs://"):
		client, err := gcs.NewClient(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.store = client
		a.closers = append(a.closers, client.Close)
	case cfg.Source.Kind == config.SourceBigQuery:
		reader, err := bq.NewTransactionReader(ctx, cfg.BigQuery.Project, cfg.BigQuery.Table)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.bqReader = reader
		a.closers = append(a.closers, reader.Close)
	}
	return a, nil
}

// init builds the cache and pipeline around an already constructed oracle.
func (a *App) init(ctx context.Context, oracle pipeline.Oracle) error {
	cache, err := a.newCache()
	if err != nil {
		return err
	}

	pcfg := pipeline.Config{
		ClassifierOracle: oracle,
		PersonaOracle:    oracle,
		Cache:            cache,
		Concurrency:      a.cfg.Pipeline.Concurrency,
		OracleTimeout:    a.cfg.Oracle.Timeout,
		MaxTokens:        int32(a.cfg.Oracle.MaxTokens),
		RatePerSecond:    a.cfg.Oracle.RatePerSecond,
	}
	if a.cfg.Pipeline.Narrative {
		pcfg.NarrativeOracle = oracle
	}

	p, err := pipeline.New(pcfg)
	if err != nil {
		return err
	}
	a.Pipeline = p

	log := logger.FromContext(ctx)
	log.Info().
		Str("provider", a.cfg.Oracle.Provider).
		Str("source", a.cfg.Source.Kind).
		Str("cache", a.cfg.Cache.Kind).
		Bool("narrative", a.cfg.Pipeline.Narrative).
		Msg("analytics pipeline ready")
	return nil
}

func (a *App) newCache() (pipeline.ClassificationCache, error) {
	switch a.cfg.Cache.Kind {
	case config.CacheMemory:
		return classcache.NewMemoryStore(a.cfg.Cache.Size, a.cfg.Cache.TTL), nil
	case config.CacheSQLite:
		s, err := classcache.NewSQLiteStore(a.cfg.Cache.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return nil, nil
	}
}

// NewOracle creates the configured language-model oracle.
func NewOracle(ctx context.Context, cfg config.OracleConfig) (pipeline.Oracle, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		o, err := gemini.New(ctx, gemini.Config{APIKey: cfg.APIKey, Model: cfg.Model})
		if err != nil {
			return nil, err
		}
		return o, nil
	case config.ProviderOpenAI:
		o, err := openai.New(openai.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
		if err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("NewOracle: unknown provider %q", cfg.Provider)
	}
}

// Close releases cloud clients and the cache database.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// SourceForPath reads a local file or gs:// object with the configured
// header mapping.
func (a *App) SourceForPath(p string) (source.TransactionSource, error) {
	mapping := a.cfg.Source.HeaderMapping
	if strings.HasPrefix(p, "gs://") {
		if a.store == nil {
			return nil, fmt.Errorf("SourceForPath: %s: cloud storage is not configured", p)
		}
		return &source.GCSSource{Store: a.store, URI: p, Mapping: mapping}, nil
	}
	return &source.CSVFileSource{Path: p, Mapping: mapping}, nil
}

// SourceForUser resolves a user id. File sources map ids 1..8 to the
// persona exports under source.data_dir; BigQuery filters by user_id.
func (a *App) SourceForUser(userID int) (source.TransactionSource, error) {
	if a.cfg.Source.Kind == config.SourceBigQuery {
		if a.bqReader == nil {
			return nil, errors.New("SourceForUser: bigquery is not configured")
		}
		return &source.BigQuerySource{
			Reader: a.bqReader,
			Filter: bq.TransactionFilter{UserID: strconv.Itoa(userID)},
		}, nil
	}

	dir := a.cfg.Source.DataDir
	p, err := source.PersonaCSVPath(dir, a.Pipeline.Personas(), userID)
	if err != nil {
		return nil, fmt.Errorf("SourceForUser: %w: %d", ErrUnknownUser, userID)
	}
	if strings.HasPrefix(dir, "gs://") {
		// filepath.Join would collapse the scheme's double slash.
		p = strings.TrimSuffix(dir, "/") + "/" + path.Base(p)
	}
	return a.SourceForPath(p)
}

// Default returns the source named by source.path (the whole table for
// BigQuery), or nil when unset.
func (a *App) Default() (source.TransactionSource, error) {
	if a.cfg.Source.Kind == config.SourceBigQuery {
		return &source.BigQuerySource{Reader: a.bqReader}, nil
	}
	if a.cfg.Source.Path == "" {
		return nil, nil
	}
	return a.SourceForPath(a.cfg.Source.Path)
}

// Analyze fetches a user's transactions and runs the full pipeline.
func (a *App) Analyze(ctx context.Context, userID int) (*domain.AnalyticsResult, error) {
	src, err := a.SourceForUser(userID)
	if err != nil {
		return nil, err
	}
	txs, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("Analyze: fetch: %w", err)
	}
	return a.Pipeline.Run(ctx, txs)
}

// ClassifyUser fetches a user's transactions and classifies them without
// aggregating. Records the oracle could not classify keep an empty category.
func (a *App) ClassifyUser(ctx context.Context, userID int) ([]*domain.Transaction, pipeline.ClassificationReport, error) {
	src, err := a.SourceForUser(userID)
	if err != nil {
		return nil, pipeline.ClassificationReport{}, err
	}
	txs, err := src.Fetch(ctx)
	if err != nil {
		return nil, pipeline.ClassificationReport{}, fmt.Errorf("ClassifyUser: fetch: %w", err)
	}
	report, err := a.Pipeline.Classify(ctx, txs)
	if err != nil {
		return nil, pipeline.ClassificationReport{}, err
	}
	return txs, report, nil
}

// AnalysisJobHandler runs queued analyses. Input problems are marked
// permanent so the queue does not retry them.
func (a *App) AnalysisJobHandler() jobs.JobHandler {
	return func(ctx context.Context, job *jobs.AnalysisJob) (*domain.AnalyticsResult, error) {
		ctx = logger.ContextWithFields(ctx, map[string]interface{}{"job_id": job.JobID})
		result, err := a.Analyze(ctx, job.UserID)
		if err != nil && IsPermanent(err) {
			return nil, jobs.Permanent(err)
		}
		return result, err
	}
}

// IsPermanent reports whether retrying err cannot help.
func IsPermanent(err error) bool {
	return errors.Is(err, domain.ErrMalformedInput) ||
		errors.Is(err, domain.ErrEmptyInput) ||
		errors.Is(err, ErrUnknownUser) ||
		errors.Is(err, fs.ErrNotExist)
}
