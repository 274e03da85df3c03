package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-wrapped/internal/config"
	"github.com/dvloznov/finance-wrapped/internal/domain"
	"github.com/dvloznov/finance-wrapped/internal/jobs"
	"github.com/dvloznov/finance-wrapped/internal/pipeline"
	"github.com/dvloznov/finance-wrapped/internal/source"
)

const export = `Timestamp,Merchant,Amount,Description,Category,Account
2024-01-01 10:00:00,Albert Heijn,-10,Groceries,Groceries,Main
2024-01-02 10:00:00,Albert Heijn,-20,Groceries,Groceries,Main
2024-01-03 10:00:00,Albert Heijn,-30,Groceries,Groceries,Main
2024-01-25 09:00:00,Employer,1000,Salary,Income,Main
`

const personaAnswer = `{"persona_id": 5, "conversationPoints": ["a", "b", "c", "d"],
"persona_scores": [0.05, 0.05, 0.05, 0.05, 0.6, 0.1, 0.05, 0.05]}`

func fakeOracle() pipeline.Oracle {
	return pipeline.OracleFunc(func(ctx context.Context, req pipeline.OracleRequest) (string, error) {
		switch req.User {
		case "Merchant: Albert Heijn":
			return `{"category": "groceries", "reasoning": "supermarket"}`, nil
		case "Merchant: Employer":
			return `{"category": "finance", "reasoning": "salary"}`, nil
		}
		if strings.HasPrefix(req.User, "Merchant: ") {
			return "", fmt.Errorf("unexpected merchant %q", req.User)
		}
		return personaAnswer, nil
	})
}

func newTestApp(t *testing.T, mutate func(*config.Config)) *App {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Source.DataDir = t.TempDir()
	cfg.Cache.Kind = config.CacheNone
	if mutate != nil {
		mutate(cfg)
	}

	a := &App{cfg: cfg}
	require.NoError(t, a.init(context.Background(), fakeOracle()))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func writeExport(t *testing.T, a *App, alias, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(a.cfg.Source.DataDir, alias+".csv"), []byte(content), 0o600))
}

func TestAnalyze(t *testing.T) {
	a := newTestApp(t, nil)
	writeExport(t, a, "Bargain_Buzzy", export)

	result, err := a.Analyze(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "The Deal Hunter", result.FinancialPersonality)
	assert.Equal(t, int64(75), result.Categories["groceries"].Percentage)
	assert.Equal(t, 4, result.TransactionCount)
}

func TestClassifyUser(t *testing.T) {
	a := newTestApp(t, nil)
	writeExport(t, a, "Flashy_Fin", export+"2024-02-01 10:00:00,Mystery,-5,,,Main\n")

	txs, report, err := a.ClassifyUser(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, txs, 5)
	assert.Equal(t, "groceries", txs[0].Category)
	assert.Empty(t, txs[4].Category)
	assert.Equal(t, []string{"Mystery"}, report.FailedMerchants)
}

func TestSourceForUser(t *testing.T) {
	a := newTestApp(t, nil)

	src, err := a.SourceForUser(2)
	require.NoError(t, err)
	csvSrc, ok := src.(*source.CSVFileSource)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(a.cfg.Source.DataDir, "Flashy_Fin.csv"), csvSrc.Path)

	_, err = a.SourceForUser(0)
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestSourceForPath_GCSNeedsClient(t *testing.T) {
	a := newTestApp(t, nil)
	_, err := a.SourceForPath("gs://bucket/a.csv")
	assert.ErrorContains(t, err, "cloud storage is not configured")
}

func TestAnalysisJobHandler_PermanentErrors(t *testing.T) {
	a := newTestApp(t, nil)
	handle := a.AnalysisJobHandler()

	tests := []struct {
		name   string
		userID int
		setup  func()
	}{
		{name: "unknown user", userID: 42},
		{name: "missing export", userID: 3},
		{name: "malformed export", userID: 4, setup: func() {
			writeExport(t, a, "Bullish_Benny", "Timestamp,Merchant\n2024-01-01,X\n")
		}},
		{name: "no classified rows", userID: 6, setup: func() {
			writeExport(t, a, "Zen_Zeke", "Timestamp,Merchant,Amount,Description,Account\n2024-01-01,Mystery,-1,,Main\n")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			_, err := handle(context.Background(), &jobs.AnalysisJob{JobID: "j", UserID: tt.userID})
			require.Error(t, err)
			assert.True(t, jobs.IsPermanent(err), "got %v", err)
		})
	}
}

func TestAnalysisJobHandler_OracleFailureIsRetryable(t *testing.T) {
	a := &App{}
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Source.DataDir = t.TempDir()
	cfg.Cache.Kind = config.CacheNone
	a.cfg = cfg

	failing := pipeline.OracleFunc(func(ctx context.Context, req pipeline.OracleRequest) (string, error) {
		if strings.HasPrefix(req.User, "Merchant: ") {
			return `{"category": "groceries", "reasoning": "x"}`, nil
		}
		return "", errors.New("503 from upstream")
	})
	require.NoError(t, a.init(context.Background(), failing))
	writeExport(t, a, "Maestro_Moolah", export)

	_, err = a.AnalysisJobHandler()(context.Background(), &jobs.AnalysisJob{JobID: "j", UserID: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrOracleContract))
	assert.False(t, jobs.IsPermanent(err))
}

func TestNewOracle(t *testing.T) {
	_, err := NewOracle(context.Background(), config.OracleConfig{Provider: "claude"})
	assert.ErrorContains(t, err, "unknown provider")

	_, err = NewOracle(context.Background(), config.OracleConfig{Provider: config.ProviderOpenAI})
	assert.ErrorContains(t, err, "api key is required")

	o, err := NewOracle(context.Background(), config.OracleConfig{Provider: config.ProviderOpenAI, APIKey: "k"})
	require.NoError(t, err)
	assert.NotNil(t, o)
}

func TestNewCache(t *testing.T) {
	a := newTestApp(t, func(c *config.Config) {
		c.Cache.Kind = config.CacheSQLite
		c.Cache.SQLitePath = filepath.Join(t.TempDir(), "cache.db")
	})
	assert.Len(t, a.closers, 1)
	require.NoError(t, a.Close())
	assert.Empty(t, a.closers)
}
