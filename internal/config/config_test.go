package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ProviderGemini, cfg.Oracle.Provider)
	assert.Equal(t, 30*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, SourceCSV, cfg.Source.Kind)
	assert.Equal(t, "Timestamp", cfg.Source.HeaderMapping.Date)
	assert.Equal(t, "Account", cfg.Source.HeaderMapping.AccountName)
	assert.Equal(t, CacheMemory, cfg.Cache.Kind)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "*", cfg.HTTP.CORSOrigin)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	content := `
[oracle]
provider = "openai"
model = "nvidia/llama-3.1-nemotron-70b-instruct"
base_url = "https://integrate.api.nvidia.com/v1"
timeout = "10s"
rate_per_second = 2.5

[pipeline]
concurrency = 8
narrative = true

[source]
kind = "gcs"
path = "gs://wrapped/exports/Flashy_Fin.csv"

[source.header_mapping]
date = "Date"
merchant = "Payee"
amount = "Value"
description = "Memo"
category = ""
account_name = "Account"

[cache]
kind = "sqlite"
sqlite_path = "/tmp/wrapped.db"
`
	path := filepath.Join(t.TempDir(), "wrapped.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("WRAPPED_ORACLE_API_KEY", "nv-key")
	t.Setenv("WRAPPED_HTTP_PORT", "9090")
	t.Setenv("WRAPPED_LOG_FORMAT", "json")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Oracle.Provider)
	assert.Equal(t, "nv-key", cfg.Oracle.APIKey)
	assert.Equal(t, 10*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, 2.5, cfg.Oracle.RatePerSecond)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.True(t, cfg.Pipeline.Narrative)
	assert.Equal(t, "Payee", cfg.Source.HeaderMapping.Merchant)
	assert.Empty(t, cfg.Source.HeaderMapping.Category)
	assert.Equal(t, CacheSQLite, cfg.Cache.Kind)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "json", cfg.LoggerOptions().Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_ProviderKeyFallback(t *testing.T) {
	t.Setenv("NVIDIA_API_KEY", "from-nvidia")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "from-nvidia", cfg.Oracle.APIKey)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	cfg.Oracle.Provider = "openai"
	cfg.Oracle.APIKey = ""
	cfg.Pipeline.Concurrency = 0
	cfg.Source.Kind = SourceBigQuery
	cfg.Cache.Kind = "redis"
	cfg.HTTP.Port = 70000
	cfg.Log.Level = "loud"

	err = cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"oracle.api_key is required",
		"pipeline.concurrency must be at least 1",
		"bigquery.project is required",
		"bigquery.table is required",
		`cache.kind "redis"`,
		"http.port 70000",
		`log.level "loud"`,
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_HeaderMapping(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	cfg.Source.HeaderMapping.Amount = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing column for amount")
}

func TestNotionConfig_Require(t *testing.T) {
	assert.ErrorIs(t, NotionConfig{Token: "t"}.Require(), ErrNotionNotConfigured)
	assert.NoError(t, NotionConfig{Token: "t", DatabaseID: "db"}.Require())
}
