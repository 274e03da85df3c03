// Command migrate applies the classification cache schema migrations.
package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/dvloznov/finance-wrapped/internal/classcache"
	"github.com/dvloznov/finance-wrapped/internal/config"
	"github.com/dvloznov/finance-wrapped/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("WRAPPED_CONFIG"), "Path to a TOML config file (or set WRAPPED_CONFIG env)")
		dbPath     = flag.String("db", "", "SQLite cache path (defaults to cache.sqlite_path)")
		status     = flag.Bool("status", false, "Print the applied schema version without migrating")
	)
	flag.Parse()

	_ = godotenv.Load()

	log := logger.New()

	path := *dbPath
	if path == "" {
		cfg, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
		path = cfg.Cache.SQLitePath
	}
	log = log.With().Str("db", path).Logger()

	if !*status {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			log.Fatal().Err(err).Msg("Failed to create cache directory")
		}
		if err := classcache.RunMigrations(path); err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
	}

	version, dirty, err := classcache.SchemaVersion(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read schema version")
	}
	if dirty {
		log.Warn().Uint("version", version).Msg("Schema is dirty; a previous migration failed part way")
		os.Exit(1)
	}
	log.Info().Uint("version", version).Msg("Cache schema version")
}
