package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/finance-wrapped/internal/api"
	"github.com/dvloznov/finance-wrapped/internal/app"
	"github.com/dvloznov/finance-wrapped/internal/config"
	"github.com/dvloznov/finance-wrapped/internal/jobs/inmemory"
	"github.com/dvloznov/finance-wrapped/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("WRAPPED_CONFIG"), "Path to a TOML config file (or set WRAPPED_CONFIG env)")
		workers    = flag.Int("workers", 2, "Concurrent analysis job workers")
	)
	flag.Parse()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	configured, err := logger.Configure(cfg.LoggerOptions())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logger")
	}
	log = configured

	ctx := logger.WithContext(context.Background(), log)

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize analytics pipeline")
	}
	defer application.Close()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, *workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", *workers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, application.AnalysisJobHandler()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	handler := api.NewRouter(api.Deps{
		Analyzer:  application,
		Publisher: jobQueue,
		Store:     jobStore,
		Taxonomy:  application.Pipeline.Taxonomy(),
		Personas:  application.Pipeline.Personas(),
		Log:       log,

		CORSOrigin: cfg.HTTP.CORSOrigin,
	})

	port := strconv.Itoa(cfg.HTTP.Port)
	// Oracle calls dominate request latency; the write timeout covers a full
	// synchronous analysis.
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * cfg.Oracle.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop waits for in-flight jobs; cancelling afterwards aborts stragglers.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
