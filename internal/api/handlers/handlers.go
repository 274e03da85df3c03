package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-wrapped/internal/api/middleware"
	"github.com/dvloznov/finance-wrapped/internal/app"
	"github.com/dvloznov/finance-wrapped/internal/domain"
	"github.com/dvloznov/finance-wrapped/internal/jobs"
	"github.com/dvloznov/finance-wrapped/internal/logger"
	"github.com/dvloznov/finance-wrapped/internal/pipeline"
)

// Analyzer runs the pipeline for a user. *app.App implements it.
type Analyzer interface {
	Analyze(ctx context.Context, userID int) (*domain.AnalyticsResult, error)
	ClassifyUser(ctx context.Context, userID int) ([]*domain.Transaction, pipeline.ClassificationReport, error)
}

// writeAnalysisError maps pipeline errors to HTTP statuses.
func writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "Analysis failed"
	switch {
	case errors.Is(err, app.ErrUnknownUser), errors.Is(err, fs.ErrNotExist):
		status, msg = http.StatusNotFound, "No transactions for user"
	case errors.Is(err, domain.ErrMalformedInput):
		status, msg = http.StatusBadRequest, "Malformed transaction data"
	case errors.Is(err, domain.ErrEmptyInput):
		status, msg = http.StatusUnprocessableEntity, "insufficient data"
	case errors.Is(err, domain.ErrOracleContract):
		status, msg = http.StatusBadGateway, "Persona oracle returned an unusable response"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusServiceUnavailable, "Analysis cancelled"
	}

	log := logger.FromContext(r.Context())
	ev := log.Warn()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Int("status", status).Msg("analysis request failed")
	middleware.WriteError(w, status, msg)
}

func parseUserID(w http.ResponseWriter, raw string) (int, bool) {
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		middleware.WriteError(w, http.StatusBadRequest, "user id must be a positive integer")
		return 0, false
	}
	return id, true
}

// MemoriesHandler serves the synchronous analytics endpoints.
type MemoriesHandler struct {
	analyzer Analyzer
}

// NewMemoriesHandler creates a new memories handler.
func NewMemoriesHandler(analyzer Analyzer) *MemoriesHandler {
	return &MemoriesHandler{analyzer: analyzer}
}

// Summary handles GET /memories/summary/{user}
func (h *MemoriesHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r.PathValue("user"))
	if !ok {
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), userID)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// Transactions handles GET /memories/transactions/{user}
func (h *MemoriesHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r.PathValue("user"))
	if !ok {
		return
	}

	txs, report, err := h.analyzer.ClassifyUser(r.Context(), userID)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
		"report":       report,
	})
}

// AnalysesHandler enqueues asynchronous analyses.
type AnalysesHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewAnalysesHandler creates a new analyses handler.
func NewAnalysesHandler(publisher jobs.Publisher, log zerolog.Logger) *AnalysesHandler {
	return &AnalysesHandler{publisher: publisher, log: log}
}

// Enqueue handles POST /api/analyses
func (h *AnalysesHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     int `json:"user_id"`
		MaxRetries int `json:"max_retries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID < 1 {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.MaxRetries < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "max_retries must not be negative")
		return
	}

	job := &jobs.AnalysisJob{UserID: req.UserID, MaxRetries: req.MaxRetries}
	if err := h.publisher.PublishAnalysis(r.Context(), job); err != nil {
		h.log.Error().Err(err).Int("user_id", req.UserID).Msg("Failed to enqueue analysis job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue analysis job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Int("user_id", req.UserID).Msg("Analysis job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":  job.JobID,
		"user_id": job.UserID,
		"status":  job.Status,
	})
}
