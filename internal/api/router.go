// Package api assembles the HTTP surface of the analytics service.
package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-wrapped/internal/api/handlers"
	"github.com/dvloznov/finance-wrapped/internal/api/middleware"
	"github.com/dvloznov/finance-wrapped/internal/domain"
	"github.com/dvloznov/finance-wrapped/internal/jobs"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Analyzer  handlers.Analyzer
	Publisher jobs.Publisher
	Store     jobs.JobStore
	Taxonomy  domain.Taxonomy
	Personas  domain.PersonaTable
	Log       zerolog.Logger

	// CORSOrigin is the allowed browser origin; empty allows any.
	CORSOrigin string
}

// NewRouter registers every route and wraps the mux in the middleware stack.
func NewRouter(d Deps) http.Handler {
	memories := handlers.NewMemoriesHandler(d.Analyzer)
	analyses := handlers.NewAnalysesHandler(d.Publisher, d.Log)
	jobsHandler := handlers.NewJobsHandler(d.Store, d.Log)
	reference := handlers.NewReferenceHandler(d.Taxonomy, d.Personas)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /memories/summary/{user}", memories.Summary)
	mux.HandleFunc("GET /memories/transactions/{user}", memories.Transactions)

	mux.HandleFunc("POST /api/analyses", analyses.Enqueue)
	mux.HandleFunc("GET /api/jobs", jobsHandler.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", jobsHandler.GetJob)

	mux.HandleFunc("GET /api/personas", reference.ListPersonas)
	mux.HandleFunc("GET /api/categories", reference.ListCategories)

	mux.HandleFunc("GET /health", handlers.Health)

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Recovery(d.Log),
		middleware.Logger(d.Log),
		middleware.CORS(d.CORSOrigin),
	)
}
