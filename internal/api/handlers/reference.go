package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/finance-wrapped/internal/api/middleware"
	"github.com/dvloznov/finance-wrapped/internal/domain"
)

// ReferenceHandler serves the static persona and category tables.
type ReferenceHandler struct {
	taxonomy domain.Taxonomy
	personas domain.PersonaTable
}

// NewReferenceHandler creates a new reference handler.
func NewReferenceHandler(taxonomy domain.Taxonomy, personas domain.PersonaTable) *ReferenceHandler {
	return &ReferenceHandler{taxonomy: taxonomy, personas: personas}
}

// ListPersonas handles GET /api/personas
func (h *ReferenceHandler) ListPersonas(w http.ResponseWriter, r *http.Request) {
	personas := h.personas.All()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"personas": personas,
		"count":    len(personas),
	})
}

// ListCategories handles GET /api/categories
func (h *ReferenceHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	type category struct {
		Name       string `json:"name"`
		Hint       string `json:"hint"`
		Experience bool   `json:"experience"`
	}

	defs := h.taxonomy.Categories()
	categories := make([]category, 0, len(defs))
	for _, d := range defs {
		categories = append(categories, category{Name: d.Name, Hint: d.Hint, Experience: h.taxonomy.IsExperience(d.Name)})
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
