package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/rankpush/internal/pkg/httputil"
	"github.com/ignite/rankpush/internal/risk"
)

// RiskHandler serves the niche-level risk model and learning records.
type RiskHandler struct {
	assessor *risk.Assessor
}

// NewRiskHandler creates the niche route handler.
func NewRiskHandler(assessor *risk.Assessor) *RiskHandler {
	return &RiskHandler{assessor: assessor}
}

// RegisterRoutes mounts the niche routes.
func (h *RiskHandler) RegisterRoutes(r chi.Router) {
	r.Route("/niches/{niche}", func(r chi.Router) {
		r.Get("/risk-model", h.HandleRiskModel)
		r.Get("/learning-records", h.HandleLearningRecords)
	})
}

func (h *RiskHandler) HandleRiskModel(w http.ResponseWriter, r *http.Request) {
	stats, err := h.assessor.NicheStats(r.Context(), chi.URLParam(r, "niche"), 0)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, stats)
}

func (h *RiskHandler) HandleLearningRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.assessor.Records(r.Context(), chi.URLParam(r, "niche"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"records": records})
}
