package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/rankpush/internal/domain"
	"github.com/ignite/rankpush/internal/pkg/httputil"
)

// PositionChecker runs operator-triggered rank checks. *monitor.Monitor
// satisfies it. An empty country uses the monitor default.
type PositionChecker interface {
	ManualCheck(ctx context.Context, appID, keyword, country string) (*domain.PositionSnapshot, error)
}

// TrackingReader lists an app's tracked pairs and registers new ones.
type TrackingReader interface {
	TrackedFor(ctx context.Context, appID string) ([]domain.AppKeywordTracking, error)
	Track(ctx context.Context, appID, keyword, country string) error
}

// Analyzer runs an on-demand pessimization analysis for one app.
// *pessimization.Detector satisfies it.
type Analyzer interface {
	AnalyzeApp(ctx context.Context, appID string) (*domain.PessimizationEvent, error)
}

// EventStore reads and triages pessimization events.
type EventStore interface {
	ListForApp(ctx context.Context, appID string, limit int) ([]domain.PessimizationEvent, error)
	UpdateStatus(ctx context.Context, id string, status domain.PessimizationStatus) error
}

// AppHandler serves the per-app tracking, check, and pessimization
// routes.
type AppHandler struct {
	checker  PositionChecker
	tracking TrackingReader
	analyzer Analyzer
	events   EventStore
	country  string
}

// NewAppHandler creates the app route handler.
func NewAppHandler(checker PositionChecker, tracking TrackingReader, analyzer Analyzer, events EventStore, country string) *AppHandler {
	return &AppHandler{checker: checker, tracking: tracking, analyzer: analyzer, events: events, country: country}
}

// RegisterRoutes mounts the app and event routes.
func (h *AppHandler) RegisterRoutes(r chi.Router) {
	r.Route("/apps/{appID}", func(r chi.Router) {
		r.Get("/tracking", h.HandleListTracking)
		r.Post("/tracking", h.HandleTrack)
		r.Post("/keywords/{keyword}/check", h.HandleManualCheck)
		r.Post("/pessimization/analyze", h.HandleAnalyze)
		r.Get("/pessimization/events", h.HandleListEvents)
	})
	r.Patch("/pessimization/events/{eventID}", h.HandleUpdateEvent)
}

func (h *AppHandler) HandleListTracking(w http.ResponseWriter, r *http.Request) {
	tracked, err := h.tracking.TrackedFor(r.Context(), chi.URLParam(r, "appID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"tracking": tracked})
}

func (h *AppHandler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Keyword string `json:"keyword"`
		Country string `json:"country"`
	}
	if !httputil.Decode(w, r, &input) {
		return
	}
	if input.Keyword == "" {
		httputil.BadRequest(w, "keyword is required")
		return
	}
	if input.Country == "" {
		input.Country = h.country
	}
	if err := h.tracking.Track(r.Context(), chi.URLParam(r, "appID"), input.Keyword, input.Country); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, map[string]string{"status": "tracked"})
}

func (h *AppHandler) HandleManualCheck(w http.ResponseWriter, r *http.Request) {
	snap, err := h.checker.ManualCheck(r.Context(),
		chi.URLParam(r, "appID"), chi.URLParam(r, "keyword"), r.URL.Query().Get("country"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, snap)
}

func (h *AppHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	event, err := h.analyzer.AnalyzeApp(r.Context(), chi.URLParam(r, "appID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if event == nil {
		httputil.OK(w, map[string]any{"detected": false})
		return
	}
	httputil.OK(w, map[string]any{"detected": true, "event": event})
}

func (h *AppHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.events.ListForApp(r.Context(), chi.URLParam(r, "appID"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"events": events})
}

func (h *AppHandler) HandleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Status domain.PessimizationStatus `json:"status"`
	}
	if !httputil.Decode(w, r, &input) {
		return
	}
	switch input.Status {
	case domain.PessimizationDetected, domain.PessimizationAnalyzing,
		domain.PessimizationMitigating, domain.PessimizationResolved,
		domain.PessimizationAccepted:
	default:
		httputil.BadRequest(w, "unknown event status")
		return
	}
	if err := h.events.UpdateStatus(r.Context(), chi.URLParam(r, "eventID"), input.Status); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": string(input.Status)})
}
