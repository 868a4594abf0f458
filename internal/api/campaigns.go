// Package api exposes the engine's control surface over chi routes.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/rankpush/internal/domain"
	"github.com/ignite/rankpush/internal/pkg/httputil"
	"github.com/ignite/rankpush/internal/service/campaign"
	"github.com/ignite/rankpush/internal/ticket"
)

// CampaignHandler serves the campaign lifecycle routes.
type CampaignHandler struct {
	svc  *campaign.Service
	risk RiskReader
}

// RiskReader scores a campaign before or during review. The server
// wires it to the risk assessor plus the app directory that supplies
// niche and difficulty inputs.
type RiskReader interface {
	AssessCampaign(ctx context.Context, c *domain.Campaign) (*domain.RiskAssessment, error)
}

// NewCampaignHandler creates the campaign route handler.
func NewCampaignHandler(svc *campaign.Service, risk RiskReader) *CampaignHandler {
	return &CampaignHandler{svc: svc, risk: risk}
}

// RegisterRoutes mounts the campaign routes.
func (h *CampaignHandler) RegisterRoutes(r chi.Router) {
	r.Route("/campaigns", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)

		r.Route("/{campaignID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Patch("/", h.HandleUpdate)
			r.Delete("/", h.HandleDelete)

			r.Post("/review", h.HandleSubmitForReview)
			r.Post("/approve", h.HandleApprove)
			r.Post("/start", h.HandleStart)
			r.Post("/pause", h.HandlePause)
			r.Post("/resume", h.HandleResume)
			r.Post("/cancel", h.HandleCancel)
			r.Post("/complete", h.HandleComplete)

			r.Post("/days/{day}/actuals", h.HandleReportActuals)
			r.Get("/plans", h.HandleListPlans)
			r.Get("/versions", h.HandleListVersions)
			r.Get("/risk", h.HandleRisk)
		})
	})
}

// writeServiceError maps service sentinels onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, "not found")
	case errors.Is(err, campaign.ErrInvalidState):
		httputil.Unprocessable(w, err.Error())
	case errors.Is(err, campaign.ErrInvalidPlanParameters):
		httputil.Unprocessable(w, err.Error())
	case errors.Is(err, campaign.ErrConflict):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, ticket.ErrRateLimited):
		httputil.TooManyRequests(w, "external service rate limit reached, retry later")
	case errors.Is(err, ticket.ErrUnavailable):
		httputil.Error(w, http.StatusBadGateway, "external service unavailable")
	default:
		httputil.InternalError(w, err)
	}
}

func (h *CampaignHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input campaign.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	c, err := h.svc.Create(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, c)
}

func (h *CampaignHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	campaigns, total, err := h.svc.List(r.Context(), campaign.ListFilter{
		AppID:  q.Get("app_id"),
		Status: q.Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"campaigns": campaigns, "total": total})
}

func (h *CampaignHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *CampaignHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var u campaign.UpdateFields
	if !httputil.Decode(w, r, &u) {
		return
	}
	if err := h.svc.Update(r.Context(), chi.URLParam(r, "campaignID"), u); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "updated"})
}

func (h *CampaignHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "campaignID")); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *CampaignHandler) HandleSubmitForReview(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.SubmitForReview(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, v)
}

func (h *CampaignHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Approve(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, v)
}

func (h *CampaignHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Start(r.Context(), chi.URLParam(r, "campaignID")); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": string(domain.CampaignActive)})
}

func (h *CampaignHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Pause(r.Context(), chi.URLParam(r, "campaignID")); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": string(domain.CampaignPaused)})
}

func (h *CampaignHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Resume(r.Context(), chi.URLParam(r, "campaignID")); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": string(domain.CampaignActive)})
}

func (h *CampaignHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cancel(r.Context(), chi.URLParam(r, "campaignID")); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": string(domain.CampaignCancelled)})
}

func (h *CampaignHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Complete(r.Context(), chi.URLParam(r, "campaignID")); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": string(domain.CampaignCompleted)})
}

func (h *CampaignHandler) HandleReportActuals(w http.ResponseWriter, r *http.Request) {
	day, err := strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil {
		httputil.BadRequest(w, "day must be an integer")
		return
	}
	var rep campaign.ActualsReport
	if !httputil.Decode(w, r, &rep) {
		return
	}
	if err := h.svc.ReportDailyActuals(r.Context(), chi.URLParam(r, "campaignID"), day, rep); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "recorded"})
}

func (h *CampaignHandler) HandleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.svc.ListPlans(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"plans": plans})
}

func (h *CampaignHandler) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.svc.ListVersions(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"versions": versions})
}

func (h *CampaignHandler) HandleRisk(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "campaignID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	assessment, err := h.risk.AssessCampaign(r.Context(), c)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, assessment)
}
