package campaign

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/rankpush/internal/domain"
)

// Feedback receives terminated campaigns so their outcome can be folded
// into niche risk history. Implementations are best-effort: a failure
// here must never block or roll back the transition that triggered it.
type Feedback interface {
	CampaignFinished(ctx context.Context, c *domain.Campaign, plans []domain.DailyPlan)
}

// Service implements campaign lifecycle business logic: the status
// state machine with its guards, ramp plan generation, and daily
// reconciliation. All public methods are safe for concurrent use if the
// underlying repository is concurrency-safe.
type Service struct {
	repo     Repository
	feedback Feedback
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SetFeedback wires the learning feedback loop. Optional.
func (s *Service) SetFeedback(f Feedback) { s.feedback = f }

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	AppID           string                  `json:"app_id"`
	Name            string                  `json:"name"`
	Strategy        domain.CampaignStrategy `json:"strategy"`
	Keywords        []string                `json:"keywords"`
	TargetPositions map[string]int          `json:"target_positions"`
	TotalBudget     float64                 `json:"total_budget"`
	CostPerInstall  float64                 `json:"cost_per_install"`
	TotalInstalls   int                     `json:"total_installs"`
	DurationDays    int                     `json:"duration_days"`
	CustomWeights   []float64               `json:"custom_weights,omitempty"`
	Tags            []string                `json:"tags"`
	Notes           string                  `json:"notes"`
}

// Create validates input, generates the ramp plan, and persists the
// campaign in draft status with its daily plans in one atomic unit.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Campaign, error) {
	if input.AppID == "" {
		return nil, fmt.Errorf("app_id is required")
	}
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if len(input.Keywords) == 0 {
		return nil, fmt.Errorf("at least one target keyword is required")
	}

	planned, err := BuildRampPlan(input.TotalInstalls, input.DurationDays,
		input.Strategy, input.CustomWeights, input.CostPerInstall)
	if err != nil {
		return nil, err
	}

	c := &domain.Campaign{
		ID:              uuid.New().String(),
		AppID:           input.AppID,
		Name:            input.Name,
		Strategy:        input.Strategy,
		Keywords:        input.Keywords,
		TargetPositions: input.TargetPositions,
		TotalBudget:     input.TotalBudget,
		CostPerInstall:  input.CostPerInstall,
		TotalInstalls:   input.TotalInstalls,
		DurationDays:    input.DurationDays,
		Status:          domain.CampaignDraft,
		Tags:            input.Tags,
		Notes:           input.Notes,
	}

	plans := make([]domain.DailyPlan, len(planned))
	for i, p := range planned {
		plans[i] = domain.DailyPlan{
			ID:              uuid.New().String(),
			CampaignID:      c.ID,
			Day:             p.Day,
			PlannedInstalls: p.Installs,
			Cost:            p.Cost,
			Status:          domain.PlanPending,
		}
	}

	if err := s.repo.Create(ctx, c, plans); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, f)
}

// Update patches mutable fields. Permitted only in draft or review.
func (s *Service) Update(ctx context.Context, id string, u UpdateFields) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !c.Editable() {
		return fmt.Errorf("%w: cannot edit campaign in status %s", ErrInvalidState, c.Status)
	}
	return s.repo.Update(ctx, id, u)
}

// Delete removes a campaign. Forbidden while active.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == domain.CampaignActive {
		return fmt.Errorf("%w: cannot delete an active campaign", ErrInvalidState)
	}
	return s.repo.Delete(ctx, id)
}

// SubmitForReview transitions draft → review. Requires at least one
// daily plan; the version snapshot and the status change land in one
// transaction.
func (s *Service) SubmitForReview(ctx context.Context, id string) (*domain.CampaignVersion, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignDraft {
		return nil, fmt.Errorf("%w: submit-for-review from %s", ErrInvalidState, c.Status)
	}
	n, err := s.repo.CountPlans(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: campaign has no daily plans", ErrInvalidState)
	}
	return s.repo.TransitionWithSnapshot(ctx, id, domain.CampaignDraft, domain.CampaignReview)
}

// Approve transitions review → approved with a version snapshot.
func (s *Service) Approve(ctx context.Context, id string) (*domain.CampaignVersion, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignReview {
		return nil, fmt.Errorf("%w: approve from %s", ErrInvalidState, c.Status)
	}
	return s.repo.TransitionWithSnapshot(ctx, id, domain.CampaignReview, domain.CampaignApproved)
}

// Start transitions approved → active. On first start the start date is
// set to now and the end date to start + duration; plan days get their
// calendar dates stamped in the same transaction.
func (s *Service) Start(ctx context.Context, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignApproved {
		return fmt.Errorf("%w: start from %s", ErrInvalidState, c.Status)
	}

	setDates := c.StartDate == nil
	start := time.Now().UTC()
	end := start.AddDate(0, 0, c.DurationDays)
	if !setDates {
		start, end = *c.StartDate, *c.EndDate
	}
	return s.repo.Activate(ctx, id, domain.CampaignApproved, setDates, start, end)
}

// Pause transitions active → paused.
func (s *Service) Pause(ctx context.Context, id string) error {
	return s.transition(ctx, id, domain.CampaignActive, domain.CampaignPaused, nil)
}

// Resume transitions paused → active. Dates are left untouched.
func (s *Service) Resume(ctx context.Context, id string) error {
	return s.repo.Activate(ctx, id, domain.CampaignPaused, false, time.Time{}, time.Time{})
}

// Cancel transitions active or paused → cancelled and feeds the outcome
// to the learning loop.
func (s *Service) Cancel(ctx context.Context, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignActive && c.Status != domain.CampaignPaused {
		return fmt.Errorf("%w: cancel from %s", ErrInvalidState, c.Status)
	}
	if err := s.transition(ctx, id, c.Status, domain.CampaignCancelled, nil); err != nil {
		return err
	}
	s.notifyFinished(ctx, id)
	return nil
}

// Complete transitions active → completed, stamping completedAt, and
// feeds the outcome to the learning loop.
func (s *Service) Complete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	if err := s.transition(ctx, id, domain.CampaignActive, domain.CampaignCompleted, &now); err != nil {
		return err
	}
	s.notifyFinished(ctx, id)
	return nil
}

// MarkPessimized transitions active → pessimized. Called by the
// pessimization detector when an anomaly hits an app with a running
// campaign.
func (s *Service) MarkPessimized(ctx context.Context, id string) error {
	now := time.Now().UTC()
	if err := s.transition(ctx, id, domain.CampaignActive, domain.CampaignPessimized, &now); err != nil {
		return err
	}
	s.notifyFinished(ctx, id)
	return nil
}

func (s *Service) transition(ctx context.Context, id string, from, to domain.CampaignStatus, completedAt *time.Time) error {
	return s.repo.UpdateStatus(ctx, id, StatusUpdate{From: from, To: to, CompletedAt: completedAt})
}

// notifyFinished hands the terminal campaign to the feedback loop.
// Best-effort: failures are logged and never surfaced.
func (s *Service) notifyFinished(ctx context.Context, id string) {
	if s.feedback == nil {
		return
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		log.Printf("[campaign.Service] feedback fetch %s: %v", id, err)
		return
	}
	plans, err := s.repo.ListPlans(ctx, id)
	if err != nil {
		log.Printf("[campaign.Service] feedback plans %s: %v", id, err)
		return
	}
	s.feedback.CampaignFinished(ctx, c, plans)
}

// ReportDailyActuals records execution results for one plan day and
// recomputes the campaign aggregates as full sums, so duplicate or
// out-of-order reports stay consistent.
func (s *Service) ReportDailyActuals(ctx context.Context, campaignID string, day int, rep ActualsReport) error {
	if day < 1 {
		return fmt.Errorf("%w: day %d out of range", ErrInvalidPlanParameters, day)
	}
	if rep.Status == "" {
		rep.Status = domain.PlanCompleted
	}
	return s.repo.ReportActuals(ctx, campaignID, day, rep)
}

// ListPlans returns a campaign's daily plans ordered by day.
func (s *Service) ListPlans(ctx context.Context, campaignID string) ([]domain.DailyPlan, error) {
	return s.repo.ListPlans(ctx, campaignID)
}

// ListVersions returns a campaign's audit snapshots, newest first.
func (s *Service) ListVersions(ctx context.Context, campaignID string) ([]domain.CampaignVersion, error) {
	return s.repo.ListVersions(ctx, campaignID)
}
