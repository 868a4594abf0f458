package campaign

import (
	"context"
	"time"

	"github.com/ignite/rankpush/internal/domain"
)

// Repository defines the data access contract for campaigns and their
// daily plans. Implementations must be safe for concurrent use, and the
// multi-write methods (Create, TransitionWithSnapshot, Activate,
// ReportActuals) must be atomic: either every write lands or none do.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a campaign together with its generated daily
	// plans in one atomic unit.
	Create(ctx context.Context, c *domain.Campaign, plans []domain.DailyPlan) error

	// Update patches mutable fields. Only non-nil fields apply.
	Update(ctx context.Context, id string, u UpdateFields) error

	// Delete removes a campaign and its plans. The service guards
	// against deleting active campaigns before calling this.
	Delete(ctx context.Context, id string) error

	// UpdateStatus performs a guarded status transition: the row is
	// only updated when its current status equals u.From, together
	// with any date fields in the same statement. A status mismatch
	// returns ErrInvalidState; a missing row returns ErrNotFound.
	UpdateStatus(ctx context.Context, id string, u StatusUpdate) error

	// TransitionWithSnapshot atomically writes a version snapshot of
	// the campaign plus its plans and advances the status, in one
	// transaction. A version-number race returns ErrConflict and the
	// status is left unchanged.
	TransitionWithSnapshot(ctx context.Context, id string, from, to domain.CampaignStatus) (*domain.CampaignVersion, error)

	// Activate transitions to active, setting start/end dates and
	// stamping each plan day's calendar date, atomically. When
	// setDates is false (resume) dates are left untouched.
	Activate(ctx context.Context, id string, from domain.CampaignStatus, setDates bool, start, end time.Time) error

	// ReportActuals applies a last-write-wins update to one plan day
	// and recomputes the campaign's completed installs and spent
	// budget as full sums over all plans, in one transaction.
	ReportActuals(ctx context.Context, campaignID string, day int, rep ActualsReport) error

	// ListPlans returns the campaign's daily plans ordered by day.
	ListPlans(ctx context.Context, campaignID string) ([]domain.DailyPlan, error)

	// CountPlans returns how many plan days exist for the campaign.
	CountPlans(ctx context.Context, campaignID string) (int, error)

	// ListVersions returns the campaign's snapshots, newest first.
	ListVersions(ctx context.Context, campaignID string) ([]domain.CampaignVersion, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	AppID  string
	Status string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a campaign patch.
// Nil fields are not applied.
type UpdateFields struct {
	Name            *string        `json:"name"`
	Keywords        []string       `json:"keywords"`
	TargetPositions map[string]int `json:"target_positions"`
	TotalBudget     *float64       `json:"total_budget"`
	CostPerInstall  *float64       `json:"cost_per_install"`
	Tags            []string       `json:"tags"`
	Notes           *string        `json:"notes"`
}

// StatusUpdate describes a guarded status transition and the date
// fields written alongside it.
type StatusUpdate struct {
	From        domain.CampaignStatus
	To          domain.CampaignStatus
	CompletedAt *time.Time
}

// ActualsReport is one execution report for a plan day.
type ActualsReport struct {
	ActualInstalls int                    `json:"actual_installs"`
	Cost           float64                `json:"cost"`
	Status         domain.DailyPlanStatus `json:"status"`
}
