package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a push campaign.
type CampaignStatus string

const (
	CampaignDraft      CampaignStatus = "draft"
	CampaignReview     CampaignStatus = "review"
	CampaignApproved   CampaignStatus = "approved"
	CampaignActive     CampaignStatus = "active"
	CampaignPaused     CampaignStatus = "paused"
	CampaignCompleted  CampaignStatus = "completed"
	CampaignCancelled  CampaignStatus = "cancelled"
	CampaignPessimized CampaignStatus = "pessimized"
)

// CampaignStrategy enumerates the install pacing strategies.
type CampaignStrategy string

const (
	StrategyGradual      CampaignStrategy = "gradual"
	StrategyAggressive   CampaignStrategy = "aggressive"
	StrategyConservative CampaignStrategy = "conservative"
	StrategyCustom       CampaignStrategy = "custom"
)

// Campaign represents an incentivized install campaign targeting keyword
// positions for one app. CompletedInstalls and SpentBudget are derived:
// they are always recomputed as sums over the campaign's daily plans,
// never incremented in place.
type Campaign struct {
	ID                string           `json:"id" db:"id"`
	AppID             string           `json:"app_id" db:"app_id"`
	Name              string           `json:"name" db:"name"`
	Strategy          CampaignStrategy `json:"strategy" db:"strategy"`
	Keywords          []string         `json:"keywords" db:"keywords"`
	TargetPositions   map[string]int   `json:"target_positions" db:"target_positions"`
	TotalBudget       float64          `json:"total_budget" db:"total_budget"`
	CostPerInstall    float64          `json:"cost_per_install" db:"cost_per_install"`
	TotalInstalls     int              `json:"total_installs" db:"total_installs"`
	CompletedInstalls int              `json:"completed_installs" db:"completed_installs"`
	SpentBudget       float64          `json:"spent_budget" db:"spent_budget"`
	DurationDays      int              `json:"duration_days" db:"duration_days"`
	StartDate         *time.Time       `json:"start_date" db:"start_date"`
	EndDate           *time.Time       `json:"end_date" db:"end_date"`
	Status            CampaignStatus   `json:"status" db:"status"`
	Tags              []string         `json:"tags" db:"tags"`
	Notes             string           `json:"notes" db:"notes"`
	CompletedAt       *time.Time       `json:"completed_at" db:"completed_at"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignCompleted || c.Status == CampaignCancelled ||
		c.Status == CampaignPessimized
}

// Editable returns true if mutable fields may still be patched.
// Once a campaign is approved its parameters are frozen.
func (c *Campaign) Editable() bool {
	return c.Status == CampaignDraft || c.Status == CampaignReview
}

// DailyPlanStatus enumerates the execution states of a single plan day.
type DailyPlanStatus string

const (
	PlanPending    DailyPlanStatus = "pending"
	PlanSent       DailyPlanStatus = "sent"
	PlanInProgress DailyPlanStatus = "in_progress"
	PlanCompleted  DailyPlanStatus = "completed"
	PlanSkipped    DailyPlanStatus = "skipped"
	PlanFailed     DailyPlanStatus = "failed"
)

// DailyPlan is one day of a campaign's install ramp. Unique per
// (campaign, day) with day in [1, durationDays].
type DailyPlan struct {
	ID              string          `json:"id" db:"id"`
	CampaignID      string          `json:"campaign_id" db:"campaign_id"`
	Day             int             `json:"day" db:"day"`
	Date            time.Time       `json:"date" db:"date"`
	PlannedInstalls int             `json:"planned_installs" db:"planned_installs"`
	ActualInstalls  int             `json:"actual_installs" db:"actual_installs"`
	Cost            float64         `json:"cost" db:"cost"`
	Status          DailyPlanStatus `json:"status" db:"status"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// CampaignVersion is an immutable audit snapshot of a campaign and its
// daily plans, taken on the review and approve transitions. Version
// numbers increase monotonically per campaign and rows are never
// mutated after creation.
type CampaignVersion struct {
	ID         string    `json:"id" db:"id"`
	CampaignID string    `json:"campaign_id" db:"campaign_id"`
	Version    int       `json:"version" db:"version"`
	Snapshot   []byte    `json:"snapshot" db:"snapshot"` // JSON: campaign + plans
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
