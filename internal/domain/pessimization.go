package domain

import (
	"time"
)

// PessimizationType enumerates the kinds of ranking penalty incidents
// the detector can flag.
type PessimizationType string

const (
	PessimizationPositionDrop    PessimizationType = "position_drop"
	PessimizationCompleteDeindex PessimizationType = "complete_deindex"
	PessimizationCategoryDrop    PessimizationType = "category_drop"
	PessimizationReviewBomb      PessimizationType = "review_bomb"
	PessimizationAccountWarning  PessimizationType = "account_warning"
)

// PessimizationSeverity grades an incident by drop magnitude.
type PessimizationSeverity string

const (
	SeverityMinor    PessimizationSeverity = "minor"
	SeverityModerate PessimizationSeverity = "moderate"
	SeveritySevere   PessimizationSeverity = "severe"
	SeverityCritical PessimizationSeverity = "critical"
)

// PessimizationStatus tracks an incident through triage.
type PessimizationStatus string

const (
	PessimizationDetected   PessimizationStatus = "detected"
	PessimizationAnalyzing  PessimizationStatus = "analyzing"
	PessimizationMitigating PessimizationStatus = "mitigating"
	PessimizationResolved   PessimizationStatus = "resolved"
	PessimizationAccepted   PessimizationStatus = "accepted"
)

// PessimizationEvent is one detected ranking anomaly for an app. Events
// are created one per app per distinct incident, aggregating the
// affected keyword count and average drop across the tracked set.
type PessimizationEvent struct {
	ID               string                `json:"id" db:"id"`
	AppID            string                `json:"app_id" db:"app_id"`
	CampaignID       *string               `json:"campaign_id" db:"campaign_id"`
	Type             PessimizationType     `json:"type" db:"type"`
	Severity         PessimizationSeverity `json:"severity" db:"severity"`
	Status           PessimizationStatus   `json:"status" db:"status"`
	AffectedKeywords int                   `json:"affected_keywords" db:"affected_keywords"`
	AvgDrop          float64               `json:"avg_drop" db:"avg_drop"`
	DetectedAt       time.Time             `json:"detected_at" db:"detected_at"`
	ResolvedAt       *time.Time            `json:"resolved_at" db:"resolved_at"`
	Notes            string                `json:"notes" db:"notes"`
}

// Open reports whether the incident still needs attention.
func (e *PessimizationEvent) Open() bool {
	return e.Status != PessimizationResolved && e.Status != PessimizationAccepted
}
