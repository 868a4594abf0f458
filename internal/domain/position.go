package domain

import (
	"time"
)

// PositionTrend classifies the direction of a keyword's rank movement
// between the two most recent observations.
type PositionTrend string

const (
	TrendNew     PositionTrend = "new"
	TrendRising  PositionTrend = "rising"
	TrendFalling PositionTrend = "falling"
	TrendStable  PositionTrend = "stable"
	TrendLost    PositionTrend = "lost"
)

// PositionSnapshot is one observation of an (app, keyword, country) rank.
// Rows are append-only. A nil Position means the app was not ranked for
// the keyword at capture time. Change is previous − current, so a
// positive change is an improvement; nil when either side is unranked.
type PositionSnapshot struct {
	ID               string        `json:"id" db:"id"`
	AppID            string        `json:"app_id" db:"app_id"`
	Keyword          string        `json:"keyword" db:"keyword"`
	Country          string        `json:"country" db:"country"`
	Position         *int          `json:"position" db:"position"`
	PreviousPosition *int          `json:"previous_position" db:"previous_position"`
	Change           *int          `json:"change" db:"change"`
	Trend            PositionTrend `json:"trend" db:"trend"`
	CheckedAt        time.Time     `json:"checked_at" db:"checked_at"`
}

// AppKeywordTracking is the mutable per-(app, keyword) rollup, updated
// atomically each time a new snapshot lands for the pair.
type AppKeywordTracking struct {
	ID              string        `json:"id" db:"id"`
	AppID           string        `json:"app_id" db:"app_id"`
	Keyword         string        `json:"keyword" db:"keyword"`
	Country         string        `json:"country" db:"country"`
	CurrentPosition *int          `json:"current_position" db:"current_position"`
	BestPosition    *int          `json:"best_position" db:"best_position"`
	WorstPosition   *int          `json:"worst_position" db:"worst_position"`
	Trend           PositionTrend `json:"trend" db:"trend"`
	LastCheckedAt   *time.Time    `json:"last_checked_at" db:"last_checked_at"`
}

// TrendFor classifies rank movement from the previous and new positions.
// It covers all four nil/non-nil combinations: NEW when the keyword
// enters the rankings, LOST when it leaves, and RISING/FALLING/STABLE
// by the sign of previous − new otherwise.
func TrendFor(previous, current *int) PositionTrend {
	switch {
	case previous == nil && current == nil:
		return TrendStable
	case previous == nil:
		return TrendNew
	case current == nil:
		return TrendLost
	case *previous-*current > 0:
		return TrendRising
	case *previous-*current < 0:
		return TrendFalling
	default:
		return TrendStable
	}
}

// PositionChange returns previous − current, or nil when either side is
// unranked.
func PositionChange(previous, current *int) *int {
	if previous == nil || current == nil {
		return nil
	}
	d := *previous - *current
	return &d
}
