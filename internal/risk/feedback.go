package risk

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/rankpush/internal/domain"
)

// AppDirectory supplies the app metadata a learning record carries.
// App CRUD itself lives outside this engine.
type AppDirectory interface {
	AppInfo(ctx context.Context, appID string) (*AppInfo, error)
}

// AppInfo is the slice of app metadata the feedback loop records.
type AppInfo struct {
	Niche                string
	AppAgeDays           int
	OrganicDownloads     int
	CategoryRank         *int
	AvgKeywordDifficulty float64
	AvgKeywordTraffic    float64
}

// PositionSource reports average start/final positions for a campaign's
// target keywords over its run window. Nil averages mean no position
// data was available.
type PositionSource interface {
	PositionSpan(ctx context.Context, appID string, keywords []string, since time.Time) (start, final *float64, err error)
}

// EventSource reports pessimization incidents for an app since a time.
type EventSource interface {
	FirstEventSince(ctx context.Context, appID string, since time.Time) (*domain.PessimizationEvent, error)
}

// Recorder derives a write-once learning record from each terminated
// campaign. It satisfies the campaign service's Feedback interface and
// is strictly best-effort: any failure is logged and swallowed so it
// can never block a lifecycle transition.
type Recorder struct {
	records   RecordRepo
	apps      AppDirectory
	positions PositionSource
	events    EventSource
}

// NewRecorder wires the feedback loop.
func NewRecorder(records RecordRepo, apps AppDirectory, positions PositionSource, events EventSource) *Recorder {
	return &Recorder{records: records, apps: apps, positions: positions, events: events}
}

// CampaignFinished builds and appends the outcome record for a
// terminal campaign. The record is immediately visible to subsequent
// risk assessments for the niche.
func (r *Recorder) CampaignFinished(ctx context.Context, c *domain.Campaign, plans []domain.DailyPlan) {
	rec, err := r.buildRecord(ctx, c, plans)
	if err != nil {
		log.Printf("[risk.Recorder] derive record for campaign %s: %v", c.ID, err)
		return
	}
	if err := r.records.Insert(ctx, rec); err != nil {
		log.Printf("[risk.Recorder] insert record for campaign %s: %v", c.ID, err)
	}
}

func (r *Recorder) buildRecord(ctx context.Context, c *domain.Campaign, plans []domain.DailyPlan) (*domain.PushLearningRecord, error) {
	info, err := r.apps.AppInfo(ctx, c.AppID)
	if err != nil {
		return nil, err
	}

	totalActual := 0
	ramp := make([]domain.RampDay, 0, len(plans))
	actuals := make([]int, 0, len(plans))
	for _, p := range plans {
		totalActual += p.ActualInstalls
		ramp = append(ramp, domain.RampDay{Day: p.Day, Planned: p.PlannedInstalls, Actual: p.ActualInstalls})
		actuals = append(actuals, p.ActualInstalls)
	}

	rec := &domain.PushLearningRecord{
		ID:                   uuid.New().String(),
		CampaignID:           c.ID,
		Niche:                info.Niche,
		AppAgeDays:           info.AppAgeDays,
		OrganicDownloads:     info.OrganicDownloads,
		CategoryRank:         info.CategoryRank,
		AvgKeywordDifficulty: info.AvgKeywordDifficulty,
		AvgKeywordTraffic:    info.AvgKeywordTraffic,
		Strategy:             c.Strategy,
		TotalInstalls:        totalActual,
		DurationDays:         c.DurationDays,
		RampProfile:          ramp,
		InstallVelocity:      Velocity(totalActual, c.DurationDays),
		PeakDailyInstalls:    peak(actuals),
		RampUpDays:           RampUpDays(actuals),
	}
	rec.DailyInstalls = rec.InstallVelocity

	var gain *float64
	if c.StartDate != nil {
		start, final, err := r.positions.PositionSpan(ctx, c.AppID, c.Keywords, *c.StartDate)
		if err != nil {
			return nil, err
		}
		if start != nil && final != nil {
			g := *start - *final
			gain = &g
			s, f := int(math.Round(*start)), int(math.Round(*final))
			rec.StartPosition, rec.FinalPosition = &s, &f
		}

		ev, err := r.events.FirstEventSince(ctx, c.AppID, *c.StartDate)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			rec.Pessimized = true
			day := int(ev.DetectedAt.Sub(*c.StartDate).Hours()/24) + 1
			rec.PessimizationDay = &day
		}
	}
	rec.PositionGain = gain
	rec.Outcome = ClassifyOutcome(rec.Pessimized, gain)
	return rec, nil
}

// Velocity is total actual installs over the campaign duration.
func Velocity(totalInstalls, durationDays int) float64 {
	if durationDays <= 0 {
		return 0
	}
	return float64(totalInstalls) / float64(durationDays)
}

// RampUpDays counts the leading days that ran below 80% of the observed
// peak daily install count.
func RampUpDays(actuals []int) int {
	p := peak(actuals)
	if p == 0 {
		return 0
	}
	threshold := 0.8 * float64(p)
	for i, v := range actuals {
		if float64(v) >= threshold {
			return i
		}
	}
	return len(actuals)
}

func peak(actuals []int) int {
	max := 0
	for _, v := range actuals {
		if v > max {
			max = v
		}
	}
	return max
}

// ClassifyOutcome is the pure outcome rule: pessimized wins, otherwise
// position gain above 5 is a success, any positive gain is partial,
// non-positive is failed, and missing position data is unknown.
func ClassifyOutcome(pessimized bool, gain *float64) domain.CampaignOutcome {
	switch {
	case pessimized:
		return domain.OutcomePessimized
	case gain == nil:
		return domain.OutcomeUnknown
	case *gain > 5:
		return domain.OutcomeSuccess
	case *gain > 0:
		return domain.OutcomePartial
	default:
		return domain.OutcomeFailed
	}
}
