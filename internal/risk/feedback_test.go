package risk

import (
	"context"
	"testing"
	"time"

	"github.com/ignite/rankpush/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeApps struct{ info AppInfo }

func (f *fakeApps) AppInfo(_ context.Context, _ string) (*AppInfo, error) {
	cp := f.info
	return &cp, nil
}

type fakePositions struct {
	start, final *float64
}

func (f *fakePositions) PositionSpan(_ context.Context, _ string, _ []string, _ time.Time) (*float64, *float64, error) {
	return f.start, f.final, nil
}

type fakeEvents struct{ event *domain.PessimizationEvent }

func (f *fakeEvents) FirstEventSince(_ context.Context, _ string, _ time.Time) (*domain.PessimizationEvent, error) {
	return f.event, nil
}

func fpos(v float64) *float64 { return &v }

func activeCampaign(start time.Time) *domain.Campaign {
	return &domain.Campaign{
		ID:           "c-1",
		AppID:        "app-1",
		Strategy:     domain.StrategyGradual,
		Keywords:     []string{"habit tracker", "workout log"},
		DurationDays: 10,
		StartDate:    &start,
	}
}

func plansWithActuals(actuals ...int) []domain.DailyPlan {
	plans := make([]domain.DailyPlan, len(actuals))
	for i, a := range actuals {
		plans[i] = domain.DailyPlan{Day: i + 1, PlannedInstalls: 10, ActualInstalls: a}
	}
	return plans
}

func TestRecorderBuildsSuccessRecord(t *testing.T) {
	repo := newMemRecords()
	start := time.Now().Add(-10 * 24 * time.Hour)
	rec := NewRecorder(repo,
		&fakeApps{info: AppInfo{Niche: "fitness", AppAgeDays: 200, OrganicDownloads: 5000}},
		&fakePositions{start: fpos(40), final: fpos(12)},
		&fakeEvents{})

	rec.CampaignFinished(context.Background(), activeCampaign(start),
		plansWithActuals(2, 5, 7, 10, 10, 10, 10, 10, 10, 10))

	recs, err := repo.RecentByNiche(context.Background(), "fitness", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	got := recs[0]
	assert.Equal(t, "c-1", got.CampaignID)
	assert.Equal(t, 84, got.TotalInstalls)
	assert.InDelta(t, 8.4, got.InstallVelocity, 0.001)
	assert.Equal(t, 10, got.PeakDailyInstalls)
	// Days 1-3 ran below 80% of the peak (8 installs).
	assert.Equal(t, 3, got.RampUpDays)
	assert.Equal(t, domain.OutcomeSuccess, got.Outcome)
	require.NotNil(t, got.PositionGain)
	assert.InDelta(t, 28.0, *got.PositionGain, 0.001)
	assert.False(t, got.Pessimized)
	assert.Len(t, got.RampProfile, 10)
}

func TestRecorderPessimizedOutcome(t *testing.T) {
	repo := newMemRecords()
	start := time.Now().Add(-10 * 24 * time.Hour)
	detected := start.Add(4*24*time.Hour + time.Hour)
	rec := NewRecorder(repo,
		&fakeApps{info: AppInfo{Niche: "fitness"}},
		&fakePositions{start: fpos(20), final: fpos(8)},
		&fakeEvents{event: &domain.PessimizationEvent{
			Type:       domain.PessimizationPositionDrop,
			DetectedAt: detected,
		}})

	rec.CampaignFinished(context.Background(), activeCampaign(start), plansWithActuals(10, 10, 10))

	recs, _ := repo.RecentByNiche(context.Background(), "fitness", 10)
	require.Len(t, recs, 1)
	got := recs[0]
	// Pessimization trumps a positive position gain.
	assert.Equal(t, domain.OutcomePessimized, got.Outcome)
	assert.True(t, got.Pessimized)
	require.NotNil(t, got.PessimizationDay)
	assert.Equal(t, 5, *got.PessimizationDay)
}

func TestRecorderUnknownWithoutPositionData(t *testing.T) {
	repo := newMemRecords()
	start := time.Now().Add(-24 * time.Hour)
	rec := NewRecorder(repo,
		&fakeApps{info: AppInfo{Niche: "fitness"}},
		&fakePositions{}, // no observations
		&fakeEvents{})

	rec.CampaignFinished(context.Background(), activeCampaign(start), plansWithActuals(5, 5))

	recs, _ := repo.RecentByNiche(context.Background(), "fitness", 10)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.OutcomeUnknown, recs[0].Outcome)
	assert.Nil(t, recs[0].PositionGain)
}

func TestRecordVisibleToNextAssessment(t *testing.T) {
	repo := newMemRecords()
	start := time.Now().Add(-5 * 24 * time.Hour)
	rec := NewRecorder(repo,
		&fakeApps{info: AppInfo{Niche: "solo"}},
		&fakePositions{start: fpos(50), final: fpos(45)},
		&fakeEvents{})

	a := NewAssessor(repo, 50)
	before, err := a.Assess(context.Background(), Candidate{Niche: "solo", Strategy: domain.StrategyConservative})
	require.NoError(t, err)
	assert.Equal(t, 5, before.Score) // cold start

	rec.CampaignFinished(context.Background(), activeCampaign(start), plansWithActuals(10))

	after, err := a.Assess(context.Background(), Candidate{Niche: "solo", Strategy: domain.StrategyConservative})
	require.NoError(t, err)
	assert.Zero(t, after.Score) // history exists now, nothing pessimized
}

func TestRampUpDaysEdgeCases(t *testing.T) {
	assert.Zero(t, RampUpDays(nil))
	assert.Zero(t, RampUpDays([]int{0, 0, 0}))
	assert.Zero(t, RampUpDays([]int{10, 10, 10}))
	assert.Equal(t, 2, RampUpDays([]int{1, 2, 10, 10}))
	// Peak never reached again counts every day before it.
	assert.Equal(t, 1, RampUpDays([]int{3, 10, 5}))
}

func TestVelocityGuardsZeroDuration(t *testing.T) {
	assert.Zero(t, Velocity(100, 0))
	assert.InDelta(t, 12.5, Velocity(100, 8), 0.001)
}
