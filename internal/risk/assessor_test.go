package risk

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ignite/rankpush/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRecords is an in-memory RecordRepo for unit testing.
type memRecords struct {
	mu   sync.Mutex
	recs map[string][]domain.PushLearningRecord // by niche, newest first
}

func newMemRecords() *memRecords {
	return &memRecords{recs: make(map[string][]domain.PushLearningRecord)}
}

func (m *memRecords) Insert(_ context.Context, rec *domain.PushLearningRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.Niche] = append([]domain.PushLearningRecord{*rec}, m.recs[rec.Niche]...)
	return nil
}

func (m *memRecords) RecentByNiche(_ context.Context, niche string, limit int) ([]domain.PushLearningRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.recs[niche]
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return append([]domain.PushLearningRecord(nil), recs...), nil
}

func seedNiche(repo *memRecords, niche string, total, pessimized int, dailyInstalls float64, age time.Duration) {
	for i := 0; i < total; i++ {
		repo.Insert(context.Background(), &domain.PushLearningRecord{
			ID:            niche + "-" + time.Now().Format("150405.000000000") + string(rune('a'+i)),
			Niche:         niche,
			Pessimized:    i < pessimized,
			DailyInstalls: dailyInstalls,
			CreatedAt:     time.Now().Add(-age),
		})
	}
}

func TestPinnedNicheHistoryScenario(t *testing.T) {
	repo := newMemRecords()
	// 10 records, 4 pessimized (40% rate), all well outside the 30-day
	// recency window, at a volume not comparable to the candidate's.
	seedNiche(repo, "fitness", 10, 4, 400, 60*24*time.Hour)

	a := NewAssessor(repo, 50)
	got, err := a.Assess(context.Background(), Candidate{
		Niche:                "fitness",
		Strategy:             domain.StrategyConservative,
		AvgKeywordDifficulty: 30,
		DailyInstalls:        50,
	})
	require.NoError(t, err)

	// Only the niche-history term applies: rate 40% > 30% → +25.
	// Conservative strategy, difficulty 30, volume 50 contribute
	// nothing, and cold-start does not apply with history present.
	assert.Equal(t, 25, got.Score)
	assert.Equal(t, domain.RiskMedium, got.Level)
	assert.NotEmpty(t, got.Recommendation)
}

func TestColdStartPenalty(t *testing.T) {
	a := NewAssessor(newMemRecords(), 50)
	got, err := a.Assess(context.Background(), Candidate{
		Niche:    "brand-new",
		Strategy: domain.StrategyConservative,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, got.Score)
	assert.Equal(t, domain.RiskLow, got.Level)
}

func TestScoreMonotonicInVolume(t *testing.T) {
	a := NewAssessor(newMemRecords(), 50)
	prev := -1
	for _, volume := range []float64{50, 101, 150, 201, 500} {
		got, err := a.Assess(context.Background(), Candidate{
			Niche:         "v",
			Strategy:      domain.StrategyGradual,
			DailyInstalls: volume,
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Score, prev, "volume %v decreased the score", volume)
		prev = got.Score
	}
}

func TestScoreMonotonicInDifficulty(t *testing.T) {
	a := NewAssessor(newMemRecords(), 50)
	prev := -1
	for _, difficulty := range []float64{10, 41, 60, 71, 95} {
		got, err := a.Assess(context.Background(), Candidate{
			Niche:                "d",
			Strategy:             domain.StrategyGradual,
			AvgKeywordDifficulty: difficulty,
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Score, prev, "difficulty %v decreased the score", difficulty)
		prev = got.Score
	}
}

func TestStrategyWeights(t *testing.T) {
	a := NewAssessor(newMemRecords(), 50)
	expect := map[domain.CampaignStrategy]int{
		domain.StrategyConservative: 5, // cold start only
		domain.StrategyGradual:      15,
		domain.StrategyCustom:       20,
		domain.StrategyAggressive:   35,
	}
	for strategy, want := range expect {
		got, err := a.Assess(context.Background(), Candidate{
			Niche:    "s-" + string(strategy),
			Strategy: strategy,
		})
		require.NoError(t, err)
		assert.Equal(t, want, got.Score, "strategy %s", strategy)
	}
}

func TestRecencyAndSimilarityTerms(t *testing.T) {
	repo := newMemRecords()
	// 4 of 8 pessimized at a comparable volume, one of them recent.
	seedNiche(repo, "hot", 8, 4, 100, 10*24*time.Hour)

	a := NewAssessor(repo, 50)
	got, err := a.Assess(context.Background(), Candidate{
		Niche:         "hot",
		Strategy:      domain.StrategyConservative,
		DailyInstalls: 100, // within ±50% of every record
	})
	require.NoError(t, err)

	// niche history 50% → +25, similarity 50% → +15, recency → +10.
	assert.Equal(t, 50, got.Score)
	assert.Equal(t, domain.RiskHigh, got.Level)
}

func TestScoreClamped(t *testing.T) {
	repo := newMemRecords()
	seedNiche(repo, "doom", 10, 9, 300, 5*24*time.Hour)

	a := NewAssessor(repo, 50)
	got, err := a.Assess(context.Background(), Candidate{
		Niche:                "doom",
		Strategy:             domain.StrategyAggressive,
		AvgKeywordDifficulty: 90,
		DailyInstalls:        300,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, got.Score)
	assert.Equal(t, domain.RiskCritical, got.Level)
}

func TestWindowBoundsHistory(t *testing.T) {
	repo := newMemRecords()
	// Old pessimized records beyond the window must not count: insert
	// 5 clean records on top of 10 pessimized ones with window 5.
	seedNiche(repo, "w", 10, 10, 400, 90*24*time.Hour)
	seedNiche(repo, "w", 5, 0, 400, 40*24*time.Hour)

	a := NewAssessor(repo, 5)
	stats, err := a.NicheStats(context.Background(), "w", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Records)
	assert.Zero(t, stats.Pessimized)
}

func TestClassifyOutcome(t *testing.T) {
	gain := func(v float64) *float64 { return &v }
	cases := []struct {
		pessimized bool
		gain       *float64
		want       domain.CampaignOutcome
	}{
		{true, gain(10), domain.OutcomePessimized},
		{true, nil, domain.OutcomePessimized},
		{false, nil, domain.OutcomeUnknown},
		{false, gain(6), domain.OutcomeSuccess},
		{false, gain(5), domain.OutcomePartial},
		{false, gain(0.5), domain.OutcomePartial},
		{false, gain(0), domain.OutcomeFailed},
		{false, gain(-3), domain.OutcomeFailed},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyOutcome(tc.pessimized, tc.gain))
	}
}
