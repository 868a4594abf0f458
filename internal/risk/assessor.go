// Package risk scores candidate push campaigns against niche history
// and folds finished campaigns back into that history.
package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/rankpush/internal/domain"
)

// RecordRepo is the persistence contract for learning records. Records
// are write-once; RecentByNiche bounds the window read per assessment
// so cost stays flat as history grows.
type RecordRepo interface {
	Insert(ctx context.Context, rec *domain.PushLearningRecord) error
	RecentByNiche(ctx context.Context, niche string, limit int) ([]domain.PushLearningRecord, error)
}

// Candidate describes a campaign being scored before or during review.
type Candidate struct {
	Niche                string
	Strategy             domain.CampaignStrategy
	AvgKeywordDifficulty float64
	DailyInstalls        float64
}

// Assessor computes 0-100 risk scores from campaign parameters and
// recent niche history. Higher is riskier.
type Assessor struct {
	records RecordRepo
	window  int
	now     func() time.Time
}

// NewAssessor creates an assessor reading at most window records per
// niche (default 50).
func NewAssessor(records RecordRepo, window int) *Assessor {
	if window <= 0 {
		window = 50
	}
	return &Assessor{records: records, window: window, now: time.Now}
}

// SetNow overrides the clock (tests).
func (a *Assessor) SetNow(fn func() time.Time) { a.now = fn }

var recommendations = map[domain.RiskLevel]string{
	domain.RiskLow:      "Proceed as planned. Keep the standard position-check cadence.",
	domain.RiskMedium:   "Proceed with caution. Prefer a longer ramp and monitor positions daily.",
	domain.RiskHigh:     "Reduce daily volume or extend the duration before approving. Tighten position checks.",
	domain.RiskCritical: "Do not launch with these parameters. Rework the strategy and volume for this niche.",
}

// Assess scores the candidate. The score is an additive composition of
// strategy weight, keyword difficulty, daily volume, and niche history
// terms, clamped to [0,100].
func (a *Assessor) Assess(ctx context.Context, cand Candidate) (*domain.RiskAssessment, error) {
	stats, err := a.NicheStats(ctx, cand.Niche, cand.DailyInstalls)
	if err != nil {
		return nil, fmt.Errorf("niche stats for %q: %w", cand.Niche, err)
	}

	score := 0
	var factors []string
	add := func(points int, reason string) {
		score += points
		factors = append(factors, fmt.Sprintf("+%d %s", points, reason))
	}

	switch cand.Strategy {
	case domain.StrategyAggressive:
		add(30, "aggressive pacing strategy")
	case domain.StrategyCustom:
		add(15, "custom pacing strategy")
	case domain.StrategyGradual:
		add(10, "gradual pacing strategy")
	case domain.StrategyConservative:
		// contributes nothing
	}

	switch {
	case cand.AvgKeywordDifficulty > 70:
		add(25, "very high keyword difficulty")
	case cand.AvgKeywordDifficulty > 40:
		add(10, "elevated keyword difficulty")
	}

	switch {
	case cand.DailyInstalls > 200:
		add(20, "daily volume above 200 installs")
	case cand.DailyInstalls > 100:
		add(10, "daily volume above 100 installs")
	}

	switch {
	case stats.Records > 0 && stats.PessimizationRate > 0.30:
		add(25, "niche pessimization rate above 30%")
	case stats.Records > 0 && stats.PessimizationRate > 0.10:
		add(10, "niche pessimization rate above 10%")
	}

	if stats.SimilarVolumeRate > 0.40 {
		add(15, "campaigns at comparable volume in this niche pessimized frequently")
	}
	if stats.RecentPessimized {
		add(10, "pessimization in this niche within the last 30 days")
	}
	if stats.Records == 0 {
		add(5, "no history for this niche")
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	level := levelFor(score)
	return &domain.RiskAssessment{
		Score:          score,
		Level:          level,
		Recommendation: recommendations[level],
		Factors:        factors,
		AssessedAt:     a.now().UTC(),
	}, nil
}

func levelFor(score int) domain.RiskLevel {
	switch {
	case score < 25:
		return domain.RiskLow
	case score < 50:
		return domain.RiskMedium
	case score < 75:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

// NicheStats aggregates the niche's recent records. dailyInstalls
// scopes the similar-volume rate; pass 0 to skip that comparison.
func (a *Assessor) NicheStats(ctx context.Context, niche string, dailyInstalls float64) (*domain.NicheStats, error) {
	recs, err := a.records.RecentByNiche(ctx, niche, a.window)
	if err != nil {
		return nil, err
	}

	stats := &domain.NicheStats{Niche: niche, Records: len(recs)}
	if len(recs) == 0 {
		return stats, nil
	}

	cutoff := a.now().AddDate(0, 0, -30)
	var installsSum, gainSum float64
	gains := 0
	similar, similarPess := 0, 0
	for _, r := range recs {
		if r.Pessimized {
			stats.Pessimized++
			if r.CreatedAt.After(cutoff) {
				stats.RecentPessimized = true
			}
		}
		installsSum += r.DailyInstalls
		if r.PositionGain != nil {
			gainSum += *r.PositionGain
			gains++
		}
		if dailyInstalls > 0 && comparableVolume(r.DailyInstalls, dailyInstalls) {
			similar++
			if r.Pessimized {
				similarPess++
			}
		}
	}

	stats.PessimizationRate = float64(stats.Pessimized) / float64(len(recs))
	stats.AvgDailyInstalls = installsSum / float64(len(recs))
	if gains > 0 {
		stats.AvgPositionGain = gainSum / float64(gains)
	}
	if similar > 0 {
		stats.SimilarVolumeRate = float64(similarPess) / float64(similar)
	}
	return stats, nil
}

// comparableVolume treats two daily volumes as similar when within
// ±50% of each other.
func comparableVolume(a, b float64) bool {
	if b <= 0 {
		return false
	}
	ratio := a / b
	return ratio >= 0.5 && ratio <= 1.5
}

// Records returns the recent learning records for a niche, for the
// read-learning-records control surface.
func (a *Assessor) Records(ctx context.Context, niche string) ([]domain.PushLearningRecord, error) {
	return a.records.RecentByNiche(ctx, niche, a.window)
}
