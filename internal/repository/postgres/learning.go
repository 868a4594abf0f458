package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/rankpush/internal/domain"
)

// LearningRepo persists push learning records. Rows are write-once;
// there is no update path.
type LearningRepo struct{ db *sql.DB }

// NewLearningRepo creates a Postgres-backed learning record repository.
func NewLearningRepo(db *sql.DB) *LearningRepo { return &LearningRepo{db: db} }

func (r *LearningRepo) Insert(ctx context.Context, rec *domain.PushLearningRecord) error {
	rampProfile, err := json.Marshal(rec.RampProfile)
	if err != nil {
		return fmt.Errorf("encode ramp profile: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO push_learning_records
			(id, campaign_id, niche, app_age_days, organic_downloads, category_rank,
			 avg_keyword_difficulty, avg_keyword_traffic, start_position, strategy,
			 daily_installs, total_installs, duration_days, ramp_profile,
			 install_velocity, peak_daily_installs, ramp_up_days, outcome,
			 final_position, position_gain, pessimized, pessimization_day, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, NOW())
	`, rec.ID, rec.CampaignID, rec.Niche, rec.AppAgeDays, rec.OrganicDownloads,
		rec.CategoryRank, rec.AvgKeywordDifficulty, rec.AvgKeywordTraffic,
		rec.StartPosition, rec.Strategy, rec.DailyInstalls, rec.TotalInstalls,
		rec.DurationDays, rampProfile, rec.InstallVelocity, rec.PeakDailyInstalls,
		rec.RampUpDays, rec.Outcome, rec.FinalPosition, rec.PositionGain,
		rec.Pessimized, rec.PessimizationDay)
	if err != nil {
		return fmt.Errorf("insert learning record: %w", err)
	}
	return nil
}

// RecentByNiche returns the niche's newest records up to limit. The
// assessor reads this bounded window rather than the full history.
func (r *LearningRepo) RecentByNiche(ctx context.Context, niche string, limit int) ([]domain.PushLearningRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, niche, app_age_days, organic_downloads, category_rank,
		       avg_keyword_difficulty, avg_keyword_traffic, start_position, strategy,
		       daily_installs, total_installs, duration_days, ramp_profile,
		       install_velocity, peak_daily_installs, ramp_up_days, outcome,
		       final_position, position_gain, pessimized, pessimization_day, created_at
		FROM push_learning_records
		WHERE niche = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, niche, limit)
	if err != nil {
		return nil, fmt.Errorf("recent by niche: %w", err)
	}
	defer rows.Close()

	var out []domain.PushLearningRecord
	for rows.Next() {
		var rec domain.PushLearningRecord
		var rampProfile []byte
		if err := rows.Scan(
			&rec.ID, &rec.CampaignID, &rec.Niche, &rec.AppAgeDays, &rec.OrganicDownloads,
			&rec.CategoryRank, &rec.AvgKeywordDifficulty, &rec.AvgKeywordTraffic,
			&rec.StartPosition, &rec.Strategy, &rec.DailyInstalls, &rec.TotalInstalls,
			&rec.DurationDays, &rampProfile, &rec.InstallVelocity, &rec.PeakDailyInstalls,
			&rec.RampUpDays, &rec.Outcome, &rec.FinalPosition, &rec.PositionGain,
			&rec.Pessimized, &rec.PessimizationDay, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan learning record: %w", err)
		}
		if len(rampProfile) > 0 {
			if err := json.Unmarshal(rampProfile, &rec.RampProfile); err != nil {
				return nil, fmt.Errorf("decode ramp profile: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
