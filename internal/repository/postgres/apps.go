package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/rankpush/internal/risk"
	"github.com/ignite/rankpush/internal/service/campaign"
)

// AppDirectory reads the app metadata the learning loop records. App
// CRUD is owned by the wider platform; this engine only reads the
// fields it needs. The expected columns are documented in
// migrations/001_init.sql.
type AppDirectory struct{ db *sql.DB }

// NewAppDirectory creates a Postgres-backed app metadata reader.
func NewAppDirectory(db *sql.DB) *AppDirectory { return &AppDirectory{db: db} }

func (r *AppDirectory) AppInfo(ctx context.Context, appID string) (*risk.AppInfo, error) {
	info := &risk.AppInfo{}
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(niche,''),
		       COALESCE(EXTRACT(DAY FROM NOW() - released_at)::int, 0),
		       COALESCE(organic_downloads, 0),
		       category_rank,
		       COALESCE(avg_keyword_difficulty, 0),
		       COALESCE(avg_keyword_traffic, 0)
		FROM apps
		WHERE id = $1
	`, appID).Scan(
		&info.Niche, &info.AppAgeDays, &info.OrganicDownloads,
		&info.CategoryRank, &info.AvgKeywordDifficulty, &info.AvgKeywordTraffic,
	)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("app info: %w", err)
	}
	return info, nil
}
