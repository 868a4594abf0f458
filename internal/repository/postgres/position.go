package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/rankpush/internal/domain"
)

// PositionRepo persists position snapshots and the per-pair tracking
// rollup. Snapshots are append-only; the rollup row is rewritten on
// every check.
type PositionRepo struct{ db *sql.DB }

// NewPositionRepo creates a Postgres-backed position repository.
func NewPositionRepo(db *sql.DB) *PositionRepo { return &PositionRepo{db: db} }

const trackingColumns = `id, app_id, keyword, country, current_position,
	       best_position, worst_position, COALESCE(trend,''), last_checked_at`

func scanTracking(rows *sql.Rows) ([]domain.AppKeywordTracking, error) {
	var out []domain.AppKeywordTracking
	for rows.Next() {
		var t domain.AppKeywordTracking
		if err := rows.Scan(
			&t.ID, &t.AppID, &t.Keyword, &t.Country, &t.CurrentPosition,
			&t.BestPosition, &t.WorstPosition, &t.Trend, &t.LastCheckedAt,
		); err != nil {
			return nil, fmt.Errorf("scan tracking: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Track registers an (app, keyword, country) pair for sweeps. Tracking
// an already-tracked pair is a no-op.
func (r *PositionRepo) Track(ctx context.Context, appID, keyword, country string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO push_keyword_tracking (id, app_id, keyword, country, trend)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (app_id, keyword, country) DO NOTHING
	`, uuid.New().String(), appID, keyword, country, domain.TrendNew)
	if err != nil {
		return fmt.Errorf("track pair: %w", err)
	}
	return nil
}

func (r *PositionRepo) ListTracked(ctx context.Context) ([]domain.AppKeywordTracking, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+trackingColumns+`
		FROM push_keyword_tracking
		ORDER BY app_id, keyword
	`)
	if err != nil {
		return nil, fmt.Errorf("list tracked: %w", err)
	}
	defer rows.Close()
	return scanTracking(rows)
}

// TrackedFor returns the tracked pairs for one app.
func (r *PositionRepo) TrackedFor(ctx context.Context, appID string) ([]domain.AppKeywordTracking, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+trackingColumns+`
		FROM push_keyword_tracking
		WHERE app_id = $1
		ORDER BY keyword
	`, appID)
	if err != nil {
		return nil, fmt.Errorf("tracked for app: %w", err)
	}
	defer rows.Close()
	return scanTracking(rows)
}

// RecordCheck appends a snapshot and updates the pair's rollup in one
// transaction. Trend and change derive from the rollup's previous
// current position.
func (r *PositionRepo) RecordCheck(ctx context.Context, appID, keyword, country string, position *int, at time.Time) (*domain.PositionSnapshot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin record: %w", err)
	}
	defer tx.Rollback()

	var previous *int
	err = tx.QueryRowContext(ctx, `
		SELECT current_position FROM push_keyword_tracking
		WHERE app_id = $1 AND keyword = $2 AND country = $3
		FOR UPDATE
	`, appID, keyword, country).Scan(&previous)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("lock tracking: %w", err)
	}

	snap := &domain.PositionSnapshot{
		ID:               uuid.New().String(),
		AppID:            appID,
		Keyword:          keyword,
		Country:          country,
		Position:         position,
		PreviousPosition: previous,
		Change:           domain.PositionChange(previous, position),
		Trend:            domain.TrendFor(previous, position),
		CheckedAt:        at,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO push_position_snapshots
			(id, app_id, keyword, country, position, previous_position, change, trend, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, snap.ID, appID, keyword, country, position, previous, snap.Change, snap.Trend, at)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO push_keyword_tracking
			(id, app_id, keyword, country, current_position, best_position,
			 worst_position, trend, last_checked_at)
		VALUES ($1, $2, $3, $4, $5, $5, $5, $6, $7)
		ON CONFLICT (app_id, keyword, country) DO UPDATE SET
			current_position = EXCLUDED.current_position,
			best_position = LEAST(COALESCE(push_keyword_tracking.best_position, EXCLUDED.best_position), EXCLUDED.best_position),
			worst_position = GREATEST(COALESCE(push_keyword_tracking.worst_position, EXCLUDED.worst_position), EXCLUDED.worst_position),
			trend = EXCLUDED.trend,
			last_checked_at = EXCLUDED.last_checked_at
	`, uuid.New().String(), appID, keyword, country, position, snap.Trend, at)
	if err != nil {
		return nil, fmt.Errorf("upsert tracking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit record: %w", err)
	}
	return snap, nil
}

// Snapshots returns the pair's recent history, newest first.
func (r *PositionRepo) Snapshots(ctx context.Context, appID, keyword string, limit int) ([]domain.PositionSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, app_id, keyword, country, position, previous_position,
		       change, COALESCE(trend,''), checked_at
		FROM push_position_snapshots
		WHERE app_id = $1 AND keyword = $2
		ORDER BY checked_at DESC
		LIMIT $3
	`, appID, keyword, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

func scanSnapshots(rows *sql.Rows) ([]domain.PositionSnapshot, error) {
	var out []domain.PositionSnapshot
	for rows.Next() {
		var s domain.PositionSnapshot
		if err := rows.Scan(
			&s.ID, &s.AppID, &s.Keyword, &s.Country, &s.Position,
			&s.PreviousPosition, &s.Change, &s.Trend, &s.CheckedAt,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TrackedApps returns the distinct apps with at least one tracked pair.
func (r *PositionRepo) TrackedApps(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT app_id FROM push_keyword_tracking ORDER BY app_id
	`)
	if err != nil {
		return nil, fmt.Errorf("tracked apps: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan app id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// KeywordHistory returns up to depth snapshots per tracked keyword for
// the app, newest first within each keyword.
func (r *PositionRepo) KeywordHistory(ctx context.Context, appID string, depth int) (map[string][]domain.PositionSnapshot, error) {
	if depth <= 0 {
		depth = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, app_id, keyword, country, position, previous_position,
		       change, COALESCE(trend,''), checked_at
		FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY keyword ORDER BY checked_at DESC) AS rn
			FROM push_position_snapshots
			WHERE app_id = $1
		) ranked
		WHERE rn <= $2
		ORDER BY keyword, checked_at DESC
	`, appID, depth)
	if err != nil {
		return nil, fmt.Errorf("keyword history: %w", err)
	}
	defer rows.Close()

	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]domain.PositionSnapshot)
	for _, s := range snaps {
		out[s.Keyword] = append(out[s.Keyword], s)
	}
	return out, nil
}

// PositionSpan returns the average starting and final positions across
// the keywords since the given time. Either side is nil when no ranked
// observation exists in the window.
func (r *PositionRepo) PositionSpan(ctx context.Context, appID string, keywords []string, since time.Time) (start, final *float64, err error) {
	var first, last sql.NullFloat64
	err = r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT AVG(position::float) FROM (
				SELECT DISTINCT ON (keyword) position
				FROM push_position_snapshots
				WHERE app_id = $1 AND keyword = ANY($2) AND checked_at >= $3 AND position IS NOT NULL
				ORDER BY keyword, checked_at ASC
			) f),
			(SELECT AVG(position::float) FROM (
				SELECT DISTINCT ON (keyword) position
				FROM push_position_snapshots
				WHERE app_id = $1 AND keyword = ANY($2) AND checked_at >= $3 AND position IS NOT NULL
				ORDER BY keyword, checked_at DESC
			) l)
	`, appID, pq.Array(keywords), since).Scan(&first, &last)
	if err != nil {
		return nil, nil, fmt.Errorf("position span: %w", err)
	}
	if first.Valid {
		start = &first.Float64
	}
	if last.Valid {
		final = &last.Float64
	}
	return start, final, nil
}
