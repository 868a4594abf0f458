package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/rankpush/internal/domain"
	"github.com/ignite/rankpush/internal/service/campaign"
)

// EventRepo persists pessimization events.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed pessimization event repository.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, app_id, campaign_id, type, severity, status,
	       affected_keywords, avg_drop, detected_at, resolved_at, COALESCE(notes,'')`

func scanEvent(row interface{ Scan(...interface{}) error }) (*domain.PessimizationEvent, error) {
	e := &domain.PessimizationEvent{}
	err := row.Scan(
		&e.ID, &e.AppID, &e.CampaignID, &e.Type, &e.Severity, &e.Status,
		&e.AffectedKeywords, &e.AvgDrop, &e.DetectedAt, &e.ResolvedAt, &e.Notes,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *EventRepo) Insert(ctx context.Context, e *domain.PessimizationEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO push_pessimization_events
			(id, app_id, campaign_id, type, severity, status,
			 affected_keywords, avg_drop, detected_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.AppID, e.CampaignID, e.Type, e.Severity, e.Status,
		e.AffectedKeywords, e.AvgDrop, e.DetectedAt, e.Notes)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// OpenForApp returns the app's unresolved event, or nil when triage is
// clear.
func (r *EventRepo) OpenForApp(ctx context.Context, appID string) (*domain.PessimizationEvent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM push_pessimization_events
		WHERE app_id = $1 AND status NOT IN ('resolved', 'accepted')
		ORDER BY detected_at DESC
		LIMIT 1
	`, appID)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open event for app: %w", err)
	}
	return e, nil
}

// ListForApp returns the app's events, newest first.
func (r *EventRepo) ListForApp(ctx context.Context, appID string, limit int) ([]domain.PessimizationEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM push_pessimization_events
		WHERE app_id = $1
		ORDER BY detected_at DESC
		LIMIT $2
	`, appID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.PessimizationEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// UpdateStatus advances an event through triage. Resolving or accepting
// stamps resolved_at.
func (r *EventRepo) UpdateStatus(ctx context.Context, id string, status domain.PessimizationStatus) error {
	var resolvedAt *time.Time
	if status == domain.PessimizationResolved || status == domain.PessimizationAccepted {
		now := time.Now().UTC()
		resolvedAt = &now
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE push_pessimization_events
		SET status = $1, resolved_at = COALESCE($2, resolved_at)
		WHERE id = $3
	`, status, resolvedAt, id)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// FirstEventSince returns the app's earliest event at or after the
// given time, or nil when there is none. The feedback loop uses it to
// date a campaign's pessimization.
func (r *EventRepo) FirstEventSince(ctx context.Context, appID string, since time.Time) (*domain.PessimizationEvent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM push_pessimization_events
		WHERE app_id = $1 AND detected_at >= $2
		ORDER BY detected_at ASC
		LIMIT 1
	`, appID, since)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("first event since: %w", err)
	}
	return e, nil
}
