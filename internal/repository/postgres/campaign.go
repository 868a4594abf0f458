// Package postgres implements the engine's repositories against
// PostgreSQL using database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/rankpush/internal/domain"
	"github.com/ignite/rankpush/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, app_id, name, strategy, keywords, target_positions,
	       total_budget, cost_per_install, total_installs, completed_installs,
	       spent_budget, duration_days, start_date, end_date, status,
	       tags, COALESCE(notes,''), completed_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var targetPositions []byte
	err := row.Scan(
		&c.ID, &c.AppID, &c.Name, &c.Strategy, pq.Array(&c.Keywords), &targetPositions,
		&c.TotalBudget, &c.CostPerInstall, &c.TotalInstalls, &c.CompletedInstalls,
		&c.SpentBudget, &c.DurationDays, &c.StartDate, &c.EndDate, &c.Status,
		pq.Array(&c.Tags), &c.Notes, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(targetPositions) > 0 {
		if err := json.Unmarshal(targetPositions, &c.TargetPositions); err != nil {
			return nil, fmt.Errorf("decode target positions: %w", err)
		}
	}
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM push_campaigns
		WHERE id = $1
	`, id)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := []string{"1=1"}
	args := []interface{}{}
	idx := 1
	if f.AppID != "" {
		where = append(where, fmt.Sprintf("app_id = $%d", idx))
		args = append(args, f.AppID)
		idx++
	}
	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, f.Status)
		idx++
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM push_campaigns WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := fmt.Sprintf(`
		SELECT `+campaignColumns+`
		FROM push_campaigns
		WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, cond, idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign, plans []domain.DailyPlan) error {
	targetPositions, err := json.Marshal(c.TargetPositions)
	if err != nil {
		return fmt.Errorf("encode target positions: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO push_campaigns
			(id, app_id, name, strategy, keywords, target_positions,
			 total_budget, cost_per_install, total_installs, duration_days,
			 status, tags, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
	`, c.ID, c.AppID, c.Name, c.Strategy, pq.Array(c.Keywords), targetPositions,
		c.TotalBudget, c.CostPerInstall, c.TotalInstalls, c.DurationDays,
		c.Status, pq.Array(c.Tags), c.Notes)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}

	for _, p := range plans {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO push_daily_plans
				(id, campaign_id, day, date, planned_installs, actual_installs,
				 cost, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 0, $6, $7, NOW(), NOW())
		`, p.ID, c.ID, p.Day, p.Date, p.PlannedInstalls, p.Cost, p.Status)
		if err != nil {
			return fmt.Errorf("create plan day %d: %w", p.Day, err)
		}
	}
	return tx.Commit()
}

func (r *CampaignRepo) Update(ctx context.Context, id string, u campaign.UpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Keywords != nil {
		add("keywords", pq.Array(u.Keywords))
	}
	if u.TargetPositions != nil {
		encoded, err := json.Marshal(u.TargetPositions)
		if err != nil {
			return fmt.Errorf("encode target positions: %w", err)
		}
		add("target_positions", encoded)
	}
	if u.TotalBudget != nil {
		add("total_budget", *u.TotalBudget)
	}
	if u.CostPerInstall != nil {
		add("cost_per_install", *u.CostPerInstall)
	}
	if u.Tags != nil {
		add("tags", pq.Array(u.Tags))
	}
	if u.Notes != nil {
		add("notes", *u.Notes)
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = NOW()")
	q := fmt.Sprintf("UPDATE push_campaigns SET %s WHERE id = $%d",
		strings.Join(sets, ", "), idx)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM push_campaigns WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// UpdateStatus applies a guarded transition: the status column is part
// of the WHERE clause so a concurrent transition loses cleanly instead
// of clobbering.
func (r *CampaignRepo) UpdateStatus(ctx context.Context, id string, u campaign.StatusUpdate) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE push_campaigns
		SET status = $1, completed_at = COALESCE($2, completed_at), updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, u.To, u.CompletedAt, id, u.From)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// Distinguish a missing campaign from a wrong-state one.
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM push_campaigns WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if !exists {
			return campaign.ErrNotFound
		}
		return campaign.ErrInvalidState
	}
	return nil
}

func (r *CampaignRepo) TransitionWithSnapshot(ctx context.Context, id string, from, to domain.CampaignStatus) (*domain.CampaignVersion, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM push_campaigns
		WHERE id = $1
		FOR UPDATE
	`, id)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock campaign: %w", err)
	}
	if c.Status != from {
		return nil, campaign.ErrInvalidState
	}

	plans, err := listPlansTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	snapshot, err := json.Marshal(struct {
		Campaign *domain.Campaign   `json:"campaign"`
		Plans    []domain.DailyPlan `json:"plans"`
	}{c, plans})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	v := &domain.CampaignVersion{
		ID:         uuid.New().String(),
		CampaignID: id,
		Snapshot:   snapshot,
		CreatedAt:  time.Now().UTC(),
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO push_campaign_versions (id, campaign_id, version, snapshot, created_at)
		SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3, NOW()
		FROM push_campaign_versions WHERE campaign_id = $2
		RETURNING version
	`, v.ID, id, snapshot).Scan(&v.Version)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, campaign.ErrConflict
		}
		return nil, fmt.Errorf("insert version: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE push_campaigns SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return nil, fmt.Errorf("advance status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, campaign.ErrInvalidState
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return v, nil
}

func (r *CampaignRepo) Activate(ctx context.Context, id string, from domain.CampaignStatus, setDates bool, start, end time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate: %w", err)
	}
	defer tx.Rollback()

	var res sql.Result
	if setDates {
		res, err = tx.ExecContext(ctx, `
			UPDATE push_campaigns
			SET status = $1, start_date = $2, end_date = $3, updated_at = NOW()
			WHERE id = $4 AND status = $5
		`, domain.CampaignActive, start, end, id, from)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE push_campaigns SET status = $1, updated_at = NOW()
			WHERE id = $2 AND status = $3
		`, domain.CampaignActive, id, from)
	}
	if err != nil {
		return fmt.Errorf("activate campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM push_campaigns WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("activate campaign: %w", err)
		}
		if !exists {
			return campaign.ErrNotFound
		}
		return campaign.ErrInvalidState
	}

	if setDates {
		// Stamp each plan day's calendar date off the start date.
		_, err = tx.ExecContext(ctx, `
			UPDATE push_daily_plans
			SET date = $1::timestamptz + make_interval(days => day - 1), updated_at = NOW()
			WHERE campaign_id = $2
		`, start, id)
		if err != nil {
			return fmt.Errorf("stamp plan dates: %w", err)
		}
	}
	return tx.Commit()
}

func (r *CampaignRepo) ReportActuals(ctx context.Context, campaignID string, day int, rep campaign.ActualsReport) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin report: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE push_daily_plans
		SET actual_installs = $1, cost = $2, status = $3, updated_at = NOW()
		WHERE campaign_id = $4 AND day = $5
	`, rep.ActualInstalls, rep.Cost, rep.Status, campaignID, day)
	if err != nil {
		return fmt.Errorf("update plan day: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return campaign.ErrNotFound
	}

	// Full recompute, never an incremental add, so duplicate reports
	// stay idempotent.
	_, err = tx.ExecContext(ctx, `
		UPDATE push_campaigns c
		SET completed_installs = agg.installs, spent_budget = agg.cost, updated_at = NOW()
		FROM (
			SELECT COALESCE(SUM(actual_installs), 0) AS installs,
			       COALESCE(SUM(cost), 0) AS cost
			FROM push_daily_plans WHERE campaign_id = $1
		) agg
		WHERE c.id = $1
	`, campaignID)
	if err != nil {
		return fmt.Errorf("recompute totals: %w", err)
	}
	return tx.Commit()
}

const planColumns = `id, campaign_id, day, date, planned_installs, actual_installs,
	       cost, status, created_at, updated_at`

func listPlansTx(ctx context.Context, tx *sql.Tx, campaignID string) ([]domain.DailyPlan, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+planColumns+`
		FROM push_daily_plans
		WHERE campaign_id = $1
		ORDER BY day
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()
	return scanPlans(rows)
}

func scanPlans(rows *sql.Rows) ([]domain.DailyPlan, error) {
	var out []domain.DailyPlan
	for rows.Next() {
		var p domain.DailyPlan
		if err := rows.Scan(
			&p.ID, &p.CampaignID, &p.Day, &p.Date, &p.PlannedInstalls,
			&p.ActualInstalls, &p.Cost, &p.Status, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) ListPlans(ctx context.Context, campaignID string) ([]domain.DailyPlan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+planColumns+`
		FROM push_daily_plans
		WHERE campaign_id = $1
		ORDER BY day
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()
	return scanPlans(rows)
}

func (r *CampaignRepo) CountPlans(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM push_daily_plans WHERE campaign_id = $1`, campaignID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count plans: %w", err)
	}
	return n, nil
}

func (r *CampaignRepo) ListVersions(ctx context.Context, campaignID string) ([]domain.CampaignVersion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, version, snapshot, created_at
		FROM push_campaign_versions
		WHERE campaign_id = $1
		ORDER BY version DESC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []domain.CampaignVersion
	for rows.Next() {
		var v domain.CampaignVersion
		if err := rows.Scan(&v.ID, &v.CampaignID, &v.Version, &v.Snapshot, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
