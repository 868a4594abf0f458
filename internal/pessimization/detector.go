// Package pessimization watches position history for abnormal drops
// and deindexing, raising one event per app per incident.
package pessimization

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/rankpush/internal/domain"
	"github.com/ignite/rankpush/internal/service/campaign"
)

// HistorySource supplies the position history the detector analyzes.
// KeywordHistory returns up to depth snapshots per keyword, newest
// first.
type HistorySource interface {
	TrackedApps(ctx context.Context) ([]string, error)
	KeywordHistory(ctx context.Context, appID string, depth int) (map[string][]domain.PositionSnapshot, error)
}

// EventRepo persists incidents. OpenForApp returns nil when the app has
// no unresolved event; the detector uses it to avoid duplicating an
// incident that is already being worked.
type EventRepo interface {
	Insert(ctx context.Context, event *domain.PessimizationEvent) error
	OpenForApp(ctx context.Context, appID string) (*domain.PessimizationEvent, error)
}

// Lifecycle is the slice of the campaign service the detector needs.
// *campaign.Service satisfies it.
type Lifecycle interface {
	List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error)
	MarkPessimized(ctx context.Context, id string) error
}

// Thresholds bound the half-open severity intervals in positions:
// minor [Minor,Moderate), moderate [Moderate,Severe), severe [Severe,∞).
type Thresholds struct {
	Minor    float64
	Moderate float64
	Severe   float64
}

// Finding is the outcome of analyzing one app's keyword set.
type Finding struct {
	Type             domain.PessimizationType
	Severity         domain.PessimizationSeverity
	AffectedKeywords []string
	AvgDrop          float64
}

// Detector runs the scan loop. Analysis is best-effort: a failure on
// one app is logged and never blocks the rest of the scan or mutates
// the data it read.
type Detector struct {
	history   HistorySource
	events    EventRepo
	lifecycle Lifecycle

	thresholds Thresholds
	window     int
	interval   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a pessimization detector. window is the per-keyword
// snapshot depth used for the rolling baseline.
func New(history HistorySource, events EventRepo, lifecycle Lifecycle, thresholds Thresholds, window int, interval time.Duration) *Detector {
	if window <= 1 {
		window = 10
	}
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Detector{
		history:    history,
		events:     events,
		lifecycle:  lifecycle,
		thresholds: thresholds,
		window:     window,
		interval:   interval,
	}
}

// Start begins the scan loop.
func (d *Detector) Start() {
	d.ctx, d.cancel = context.WithCancel(context.Background())
	go func() {
		log.Printf("[PessimizationDetector] Starting (interval: %s, window: %d)", d.interval, d.window)

		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(d.ctx, 10*time.Minute)
				if err := d.Scan(ctx); err != nil {
					log.Printf("[PessimizationDetector] Scan failed: %v", err)
				}
				cancel()
			case <-d.ctx.Done():
				log.Println("[PessimizationDetector] Stopped")
				return
			}
		}
	}()
}

// Stop halts the detector.
func (d *Detector) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

// Scan analyzes every tracked app once.
func (d *Detector) Scan(ctx context.Context) error {
	apps, err := d.history.TrackedApps(ctx)
	if err != nil {
		return fmt.Errorf("list tracked apps: %w", err)
	}

	flagged := 0
	for _, appID := range apps {
		event, err := d.AnalyzeApp(ctx, appID)
		if err != nil {
			log.Printf("[PessimizationDetector] Analyze %s: %v", appID, err)
			continue
		}
		if event != nil {
			flagged++
		}
	}
	if flagged > 0 {
		log.Printf("[PessimizationDetector] Scan flagged %d of %d apps", flagged, len(apps))
	}
	return nil
}

// AnalyzeApp evaluates one app's recent history and raises an event
// when an anomaly is found. Returns nil when the app is healthy or an
// earlier incident is still open.
func (d *Detector) AnalyzeApp(ctx context.Context, appID string) (*domain.PessimizationEvent, error) {
	history, err := d.history.KeywordHistory(ctx, appID, d.window)
	if err != nil {
		return nil, fmt.Errorf("keyword history: %w", err)
	}

	finding := Classify(baselinesFrom(history), d.thresholds)
	if finding == nil {
		return nil, nil
	}

	// One event per incident. An open event means the incident is
	// already known; re-raising it every scan would just spam triage.
	open, err := d.events.OpenForApp(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("check open events: %w", err)
	}
	if open != nil {
		return nil, nil
	}

	event := &domain.PessimizationEvent{
		ID:               uuid.New().String(),
		AppID:            appID,
		Type:             finding.Type,
		Severity:         finding.Severity,
		Status:           domain.PessimizationDetected,
		AffectedKeywords: len(finding.AffectedKeywords),
		AvgDrop:          finding.AvgDrop,
		DetectedAt:       time.Now().UTC(),
		Notes:            fmt.Sprintf("Affected keywords: %v", finding.AffectedKeywords),
	}

	active := d.activeCampaign(ctx, appID)
	if active != nil {
		event.CampaignID = &active.ID
	}

	if err := d.events.Insert(ctx, event); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	log.Printf("[PessimizationDetector] %s incident for app %s: %s, %d keywords, avg drop %.1f",
		event.Severity, appID, event.Type, event.AffectedKeywords, event.AvgDrop)

	// Severe incidents stop the campaign; lesser ones stay advisory.
	if active != nil && (finding.Severity == domain.SeveritySevere || finding.Severity == domain.SeverityCritical) {
		if err := d.lifecycle.MarkPessimized(ctx, active.ID); err != nil {
			log.Printf("[PessimizationDetector] Mark campaign %s pessimized: %v", active.ID, err)
		}
	}
	return event, nil
}

func (d *Detector) activeCampaign(ctx context.Context, appID string) *domain.Campaign {
	campaigns, _, err := d.lifecycle.List(ctx, campaign.ListFilter{
		AppID:  appID,
		Status: string(domain.CampaignActive),
		Limit:  1,
	})
	if err != nil {
		log.Printf("[PessimizationDetector] List campaigns for %s: %v", appID, err)
		return nil
	}
	if len(campaigns) == 0 {
		return nil
	}
	return &campaigns[0]
}

// KeywordBaseline is one keyword's current position against the rolling
// average of its prior observations. Baseline is nil when the keyword
// has no earlier ranked data, which excludes it from analysis.
type KeywordBaseline struct {
	Keyword  string
	Current  *int
	Baseline *float64
}

func baselinesFrom(history map[string][]domain.PositionSnapshot) []KeywordBaseline {
	out := make([]KeywordBaseline, 0, len(history))
	for keyword, snaps := range history {
		if len(snaps) < 2 {
			continue
		}
		var sum float64
		var n int
		for _, s := range snaps[1:] {
			if s.Position != nil {
				sum += float64(*s.Position)
				n++
			}
		}
		kb := KeywordBaseline{Keyword: keyword, Current: snaps[0].Position}
		if n > 0 {
			avg := sum / float64(n)
			kb.Baseline = &avg
		}
		out = append(out, kb)
	}
	return out
}

// Classify evaluates keyword baselines against the severity thresholds.
// Complete loss of ranking across the tracked set is a deindexing
// incident at CRITICAL severity regardless of magnitude. Otherwise
// keywords whose drop (current − baseline) reaches the minor threshold
// are aggregated into one POSITION_DROP finding; a keyword that fell
// out of the rankings counts at the severe threshold. Returns nil when
// nothing crosses a threshold.
func Classify(baselines []KeywordBaseline, t Thresholds) *Finding {
	var withHistory, lost int
	var lostKeywords []string
	var affected []string
	var totalDrop float64

	for _, kb := range baselines {
		if kb.Baseline == nil {
			continue
		}
		withHistory++
		if kb.Current == nil {
			lost++
			lostKeywords = append(lostKeywords, kb.Keyword)
			affected = append(affected, kb.Keyword)
			totalDrop += t.Severe
			continue
		}
		drop := float64(*kb.Current) - *kb.Baseline
		if drop >= t.Minor {
			affected = append(affected, kb.Keyword)
			totalDrop += drop
		}
	}

	if withHistory == 0 {
		return nil
	}
	if lost == withHistory {
		return &Finding{
			Type:             domain.PessimizationCompleteDeindex,
			Severity:         domain.SeverityCritical,
			AffectedKeywords: lostKeywords,
			AvgDrop:          0,
		}
	}
	if len(affected) == 0 {
		return nil
	}

	avg := totalDrop / float64(len(affected))
	return &Finding{
		Type:             domain.PessimizationPositionDrop,
		Severity:         severityFor(avg, t),
		AffectedKeywords: affected,
		AvgDrop:          avg,
	}
}

func severityFor(avgDrop float64, t Thresholds) domain.PessimizationSeverity {
	switch {
	case avgDrop >= t.Severe:
		return domain.SeveritySevere
	case avgDrop >= t.Moderate:
		return domain.SeverityModerate
	default:
		return domain.SeverityMinor
	}
}
