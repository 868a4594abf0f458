package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ignite/rankpush/internal/domain"
	"github.com/ignite/rankpush/internal/ticket"
)

// fakeTickets serves canned results per (app, keyword) pair.
type fakeTickets struct {
	mu          sync.Mutex
	results     map[string]fakeResult // key "app|keyword"
	submits     int
	lastPri     ticket.Priority
	lastCountry string
}

type fakeResult struct {
	position *int // nil renders "position": null
	err      error
	rawBody  string // overrides position when set
}

func (f *fakeTickets) key(params map[string]string) string {
	return params["app_id"] + "|" + params["keyword"]
}

func (f *fakeTickets) Submit(_ context.Context, _ string, params map[string]string, priority ticket.Priority) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	f.lastPri = priority
	f.lastCountry = params["country"]
	key := f.key(params)
	if r, ok := f.results[key]; ok && r.err != nil {
		return "", r.err
	}
	return key, nil
}

func (f *fakeTickets) Poll(ctx context.Context, endpoint, ticketID string) (*ticket.Result, error) {
	return f.Await(ctx, endpoint, ticketID)
}

func (f *fakeTickets) Await(_ context.Context, _ string, ticketID string) (*ticket.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[ticketID]
	body := r.rawBody
	if body == "" {
		if r.position != nil {
			body = fmt.Sprintf(`{"position": %d}`, *r.position)
		} else {
			body = `{"position": null}`
		}
	}
	return &ticket.Result{Status: ticket.StatusDone, Payload: json.RawMessage(body)}, nil
}

// memTracking records checks in memory and derives trends with the
// same helpers the real repository uses.
type memTracking struct {
	mu       sync.Mutex
	tracked  []domain.AppKeywordTracking
	current  map[string]*int
	recorded []domain.PositionSnapshot
}

func newMemTracking(pairs ...[2]string) *memTracking {
	m := &memTracking{current: make(map[string]*int)}
	for _, p := range pairs {
		m.tracked = append(m.tracked, domain.AppKeywordTracking{AppID: p[0], Keyword: p[1], Country: "us"})
	}
	return m
}

func (m *memTracking) track(appID, keyword, country string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracked = append(m.tracked, domain.AppKeywordTracking{AppID: appID, Keyword: keyword, Country: country})
}

func (m *memTracking) ListTracked(context.Context) ([]domain.AppKeywordTracking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AppKeywordTracking, len(m.tracked))
	copy(out, m.tracked)
	return out, nil
}

func (m *memTracking) RecordCheck(_ context.Context, appID, keyword, country string, position *int, at time.Time) (*domain.PositionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := appID + "|" + keyword + "|" + country
	prev := m.current[key]
	snap := domain.PositionSnapshot{
		AppID:            appID,
		Keyword:          keyword,
		Country:          country,
		Position:         position,
		PreviousPosition: prev,
		Change:           domain.PositionChange(prev, position),
		Trend:            domain.TrendFor(prev, position),
		CheckedAt:        at,
	}
	m.current[key] = position
	m.recorded = append(m.recorded, snap)
	return &snap, nil
}

func intPtr(v int) *int { return &v }

func TestSweepChecksAllPairs(t *testing.T) {
	repo := newMemTracking([2]string{"app-1", "fitness"}, [2]string{"app-1", "workout"}, [2]string{"app-2", "budget"})
	tickets := &fakeTickets{results: map[string]fakeResult{
		"app-1|fitness": {position: intPtr(12)},
		"app-1|workout": {position: intPtr(40)},
		"app-2|budget":  {position: nil},
	}}
	m := New(repo, tickets, nil, time.Hour, 2, "us")

	checked, skipped, err := m.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if checked != 3 || skipped != 0 {
		t.Errorf("Sweep() = (%d, %d), want (3, 0)", checked, skipped)
	}
	if len(repo.recorded) != 3 {
		t.Fatalf("recorded %d snapshots, want 3", len(repo.recorded))
	}
}

func TestSweepSkipsFailedPairs(t *testing.T) {
	repo := newMemTracking([2]string{"app-1", "fitness"}, [2]string{"app-1", "workout"}, [2]string{"app-2", "budget"})
	tickets := &fakeTickets{results: map[string]fakeResult{
		"app-1|fitness": {position: intPtr(12)},
		"app-1|workout": {err: ticket.ErrRateLimited},
		"app-2|budget":  {rawBody: `{"status": "partial"}`}, // missing position, fails closed
	}}
	m := New(repo, tickets, nil, time.Hour, 2, "us")

	checked, skipped, err := m.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if checked != 1 || skipped != 2 {
		t.Errorf("Sweep() = (%d, %d), want (1, 2)", checked, skipped)
	}
	if len(repo.recorded) != 1 {
		t.Errorf("recorded %d snapshots, want 1 (failed pairs never write)", len(repo.recorded))
	}
}

func TestSweepKeepsPairCountry(t *testing.T) {
	repo := newMemTracking()
	repo.track("app-1", "fitness", "de")
	tickets := &fakeTickets{results: map[string]fakeResult{
		"app-1|fitness": {position: intPtr(9)},
	}}
	m := New(repo, tickets, nil, time.Hour, 1, "us")

	checked, skipped, err := m.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if checked != 1 || skipped != 0 {
		t.Fatalf("Sweep() = (%d, %d), want (1, 0)", checked, skipped)
	}
	if tickets.lastCountry != "de" {
		t.Errorf("submitted country = %q, want %q", tickets.lastCountry, "de")
	}
	if len(repo.recorded) != 1 {
		t.Fatalf("recorded %d snapshots, want 1", len(repo.recorded))
	}
	if got := repo.recorded[0].Country; got != "de" {
		t.Errorf("snapshot country = %q, want %q (pair country must key the rollup)", got, "de")
	}

	// A later sweep of the same pair sees its own previous position,
	// not a fresh row under the monitor default country.
	tickets.mu.Lock()
	tickets.results["app-1|fitness"] = fakeResult{position: intPtr(4)}
	tickets.mu.Unlock()
	if _, _, err := m.Sweep(context.Background()); err != nil {
		t.Fatalf("second Sweep() error = %v", err)
	}
	second := repo.recorded[1]
	if second.PreviousPosition == nil || *second.PreviousPosition != 9 {
		t.Errorf("previous position = %v, want 9", second.PreviousPosition)
	}
	if second.Trend != domain.TrendRising {
		t.Errorf("trend = %s, want %s", second.Trend, domain.TrendRising)
	}
}

func TestManualCheckCountryOverride(t *testing.T) {
	repo := newMemTracking()
	repo.track("app-1", "fitness", "fr")
	tickets := &fakeTickets{results: map[string]fakeResult{
		"app-1|fitness": {position: intPtr(5)},
	}}
	m := New(repo, tickets, nil, time.Hour, 1, "us")

	snap, err := m.ManualCheck(context.Background(), "app-1", "fitness", "fr")
	if err != nil {
		t.Fatalf("ManualCheck() error = %v", err)
	}
	if tickets.lastCountry != "fr" {
		t.Errorf("submitted country = %q, want %q", tickets.lastCountry, "fr")
	}
	if snap.Country != "fr" {
		t.Errorf("snapshot country = %q, want %q", snap.Country, "fr")
	}
}

func TestCheckTrendSequence(t *testing.T) {
	repo := newMemTracking([2]string{"app-1", "fitness"})
	tickets := &fakeTickets{results: map[string]fakeResult{}}
	m := New(repo, tickets, nil, time.Hour, 1, "us")
	ctx := context.Background()

	steps := []struct {
		position  *int
		wantTrend domain.PositionTrend
		wantDelta *int
	}{
		{intPtr(45), domain.TrendNew, nil},
		{intPtr(12), domain.TrendRising, intPtr(33)},
		{nil, domain.TrendLost, nil},
		{intPtr(8), domain.TrendNew, nil},
		{intPtr(8), domain.TrendStable, intPtr(0)},
		{intPtr(20), domain.TrendFalling, intPtr(-12)},
	}
	for i, step := range steps {
		tickets.mu.Lock()
		tickets.results["app-1|fitness"] = fakeResult{position: step.position}
		tickets.mu.Unlock()

		snap, err := m.Check(ctx, "app-1", "fitness", "us", ticket.PriorityNormal)
		if err != nil {
			t.Fatalf("step %d: Check() error = %v", i, err)
		}
		if snap.Trend != step.wantTrend {
			t.Errorf("step %d: trend = %s, want %s", i, snap.Trend, step.wantTrend)
		}
		switch {
		case step.wantDelta == nil && snap.Change != nil:
			t.Errorf("step %d: change = %d, want nil", i, *snap.Change)
		case step.wantDelta != nil && (snap.Change == nil || *snap.Change != *step.wantDelta):
			t.Errorf("step %d: change = %v, want %d", i, snap.Change, *step.wantDelta)
		}
	}
}

func TestManualCheckUsesHighPriority(t *testing.T) {
	repo := newMemTracking([2]string{"app-1", "fitness"})
	tickets := &fakeTickets{results: map[string]fakeResult{
		"app-1|fitness": {position: intPtr(3)},
	}}
	m := New(repo, tickets, nil, time.Hour, 1, "us")

	snap, err := m.ManualCheck(context.Background(), "app-1", "fitness", "")
	if err != nil {
		t.Fatalf("ManualCheck() error = %v", err)
	}
	if tickets.lastPri != ticket.PriorityHigh {
		t.Errorf("priority = %s, want %s", tickets.lastPri, ticket.PriorityHigh)
	}
	if snap.Position == nil || *snap.Position != 3 {
		t.Errorf("position = %v, want 3", snap.Position)
	}
}

func TestParsePositionFailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    *int
		wantErr bool
	}{
		{"ranked", `{"position": 7}`, intPtr(7), false},
		{"not ranked", `{"position": null}`, nil, false},
		{"missing key", `{"rank": 7}`, nil, true},
		{"zero out of range", `{"position": 0}`, nil, true},
		{"negative", `{"position": -4}`, nil, true},
		{"non numeric", `{"position": "seven"}`, nil, true},
		{"malformed", `{`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePosition(json.RawMessage(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ticket.ErrUnavailable) {
					t.Fatalf("parsePosition() error = %v, want ErrUnavailable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePosition() error = %v", err)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("parsePosition() = %d, want nil", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("parsePosition() = %v, want %d", got, *tt.want)
			}
		})
	}
}
