// Package monitor runs position sweeps over tracked (app, keyword)
// pairs through the async ticket service and records the resulting
// snapshots.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ignite/rankpush/internal/domain"
	"github.com/ignite/rankpush/internal/ticket"
)

// TrackingRepo is the persistence contract for position observations.
// RecordCheck must append the snapshot and update the per-pair rollup
// (current/best/worst/trend) atomically.
type TrackingRepo interface {
	ListTracked(ctx context.Context) ([]domain.AppKeywordTracking, error)
	RecordCheck(ctx context.Context, appID, keyword, country string, position *int, at time.Time) (*domain.PositionSnapshot, error)
}

// SweepLock serializes sweeps across engine instances. The Redis lock
// in pkg/distlock satisfies it.
type SweepLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Monitor periodically checks every tracked pair's rank. Each check is
// a two-phase suspend: submit a ticket, then poll to completion inside
// the adapter's bounded budget. One bad pair never fails the sweep.
type Monitor struct {
	repo    TrackingRepo
	tickets ticket.Submitter
	lock    SweepLock

	interval time.Duration
	workers  int
	country  string

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a position monitor. lock may be nil for single-instance
// deployments.
func New(repo TrackingRepo, tickets ticket.Submitter, lock SweepLock, interval time.Duration, workers int, country string) *Monitor {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if workers <= 0 {
		workers = 4
	}
	if country == "" {
		country = "us"
	}
	return &Monitor{
		repo:     repo,
		tickets:  tickets,
		lock:     lock,
		interval: interval,
		workers:  workers,
		country:  country,
	}
}

// Start begins the sweep loop.
func (m *Monitor) Start() {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	go func() {
		log.Printf("[PositionMonitor] Starting (interval: %s, workers: %d)", m.interval, m.workers)

		time.Sleep(30 * time.Second) // initial delay
		m.tick()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.tick()
			case <-m.ctx.Done():
				log.Println("[PositionMonitor] Stopped")
				return
			}
		}
	}()
}

// Stop halts the monitor.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Monitor) tick() {
	ctx, cancel := context.WithTimeout(m.ctx, 30*time.Minute)
	defer cancel()

	if m.lock != nil {
		ok, err := m.lock.Acquire(ctx)
		if err != nil {
			log.Printf("[PositionMonitor] Sweep lock: %v", err)
			return
		}
		if !ok {
			log.Println("[PositionMonitor] Sweep already running elsewhere, skipping")
			return
		}
		defer m.lock.Release(ctx)
	}

	start := time.Now()
	checked, skipped, err := m.Sweep(ctx)
	if err != nil {
		log.Printf("[PositionMonitor] Sweep failed: %v", err)
		return
	}
	log.Printf("[PositionMonitor] Sweep completed: %d checked, %d skipped in %s",
		checked, skipped, time.Since(start))
}

// Sweep checks every tracked pair once with a bounded worker pool.
// Pairs whose check rate-limits, errors, or exhausts its poll budget
// are skipped for this cycle and picked up by the next one.
func (m *Monitor) Sweep(ctx context.Context) (checked, skipped int, err error) {
	pairs, err := m.repo.ListTracked(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list tracked pairs: %w", err)
	}
	if len(pairs) == 0 {
		return 0, 0, nil
	}

	type result struct{ ok bool }
	jobs := make(chan domain.AppKeywordTracking)
	results := make(chan result, len(pairs))

	var wg sync.WaitGroup
	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pair := range jobs {
				_, err := m.Check(ctx, pair.AppID, pair.Keyword, pair.Country, ticket.PriorityNormal)
				if err != nil {
					if errors.Is(err, ticket.ErrRateLimited) || errors.Is(err, ticket.ErrUnavailable) {
						log.Printf("[PositionMonitor] Skipping %s/%q this cycle: %v", pair.AppID, pair.Keyword, err)
					} else {
						log.Printf("[PositionMonitor] Check %s/%q: %v", pair.AppID, pair.Keyword, err)
					}
					results <- result{ok: false}
					continue
				}
				results <- result{ok: true}
			}
		}()
	}

	for _, p := range pairs {
		select {
		case jobs <- p:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return checked, len(pairs) - checked, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	for r := range results {
		if r.ok {
			checked++
		} else {
			skipped++
		}
	}
	return checked, skipped, nil
}

// Check runs one rank check for a pair: submit, await, record. The
// pair's own country keys the check and the recorded snapshot, so a
// keyword tracked in two storefronts keeps two independent rollups.
// An empty country falls back to the monitor default. Manual operator
// checks pass PriorityHigh; scheduled sweeps use normal.
func (m *Monitor) Check(ctx context.Context, appID, keyword, country string, priority ticket.Priority) (*domain.PositionSnapshot, error) {
	if country == "" {
		country = m.country
	}
	ticketID, err := m.tickets.Submit(ctx, "keyword-check", map[string]string{
		"app_id":  appID,
		"keyword": keyword,
		"country": country,
	}, priority)
	if err != nil {
		return nil, err
	}

	res, err := m.tickets.Await(ctx, "keyword-check", ticketID)
	if err != nil {
		return nil, err
	}

	position, err := parsePosition(res.Payload)
	if err != nil {
		return nil, err
	}
	return m.repo.RecordCheck(ctx, appID, keyword, country, position, time.Now().UTC())
}

// ManualCheck is the operator-triggered variant at high priority.
func (m *Monitor) ManualCheck(ctx context.Context, appID, keyword, country string) (*domain.PositionSnapshot, error) {
	return m.Check(ctx, appID, keyword, country, ticket.PriorityHigh)
}

// parsePosition validates the ticket payload. The external service is
// loosely typed, so the check fails closed: a missing key or an
// out-of-range value is treated as unavailable, never recorded.
func parsePosition(payload json.RawMessage) (*int, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: malformed check payload", ticket.ErrUnavailable)
	}
	raw, ok := body["position"]
	if !ok {
		return nil, fmt.Errorf("%w: check payload missing position", ticket.ErrUnavailable)
	}
	if string(raw) == "null" {
		return nil, nil // not ranked
	}
	var pos int
	if err := json.Unmarshal(raw, &pos); err != nil || pos < 1 {
		return nil, fmt.Errorf("%w: check payload position %s out of range", ticket.ErrUnavailable, raw)
	}
	return &pos, nil
}
