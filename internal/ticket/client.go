// Package ticket implements the client adapter for the external
// ranking/keyword-check service. The service is asynchronous: a request
// is submitted, a ticket ID comes back, and the result is polled until
// it reaches a terminal state. The adapter enforces a process-wide
// requests-per-minute and requests-per-day ceiling.
package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ignite/rankpush/internal/pkg/httpretry"
)

// Priority selects the external service's queue tier.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Status is the terminality of a polled ticket.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Result is the tagged outcome of a poll. Payload is only set when
// Status is done; it is raw JSON that callers must schema-check before
// trusting (fail closed on malformed data).
type Result struct {
	Status  Status          `json:"status"`
	Payload json.RawMessage `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Submitter is the contract the engine depends on. *Client satisfies
// it; tests substitute fakes.
type Submitter interface {
	Submit(ctx context.Context, endpoint string, params map[string]string, priority Priority) (string, error)
	Poll(ctx context.Context, endpoint, ticketID string) (*Result, error)
	Await(ctx context.Context, endpoint, ticketID string) (*Result, error)
}

// Client talks to the ranking service over HTTP with bounded retries.
type Client struct {
	http    httpretry.HTTPDoer
	baseURL string
	apiKey  string
	limiter *RateLimiter

	pollInterval time.Duration
	maxAttempts  int

	// sleep is swapped in tests for a fake clock.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a ticket client. limiter may be nil, in which case
// no ceiling is enforced locally (tests, one-off tools).
func NewClient(baseURL, apiKey string, limiter *RateLimiter, pollInterval time.Duration, maxAttempts int) *Client {
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 20
	}
	return &Client{
		http:         httpretry.NewRetryClient(nil, 2),
		baseURL:      baseURL,
		apiKey:       apiKey,
		limiter:      limiter,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		sleep:        sleepCtx,
	}
}

// SetHTTPClient overrides the transport (tests).
func (c *Client) SetHTTPClient(doer httpretry.HTTPDoer) { c.http = doer }

// SetSleep overrides the poll delay function (tests with fake clocks).
func (c *Client) SetSleep(fn func(ctx context.Context, d time.Duration) error) { c.sleep = fn }

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit sends a request to the given endpoint and returns the ticket
// ID for later polling. Fails fast with ErrRateLimited when the ceiling
// is hit.
func (c *Client) Submit(ctx context.Context, endpoint string, params map[string]string, priority Priority) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Allow(ctx); err != nil {
			return "", err
		}
	}

	body := map[string]any{"priority": string(priority)}
	for k, v := range params {
		body[k] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal submit params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s", c.baseURL, endpoint), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: submit %s: %v", ErrUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: submit %s: status %d: %s", ErrUnavailable, endpoint, resp.StatusCode, raw)
	}

	var out struct {
		TicketID string `json:"ticket_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.TicketID == "" {
		return "", fmt.Errorf("%w: submit %s: malformed ticket response", ErrUnavailable, endpoint)
	}
	return out.TicketID, nil
}

// Poll fetches the current state of a ticket. A pending result is not
// an error; callers own the retry budget.
func (c *Client) Poll(ctx context.Context, endpoint, ticketID string) (*Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Allow(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s/result?ticket=%s", c.baseURL, endpoint, ticketID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: poll %s: %v", ErrUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: poll %s: status %d", ErrUnavailable, endpoint, resp.StatusCode)
	}

	var r Result
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: poll %s: malformed result", ErrUnavailable, endpoint)
	}
	switch r.Status {
	case StatusPending, StatusDone, StatusError:
	default:
		return nil, fmt.Errorf("%w: poll %s: unknown status %q", ErrUnavailable, endpoint, r.Status)
	}
	return &r, nil
}

// Await polls the ticket at a fixed interval until it is terminal or
// the attempt ceiling is reached. The interval is fixed, not
// exponential: the service completes on human timescales of seconds.
// Exhaustion resolves to ErrUnavailable, which callers treat as
// "unavailable for this cycle".
func (c *Client) Await(ctx context.Context, endpoint, ticketID string) (*Result, error) {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		r, err := c.Poll(ctx, endpoint, ticketID)
		if err != nil {
			return nil, err
		}
		switch r.Status {
		case StatusDone:
			return r, nil
		case StatusError:
			return nil, fmt.Errorf("%w: ticket %s: %s", ErrUnavailable, ticketID, r.Message)
		}
		if attempt == c.maxAttempts {
			break
		}
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: ticket %s: poll budget exhausted", ErrUnavailable, ticketID)
}
