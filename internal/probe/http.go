package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Result is the outcome of probing one target, ready to be persisted as an
// observation.
type Result struct {
	IsUp           bool
	ResponseTimeMS *int64
	Notes          string
}

// HTTPProber issues GET probes with a per-target timeout and attempt budget.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber builds a prober around a shared transport.
func NewHTTPProber() *HTTPProber {
	return &HTTPProber{client: &http.Client{}}
}

// FetchResult captures a successful attempt.
type FetchResult struct {
	Status  int
	Body    string
	Elapsed time.Duration
}

// Fetch attempts a GET up to maxRetries times. An attempt succeeds when the
// transport completes and the status is 2xx. It returns the number of attempts
// made together with the successful response, or the last error on exhaustion.
func (p *HTTPProber) Fetch(ctx context.Context, url string, timeout time.Duration, maxRetries int) (int, *FetchResult, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		result, err := p.attempt(ctx, url, timeout)
		if err == nil {
			return attempt, result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return attempt, nil, ctx.Err()
		}
	}
	return maxRetries, nil, lastErr
}

func (p *HTTPProber) attempt(ctx context.Context, url string, timeout time.Duration) (*FetchResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(started)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return &FetchResult{Status: resp.StatusCode, Body: string(body), Elapsed: elapsed}, nil
}

// Check probes an HTTP target and renders the observation fields. A target is
// up only when the final attempt returned 2xx and the trimmed body equals the
// sentinel.
func (p *HTTPProber) Check(ctx context.Context, target Target) Result {
	attempts, fetched, err := p.Fetch(ctx, target.URI, target.Timeout(), target.MaxRetries())
	if err != nil {
		return Result{
			IsUp:  false,
			Notes: fmt.Sprintf("Failed to access page after %d attempts: %v", attempts, err),
		}
	}

	var notes strings.Builder
	if attempts > 1 {
		fmt.Fprintf(&notes, "After %d attempts, ", attempts)
	}

	if strings.TrimSpace(fetched.Body) != SentinelBody {
		fmt.Fprintf(&notes, "content was invalid: unexpected body %q", truncate(strings.TrimSpace(fetched.Body), 64))
		return Result{IsUp: false, Notes: notes.String()}
	}

	elapsedMS := fetched.Elapsed.Round(time.Millisecond).Milliseconds()
	notes.WriteString("nothing notable.")
	return Result{IsUp: true, ResponseTimeMS: &elapsedMS, Notes: notes.String()}
}

// Reachable performs the single connectivity-gate GET.
func (p *HTTPProber) Reachable(ctx context.Context, url string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
