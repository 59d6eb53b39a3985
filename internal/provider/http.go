package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/storesense/internal/model"
	"github.com/sells-group/storesense/internal/resilience"
)

// HTTPPosition fetches the current fix from a companion endpoint (a phone
// app or gpsd bridge posting its location). Transient failures are retried
// with backoff and repeated failures trip a circuit breaker so a dead
// endpoint degrades detection to WiFi-only quickly instead of stalling
// every cycle on timeouts.
type HTTPPosition struct {
	URL     string
	Client  *http.Client
	Retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker

	// MaxFixAge rejects stale fixes. Defaults to 2 minutes.
	MaxFixAge time.Duration
}

// NewHTTPPosition builds a provider for the given endpoint.
func NewHTTPPosition(url string) *HTTPPosition {
	return &HTTPPosition{
		URL:       url,
		Client:    &http.Client{Timeout: 5 * time.Second},
		Retry:     resilience.DefaultRetryConfig(),
		breaker:   resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		MaxFixAge: 2 * time.Minute,
	}
}

func (h *HTTPPosition) CurrentFix(ctx context.Context) (*model.PositionFix, error) {
	fetch := func(ctx context.Context) (*model.PositionFix, error) {
		return resilience.DoVal(ctx, h.Retry, h.fetch)
	}

	var fix *model.PositionFix
	var err error
	if h.breaker != nil {
		fix, err = resilience.ExecuteVal(ctx, h.breaker, fetch)
	} else {
		fix, err = fetch(ctx)
	}
	if err != nil {
		return nil, ErrPositionUnavailable
	}

	maxAge := h.MaxFixAge
	if maxAge <= 0 {
		maxAge = 2 * time.Minute
	}
	if !fix.ObservedAt.IsZero() && time.Since(fix.ObservedAt) > maxAge {
		return nil, ErrPositionUnavailable
	}
	return fix, nil
}

func (h *HTTPPosition) fetch(ctx context.Context) (*model.PositionFix, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "provider: build fix request")
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(err, 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("provider: fix endpoint returned %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var fix model.PositionFix
	if err := json.NewDecoder(resp.Body).Decode(&fix); err != nil {
		return nil, eris.Wrap(err, "provider: decode fix")
	}
	return &fix, nil
}
