package infra

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"swap_rfq/internal/domain"
)

// minRequestInterval is the minimum spacing between two calls to the same
// hostname. Tracked via last-call timestamps, deliberately not a token
// bucket: one slot per host, no burst credit.
const minRequestInterval = 100 * time.Millisecond

// RetryConfig tunes the retry behavior of a RequestManager. Passed by
// value; ShouldRetry must not capture mutable shared state.
type RetryConfig struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	ShouldRetry func(err *domain.ExternalServiceError) bool
}

// DefaultRetryConfig retries on missing responses, rate limits and 5xx.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		ShouldRetry: func(err *domain.ExternalServiceError) bool {
			return err.IsRetriable()
		},
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxRetries > 0 {
		d.MaxRetries = c.MaxRetries
	}
	if c.BaseDelay > 0 {
		d.BaseDelay = c.BaseDelay
	}
	if c.MaxDelay > 0 {
		d.MaxDelay = c.MaxDelay
	}
	if c.ShouldRetry != nil {
		d.ShouldRetry = c.ShouldRetry
	}
	return d
}

// RequestManager issues outbound HTTP calls with exponential backoff,
// jitter and per-hostname rate limiting. Safe for concurrent use.
type RequestManager struct {
	retryConfig RetryConfig
	httpClient  *http.Client
	logger      *slog.Logger

	mu       sync.Mutex
	lastCall map[string]time.Time
}

// NewRequestManager creates a request manager with the given retry tuning.
func NewRequestManager(cfg RetryConfig) *RequestManager {
	return &RequestManager{
		retryConfig: cfg.withDefaults(),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		logger:   slog.Default().With("module", "request"),
		lastCall: make(map[string]time.Time),
	}
}

// enforceRateLimit sleeps until the per-host minimum interval has elapsed
// since the previous call to the same hostname.
func (m *RequestManager) enforceRateLimit(ctx context.Context, hostname string) error {
	m.mu.Lock()
	now := time.Now()
	last := m.lastCall[hostname]
	wait := last.Add(minRequestInterval).Sub(now)
	if wait < 0 {
		wait = 0
	}
	m.lastCall[hostname] = now.Add(wait)
	m.mu.Unlock()

	if wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}

// backoffDelay computes the jittered delay before retry attempt n:
// min(base * 2^n, max) scaled by a uniform factor in [0.75, 1.25].
func (m *RequestManager) backoffDelay(attempt int) time.Duration {
	delay := m.retryConfig.BaseDelay << uint(attempt)
	if delay > m.retryConfig.MaxDelay || delay <= 0 {
		delay = m.retryConfig.MaxDelay
	}
	jitter := 0.75 + rand.Float64()*0.5
	return time.Duration(float64(delay) * jitter)
}

// Get fetches the URL, retrying per the configured predicate, and returns
// the response body. After exhausting retries (or on a non-retryable
// failure) it returns a *domain.ExternalServiceError.
func (m *RequestManager) Get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	var lastErr *domain.ExternalServiceError
	for attempt := 0; attempt <= m.retryConfig.MaxRetries; attempt++ {
		if err := m.enforceRateLimit(ctx, u.Hostname()); err != nil {
			return nil, err
		}

		body, svcErr := m.doGet(ctx, rawURL)
		if svcErr == nil {
			return body, nil
		}
		lastErr = svcErr

		if attempt < m.retryConfig.MaxRetries && m.retryConfig.ShouldRetry(svcErr) {
			delay := m.backoffDelay(attempt)
			m.logger.Warn("Request failed, retrying",
				slog.String("url", rawURL),
				slog.Duration("delay", delay),
				slog.Int("attempt", attempt+1),
				slog.Int("max_retries", m.retryConfig.MaxRetries),
				slog.Any("error", svcErr),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		return nil, svcErr
	}

	return nil, lastErr
}

func (m *RequestManager) doGet(ctx context.Context, rawURL string) ([]byte, *domain.ExternalServiceError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.ExternalServiceError{Err: err}
	}
	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		// No response at all: network failure, timeout, DNS.
		return nil, &domain.ExternalServiceError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ExternalServiceError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ExternalServiceError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
