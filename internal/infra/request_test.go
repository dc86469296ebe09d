package infra

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"swap_rfq/internal/domain"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}
}

func TestRequestManager_RetryOn5xx(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if callCount < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	m := NewRequestManager(fastRetryConfig(3))

	body, err := m.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get should succeed after retries: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected body: %s", body)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRequestManager_NoRetryOn4xx(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"msg":"bad symbol"}`))
	}))
	defer server.Close()

	m := NewRequestManager(fastRetryConfig(3))

	_, err := m.Get(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Get should fail on 400")
	}
	if callCount != 1 {
		t.Errorf("400 should not be retried, got %d calls", callCount)
	}

	var svcErr *domain.ExternalServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ExternalServiceError, got %T", err)
	}
	if svcErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", svcErr.StatusCode)
	}
	if svcErr.Body != `{"msg":"bad symbol"}` {
		t.Errorf("Body = %q", svcErr.Body)
	}
}

func TestRequestManager_ExhaustedRetries(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	m := NewRequestManager(fastRetryConfig(2))

	_, err := m.Get(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Get should fail once retries are exhausted")
	}
	// maxRetries=2 means 1 initial attempt + 2 retries
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}

	var svcErr *domain.ExternalServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ExternalServiceError, got %T", err)
	}
	if svcErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", svcErr.StatusCode)
	}
}

func TestRequestManager_CustomPredicate(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := fastRetryConfig(3)
	cfg.ShouldRetry = func(err *domain.ExternalServiceError) bool { return false }
	m := NewRequestManager(cfg)

	_, err := m.Get(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Get should fail")
	}
	if callCount != 1 {
		t.Errorf("custom predicate should suppress retries, got %d calls", callCount)
	}
}

func TestRequestManager_RateLimitSpacing(t *testing.T) {
	var timestamps []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timestamps = append(timestamps, time.Now())
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	m := NewRequestManager(fastRetryConfig(0))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := m.Get(ctx, server.URL); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}

	if len(timestamps) != 3 {
		t.Fatalf("Expected 3 calls, got %d", len(timestamps))
	}
	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		// Allow a little scheduling slack under the nominal 100ms
		if gap < minRequestInterval-20*time.Millisecond {
			t.Errorf("calls %d and %d only %v apart, want >= %v", i-1, i, gap, minRequestInterval)
		}
	}
}

func TestRequestManager_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := fastRetryConfig(5)
	cfg.BaseDelay = time.Second
	m := NewRequestManager(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := m.Get(ctx, server.URL)
	if err == nil {
		t.Fatal("Get should fail when context expires mid-backoff")
	}
}

func TestCalculateBackoff_Capped(t *testing.T) {
	for i := 0; i < 12; i++ {
		d := CalculateBackoff(i)
		if d < reconnectBase {
			t.Errorf("backoff(%d) = %v, below base", i, d)
		}
		if d > reconnectMax+reconnectMax/5 {
			t.Errorf("backoff(%d) = %v, above cap+jitter", i, d)
		}
	}
}
