package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// ExternalServiceError is a failed outbound venue call, raised by the
// request client once its retry budget is exhausted (or immediately for a
// non-retryable status). StatusCode is 0 when no response was received.
type ExternalServiceError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("external service error: %v", e.Err)
	}
	return fmt.Sprintf("external service error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsRetriable mirrors the default retry predicate: no response, rate
// limiting, or a server-side failure.
func (e *ExternalServiceError) IsRetriable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode < 600)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// NoDataError is a venue batch fetch that produced zero valid ticks.
// Fatal for that venue's contribution to the cycle, not for the cycle.
type NoDataError struct {
	Exchange string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no valid price data received from %s", e.Exchange)
}

// InsufficientDataError means a volatility window held fewer than the two
// consolidated points needed to compute a return series.
type InsufficientDataError struct {
	Pair          AssetPair
	LookbackHours int
	Points        int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s over %dh: %d points, need at least 2",
		e.Pair, e.LookbackHours, e.Points)
}

var (
	// ErrNoMarketData is fatal to an aggregation cycle: every venue failed
	// or returned nothing. The scheduler logs it and waits for the next tick.
	ErrNoMarketData = errors.New("no price data collected from any exchange")

	// ErrNoConvergence is returned by the implied volatility solver when
	// Newton-Raphson exhausts its iteration budget.
	ErrNoConvergence = errors.New("implied volatility did not converge")

	// ErrInvalidSymbol is returned when a venue symbol cannot be parsed back
	// into an asset pair.
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// RFQ rejections, surfaced to the caller verbatim (the routing layer maps
// them to 4xx responses). Wording is part of the contract.
var (
	ErrInvalidSolver  = errors.New("Invalid or inactive solver")
	ErrInvalidRequest = errors.New("Invalid or expired request")
	ErrInvalidQuote   = errors.New("Invalid or expired quote")
	ErrUnauthorized   = errors.New("Unauthorized")
	ErrInvalidAddress = errors.New("Invalid solver address")
	ErrOrderNotFound  = errors.New("Order not found")
)

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
