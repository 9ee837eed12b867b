package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/MiX1964/wforecast/internal/weather"
)

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 4 << 20

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errUnexpected   = errors.New("unexpected status code")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

// BreakerSettings tunes the circuit breaker in front of an upstream.
type BreakerSettings struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// DefaultBreakerSettings mirrors what the upstream rate limits tolerate.
var DefaultBreakerSettings = BreakerSettings{
	MaxRequests: 5,
	Interval:    1 * time.Minute,
	Timeout:     2 * time.Minute,
}

func newBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		// "No such place" is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, weather.ErrNotFound)
		},
	})
}

// doRequest executes one GET through the circuit breaker and returns the body
// of a 2xx response. There are no retries: the caller moves on to its next
// fallback instead.
func doRequest(
	ctx context.Context,
	client *http.Client,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
) ([]byte, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: %w", weather.ErrSourceUnavailable, errNoHTTPClient)
	}

	req, err := buildRequest(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", weather.ErrSourceUnavailable, err)
	}

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, fmt.Errorf("%w: %w", weather.ErrSourceUnavailable, execErr)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%w: upstream status %d", weather.ErrNotFound, resp.StatusCode)
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, fmt.Errorf("%w: %w", weather.ErrSourceUnavailable, errRateLimited)
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: %w: %d", weather.ErrSourceUnavailable, errServerError, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, fmt.Errorf("%w: %w: %d", weather.ErrSourceUnavailable, errUnexpected, resp.StatusCode)
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return nil, fmt.Errorf("%w: read body: %w", weather.ErrSourceUnavailable, readErr)
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w: %v", weather.ErrSourceUnavailable, errCircuitOpen, err)
		}
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected result type from circuit breaker", weather.ErrSourceUnavailable)
	}
	return body, nil
}
