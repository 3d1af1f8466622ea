// Package cricbuzz is a client for the Cricbuzz cricket API served through RapidAPI.
package cricbuzz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/metrics"
	"github.com/cricmirror/core/pkg/models"
)

// Config holds configuration for the Cricbuzz client
type Config struct {
	APIKey         string
	APIHost        string
	BaseURL        string
	Timeout        time.Duration
	RequestsPerMin int
	MaxRetries     int

	// Retry delays start at RetryInitialInterval and grow exponentially
	RetryInitialInterval time.Duration

	CircuitFailureCount uint32        // Consecutive failures that open the circuit
	CircuitOpenTimeout  time.Duration // How long the circuit stays open
	CircuitHalfOpenReqs uint32        // Probe requests allowed while half-open
}

// DefaultConfig returns a default configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:               apiKey,
		APIHost:              "cricbuzz-cricket.p.rapidapi.com",
		BaseURL:              "https://cricbuzz-cricket.p.rapidapi.com",
		Timeout:              15 * time.Second,
		RequestsPerMin:       60,
		MaxRetries:           3,
		RetryInitialInterval: time.Second,
		CircuitFailureCount:  5,
		CircuitOpenTimeout:   60 * time.Second,
		CircuitHalfOpenReqs:  1,
	}
}

// Client provides access to the Cricbuzz API
type Client struct {
	httpClient *http.Client
	cfg        Config
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics records request outcomes on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger replaces the client logger
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a new Cricbuzz client
func NewClient(config *Config, opts ...Option) *Client {
	if config == nil {
		config = DefaultConfig("")
	}
	cfg := *config
	defaults := DefaultConfig(cfg.APIKey)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.APIHost == "" {
		cfg.APIHost = defaults.APIHost
	}
	if cfg.RequestsPerMin <= 0 {
		cfg.RequestsPerMin = defaults.RequestsPerMin
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = defaults.RetryInitialInterval
	}
	if cfg.CircuitFailureCount == 0 {
		cfg.CircuitFailureCount = defaults.CircuitFailureCount
	}
	if cfg.CircuitOpenTimeout <= 0 {
		cfg.CircuitOpenTimeout = defaults.CircuitOpenTimeout
	}
	if cfg.CircuitHalfOpenReqs == 0 {
		cfg.CircuitHalfOpenReqs = defaults.CircuitHalfOpenReqs
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMin)), cfg.RequestsPerMin),
		logger:     logger.New("cricbuzz-client"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cricbuzz",
		MaxRequests: cfg.CircuitHalfOpenReqs,
		Timeout:     cfg.CircuitOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.CircuitFailureCount
		},
		// client errors say nothing about upstream health
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().
				Str("action", "circuit_state_change").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			c.metrics.SetCircuitState(name, float64(to))
		},
	})

	return c
}

// IsAvailable checks if the API key is configured
func (c *Client) IsAvailable() bool {
	return c.cfg.APIKey != ""
}

// LiveMatches fetches every match currently listed as live
func (c *Client) LiveMatches(ctx context.Context) (*models.LiveMatchesResponse, error) {
	var resp models.LiveMatchesResponse
	if err := c.getJSON(ctx, "/matches/v1/live", "/matches/v1/live", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Scorecard fetches the full scorecard of a match
func (c *Client) Scorecard(ctx context.Context, matchID int64) (*models.Scorecard, error) {
	var resp models.Scorecard
	path := fmt.Sprintf("/mcenter/v1/%d/hscard", matchID)
	if err := c.getJSON(ctx, "/mcenter/v1/{id}/hscard", path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TeamSquad fetches one team's roster for a match
func (c *Client) TeamSquad(ctx context.Context, matchID, teamID int64) (*models.TeamSquadResponse, error) {
	var resp models.TeamSquadResponse
	path := fmt.Sprintf("/mcenter/v1/%d/team/%d", matchID, teamID)
	if err := c.getJSON(ctx, "/mcenter/v1/{id}/team/{teamId}", path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Commentary fetches the latest ball-by-ball commentary of a match
func (c *Client) Commentary(ctx context.Context, matchID int64) (*models.CommentaryResponse, error) {
	var resp models.CommentaryResponse
	path := fmt.Sprintf("/mcenter/v1/%d/comm", matchID)
	if err := c.getJSON(ctx, "/mcenter/v1/{id}/comm", path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SeriesStats fetches one stat table of a series
func (c *Client) SeriesStats(ctx context.Context, seriesID int64, statsType string) (*models.SeriesStatsResponse, error) {
	var resp models.SeriesStatsResponse
	path := "/stats/v1/series/" + strconv.FormatInt(seriesID, 10)
	params := url.Values{"statsType": {statsType}}
	if err := c.getJSON(ctx, "/stats/v1/series/{id}", path, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// getJSON performs a GET with rate limiting, circuit breaking and retries, decoding
// the body into dst. route is the templated path used for metrics and logs.
func (c *Client) getJSON(ctx context.Context, route, path string, params url.Values, dst any) error {
	if !c.IsAvailable() {
		return fmt.Errorf("API key is required")
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryInitialInterval
	policy.MaxInterval = 60 * time.Second

	var lastErr error
	operation := func() (struct{}, error) {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.do(ctx, route, path, params, dst)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = ErrCircuitOpen
		}
		lastErr = err
		if err == nil {
			return struct{}{}, nil
		}

		if ctx.Err() != nil || !IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}

		var rateLimit *RateLimitError
		if errors.As(err, &rateLimit) {
			if delay := rateLimit.RetryAfterDelay(); delay > 0 {
				return struct{}{}, backoff.RetryAfter(int(delay / time.Second))
			}
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn().
				Err(err).
				Str("action", "api_retry").
				Str("route", route).
				Dur("next_attempt_in", next).
				Msg("Retrying Cricbuzz request")
		}),
	)
	if err == nil {
		return nil
	}

	// Retry-After hints replace the upstream error, report the real one
	var retryAfter *backoff.RetryAfterError
	if errors.As(err, &retryAfter) && lastErr != nil {
		return lastErr
	}
	return err
}

func (c *Client) do(ctx context.Context, route, path string, params url.Values, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}

	u, err := url.Parse(c.cfg.BaseURL + path)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL: %w", err)
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", c.cfg.APIKey)
	req.Header.Set("X-RapidAPI-Host", c.cfg.APIHost)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.LogAPICall(http.MethodGet, route, 0, time.Since(start), err)
		c.metrics.ObserveUpstream(route, "transport_error", time.Since(start))
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	duration := time.Since(start)
	c.logger.LogAPICall(http.MethodGet, route, resp.StatusCode, duration, nil)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.metrics.ObserveUpstream(route, "rate_limited", duration)
		return &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: resp.Header.Get("Retry-After"),
			Message:    "RapidAPI request quota exceeded",
		}
	case resp.StatusCode == http.StatusNoContent:
		// Cricbuzz answers 204 for matches that have no data yet
		c.metrics.ObserveUpstream(route, "empty", duration)
		return &APIError{StatusCode: http.StatusNotFound, Route: route, Message: "no content"}
	case resp.StatusCode != http.StatusOK:
		c.metrics.ObserveUpstream(route, "http_"+strconv.Itoa(resp.StatusCode/100)+"xx", duration)
		return &APIError{
			StatusCode: resp.StatusCode,
			Route:      route,
			Message:    fmt.Sprintf("API returned status %d", resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		c.metrics.ObserveUpstream(route, "decode_error", duration)
		return &DecodeError{Route: route, Err: err}
	}

	c.metrics.ObserveUpstream(route, "ok", duration)
	return nil
}
