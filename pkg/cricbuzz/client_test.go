package cricbuzz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cricmirror/core/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate func(*Config)) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig("test-key")
	cfg.BaseURL = server.URL
	cfg.RequestsPerMin = 6000
	cfg.RetryInitialInterval = time.Millisecond
	cfg.MaxRetries = 2
	if mutate != nil {
		mutate(cfg)
	}

	return NewClient(cfg, WithLogger(logger.Nop())), server
}

func TestClient_LiveMatches(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/matches/v1/live" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-RapidAPI-Key"); got != "test-key" {
			t.Errorf("Expected RapidAPI key header, got %q", got)
		}
		if got := r.Header.Get("X-RapidAPI-Host"); got != "cricbuzz-cricket.p.rapidapi.com" {
			t.Errorf("Expected RapidAPI host header, got %q", got)
		}
		_, _ = w.Write([]byte(`{"typeMatches":[{"matchType":"League","seriesMatches":[{"seriesAdWrapper":{"seriesId":1,"seriesName":"IPL","matches":[{"matchInfo":{"matchId":"9","state":"Toss"}}]}}]}]}`))
	}, nil)

	resp, err := client.LiveMatches(context.Background())
	if err != nil {
		t.Fatalf("LiveMatches() error = %v", err)
	}
	matches := resp.Matches()
	if len(matches) != 1 || matches[0].MatchInfo.MatchID != 9 {
		t.Fatalf("Unexpected matches: %+v", matches)
	}
}

func TestClient_SeriesStatsQuery(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stats/v1/series/7607" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("statsType"); got != "mostRuns" {
			t.Errorf("Expected statsType=mostRuns, got %q", got)
		}
		_, _ = w.Write([]byte(`{"headers":["Batter"],"values":[]}`))
	}, nil)

	if _, err := client.SeriesStats(context.Background(), 7607, "mostRuns"); err != nil {
		t.Fatalf("SeriesStats() error = %v", err)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"scoreCard":[{"inningsId":1,"scoreDetails":{"runs":120,"wickets":3,"overs":15.2}}]}`))
	}, nil)

	sc, err := client.Scorecard(context.Background(), 42)
	if err != nil {
		t.Fatalf("Scorecard() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
	if sc.ScoreCard[0].ScoreDetails.Runs != 120 {
		t.Errorf("Expected 120 runs, got %d", sc.ScoreCard[0].ScoreDetails.Runs)
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}, nil)

	_, err := client.Commentary(context.Background(), 42)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 APIError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected a single attempt, got %d", calls.Load())
	}
}

func TestClient_RateLimitExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}, nil)

	_, err := client.LiveMatches(context.Background())
	var rateLimit *RateLimitError
	if !errors.As(err, &rateLimit) {
		t.Fatalf("Expected RateLimitError, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestClient_NoContentIsNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, nil)

	_, err := client.TeamSquad(context.Background(), 1, 2)
	if !IsNotFound(err) {
		t.Fatalf("Expected not found error, got %v", err)
	}
}

func TestClient_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, func(cfg *Config) {
		cfg.MaxRetries = 0
		cfg.CircuitFailureCount = 2
		cfg.CircuitOpenTimeout = time.Hour
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := client.LiveMatches(ctx); err == nil {
			t.Fatal("Expected server error")
		}
	}

	_, err := client.LiveMatches(ctx)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Expected ErrCircuitOpen, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected the open circuit to short-circuit, got %d upstream calls", calls.Load())
	}
}

func TestClient_RequiresAPIKey(t *testing.T) {
	client := NewClient(DefaultConfig(""), WithLogger(logger.Nop()))
	if client.IsAvailable() {
		t.Fatal("Expected client without key to be unavailable")
	}
	if _, err := client.LiveMatches(context.Background()); err == nil {
		t.Fatal("Expected error without API key")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", &RateLimitError{StatusCode: 429}, true},
		{"server error", &APIError{StatusCode: 503}, true},
		{"client error", &APIError{StatusCode: 404}, false},
		{"decode", &DecodeError{Route: "/x", Err: errors.New("eof")}, false},
		{"circuit open", ErrCircuitOpen, false},
		{"transport", errors.New("connection reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRateLimitError_RetryAfterDelay(t *testing.T) {
	if d := (&RateLimitError{RetryAfter: "3"}).RetryAfterDelay(); d != 3*time.Second {
		t.Errorf("Expected 3s, got %v", d)
	}
	if d := (&RateLimitError{RetryAfter: "Wed, 21 Oct 2015 07:28:00 GMT"}).RetryAfterDelay(); d != 0 {
		t.Errorf("Expected 0 for HTTP date, got %v", d)
	}
}
