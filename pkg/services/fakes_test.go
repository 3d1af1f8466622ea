package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cricmirror/core/pkg/cricbuzz"
	"github.com/cricmirror/core/pkg/docstore"
	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/models"
	"github.com/cricmirror/core/pkg/runlog"
)

var testNow = time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// fakeAPI serves canned Cricbuzz responses and counts calls per route
type fakeAPI struct {
	mu sync.Mutex

	live        *models.LiveMatchesResponse
	liveErr     error
	scorecards  map[int64]*models.Scorecard
	squads      map[int64]*models.TeamSquadResponse
	commentary  map[int64]*models.CommentaryResponse
	stats       map[string]*models.SeriesStatsResponse
	failMatches map[int64]bool
	noData      map[int64]bool

	calls map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		scorecards:  make(map[int64]*models.Scorecard),
		squads:      make(map[int64]*models.TeamSquadResponse),
		commentary:  make(map[int64]*models.CommentaryResponse),
		stats:       make(map[string]*models.SeriesStatsResponse),
		failMatches: make(map[int64]bool),
		noData:      make(map[int64]bool),
		calls:       make(map[string]int),
	}
}

func (f *fakeAPI) record(route string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[route]++
}

func (f *fakeAPI) count(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

func (f *fakeAPI) failing(matchID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMatches[matchID] {
		return &cricbuzz.APIError{StatusCode: 502, Route: "test", Message: "bad gateway"}
	}
	if f.noData[matchID] {
		return &cricbuzz.APIError{StatusCode: 404, Route: "test", Message: "no content"}
	}
	return nil
}

func (f *fakeAPI) LiveMatches(ctx context.Context) (*models.LiveMatchesResponse, error) {
	f.record("live")
	if f.liveErr != nil {
		return nil, f.liveErr
	}
	return f.live, nil
}

func (f *fakeAPI) Scorecard(ctx context.Context, matchID int64) (*models.Scorecard, error) {
	f.record("scorecard")
	if err := f.failing(matchID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if card, ok := f.scorecards[matchID]; ok {
		return card, nil
	}
	return &models.Scorecard{}, nil
}

func (f *fakeAPI) TeamSquad(ctx context.Context, matchID, teamID int64) (*models.TeamSquadResponse, error) {
	f.record("squad")
	if err := f.failing(matchID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if squad, ok := f.squads[teamID]; ok {
		return squad, nil
	}
	return &models.TeamSquadResponse{}, nil
}

func (f *fakeAPI) Commentary(ctx context.Context, matchID int64) (*models.CommentaryResponse, error) {
	f.record("commentary")
	if err := f.failing(matchID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if resp, ok := f.commentary[matchID]; ok {
		return resp, nil
	}
	return &models.CommentaryResponse{}, nil
}

func (f *fakeAPI) SeriesStats(ctx context.Context, seriesID int64, statsType string) (*models.SeriesStatsResponse, error) {
	f.record("stats")
	f.mu.Lock()
	defer f.mu.Unlock()
	if resp, ok := f.stats[statsType]; ok {
		return resp, nil
	}
	return nil, errors.New("no stats for " + statsType)
}

func liveMatch(id int64, state string) models.MatchDocument {
	return models.MatchDocument{
		MatchID: id,
		MatchInfo: models.MatchInfo{
			MatchID:    models.FlexInt(id),
			SeriesID:   9237,
			SeriesName: "Indian Premier League 2025",
			State:      state,
			StartDate:  models.FlexInt(testNow.Add(-2 * time.Hour).UnixMilli()),
			Team1:      models.Team{TeamID: 58, TeamName: "Chennai Super Kings"},
			Team2:      models.Team{TeamID: 62, TeamName: "Mumbai Indians"},
		},
		IsLive: models.IsLiveState(state),
	}
}

func seed(t *testing.T, store docstore.Store, collection string, id int64, v any) {
	t.Helper()
	if err := docstore.PutJSON(context.Background(), store, collection, docID(id), v); err != nil {
		t.Fatalf("seed %s/%d: %v", collection, id, err)
	}
}

func runContext(t *testing.T, job string) (context.Context, *runlog.MemoryStore, *runlog.Logger) {
	t.Helper()
	events := runlog.NewMemoryStore()
	rl := runlog.New(events, job, "", logger.Nop())
	return rl.ToContext(context.Background()), events, rl
}

func eventActions(t *testing.T, events *runlog.MemoryStore, runID string) []string {
	t.Helper()
	list, err := events.RunEvents(context.Background(), runID)
	if err != nil {
		t.Fatalf("RunEvents() error = %v", err)
	}
	actions := make([]string, 0, len(list))
	for _, e := range list {
		actions = append(actions, e.Action)
	}
	return actions
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func decodeLive(t *testing.T, payload string) *models.LiveMatchesResponse {
	t.Helper()
	var resp models.LiveMatchesResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		t.Fatalf("decode live payload: %v", err)
	}
	return &resp
}
