package services

import (
	"context"

	"github.com/cricmirror/core/pkg/models"
)

// CricbuzzAPI is the subset of the Cricbuzz client the sync services depend on
type CricbuzzAPI interface {
	LiveMatches(ctx context.Context) (*models.LiveMatchesResponse, error)
	Scorecard(ctx context.Context, matchID int64) (*models.Scorecard, error)
	TeamSquad(ctx context.Context, matchID, teamID int64) (*models.TeamSquadResponse, error)
	Commentary(ctx context.Context, matchID int64) (*models.CommentaryResponse, error)
	SeriesStats(ctx context.Context, seriesID int64, statsType string) (*models.SeriesStatsResponse, error)
}

// LiveMatchSyncer refreshes the live match listing
type LiveMatchSyncer interface {
	SyncLiveMatches(ctx context.Context) (SyncResult, error)
}

// ScorecardSyncer refreshes scorecards of live matches
type ScorecardSyncer interface {
	SyncScorecards(ctx context.Context) (SyncResult, error)
}

// SquadSyncer refreshes squads of live and upcoming matches
type SquadSyncer interface {
	SyncSquads(ctx context.Context) (SyncResult, error)
}

// CommentarySyncer refreshes ball-by-ball commentary of live matches
type CommentarySyncer interface {
	SyncCommentary(ctx context.Context) (SyncResult, error)
}

// SeriesStatsSyncer refreshes the configured series stat tables
type SeriesStatsSyncer interface {
	SyncSeriesStats(ctx context.Context) (SyncResult, error)
}

// RetentionCleaner removes expired run events and documents
type RetentionCleaner interface {
	Cleanup(ctx context.Context) (RetentionResult, error)
}

// SyncResult counts what a sync pass did with each candidate item
type SyncResult struct {
	Fetched int `json:"fetched"`
	Written int `json:"written"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Fields renders the counts for a run log context
func (r SyncResult) Fields() map[string]any {
	return map[string]any{
		"fetched": r.Fetched,
		"written": r.Written,
		"skipped": r.Skipped,
		"failed":  r.Failed,
	}
}
