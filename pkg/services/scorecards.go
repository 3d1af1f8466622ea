package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/cricmirror/core/pkg/docstore"
	"github.com/cricmirror/core/pkg/models"
	"github.com/cricmirror/core/pkg/runlog"
	"github.com/cricmirror/core/pkg/staleness"
)

const scorecardsJob = "scorecards"

// ScorecardService refreshes stale scorecards of live matches
type ScorecardService struct {
	base
	policy staleness.Policy
}

func NewScorecardService(api CricbuzzAPI, store docstore.Store, opts ...Option) *ScorecardService {
	s := &ScorecardService{base: newBase(api, store, opts)}
	s.policy = staleness.Scorecard.WithClock(s.now)
	return s
}

func (s *ScorecardService) SyncScorecards(ctx context.Context) (SyncResult, error) {
	rl := runlog.FromContext(ctx, scorecardsJob)

	live, err := LiveMatches(ctx, s.store)
	if err != nil {
		return SyncResult{}, err
	}

	var t tally
	forEachWindow(ctx, live, s.batchSize, func(ctx context.Context, m models.MatchDocument) {
		stored, err := s.stored(ctx, m.MatchID)
		if err != nil {
			t.failed.Add(1)
			rl.Warning(ctx, "scorecard_read_failed", "Failed to read stored scorecard", map[string]any{
				"match_id": m.MatchID,
				"error":    err.Error(),
			})
			return
		}
		if !s.policy.ShouldRefresh(stored.LastFetchedAt, stored.Complete()) {
			t.skipped.Add(1)
			return
		}

		card, err := s.api.Scorecard(ctx, m.MatchID)
		if err != nil {
			if notStarted(err) {
				t.skipped.Add(1)
				return
			}
			t.failed.Add(1)
			rl.Warning(ctx, "scorecard_fetch_failed", "Failed to fetch scorecard", map[string]any{
				"match_id": m.MatchID,
				"error":    err.Error(),
			})
			return
		}
		t.fetched.Add(1)

		doc := models.ScorecardDocument{
			MatchID:       m.MatchID,
			Scorecard:     *card,
			LastFetchedAt: s.nowMs(),
		}
		if err := s.put(ctx, docstore.Scorecards, docID(m.MatchID), doc); err != nil {
			t.failed.Add(1)
			rl.Warning(ctx, "scorecard_write_failed", "Failed to store scorecard", map[string]any{
				"match_id": m.MatchID,
				"error":    err.Error(),
			})
			return
		}
		t.written.Add(1)
	})

	return t.result(), ctx.Err()
}

func (s *ScorecardService) stored(ctx context.Context, matchID int64) (models.ScorecardDocument, error) {
	var doc models.ScorecardDocument
	err := docstore.GetJSON(ctx, s.store, docstore.Scorecards, docID(matchID), &doc)
	if errors.Is(err, docstore.ErrNotFound) {
		return models.ScorecardDocument{}, nil
	}
	if err != nil {
		return doc, fmt.Errorf("scorecard %d: %w", matchID, err)
	}
	return doc, nil
}
