package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cricmirror/core/pkg/docstore"
	"github.com/cricmirror/core/pkg/models"
	"github.com/cricmirror/core/pkg/runlog"
)

const liveMatchesJob = "live_matches"

// upcomingHorizon bounds how far back an "upcoming" match may have started and still be
// treated as upcoming; stored states are only refreshed while the match is in the feed.
const upcomingHorizon = 6 * time.Hour

// MatchService mirrors /matches/v1/live into the matches and live_matches collections
type MatchService struct {
	base
}

func NewMatchService(api CricbuzzAPI, store docstore.Store, opts ...Option) *MatchService {
	return &MatchService{base: newBase(api, store, opts)}
}

// SyncLiveMatches upserts every match of the live feed into matches, the live ones into
// live_matches, and removes live_matches entries that are no longer live.
func (s *MatchService) SyncLiveMatches(ctx context.Context) (SyncResult, error) {
	rl := runlog.FromContext(ctx, liveMatchesJob)
	var result SyncResult

	resp, err := s.api.LiveMatches(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to fetch live matches: %w", err)
	}

	fetchedAt := s.nowMs()
	live := make(map[string]struct{})

	for _, m := range resp.Matches() {
		id := m.MatchInfo.MatchID.Int64()
		if id == 0 {
			result.Skipped++
			continue
		}
		result.Fetched++

		doc := models.NewMatchDocument(m, fetchedAt)
		if err := s.put(ctx, docstore.Matches, docID(id), doc); err != nil {
			result.Failed++
			rl.Warning(ctx, "match_write_failed", "Failed to store match", map[string]any{
				"match_id": id,
				"error":    err.Error(),
			})
			continue
		}
		result.Written++

		if !doc.IsLive {
			continue
		}
		live[docID(id)] = struct{}{}
		if err := s.put(ctx, docstore.LiveMatches, docID(id), doc); err != nil {
			result.Failed++
			rl.Warning(ctx, "live_match_write_failed", "Failed to store live match", map[string]any{
				"match_id": id,
				"error":    err.Error(),
			})
		}
	}

	removed, err := s.pruneLive(ctx, live)
	if err != nil {
		rl.Warning(ctx, "live_match_prune_failed", "Failed to remove finished live matches", map[string]any{
			"error": err.Error(),
		})
	}

	rl.Info(ctx, "live_matches_synced", "Live matches synced", map[string]any{
		"fetched": result.Fetched,
		"live":    len(live),
		"removed": removed,
	})
	return result, nil
}

func (s *MatchService) pruneLive(ctx context.Context, live map[string]struct{}) (int, error) {
	docs, err := s.store.List(ctx, docstore.LiveMatches)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, doc := range docs {
		if _, ok := live[doc.ID]; ok {
			continue
		}
		if err := s.store.Delete(ctx, docstore.LiveMatches, doc.ID); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// ListMatches decodes every match document of collection, ordered by match id
func ListMatches(ctx context.Context, store docstore.Store, collection string) ([]models.MatchDocument, error) {
	docs, err := store.List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	matches := make([]models.MatchDocument, 0, len(docs))
	for _, doc := range docs {
		var m models.MatchDocument
		if err := json.Unmarshal(doc.Data, &m); err != nil {
			continue
		}
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].MatchID < matches[j].MatchID })
	return matches, nil
}

// LiveMatches returns the stored matches currently in play
func LiveMatches(ctx context.Context, store docstore.Store) ([]models.MatchDocument, error) {
	docs, err := ListMatches(ctx, store, docstore.LiveMatches)
	if err != nil {
		return nil, err
	}

	live := docs[:0]
	for _, m := range docs {
		if m.MatchInfo.IsLive() {
			live = append(live, m)
		}
	}
	return live, nil
}

// ActiveMatches returns live matches plus upcoming ones that have not long passed their
// scheduled start.
func ActiveMatches(ctx context.Context, store docstore.Store, now time.Time) ([]models.MatchDocument, error) {
	docs, err := ListMatches(ctx, store, docstore.Matches)
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-upcomingHorizon).UnixMilli()
	active := docs[:0]
	for _, m := range docs {
		switch {
		case m.MatchInfo.IsLive():
			active = append(active, m)
		case m.MatchInfo.IsUpcoming() && m.MatchInfo.StartDate.Int64() >= cutoff:
			active = append(active, m)
		}
	}
	return active, nil
}
