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

const squadsJob = "squads"

// SquadService keeps both team rosters of live and upcoming matches. A squad document
// with an empty roster is refetched regardless of age.
type SquadService struct {
	base
	policy staleness.Policy
}

func NewSquadService(api CricbuzzAPI, store docstore.Store, opts ...Option) *SquadService {
	s := &SquadService{base: newBase(api, store, opts)}
	s.policy = staleness.Squad.WithClock(s.now)
	return s
}

func (s *SquadService) SyncSquads(ctx context.Context) (SyncResult, error) {
	rl := runlog.FromContext(ctx, squadsJob)

	matches, err := ActiveMatches(ctx, s.store, s.now())
	if err != nil {
		return SyncResult{}, err
	}

	var t tally
	forEachWindow(ctx, matches, s.batchSize, func(ctx context.Context, m models.MatchDocument) {
		var stored models.SquadDocument
		err := docstore.GetJSON(ctx, s.store, docstore.Squads, docID(m.MatchID), &stored)
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			t.failed.Add(1)
			rl.Warning(ctx, "squad_read_failed", "Failed to read stored squad", map[string]any{
				"match_id": m.MatchID,
				"error":    err.Error(),
			})
			return
		}
		if !s.policy.ShouldRefresh(stored.LastFetchedAt, stored.Complete()) {
			t.skipped.Add(1)
			return
		}

		doc, err := s.fetch(ctx, m)
		if err != nil {
			if notStarted(err) {
				t.skipped.Add(1)
				return
			}
			t.failed.Add(1)
			rl.Warning(ctx, "squad_fetch_failed", "Failed to fetch squad", map[string]any{
				"match_id": m.MatchID,
				"error":    err.Error(),
			})
			return
		}
		t.fetched.Add(1)

		if err := s.put(ctx, docstore.Squads, docID(m.MatchID), doc); err != nil {
			t.failed.Add(1)
			rl.Warning(ctx, "squad_write_failed", "Failed to store squad", map[string]any{
				"match_id": m.MatchID,
				"error":    err.Error(),
			})
			return
		}
		t.written.Add(1)

		if !doc.Complete() {
			rl.Warning(ctx, "squad_incomplete", "Squad stored with an empty roster", map[string]any{
				"match_id":      m.MatchID,
				"team1_players": len(doc.Team1.Players),
				"team2_players": len(doc.Team2.Players),
			})
		}
	})

	return t.result(), ctx.Err()
}

func (s *SquadService) fetch(ctx context.Context, m models.MatchDocument) (models.SquadDocument, error) {
	doc := models.SquadDocument{MatchID: m.MatchID}

	teams := []struct {
		team models.Team
		dst  *models.TeamSquad
	}{
		{m.MatchInfo.Team1, &doc.Team1},
		{m.MatchInfo.Team2, &doc.Team2},
	}

	for _, side := range teams {
		teamID := side.team.TeamID.Int64()
		*side.dst = models.TeamSquad{TeamID: teamID, TeamName: side.team.TeamName, Players: []models.Player{}}
		if teamID == 0 {
			continue
		}

		resp, err := s.api.TeamSquad(ctx, m.MatchID, teamID)
		if err != nil {
			return doc, fmt.Errorf("team %d: %w", teamID, err)
		}
		side.dst.Players = resp.Players()
	}

	doc.LastFetchedAt = s.nowMs()
	return doc, nil
}
