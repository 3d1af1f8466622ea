package services

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/cricmirror/core/pkg/docstore"
	"github.com/cricmirror/core/pkg/models"
	"github.com/cricmirror/core/pkg/runlog"
	"github.com/cricmirror/core/pkg/staleness"
)

const commentaryJob = "commentary"

// CommentaryLimit caps the entries kept per match
const CommentaryLimit = 300

// CommentaryService appends fresh commentary of live matches to the stored history
type CommentaryService struct {
	base
	policy staleness.Policy
	limit  int
}

func NewCommentaryService(api CricbuzzAPI, store docstore.Store, opts ...Option) *CommentaryService {
	s := &CommentaryService{base: newBase(api, store, opts), limit: CommentaryLimit}
	s.policy = staleness.Commentary.WithClock(s.now)
	return s
}

func (s *CommentaryService) SyncCommentary(ctx context.Context) (SyncResult, error) {
	rl := runlog.FromContext(ctx, commentaryJob)

	live, err := LiveMatches(ctx, s.store)
	if err != nil {
		return SyncResult{}, err
	}

	var t tally
	forEachWindow(ctx, live, s.batchSize, func(ctx context.Context, m models.MatchDocument) {
		var stored models.CommentaryDocument
		err := docstore.GetJSON(ctx, s.store, docstore.Commentary, docID(m.MatchID), &stored)
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			t.failed.Add(1)
			rl.Warning(ctx, "commentary_read_failed", "Failed to read stored commentary", map[string]any{
				"match_id": m.MatchID,
				"error":    err.Error(),
			})
			return
		}
		if !s.policy.ShouldRefresh(stored.LastFetchedAt, len(stored.Entries) > 0) {
			t.skipped.Add(1)
			return
		}

		resp, err := s.api.Commentary(ctx, m.MatchID)
		if err != nil {
			if notStarted(err) {
				t.skipped.Add(1)
				return
			}
			t.failed.Add(1)
			rl.Warning(ctx, "commentary_fetch_failed", "Failed to fetch commentary", map[string]any{
				"match_id": m.MatchID,
				"error":    err.Error(),
			})
			return
		}
		t.fetched.Add(1)

		doc := models.CommentaryDocument{
			MatchID:       m.MatchID,
			Entries:       MergeCommentary(stored.Entries, resp.CommentaryList, s.limit),
			Miniscore:     resp.Miniscore,
			LastFetchedAt: s.nowMs(),
		}
		if len(doc.Miniscore) == 0 {
			doc.Miniscore = stored.Miniscore
		}

		if err := s.put(ctx, docstore.Commentary, docID(m.MatchID), doc); err != nil {
			t.failed.Add(1)
			rl.Warning(ctx, "commentary_write_failed", "Failed to store commentary", map[string]any{
				"match_id": m.MatchID,
				"error":    err.Error(),
			})
			return
		}
		t.written.Add(1)
	})

	return t.result(), ctx.Err()
}

// MergeCommentary combines stored and freshly fetched entries. Entries are keyed by
// (innings, timestamp, ball); a fetched entry replaces a stored one with the same key.
// The result is newest first and holds at most limit entries (no cap when limit <= 0).
func MergeCommentary(existing, incoming []models.CommentaryEntry, limit int) []models.CommentaryEntry {
	byKey := make(map[models.CommentaryKey]models.CommentaryEntry, len(existing)+len(incoming))
	for _, e := range existing {
		byKey[e.Key()] = e
	}
	for _, e := range incoming {
		byKey[e.Key()] = e
	}

	merged := make([]models.CommentaryEntry, 0, len(byKey))
	for _, e := range byKey {
		merged = append(merged, e)
	}

	slices.SortFunc(merged, func(a, b models.CommentaryEntry) int {
		if c := cmp.Compare(b.Timestamp, a.Timestamp); c != 0 {
			return c
		}
		if c := cmp.Compare(b.InningsID, a.InningsID); c != 0 {
			return c
		}
		return cmp.Compare(b.BallNbr, a.BallNbr)
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
