package services

import (
	"context"
	"fmt"

	"github.com/cricmirror/core/pkg/docstore"
	"github.com/cricmirror/core/pkg/models"
	"github.com/cricmirror/core/pkg/runlog"
	"github.com/cricmirror/core/pkg/utils"
)

const seriesStatsJob = "series_stats"

// SeriesStatsService fetches the leaderboards of a fixed list of series
type SeriesStatsService struct {
	base
	seriesIDs []int64
	statTypes []string
}

func NewSeriesStatsService(api CricbuzzAPI, store docstore.Store, seriesIDs []int64, opts ...Option) *SeriesStatsService {
	return &SeriesStatsService{
		base:      newBase(api, store, opts),
		seriesIDs: seriesIDs,
		statTypes: models.SeriesStatTypes,
	}
}

func (s *SeriesStatsService) SyncSeriesStats(ctx context.Context) (SyncResult, error) {
	rl := runlog.FromContext(ctx, seriesStatsJob)
	var result SyncResult

	if len(s.seriesIDs) == 0 {
		rl.Info(ctx, "series_stats_unconfigured", "No series configured", nil)
		return result, nil
	}

	names, err := s.seriesNames(ctx)
	if err != nil {
		rl.Warning(ctx, "series_names_unavailable", "Falling back to stat page titles for series names", map[string]any{
			"error": err.Error(),
		})
	}

	for i, seriesID := range s.seriesIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		doc, fetched, err := s.fetchSeries(ctx, seriesID, names[seriesID])
		result.Fetched += fetched
		if err != nil {
			result.Failed++
			rl.Warning(ctx, "series_stats_fetch_failed", "Failed to fetch series stats", map[string]any{
				"series_id": seriesID,
				"error":     err.Error(),
			})
			continue
		}

		id := utils.SeriesSlug(doc.SeriesName, docID(seriesID))
		if err := s.put(ctx, docstore.SeriesStats, id, doc); err != nil {
			result.Failed++
			rl.Warning(ctx, "series_stats_write_failed", "Failed to store series stats", map[string]any{
				"series_id": seriesID,
				"error":     err.Error(),
			})
			continue
		}
		result.Written++

		rl.Info(ctx, "series_stats_synced", "Series stats stored", map[string]any{
			"series_id": seriesID,
			"doc_id":    id,
			"progress":  runlog.Progress(i+1, len(s.seriesIDs)),
		})
	}

	return result, nil
}

// fetchSeries loads every stat type of one series. A single failed stat type fails the
// series so a partial leaderboard never replaces a complete one.
func (s *SeriesStatsService) fetchSeries(ctx context.Context, seriesID int64, name string) (models.SeriesStatsDocument, int, error) {
	doc := models.SeriesStatsDocument{
		SeriesID:   seriesID,
		SeriesName: name,
		Stats:      make(map[string]models.StatsTable, len(s.statTypes)),
	}

	fetched := 0
	for _, statType := range s.statTypes {
		resp, err := s.api.SeriesStats(ctx, seriesID, statType)
		if err != nil {
			return doc, fetched, fmt.Errorf("%s: %w", statType, err)
		}
		fetched++

		doc.Stats[utils.StatSlug(statType)] = resp.Table()
		if doc.SeriesName == "" && resp.AppIndex != nil {
			doc.SeriesName = utils.SeriesNameFromTitle(resp.AppIndex.SeoTitle)
		}
	}

	doc.LastFetchedAt = s.nowMs()
	return doc, fetched, nil
}

// seriesNames maps series ids to names seen on stored matches
func (s *SeriesStatsService) seriesNames(ctx context.Context) (map[int64]string, error) {
	names := make(map[int64]string)
	matches, err := ListMatches(ctx, s.store, docstore.Matches)
	if err != nil {
		return names, err
	}
	for _, m := range matches {
		if id := m.MatchInfo.SeriesID.Int64(); id != 0 && m.MatchInfo.SeriesName != "" {
			names[id] = m.MatchInfo.SeriesName
		}
	}
	return names, nil
}
