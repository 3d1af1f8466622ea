package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cricmirror/core/pkg/docstore"
	"github.com/cricmirror/core/pkg/runlog"
)

const retentionJob = "retention_cleanup"

// RunEventPruner deletes run log events created before cutoff
type RunEventPruner interface {
	DeleteRunEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionConfig holds how long each kind of data is kept
type RetentionConfig struct {
	RunLogDays int
	MatchDays  int
}

// RetentionResult reports the rows and documents removed by one pass
type RetentionResult struct {
	RunEvents int64            `json:"run_events"`
	Documents map[string]int64 `json:"documents"`
}

// RetentionService removes expired run events and short-lived documents
type RetentionService struct {
	runs  RunEventPruner
	store docstore.Store
	cfg   RetentionConfig
	now   func() time.Time
}

func NewRetentionService(runs RunEventPruner, store docstore.Store, cfg RetentionConfig) *RetentionService {
	if cfg.RunLogDays <= 0 {
		cfg.RunLogDays = 30
	}
	if cfg.MatchDays <= 0 {
		cfg.MatchDays = 7
	}
	return &RetentionService{runs: runs, store: store, cfg: cfg, now: time.Now}
}

// WithClock returns the service reading time from now
func (s *RetentionService) WithClock(now func() time.Time) *RetentionService {
	s.now = now
	return s
}

// Cleanup deletes run events older than RunLogDays and live match and commentary
// documents older than MatchDays. The first error stops the pass.
func (s *RetentionService) Cleanup(ctx context.Context) (RetentionResult, error) {
	rl := runlog.FromContext(ctx, retentionJob)
	now := s.now()
	result := RetentionResult{Documents: make(map[string]int64)}

	runCutoff := now.AddDate(0, 0, -s.cfg.RunLogDays)
	deleted, err := s.runs.DeleteRunEventsBefore(ctx, runCutoff)
	if err != nil {
		return result, fmt.Errorf("failed to delete run events: %w", err)
	}
	result.RunEvents = deleted
	rl.Info(ctx, "run_events_pruned", "Old run events deleted", map[string]any{
		"deleted": deleted,
		"cutoff":  runCutoff.UTC().Format(time.RFC3339),
	})

	docCutoff := now.AddDate(0, 0, -s.cfg.MatchDays)
	for _, collection := range []string{docstore.LiveMatches, docstore.Commentary} {
		deleted, err := s.store.DeleteBefore(ctx, collection, docCutoff)
		if err != nil {
			return result, fmt.Errorf("failed to prune %s: %w", collection, err)
		}
		result.Documents[collection] = deleted
		rl.Info(ctx, "documents_pruned", "Old documents deleted", map[string]any{
			"collection": collection,
			"deleted":    deleted,
			"cutoff":     docCutoff.UTC().Format(time.RFC3339),
		})
	}

	return result, nil
}
