package runlog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps run events in process. Used by one-off CLI runs without a
// database and by tests.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	nextID int64
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AppendRunEvent stores a copy of event
func (m *MemoryStore) AppendRunEvent(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	event.ID = m.nextID
	m.events = append(m.events, event)
	return nil
}

// RunEvents returns the events of runID ordered by (created_at, id)
func (m *MemoryStore) RunEvents(_ context.Context, runID string) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Event
	for _, e := range m.events {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	sortEvents(out)
	return out, nil
}

// ListRuns groups events by run id, newest run first
func (m *MemoryStore) ListRuns(_ context.Context, jobKey string, limit int) ([]Run, error) {
	m.mu.RLock()
	byRun := make(map[string][]Event)
	for _, e := range m.events {
		if jobKey != "" && e.JobKey != jobKey {
			continue
		}
		byRun[e.RunID] = append(byRun[e.RunID], e)
	}
	m.mu.RUnlock()

	runs := make([]Run, 0, len(byRun))
	for runID, events := range byRun {
		sortEvents(events)
		runs = append(runs, Run{
			RunID:      runID,
			JobKey:     events[0].JobKey,
			Status:     TerminalStatus(events),
			StartedAt:  events[0].CreatedAt,
			FinishedAt: events[len(events)-1].CreatedAt,
			EventCount: len(events),
		})
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// DeleteRunEventsBefore drops events created before cutoff
func (m *MemoryStore) DeleteRunEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.events[:0]
	var removed int64
	for _, e := range m.events {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return removed, nil
}

func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
}
