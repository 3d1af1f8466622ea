package services

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/cricmirror/core/pkg/cricbuzz"
	"github.com/cricmirror/core/pkg/docstore"
	"github.com/cricmirror/core/pkg/metrics"
)

// BatchSize is the number of concurrent upstream requests per window
const BatchSize = 5

// forEachWindow runs fn over items in consecutive windows of size, waiting for every
// call of a window before starting the next one. It stops between windows once ctx
// is done.
func forEachWindow[T any](ctx context.Context, items []T, size int, fn func(context.Context, T)) {
	if size <= 0 {
		size = BatchSize
	}

	for start := 0; start < len(items); start += size {
		if ctx.Err() != nil {
			return
		}

		end := min(start+size, len(items))
		p := pool.New().WithMaxGoroutines(size)
		for _, item := range items[start:end] {
			p.Go(func() {
				fn(ctx, item)
			})
		}
		p.Wait()
	}
}

// tally collects SyncResult counts from concurrent workers
type tally struct {
	fetched atomic.Int64
	written atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

func (t *tally) result() SyncResult {
	return SyncResult{
		Fetched: int(t.fetched.Load()),
		Written: int(t.written.Load()),
		Skipped: int(t.skipped.Load()),
		Failed:  int(t.failed.Load()),
	}
}

// Option customises a sync service
type Option func(*base)

// WithClock overrides the wall clock used for lastFetchedAt and staleness checks
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		b.now = now
	}
}

// WithMetrics records document writes on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *base) {
		b.metrics = m
	}
}

// WithBatchSize overrides the fan-out window
func WithBatchSize(n int) Option {
	return func(b *base) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// base carries what every sync service needs
type base struct {
	api       CricbuzzAPI
	store     docstore.Store
	metrics   *metrics.Metrics
	now       func() time.Time
	batchSize int
}

func newBase(api CricbuzzAPI, store docstore.Store, opts []Option) base {
	b := base{
		api:       api,
		store:     store,
		now:       time.Now,
		batchSize: BatchSize,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) nowMs() int64 {
	return b.now().UnixMilli()
}

func (b *base) put(ctx context.Context, collection, id string, v any) error {
	if err := docstore.PutJSON(ctx, b.store, collection, id, v); err != nil {
		return err
	}
	b.metrics.DocumentWritten(collection)
	return nil
}

// notStarted reports the upstream "no data yet" reply for a match that has just begun
func notStarted(err error) bool {
	return cricbuzz.IsNotFound(err)
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}
