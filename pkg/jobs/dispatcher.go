package jobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/metrics"
)

// ErrDispatchDropped is returned when every worker is busy
var ErrDispatchDropped = errors.New("worker pool full, dispatch dropped")

// Dispatcher runs job executions on a bounded, non-blocking worker pool so cron
// callbacks return immediately.
type Dispatcher struct {
	pool    *ants.Pool
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher with size workers
func NewDispatcher(size int, log *logger.Logger, m *metrics.Metrics) (*Dispatcher, error) {
	if size <= 0 {
		size = 4
	}
	if log == nil {
		log = logger.New("dispatcher")
	}

	pool, err := ants.NewPool(size, ants.WithNonblocking(true), ants.WithPanicHandler(func(p interface{}) {
		log.Error().
			Str("action", "job_panic").
			Interface("panic", p).
			Msg("Job panicked in worker")
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Dispatcher{pool: pool, logger: log, metrics: m}, nil
}

// Submit queues task for jobKey. When the pool is saturated the dispatch is dropped,
// logged and counted.
func (d *Dispatcher) Submit(jobKey string, task func()) error {
	err := d.pool.Submit(task)
	if err == nil {
		return nil
	}

	if errors.Is(err, ants.ErrPoolOverload) {
		d.metrics.DispatchDrop(jobKey)
		d.logger.Warn().
			Str("action", "dispatch_dropped").
			Str("job_name", jobKey).
			Int("running", d.pool.Running()).
			Int("capacity", d.pool.Cap()).
			Msg("Worker pool full, job dispatch dropped")
		return ErrDispatchDropped
	}
	return fmt.Errorf("submit %s: %w", jobKey, err)
}

// Running returns the number of busy workers
func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

// Release waits up to timeout for running jobs and frees the workers
func (d *Dispatcher) Release(timeout time.Duration) error {
	return d.pool.ReleaseTimeout(timeout)
}
