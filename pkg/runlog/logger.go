// Package runlog threads one run id through every event of a job run and persists the
// events on a best-effort basis.
package runlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cricmirror/core/pkg/logger"
)

type contextKey struct{}

const writeTimeout = 5 * time.Second

// Logger records events for a single run. It is safe for concurrent use.
type Logger struct {
	sink   Appender
	runID  string
	jobKey string
	log    *logger.Logger
	now    func() time.Time

	mu   sync.Mutex
	last time.Time
}

// New creates a run logger for jobKey. An empty runID mints a fresh UUIDv4.
// sink may be nil, in which case events are only mirrored to log.
func New(sink Appender, jobKey, runID string, log *logger.Logger) *Logger {
	if runID == "" {
		runID = uuid.NewString()
	}
	if log == nil {
		log = logger.New("runlog")
	}

	return &Logger{
		sink:   sink,
		runID:  runID,
		jobKey: jobKey,
		log:    log.WithRun(runID, jobKey),
		now:    time.Now,
	}
}

// RunID returns the correlation id of this run
func (l *Logger) RunID() string { return l.runID }

// JobKey returns the job discriminator
func (l *Logger) JobKey() string { return l.jobKey }

// Process returns the process logger tagged with this run
func (l *Logger) Process() *logger.Logger { return l.log }

// Log records one event. It never fails: persistence errors and panics in the sink are
// reported on the process logger and otherwise ignored.
func (l *Logger) Log(ctx context.Context, action string, status Status, message string, fields map[string]any) {
	event := Event{
		RunID:     l.runID,
		JobKey:    l.jobKey,
		Action:    action,
		Status:    status,
		Message:   message,
		Context:   fields,
		CreatedAt: l.timestamp(),
	}

	l.mirror(event)
	l.persist(ctx, event)
}

// Info logs an info event
func (l *Logger) Info(ctx context.Context, action, message string, fields map[string]any) {
	l.Log(ctx, action, StatusInfo, message, fields)
}

// Success logs a success event
func (l *Logger) Success(ctx context.Context, action, message string, fields map[string]any) {
	l.Log(ctx, action, StatusSuccess, message, fields)
}

// Warning logs a warning event
func (l *Logger) Warning(ctx context.Context, action, message string, fields map[string]any) {
	l.Log(ctx, action, StatusWarning, message, fields)
}

// Error logs an error event with err attached to the context map
func (l *Logger) Error(ctx context.Context, action, message string, err error, fields map[string]any) {
	if err != nil {
		merged := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			merged[k] = v
		}
		merged["error"] = err.Error()
		fields = merged
	}
	l.Log(ctx, action, StatusError, message, fields)
}

// timestamp returns strictly increasing microsecond timestamps
func (l *Logger) timestamp() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.now().UTC().Truncate(time.Microsecond)
	if !ts.After(l.last) {
		ts = l.last.Add(time.Microsecond)
	}
	l.last = ts
	return ts
}

func (l *Logger) mirror(event Event) {
	var e = l.log.Info()
	switch event.Status {
	case StatusWarning:
		e = l.log.Warn()
	case StatusError:
		e = l.log.Error()
	}

	e.Str("action", event.Action)
	if event.Status != StatusUnset {
		e.Str("status", string(event.Status))
	}
	if len(event.Context) > 0 {
		e.Fields(event.Context)
	}
	e.Msg(event.Message)
}

func (l *Logger) persist(ctx context.Context, event Event) {
	if l.sink == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.log.Warn().
				Str("action", "run_event_persist_failed").
				Str("event_action", event.Action).
				Err(fmt.Errorf("panic: %v", r)).
				Msg("Failed to persist run event")
		}
	}()

	// job_completed must still land when the job context was cancelled
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := l.sink.AppendRunEvent(writeCtx, event); err != nil {
		l.log.Warn().
			Err(err).
			Str("action", "run_event_persist_failed").
			Str("event_action", event.Action).
			Msg("Failed to persist run event")
	}
}

// ToContext attaches l to ctx
func (l *Logger) ToContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the run logger stored in ctx. Without one it returns a logger
// with a fresh run id that only mirrors to the process logger found in ctx.
func FromContext(ctx context.Context, jobKey string) *Logger {
	if l, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return l
	}
	return New(nil, jobKey, "", logger.WithContext(ctx, "runlog"))
}
