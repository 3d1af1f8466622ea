package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type contextKey string

const LoggerKey contextKey = "logger"

var (
	configureOnce sync.Once

	outputMu sync.RWMutex
	output   io.Writer = os.Stdout
)

type Logger struct {
	*zerolog.Logger
}

// New creates a service logger on the process output chosen by SetupLogger
func New(service string) *Logger {
	outputMu.RLock()
	w := output
	outputMu.RUnlock()
	return NewWithWriter(service, w)
}

// NewWithWriter creates a service logger writing to w
func NewWithWriter(service string, w io.Writer) *Logger {
	hostname, _ := os.Hostname()

	configureOnce.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339
		zerolog.TimestampFieldName = "@timestamp" // ELK compatible
	})

	logger := zerolog.New(w).
		With().
		Timestamp().
		Str("service", service).
		Str("hostname", hostname).
		Str("environment", getEnv("ENVIRONMENT", "development")).
		Str("version", getEnv("SERVICE_VERSION", "unknown")).
		Logger()

	return &Logger{&logger}
}

func Nop() *Logger {
	logger := zerolog.Nop()
	return &Logger{&logger}
}

// WithContext returns the logger stored in ctx, or a fresh one for service
func WithContext(ctx context.Context, service string) *Logger {
	if logger, ok := ctx.Value(LoggerKey).(*Logger); ok {
		return logger
	}
	return New(service)
}

func (l *Logger) ToContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, LoggerKey, l)
}

// WithRequestID adds the HTTP correlation id
func (l *Logger) WithRequestID(requestID string) *Logger {
	logger := l.Logger.With().Str("request_id", requestID).Logger()
	return &Logger{&logger}
}

// WithRun tags every line with the sync run it belongs to
func (l *Logger) WithRun(runID, jobKey string) *Logger {
	logger := l.Logger.With().
		Str("run_id", runID).
		Str("job_key", jobKey).
		Logger()
	return &Logger{&logger}
}

// LogJobComplete logs the end of a run at info, or at error when err is set
func (l *Logger) LogJobComplete(jobName string, duration time.Duration, err error) {
	event := l.Info().Str("action", "job_complete")
	if err != nil {
		event = l.Error().Err(err).Str("action", "job_failed")
	}

	event.
		Str("job_name", jobName).
		Dur("duration", duration).
		Bool("success", err == nil).
		Msg("Job execution finished")
}

// LogAPICall logs one upstream request. url should be the route, not the full URL,
// so keys never reach the log.
func (l *Logger) LogAPICall(method, url string, statusCode int, duration time.Duration, err error) {
	event := l.Info()
	if err != nil {
		event = l.Error().Err(err)
	}

	event.
		Str("action", "api_call").
		Str("method", method).
		Str("url", url).
		Int("status_code", statusCode).
		Dur("duration", duration).
		Bool("success", err == nil).
		Msg("External API call")
}

// SetupLogger sets the global level from LOG_LEVEL. In development loggers created
// afterwards by New write through a console writer.
func SetupLogger() {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if getEnv("ENVIRONMENT", "development") == "development" {
		level = zerolog.DebugLevel
		SetOutput(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}
	zerolog.SetGlobalLevel(level)
}

// SetOutput replaces the writer used by New
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
