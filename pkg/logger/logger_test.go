package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	return line
}

func TestNewWithWriter_ServiceFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("cron-service", &buf).WithRun("run-1", "scorecards")

	log.Info().Msg("hello")

	line := decodeLine(t, &buf)
	for key, want := range map[string]string{
		"service": "cron-service",
		"run_id":  "run-1",
		"job_key": "scorecards",
		"message": "hello",
	} {
		if line[key] != want {
			t.Errorf("%s = %v, want %q", key, line[key], want)
		}
	}
	if _, ok := line["@timestamp"]; !ok {
		t.Error("missing @timestamp")
	}
}

func TestLogJobComplete(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("test", &buf)

	log.LogJobComplete("squads", 2*time.Second, errors.New("upstream 503"))

	line := decodeLine(t, &buf)
	if line["action"] != "job_failed" || line["level"] != "error" || line["success"] != false {
		t.Fatalf("unexpected failure line: %v", line)
	}

	buf.Reset()
	log.LogJobComplete("squads", time.Second, nil)
	line = decodeLine(t, &buf)
	if line["action"] != "job_complete" || line["success"] != true {
		t.Fatalf("unexpected success line: %v", line)
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	stored := NewWithWriter("stored", &buf)
	ctx := stored.ToContext(context.Background())

	if got := WithContext(ctx, "other"); got != stored {
		t.Fatal("expected the logger stored in the context")
	}
	if got := WithContext(context.Background(), "other"); got == nil || got == stored {
		t.Fatal("expected a fresh logger when the context has none")
	}
}
