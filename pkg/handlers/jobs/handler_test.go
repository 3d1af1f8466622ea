package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cricmirror/core/pkg/database"
	"github.com/cricmirror/core/pkg/jobs"
	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/models/api"
	"github.com/cricmirror/core/pkg/runlog"
)

type fakeJob struct{ name, schedule string }

func (j fakeJob) Name() string                  { return j.name }
func (j fakeJob) Schedule() string              { return j.schedule }
func (j fakeJob) Execute(context.Context) error { return nil }

type fakeManager struct {
	statuses    []jobs.JobStatus
	dispatchErr error
	dispatched  []string
}

func (m *fakeManager) GetJobStatus(context.Context) ([]jobs.JobStatus, error) {
	return m.statuses, nil
}

func (m *fakeManager) Job(name string) (jobs.Job, bool) {
	for _, s := range m.statuses {
		if s.Name == name {
			return fakeJob{name: s.Name, schedule: s.Schedule}, true
		}
	}
	return nil, false
}

func (m *fakeManager) Dispatch(name, runID string) (string, error) {
	if _, ok := m.Job(name); !ok {
		return "", jobs.ErrJobNotFound
	}
	if m.dispatchErr != nil {
		return "", m.dispatchErr
	}
	m.dispatched = append(m.dispatched, name)
	return "3d8e1f0a-9b8c-4d7e-8f6a-5b4c3d2e1f00", nil
}

type fakeToggles struct {
	toggles map[string]database.JobToggle
	err     error
}

func (f *fakeToggles) ListJobToggles(context.Context) (map[string]database.JobToggle, error) {
	return f.toggles, f.err
}

func (f *fakeToggles) SetJobEnabled(_ context.Context, key string, enabled bool) error {
	if f.err != nil {
		return f.err
	}
	f.toggles[key] = database.JobToggle{JobKey: key, Enabled: enabled}
	return nil
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/jobs", h.List)
	r.Put("/api/jobs/{key}/toggle", h.Toggle)
	r.Post("/api/jobs/{key}/run", h.Run)
	return r
}

func fixture() (*fakeManager, *fakeToggles, *runlog.MemoryStore) {
	next := time.Date(2025, 6, 14, 12, 0, 30, 0, time.UTC)
	manager := &fakeManager{statuses: []jobs.JobStatus{
		{Name: "commentary", Schedule: "@every 30s", NextRun: &next},
		{Name: "squads", Schedule: "*/10 * * * *"},
	}}
	toggles := &fakeToggles{toggles: map[string]database.JobToggle{
		"squads": {JobKey: "squads", Enabled: false},
	}}
	return manager, toggles, runlog.NewMemoryStore()
}

func TestList(t *testing.T) {
	manager, toggles, events := fixture()
	rl := runlog.New(events, "commentary", "", logger.Nop())
	rl.Info(context.Background(), runlog.ActionJobStarted, "Job started", nil)
	rl.Success(context.Background(), runlog.ActionJobCompleted, "Job completed", nil)

	h := NewHandler(manager, toggles, events, logger.Nop())
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []api.JobResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 2)

	commentary := body.Data[0]
	assert.Equal(t, "commentary", commentary.Key)
	assert.True(t, commentary.Enabled)
	assert.Equal(t, rl.RunID(), commentary.LastRunID)
	assert.Equal(t, runlog.StatusSuccess, commentary.LastRunStatus)
	require.NotNil(t, commentary.NextRun)

	squads := body.Data[1]
	assert.False(t, squads.Enabled)
	assert.Empty(t, squads.LastRunID)
}

func TestList_ToggleError(t *testing.T) {
	manager, toggles, events := fixture()
	toggles.err = errors.New("connection refused")

	rec := httptest.NewRecorder()
	newRouter(NewHandler(manager, toggles, events, logger.Nop())).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestToggle(t *testing.T) {
	manager, toggles, events := fixture()
	router := newRouter(NewHandler(manager, toggles, events, logger.Nop()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/jobs/squads/toggle", strings.NewReader(`{"enabled":true}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, toggles.toggles["squads"].Enabled)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/jobs/squads/toggle", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/jobs/cleanup/toggle", strings.NewReader(`{"enabled":false}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	_, stored := toggles.toggles["cleanup"]
	assert.False(t, stored)
}

func TestRun(t *testing.T) {
	manager, toggles, events := fixture()
	router := newRouter(NewHandler(manager, toggles, events, logger.Nop()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/commentary/run", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var body struct {
		Data api.DispatchResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "commentary", body.Data.JobKey)
	assert.NotEmpty(t, body.Data.RunID)
	assert.Equal(t, []string{"commentary"}, manager.dispatched)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		err  error
		want int
	}{
		{"unknown job", "nope", nil, http.StatusNotFound},
		{"pool full", "squads", jobs.ErrDispatchDropped, http.StatusServiceUnavailable},
		{"other failure", "squads", errors.New("pool closed"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, toggles, events := fixture()
			manager.dispatchErr = tt.err

			rec := httptest.NewRecorder()
			newRouter(NewHandler(manager, toggles, events, logger.Nop())).
				ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/"+tt.key+"/run", nil))

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
