package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebu/mcma-projects-sub000/internal/config"
	apperrors "github.com/ebu/mcma-projects-sub000/internal/errors"
	"github.com/ebu/mcma-projects-sub000/internal/server/handlers"
	"github.com/ebu/mcma-projects-sub000/pkg/dispatch"
	"github.com/ebu/mcma-projects-sub000/pkg/jobstore"
	"github.com/ebu/mcma-projects-sub000/pkg/model"
	"github.com/ebu/mcma-projects-sub000/pkg/resourcestore"
)

const testBaseURL = "http://localhost:8080"

// fakeDispatcher records dispatched operations instead of executing them.
type fakeDispatcher struct {
	mu       sync.Mutex
	requests []dispatch.OperationRequest
	err      error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, req dispatch.OperationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.requests = append(f.requests, req)
	return nil
}

func (f *fakeDispatcher) dispatched() []dispatch.OperationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]dispatch.OperationRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

type testServer struct {
	srv        *Server
	store      *jobstore.Store
	dispatcher *fakeDispatcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	rs, err := resourcestore.Open(context.Background(), resourcestore.Config{
		Path: filepath.Join(t.TempDir(), "store.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })

	store := jobstore.New(rs, testBaseURL)
	fd := &fakeDispatcher{}

	api, err := handlers.NewAPI(store, fd, nil, "test")
	require.NoError(t, err)

	return &testServer{
		srv:        New(config.ServerConfig{Host: "localhost", Port: 8080}, api, nil),
		store:      store,
		dispatcher: fd,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

// addJob seeds a job directly in the store and returns it with its path id.
func (ts *testServer) addJob(t *testing.T, status model.JobStatus) (*model.Job, string) {
	t.Helper()
	job := &model.Job{JobType: "TransformJob", JobProfileID: "urn:registry:JobProfile:extract"}
	require.NoError(t, ts.store.AddJob(context.Background(), job))
	if status != "" && status != model.StatusNew {
		job.Status = status
		require.NoError(t, ts.store.UpdateJob(context.Background(), job))
	}
	return job, strings.TrimPrefix(job.ID, testBaseURL+"/jobs/")
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) apperrors.ErrorBody {
	t.Helper()
	var resp apperrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestUnknownPathReturnsEnvelope(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/nope", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeErrorBody(t, w)
	assert.Equal(t, apperrors.CodeNotFound, body.Code)
	assert.NotEmpty(t, body.RequestID)
	assert.Equal(t, body.RequestID, w.Header().Get("X-Request-ID"))
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPut, "/jobs", "")

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, apperrors.CodeMethodNotAllowed, decodeErrorBody(t, w).Code)
}

func TestCreateJob(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/jobs", `{
		"jobType": "TransformJob",
		"jobProfileId": "urn:registry:JobProfile:extract",
		"jobInput": {"inputFile": "https://example.com/in.mxf"},
		"tracker": {"id": "wf-42", "label": "Nightly ingest"},
		"status": "Completed"
	}`)

	require.Equal(t, http.StatusCreated, w.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.True(t, strings.HasPrefix(job.ID, testBaseURL+"/jobs/"))
	assert.Equal(t, job.ID, w.Header().Get("Location"))

	// Caller-sent status is discarded.
	assert.Equal(t, model.StatusNew, job.Status)

	reqs := ts.dispatcher.dispatched()
	require.Len(t, reqs, 1)
	assert.Equal(t, dispatch.OpStartJob, reqs[0].Operation)
	assert.Equal(t, "TransformJob", reqs[0].JobType)
	assert.Equal(t, job.ID, reqs[0].Input["jobId"])

	// The caller's tracker rides along so worker logs stay correlated.
	require.NotNil(t, reqs[0].Tracker)
	assert.Equal(t, "wf-42", reqs[0].Tracker.ID)
}

func TestCreateJobValidation(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/jobs", `{"jobProfileId": "p"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, decodeErrorBody(t, w).Code)

	w = ts.do(t, http.MethodPost, "/jobs", `{"jobType": "TransformJob"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	past := time.Now().Add(-time.Hour).Format(time.RFC3339)
	w = ts.do(t, http.MethodPost, "/jobs", `{
		"jobType": "TransformJob",
		"jobProfileId": "p",
		"deadline": "`+past+`"
	}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/jobs", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, ts.dispatcher.dispatched())
}

func TestGetJobNotFound(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/jobs/missing", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeNotFound, decodeErrorBody(t, w).Code)
}

func TestListJobs(t *testing.T) {
	ts := newTestServer(t)
	ts.addJob(t, model.StatusNew)
	ts.addJob(t, model.StatusFailed)

	w := ts.do(t, http.MethodGet, "/jobs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var jobs []model.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	assert.Len(t, jobs, 2)

	w = ts.do(t, http.MethodGet, "/jobs?status=Failed", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	assert.Len(t, jobs, 1)

	w = ts.do(t, http.MethodGet, "/jobs?status=Bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/jobs?order=sideways", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelJob(t *testing.T) {
	ts := newTestServer(t)
	_, id := ts.addJob(t, model.StatusRunning)

	w := ts.do(t, http.MethodPost, "/jobs/"+id+"/cancel", "")
	require.Equal(t, http.StatusAccepted, w.Code)

	reqs := ts.dispatcher.dispatched()
	require.Len(t, reqs, 1)
	assert.Equal(t, dispatch.OpCancelJob, reqs[0].Operation)
}

func TestCancelTerminalJobConflicts(t *testing.T) {
	ts := newTestServer(t)
	_, id := ts.addJob(t, model.StatusCompleted)

	w := ts.do(t, http.MethodPost, "/jobs/"+id+"/cancel", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.CodeConflict, decodeErrorBody(t, w).Code)
	assert.Empty(t, ts.dispatcher.dispatched())
}

func TestDeleteJob(t *testing.T) {
	ts := newTestServer(t)
	_, running := ts.addJob(t, model.StatusRunning)
	_, done := ts.addJob(t, model.StatusCompleted)

	w := ts.do(t, http.MethodDelete, "/jobs/"+running, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodDelete, "/jobs/"+done, "")
	require.Equal(t, http.StatusAccepted, w.Code)

	reqs := ts.dispatcher.dispatched()
	require.Len(t, reqs, 1)
	assert.Equal(t, dispatch.OpDeleteJob, reqs[0].Operation)
}

func TestRestartJobPastDeadline(t *testing.T) {
	ts := newTestServer(t)
	job, id := ts.addJob(t, model.StatusFailed)
	past := time.Now().Add(-time.Hour)
	job.Deadline = &past
	require.NoError(t, ts.store.UpdateJob(context.Background(), job))

	w := ts.do(t, http.MethodPost, "/jobs/"+id+"/restart", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, ts.dispatcher.dispatched())
}

func TestFilteredJobTypeConflicts(t *testing.T) {
	ts := newTestServer(t)
	_, id := ts.addJob(t, model.StatusRunning)
	ts.dispatcher.err = dispatch.ErrFiltered

	w := ts.do(t, http.MethodPost, "/jobs/"+id+"/cancel", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, decodeErrorBody(t, w).Message, "not handled by this processor")
}

func TestListAndGetExecutions(t *testing.T) {
	ts := newTestServer(t)
	job, id := ts.addJob(t, model.StatusRunning)
	exec := &model.JobExecution{JobID: job.ID, Status: model.StatusRunning}
	require.NoError(t, ts.store.AddExecution(context.Background(), exec))

	w := ts.do(t, http.MethodGet, "/jobs/"+id+"/executions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var execs []model.JobExecution
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &execs))
	assert.Len(t, execs, 1)

	w = ts.do(t, http.MethodGet, "/jobs/"+id+"/executions/1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/jobs/"+id+"/executions/latest", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/jobs/"+id+"/executions/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/jobs/missing/executions", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostNotification(t *testing.T) {
	ts := newTestServer(t)
	job, id := ts.addJob(t, model.StatusScheduled)
	exec := &model.JobExecution{
		JobID:           job.ID,
		Status:          model.StatusScheduled,
		JobAssignmentID: "http://svc.example.com/job-assignments/a1",
	}
	require.NoError(t, ts.store.AddExecution(context.Background(), exec))
	path := "/jobs/" + id + "/executions/1/notifications"

	// Source mismatch.
	w := ts.do(t, http.MethodPost, path, `{
		"source": "http://svc.example.com/job-assignments/other",
		"content": {"status": "Running"}
	}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown status.
	w = ts.do(t, http.MethodPost, path, `{"content": {"status": "Sideways"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Omitting the source does not bypass the assignment check.
	w = ts.do(t, http.MethodPost, path, `{"content": {"status": "Running"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeErrorBody(t, w).Message, "does not match")

	// Matching source is accepted and queued.
	w = ts.do(t, http.MethodPost, path, `{
		"source": "http://svc.example.com/job-assignments/a1",
		"content": {"status": "Running", "progress": 25}
	}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	reqs := ts.dispatcher.dispatched()
	require.Len(t, reqs, 1)
	assert.Equal(t, dispatch.OpProcessNotification, reqs[0].Operation)
	assert.Equal(t, job.ID, reqs[0].Input["jobId"])
	assert.Equal(t, exec.ID, reqs[0].Input["jobExecutionId"])
	require.NotNil(t, reqs[0].Notification)
	assert.Equal(t, model.StatusRunning, reqs[0].Notification.Content.Status)
}

func TestHealthAndVersion(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		w := ts.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := ts.do(t, http.MethodGet, "/version", "")
	require.Equal(t, http.StatusOK, w.Code)
	var v map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, "test", v["version"])
}

func TestPortAndHandler(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, 8080, ts.srv.Port())
	assert.NotNil(t, ts.srv.Handler())
}
