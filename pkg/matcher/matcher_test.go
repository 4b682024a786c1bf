package matcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebu/mcma-projects-sub000/pkg/model"
	"github.com/ebu/mcma-projects-sub000/pkg/registry"
)

const profileID = "urn:registry:JobProfile:extract"

func newTestJob() *model.Job {
	return &model.Job{
		ID:           "http://localhost:8080/jobs/j1",
		JobType:      "TransformJob",
		JobProfileID: profileID,
		JobInput: model.NewParameterBag(
			model.Parameter{Name: "inputFile", Value: model.String("https://example.com/in.mxf")},
		),
	}
}

func newTestProfile() *model.JobProfile {
	return &model.JobProfile{
		ID:   profileID,
		Name: "ExtractTechnicalMetadata",
		InputParameters: []model.JobProfileParameter{
			{ParameterName: "inputFile", ParameterType: "Locator"},
		},
	}
}

func registerService(t *testing.T, reg *registry.MemoryClient, name, endpoint string, profiles ...string) {
	t.Helper()
	_, err := reg.Create(context.Background(), model.TypeService, model.Service{
		Name:          name,
		JobType:       "TransformJob",
		JobProfileIDs: profiles,
		Resources: []model.ServiceResource{
			{ResourceType: model.TypeJobAssignment, HTTPEndpoint: endpoint},
		},
	})
	require.NoError(t, err)
}

// assignmentServer accepts assignment POSTs and returns a resource id.
func assignmentServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		var req AssignmentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Job)
		assert.NotEmpty(t, req.NotificationEndpoint.HTTPEndpoint)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(AssignmentResponse{ID: "http://" + r.Host + "/job-assignments/a1"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValidateInputReportsAllMissing(t *testing.T) {
	profile := newTestProfile()
	profile.InputParameters = append(profile.InputParameters,
		model.JobProfileParameter{ParameterName: "outputLocation"})

	job := newTestJob()
	job.JobInput = model.ParameterBag{}

	err := ValidateInput(job, profile)
	require.ErrorIs(t, err, ErrMissingRequiredInput)
	assert.Contains(t, err.Error(), "inputFile")
	assert.Contains(t, err.Error(), "outputLocation")
}

func TestAssignPicksFirstCapableService(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryClient()

	var firstHits, secondHits atomic.Int32
	first := assignmentServer(t, &firstHits)
	second := assignmentServer(t, &secondHits)

	// Wrong profile, then two capable ones: the first capable wins.
	registerService(t, reg, "other-profile", first.URL, "urn:registry:JobProfile:other")
	registerService(t, reg, "winner", first.URL, profileID)
	registerService(t, reg, "runner-up", second.URL, profileID)

	m := New(reg, Config{}, nil)
	assignmentID, err := m.Assign(ctx, newTestJob(), newTestProfile(), "http://localhost:8080/jobs/j1/executions/1/notifications")
	require.NoError(t, err)
	assert.NotEmpty(t, assignmentID)
	assert.Equal(t, int32(1), firstHits.Load())
	assert.Equal(t, int32(0), secondHits.Load())
}

func TestAssignNoCapableService(t *testing.T) {
	reg := registry.NewMemoryClient()
	registerService(t, reg, "wrong-profile", "http://unused", "urn:registry:JobProfile:other")

	m := New(reg, Config{}, nil)
	_, err := m.Assign(context.Background(), newTestJob(), newTestProfile(), "http://cb")
	assert.ErrorIs(t, err, ErrNoCapableService)
}

func TestAssignSkipsServicesWithoutAssignmentEndpoint(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryClient()

	_, err := reg.Create(ctx, model.TypeService, model.Service{
		Name:          "no-endpoint",
		JobType:       "TransformJob",
		JobProfileIDs: []string{profileID},
	})
	require.NoError(t, err)

	m := New(reg, Config{}, nil)
	_, err = m.Assign(ctx, newTestJob(), newTestProfile(), "http://cb")
	assert.ErrorIs(t, err, ErrNoCapableService)
}

func TestAssignRemoteFailureIsDispatchError(t *testing.T) {
	reg := registry.NewMemoryClient()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	registerService(t, reg, "broken", srv.URL, profileID)

	m := New(reg, Config{}, nil)
	_, err := m.Assign(context.Background(), newTestJob(), newTestProfile(), "http://cb")
	require.Error(t, err)
	assert.True(t, IsDispatchError(err))
}

func TestDeleteAssignmentTreatsGoneAsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	m := New(registry.NewMemoryClient(), Config{}, nil)
	assert.NoError(t, m.DeleteAssignment(context.Background(), srv.URL+"/job-assignments/a1"))
}
