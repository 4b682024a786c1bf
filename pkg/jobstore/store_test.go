package jobstore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebu/mcma-projects-sub000/pkg/model"
	"github.com/ebu/mcma-projects-sub000/pkg/resourcestore"
)

const testBaseURL = "http://localhost:8080"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	rs, err := resourcestore.Open(context.Background(), resourcestore.Config{
		Path: filepath.Join(t.TempDir(), "store.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })
	return New(rs, testBaseURL)
}

func newTestJob() *model.Job {
	return &model.Job{
		JobType:      "TransformJob",
		JobProfileID: "urn:registry:JobProfile:extract",
	}
}

func TestAddJobAssignsIdentity(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	job := newTestJob()
	require.NoError(t, s.AddJob(ctx, job))

	assert.True(t, strings.HasPrefix(job.ID, testBaseURL+"/jobs/"))
	assert.Equal(t, model.StatusNew, job.Status)
	assert.False(t, job.DateCreated.IsZero())
	assert.Equal(t, job.DateCreated, job.DateModified)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "TransformJob", got.JobType)
}

func TestGetJobNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetJob(context.Background(), testBaseURL+"/jobs/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateJobBumpsModified(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	job := newTestJob()
	require.NoError(t, s.AddJob(ctx, job))
	created := job.DateModified

	time.Sleep(5 * time.Millisecond)
	job.Status = model.StatusRunning
	require.NoError(t, s.UpdateJob(ctx, job))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, got.Status)
	assert.True(t, got.DateModified.After(created))
}

func TestQueryJobsByStatus(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		job := newTestJob()
		require.NoError(t, s.AddJob(ctx, job))
		if i == 0 {
			job.Status = model.StatusFailed
			require.NoError(t, s.UpdateJob(ctx, job))
		}
	}

	failed, err := s.QueryJobs(ctx, JobQuery{Status: model.StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, model.StatusFailed, failed[0].Status)

	all, err := s.QueryJobs(ctx, JobQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Moving a job out of a status removes it from that partition.
	failed[0].Status = model.StatusQueued
	require.NoError(t, s.UpdateJob(ctx, &failed[0]))
	failedAgain, err := s.QueryJobs(ctx, JobQuery{Status: model.StatusFailed})
	require.NoError(t, err)
	assert.Empty(t, failedAgain)
}

func TestExecutionNumberingIsMonotonic(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	job := newTestJob()
	require.NoError(t, s.AddJob(ctx, job))

	for i := 1; i <= 3; i++ {
		exec := &model.JobExecution{JobID: job.ID, Status: model.StatusQueued}
		require.NoError(t, s.AddExecution(ctx, exec))
		assert.Equal(t, fmt.Sprintf("%s/executions/%d", job.ID, i), exec.ID)
	}

	execs, err := s.GetExecutions(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, execs, 3)
	assert.True(t, strings.HasSuffix(execs[0].ID, "/executions/3"))

	latest, err := s.LatestExecution(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, execs[0].ID, latest.ID)
}

func TestLatestExecutionWithoutExecutions(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LatestExecution(context.Background(), testBaseURL+"/jobs/x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteJobAndExecutions(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	job := newTestJob()
	require.NoError(t, s.AddJob(ctx, job))
	exec := &model.JobExecution{JobID: job.ID, Status: model.StatusQueued}
	require.NoError(t, s.AddExecution(ctx, exec))

	require.NoError(t, s.DeleteExecution(ctx, exec.ID))
	require.NoError(t, s.DeleteJob(ctx, job.ID))

	_, err := s.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetExecution(ctx, exec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExecutionJobID(t *testing.T) {
	jobID, ok := ExecutionJobID(testBaseURL + "/jobs/abc/executions/2")
	require.True(t, ok)
	assert.Equal(t, testBaseURL+"/jobs/abc", jobID)

	_, ok = ExecutionJobID(testBaseURL + "/jobs/abc")
	assert.False(t, ok)
}
