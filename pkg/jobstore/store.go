// Package jobstore is the typed CRUD and query facade over the resource
// store for Job and JobExecution records, including id generation and
// pagination.
package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ebu/mcma-projects-sub000/pkg/model"
	"github.com/ebu/mcma-projects-sub000/pkg/resourcestore"
)

// ErrNotFound indicates the requested job or execution does not exist.
var ErrNotFound = errors.New("not found")

// DefaultQueryLimit caps unbounded job queries to avoid full partition scans.
const DefaultQueryLimit = 100

// Store reads and writes Job and JobExecution records.
type Store struct {
	rs      *resourcestore.Store
	baseURL string
}

// New creates a Store. baseURL is the prefix for generated job ids
// ({baseURL}/jobs/{uuid}).
func New(rs *resourcestore.Store, baseURL string) *Store {
	return &Store{rs: rs, baseURL: strings.TrimRight(baseURL, "/")}
}

// BaseURL returns the id prefix used for new jobs.
func (s *Store) BaseURL() string { return s.baseURL }

// Ping verifies the backing database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.rs.Ping(ctx) }

func jobStatusPartition(status model.JobStatus) string {
	return model.TypeJob + "-" + string(status)
}

func executionPartition(jobID string) string {
	return model.TypeJobExecution + "-" + jobID
}

func executionStatusPartition(jobID string, status model.JobStatus) string {
	return executionPartition(jobID) + "-" + string(status)
}

// ExecutionJobID extracts the owning job id from an execution id.
func ExecutionJobID(executionID string) (string, bool) {
	jobID, _, found := strings.Cut(executionID, "/executions/")
	return jobID, found
}

// AddJob assigns an id, status and timestamps, then persists the job.
func (s *Store) AddJob(ctx context.Context, job *model.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}

	now := time.Now().UTC()
	job.ID = s.baseURL + "/jobs/" + uuid.New().String()
	if job.Status == "" {
		job.Status = model.StatusNew
	}
	job.DateCreated = now
	job.DateModified = now

	return s.putJob(ctx, job)
}

// GetJob returns a job by id, or ErrNotFound.
func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	rec, err := s.rs.Get(ctx, model.TypeJob, id)
	if err != nil {
		if errors.Is(err, resourcestore.ErrNotFound) {
			return nil, fmt.Errorf("%w: job %s", ErrNotFound, id)
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(rec.Body, &job); err != nil {
		return nil, fmt.Errorf("parse job %s: %w", id, err)
	}
	return &job, nil
}

// UpdateJob persists the job and bumps its modification timestamp.
func (s *Store) UpdateJob(ctx context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	job.DateModified = time.Now().UTC()
	return s.putJob(ctx, job)
}

// DeleteJob removes the job record.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	return s.rs.Delete(ctx, model.TypeJob, id)
}

func (s *Store) putJob(ctx context.Context, job *model.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	return s.rs.Put(ctx, resourcestore.Record{
		Partition:       model.TypeJob,
		ID:              job.ID,
		StatusPartition: jobStatusPartition(job.Status),
		Created:         job.DateCreated,
		Body:            body,
	})
}

// JobQuery filters QueryJobs.
type JobQuery struct {
	// Status limits results to one status partition.
	Status model.JobStatus

	// From/To bound the creation timestamp.
	From *time.Time
	To   *time.Time

	// Ascending orders oldest first. Default is newest first.
	Ascending bool

	// Limit caps results. When zero and no time bound is given, the query
	// defaults to DefaultQueryLimit.
	Limit int
}

// QueryJobs returns jobs matching the filters, paginating across underlying
// page boundaries until the limit is satisfied or results run out.
func (s *Store) QueryJobs(ctx context.Context, q JobQuery) ([]model.Job, error) {
	limit := q.Limit
	if limit == 0 && q.From == nil && q.To == nil {
		limit = DefaultQueryLimit
	}

	params := resourcestore.QueryParams{
		From:      q.From,
		To:        q.To,
		Ascending: q.Ascending,
		Limit:     limit,
	}
	if q.Status != "" {
		params.StatusPartition = jobStatusPartition(q.Status)
	} else {
		params.Partition = model.TypeJob
	}

	recs, err := s.rs.Query(ctx, params)
	if err != nil {
		return nil, err
	}

	jobs := make([]model.Job, 0, len(recs))
	for _, rec := range recs {
		var job model.Job
		if err := json.Unmarshal(rec.Body, &job); err != nil {
			return nil, fmt.Errorf("parse job %s: %w", rec.ID, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// AddExecution assigns the next sequence id for the job and persists the
// execution. The sequence is count(existing executions)+1, derived from a
// query rather than a counter field; callers must hold the job lock for the
// numbering to be gapless.
func (s *Store) AddExecution(ctx context.Context, exec *model.JobExecution) error {
	if exec == nil || exec.JobID == "" {
		return fmt.Errorf("execution job id is required")
	}

	count, err := s.rs.Count(ctx, executionPartition(exec.JobID))
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	exec.ID = fmt.Sprintf("%s/executions/%d", exec.JobID, count+1)
	exec.DateCreated = now
	exec.DateModified = now

	return s.putExecution(ctx, exec)
}

// GetExecution returns an execution by id, or ErrNotFound.
func (s *Store) GetExecution(ctx context.Context, id string) (*model.JobExecution, error) {
	jobID, ok := ExecutionJobID(id)
	if !ok {
		return nil, fmt.Errorf("%w: malformed execution id %s", ErrNotFound, id)
	}

	rec, err := s.rs.Get(ctx, executionPartition(jobID), id)
	if err != nil {
		if errors.Is(err, resourcestore.ErrNotFound) {
			return nil, fmt.Errorf("%w: execution %s", ErrNotFound, id)
		}
		return nil, err
	}

	var exec model.JobExecution
	if err := json.Unmarshal(rec.Body, &exec); err != nil {
		return nil, fmt.Errorf("parse execution %s: %w", id, err)
	}
	return &exec, nil
}

// UpdateExecution persists the execution and bumps its modification
// timestamp.
func (s *Store) UpdateExecution(ctx context.Context, exec *model.JobExecution) error {
	if exec == nil || exec.ID == "" {
		return fmt.Errorf("execution id is required")
	}
	exec.DateModified = time.Now().UTC()
	return s.putExecution(ctx, exec)
}

// DeleteExecution removes an execution record.
func (s *Store) DeleteExecution(ctx context.Context, id string) error {
	jobID, ok := ExecutionJobID(id)
	if !ok {
		return fmt.Errorf("%w: malformed execution id %s", ErrNotFound, id)
	}
	return s.rs.Delete(ctx, executionPartition(jobID), id)
}

func (s *Store) putExecution(ctx context.Context, exec *model.JobExecution) error {
	body, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("marshal execution %s: %w", exec.ID, err)
	}
	return s.rs.Put(ctx, resourcestore.Record{
		Partition:       executionPartition(exec.JobID),
		ID:              exec.ID,
		StatusPartition: executionStatusPartition(exec.JobID, exec.Status),
		Created:         exec.DateCreated,
		Body:            body,
	})
}

// GetExecutions returns all executions for a job, newest first.
func (s *Store) GetExecutions(ctx context.Context, jobID string) ([]model.JobExecution, error) {
	return s.QueryExecutions(ctx, jobID, ExecutionQuery{})
}

// LatestExecution returns the job's current (most recent) execution, or
// ErrNotFound when the job has never started.
func (s *Store) LatestExecution(ctx context.Context, jobID string) (*model.JobExecution, error) {
	execs, err := s.QueryExecutions(ctx, jobID, ExecutionQuery{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(execs) == 0 {
		return nil, fmt.Errorf("%w: job %s has no executions", ErrNotFound, jobID)
	}
	return &execs[0], nil
}

// ExecutionQuery filters QueryExecutions; semantics match JobQuery but
// scoped to one job's partition.
type ExecutionQuery struct {
	Status    model.JobStatus
	From      *time.Time
	To        *time.Time
	Ascending bool
	Limit     int
}

// QueryExecutions returns a job's executions matching the filters, newest
// first unless Ascending is set.
func (s *Store) QueryExecutions(ctx context.Context, jobID string, q ExecutionQuery) ([]model.JobExecution, error) {
	params := resourcestore.QueryParams{
		From:      q.From,
		To:        q.To,
		Ascending: q.Ascending,
		Limit:     q.Limit,
	}
	if q.Status != "" {
		params.StatusPartition = executionStatusPartition(jobID, q.Status)
	} else {
		params.Partition = executionPartition(jobID)
	}

	recs, err := s.rs.Query(ctx, params)
	if err != nil {
		return nil, err
	}

	execs := make([]model.JobExecution, 0, len(recs))
	for _, rec := range recs {
		var exec model.JobExecution
		if err := json.Unmarshal(rec.Body, &exec); err != nil {
			return nil, fmt.Errorf("parse execution %s: %w", rec.ID, err)
		}
		execs = append(execs, exec)
	}
	return execs, nil
}
