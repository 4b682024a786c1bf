package model

import "time"

// Resource type names used as store partitions and registry query types.
const (
	TypeJob           = "Job"
	TypeJobExecution  = "JobExecution"
	TypeJobAssignment = "JobAssignment"
	TypeService       = "Service"
	TypeJobProfile    = "JobProfile"
)

// Job is a user-submitted unit of requested work.
//
// The id is a URI-like identifier ({baseUrl}/jobs/{uuid}) assigned at
// creation. Once the status is terminal, the job is immutable except through
// deletion.
type Job struct {
	ID            string         `json:"id,omitempty"`
	JobType       string         `json:"jobType"`
	JobProfileID  string         `json:"jobProfileId"`
	JobInput      ParameterBag   `json:"jobInput,omitempty"`
	Status        JobStatus      `json:"status,omitempty"`
	StatusMessage string         `json:"statusMessage,omitempty"`
	Error         *ProblemDetail `json:"error,omitempty"`
	JobOutput     ParameterBag   `json:"jobOutput,omitempty"`
	Progress      *int           `json:"progress,omitempty"`
	Tracker       *Tracker       `json:"tracker,omitempty"`
	Deadline      *time.Time     `json:"deadline,omitempty"`
	DateCreated   time.Time      `json:"dateCreated"`
	DateModified  time.Time      `json:"dateModified"`
}

// JobExecution is one attempt at running a Job via a remote service.
//
// The id is {jobId}/executions/{sequence}; sequences are assigned under the
// job mutex so they are monotonic per job with no gaps.
type JobExecution struct {
	ID              string         `json:"id,omitempty"`
	JobID           string         `json:"jobId"`
	Status          JobStatus      `json:"status,omitempty"`
	StatusMessage   string         `json:"statusMessage,omitempty"`
	JobAssignmentID string         `json:"jobAssignmentId,omitempty"`
	Error           *ProblemDetail `json:"error,omitempty"`
	JobOutput       ParameterBag   `json:"jobOutput,omitempty"`
	Progress        *int           `json:"progress,omitempty"`
	ActualStartDate *time.Time     `json:"actualStartDate,omitempty"`
	ActualEndDate   *time.Time     `json:"actualEndDate,omitempty"`

	// ActualDuration is milliseconds between start and end; only computed
	// when both dates are present and well-ordered.
	ActualDuration *int64 `json:"actualDuration,omitempty"`

	DateCreated  time.Time `json:"dateCreated"`
	DateModified time.Time `json:"dateModified"`
}

// ComputeDuration fills ActualDuration from the start/end dates when both are
// set and end does not precede start.
func (e *JobExecution) ComputeDuration() {
	if e.ActualStartDate == nil || e.ActualEndDate == nil {
		return
	}
	ms := e.ActualEndDate.Sub(*e.ActualStartDate).Milliseconds()
	if ms < 0 {
		return
	}
	e.ActualDuration = &ms
}
