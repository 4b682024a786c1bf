// Package model defines the resources the job processor owns and exchanges:
// jobs, job executions, and the registry-owned service and profile documents
// it reads.
package model

// JobStatus is the lifecycle state of a Job or JobExecution.
//
// NOTE: These values are persisted and travel in notifications; they are part
// of the stable wire contract.
type JobStatus string

const (
	StatusNew       JobStatus = "New"
	StatusQueued    JobStatus = "Queued"
	StatusScheduled JobStatus = "Scheduled"
	StatusRunning   JobStatus = "Running"
	StatusCompleted JobStatus = "Completed"
	StatusFailed    JobStatus = "Failed"
	StatusCanceled  JobStatus = "Canceled"
)

// statusOrder assigns each status its position in the forward transition
// order. Terminal states share the highest rank.
var statusOrder = map[JobStatus]int{
	StatusNew:       0,
	StatusQueued:    1,
	StatusScheduled: 2,
	StatusRunning:   3,
	StatusCompleted: 4,
	StatusFailed:    4,
	StatusCanceled:  4,
}

// IsValid reports whether s is a known status value.
func (s JobStatus) IsValid() bool {
	_, ok := statusOrder[s]
	return ok
}

// IsTerminal reports whether s is a final state. Terminal jobs are immutable
// except through deletion.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Before reports whether s comes strictly earlier than other in the
// transition order. Used to detect out-of-order notification delivery.
func (s JobStatus) Before(other JobStatus) bool {
	return statusOrder[s] < statusOrder[other]
}
