package model

// JobUpdate is the job-shaped payload of a notification: the fields a remote
// service (or the processor itself) reports about an execution.
type JobUpdate struct {
	Status        JobStatus      `json:"status"`
	StatusMessage string         `json:"statusMessage,omitempty"`
	Progress      *int           `json:"progress,omitempty"`
	JobOutput     ParameterBag   `json:"jobOutput,omitempty"`
	Error         *ProblemDetail `json:"error,omitempty"`
}

// Notification is an async callback delivered by a remote service about one
// job assignment, or sent by the processor to the job's own subscribers.
type Notification struct {
	// Source identifies the sender; for remote callbacks it must match the
	// jobAssignmentId recorded on the execution.
	Source  string    `json:"source,omitempty"`
	Content JobUpdate `json:"content"`
}
