package model

// ProblemDetail carries structured failure information on a Job or
// JobExecution. Loosely follows RFC 7807.
type ProblemDetail struct {
	Type       string `json:"type"`
	Title      string `json:"title,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Stacktrace string `json:"stacktrace,omitempty"`
}

// Problem types raised by the job processor itself.
const (
	ProblemJobStartFailure = "job-start-failure"
)

// NewProblem builds a ProblemDetail from a type and the error that caused it.
func NewProblem(problemType, title string, err error) *ProblemDetail {
	p := &ProblemDetail{Type: problemType, Title: title}
	if err != nil {
		p.Detail = err.Error()
	}
	return p
}

// Tracker is an opaque correlation id plus human label that is threaded
// through every downstream call for a single job's lifetime.
type Tracker struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}
