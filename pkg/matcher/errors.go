package matcher

import (
	"errors"
	"fmt"
)

// Sentinel errors for assignment matching.
var (
	// ErrMissingRequiredInput indicates the job input lacks parameters the
	// profile declares as required.
	ErrMissingRequiredInput = errors.New("missing required job input")

	// ErrNoCapableService indicates no registered service can execute the
	// job's type and profile.
	ErrNoCapableService = errors.New("no capable service")
)

// DispatchError wraps a failed JobAssignment POST or DELETE against a remote
// service endpoint.
type DispatchError struct {
	// Op is the operation that failed ("Create", "Delete").
	Op string

	// Endpoint is the remote endpoint the request went to.
	Endpoint string

	// StatusCode is the HTTP status when a response was received.
	StatusCode int

	// Err is the underlying error.
	Err error
}

func (e *DispatchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("job assignment %s: %s: status %d", e.Op, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("job assignment %s: %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsDispatchError reports whether err is a remote dispatch failure.
func IsDispatchError(err error) bool {
	var de *DispatchError
	return errors.As(err, &de)
}
