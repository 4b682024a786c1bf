// Package dispatch queues job lifecycle operations for asynchronous
// execution. The REST layer accepts a request, enqueues the operation and
// returns immediately; a worker pool drains the queue and invokes the
// lifecycle processor.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/ebu/mcma-projects-sub000/pkg/model"
)

// Operation names accepted by a Dispatcher.
const (
	OpStartJob            = "StartJob"
	OpCancelJob           = "CancelJob"
	OpRestartJob          = "RestartJob"
	OpDeleteJob           = "DeleteJob"
	OpProcessNotification = "ProcessNotification"
)

// Dispatcher errors.
var (
	// ErrUnknownOperation indicates an operation name no handler exists for.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrQueueFull indicates the dispatcher's queue is at capacity.
	ErrQueueFull = errors.New("dispatch queue full")

	// ErrClosed indicates the dispatcher has been shut down.
	ErrClosed = errors.New("dispatcher closed")

	// ErrFiltered indicates the job type is excluded by the dispatcher's
	// job type filter.
	ErrFiltered = errors.New("job type filtered")
)

// OperationRequest is one queued lifecycle operation. Input carries the
// operation payload as loosely typed keys; each handler decodes the fields
// it needs.
type OperationRequest struct {
	Operation string         `json:"operation"`
	JobType   string         `json:"jobType,omitempty"`
	Input     map[string]any `json:"input"`

	// Tracker carries the job's correlation tracker so worker logs can be
	// tied back to the caller's workflow.
	Tracker *model.Tracker `json:"tracker,omitempty"`

	// Notification is set only for ProcessNotification.
	Notification *model.Notification `json:"notification,omitempty"`
}

// jobPayload is the decoded shape shared by the job-scoped operations.
type jobPayload struct {
	JobID       string `mapstructure:"jobId"`
	ExecutionID string `mapstructure:"jobExecutionId"`
}

func decodePayload(input map[string]any) (jobPayload, error) {
	var p jobPayload
	if err := mapstructure.Decode(input, &p); err != nil {
		return p, fmt.Errorf("decode operation input: %w", err)
	}
	if p.JobID == "" {
		return p, fmt.Errorf("decode operation input: missing jobId")
	}
	return p, nil
}

// Operations is the set of lifecycle entry points a dispatcher drives.
type Operations interface {
	StartExecution(ctx context.Context, jobID string) error
	CancelExecution(ctx context.Context, jobID string) error
	RestartJob(ctx context.Context, jobID string) error
	DeleteJob(ctx context.Context, jobID string) error
	ProcessNotification(ctx context.Context, jobID, executionID string, notification model.Notification) error
}

// Dispatcher accepts operation requests for asynchronous execution.
type Dispatcher interface {
	Dispatch(ctx context.Context, req OperationRequest) error
}
