// Package lifecycle implements the job state machine: starting, canceling,
// restarting and deleting jobs, and reconciling asynchronous completion
// notifications from remote services.
//
// Every operation that mutates a job acquires the distributed lock keyed by
// the job id before its first read and releases it after its final write and
// outward notification. Operations on unrelated jobs run concurrently without
// coordination.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ebu/mcma-projects-sub000/pkg/jobstore"
	"github.com/ebu/mcma-projects-sub000/pkg/locator"
	"github.com/ebu/mcma-projects-sub000/pkg/matcher"
	"github.com/ebu/mcma-projects-sub000/pkg/model"
	"github.com/ebu/mcma-projects-sub000/pkg/mutex"
	"github.com/ebu/mcma-projects-sub000/pkg/registry"
)

// Errors surfaced to the API boundary.
var (
	// ErrNotFound indicates the job or execution does not exist.
	ErrNotFound = jobstore.ErrNotFound

	// ErrConflict indicates a state precondition was violated (restart past
	// deadline, cancel of a terminal job, delete of a non-terminal job).
	ErrConflict = errors.New("conflict")
)

// URLResolver turns storage locators in job input into URLs a remote service
// can fetch without holding credentials. Optional; without one, locator
// inputs are handed over as-is.
type URLResolver interface {
	ResolveURL(ctx context.Context, l locator.Locator) (string, error)
}

// TriggerEnabler enables an external trigger (e.g. a scheduled poller) tied
// to a job type once an execution has been dispatched. Optional.
type TriggerEnabler interface {
	EnableTrigger(ctx context.Context, jobType string) error
}

// Options bundles the collaborators a Processor needs. Everything is passed
// explicitly; operations never read ambient state.
type Options struct {
	Store    *jobstore.Store
	Locks    *mutex.Factory
	Registry registry.Client
	Matcher  *matcher.Matcher
	Resolver URLResolver
	Triggers TriggerEnabler
	Logger   *zap.Logger
}

// Processor drives the Job/JobExecution state machine.
type Processor struct {
	store    *jobstore.Store
	locks    *mutex.Factory
	reg      registry.Client
	matcher  *matcher.Matcher
	resolver URLResolver
	triggers TriggerEnabler
	log      *zap.Logger
}

// NewProcessor creates a Processor from its collaborators.
func NewProcessor(opts Options) (*Processor, error) {
	if opts.Store == nil || opts.Locks == nil || opts.Registry == nil || opts.Matcher == nil {
		return nil, fmt.Errorf("lifecycle processor requires store, locks, registry and matcher")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		store:    opts.Store,
		locks:    opts.Locks,
		reg:      opts.Registry,
		matcher:  opts.Matcher,
		resolver: opts.Resolver,
		triggers: opts.Triggers,
		log:      log,
	}, nil
}

// jobFields returns the standard log fields for a job, including its tracker
// correlation id when present.
func jobFields(job *model.Job) []zap.Field {
	fields := []zap.Field{
		zap.String("job_id", job.ID),
		zap.String("job_type", job.JobType),
		zap.String("status", string(job.Status)),
	}
	if job.Tracker != nil {
		fields = append(fields, zap.String("tracker_id", job.Tracker.ID))
	}
	return fields
}

// notifySubscribers sends the single outward notification that ends every
// state-changing operation.
func (p *Processor) notifySubscribers(ctx context.Context, job *model.Job) error {
	notification := model.Notification{
		Content: model.JobUpdate{
			Status:        job.Status,
			StatusMessage: job.StatusMessage,
			Progress:      job.Progress,
			JobOutput:     job.JobOutput,
			Error:         job.Error,
		},
	}
	if err := p.reg.SendNotification(ctx, job.ID, notification); err != nil {
		return fmt.Errorf("notify subscribers of %s: %w", job.ID, err)
	}
	return nil
}

// mirrorExecution copies the execution's observable state onto the job.
func mirrorExecution(job *model.Job, exec *model.JobExecution) {
	job.Status = exec.Status
	job.StatusMessage = exec.StatusMessage
	job.Progress = exec.Progress
	job.JobOutput = exec.JobOutput
	job.Error = exec.Error
}
