package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ebu/mcma-projects-sub000/pkg/jobstore"
	"github.com/ebu/mcma-projects-sub000/pkg/model"
)

// ProcessNotification reconciles a status update from a remote service onto
// the execution and its job. Updates arriving after the job reached a
// terminal state are ignored, as are Scheduled updates arriving after the
// execution already started running. Exactly one outward notification goes
// out for an applied update, none for an ignored one.
func (p *Processor) ProcessNotification(ctx context.Context, jobID, executionID string, notification model.Notification) error {
	return p.locks.WithLock(ctx, jobID, func(ctx context.Context) error {
		job, err := p.store.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		exec, err := p.store.GetExecution(ctx, executionID)
		if err != nil {
			return err
		}
		if exec.JobID != job.ID {
			return fmt.Errorf("%w: execution %s does not belong to job %s",
				jobstore.ErrNotFound, executionID, jobID)
		}

		update := notification.Content
		if !update.Status.IsValid() {
			return fmt.Errorf("%w: unknown status %q", errValidation, update.Status)
		}

		if job.Status.IsTerminal() {
			p.log.Info("Ignoring notification for terminal job",
				append(jobFields(job),
					zap.String("execution_id", exec.ID),
					zap.String("reported_status", string(update.Status)))...)
			return nil
		}

		// Out-of-order delivery: a Scheduled report after the execution has
		// progressed past it must not roll the state back.
		if update.Status == model.StatusScheduled && model.StatusScheduled.Before(exec.Status) {
			p.log.Info("Ignoring stale scheduled notification",
				append(jobFields(job), zap.String("execution_id", exec.ID))...)
			return nil
		}

		now := time.Now().UTC()
		switch update.Status {
		case model.StatusScheduled, model.StatusRunning:
			if exec.ActualStartDate == nil {
				exec.ActualStartDate = &now
			}
		case model.StatusCompleted, model.StatusFailed, model.StatusCanceled:
			if exec.ActualStartDate == nil {
				exec.ActualStartDate = &now
			}
			if exec.ActualEndDate == nil {
				exec.ActualEndDate = &now
			}
		}

		exec.Status = update.Status
		exec.StatusMessage = update.StatusMessage
		if update.Progress != nil {
			exec.Progress = update.Progress
		}
		if !update.JobOutput.IsEmpty() {
			exec.JobOutput = update.JobOutput
		}
		if update.Error != nil {
			exec.Error = update.Error
		}
		exec.ComputeDuration()
		if err := p.store.UpdateExecution(ctx, exec); err != nil {
			return err
		}

		mirrorExecution(job, exec)
		if err := p.store.UpdateJob(ctx, job); err != nil {
			return err
		}

		p.log.Info("Applied job update notification",
			append(jobFields(job), zap.String("execution_id", exec.ID))...)
		return p.notifySubscribers(ctx, job)
	})
}

// errValidation marks malformed inbound notifications.
var errValidation = errors.New("invalid notification")

// IsValidationError reports whether err stems from a malformed notification.
func IsValidationError(err error) bool {
	return errors.Is(err, errValidation)
}
