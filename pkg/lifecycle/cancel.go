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

// CancelExecution cancels the job's current execution. Canceling a job that
// is already terminal is a conflict.
func (p *Processor) CancelExecution(ctx context.Context, jobID string) error {
	return p.locks.WithLock(ctx, jobID, func(ctx context.Context) error {
		job, err := p.store.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status.IsTerminal() {
			return fmt.Errorf("%w: job %s is already %s", ErrConflict, jobID, job.Status)
		}

		if err := p.cancelLocked(ctx, job); err != nil {
			return err
		}
		return p.notifySubscribers(ctx, job)
	})
}

// cancelLocked cancels the current (most recent) execution under an
// already-held job lock. Deleting the remote assignment is best-effort: a
// remote failure is logged and must not block cancellation.
func (p *Processor) cancelLocked(ctx context.Context, job *model.Job) error {
	exec, err := p.store.LatestExecution(ctx, job.ID)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			// Never started; just mark the job itself.
			job.Status = model.StatusCanceled
			return p.store.UpdateJob(ctx, job)
		}
		return err
	}

	if exec.Status.IsTerminal() {
		return nil
	}

	if exec.JobAssignmentID != "" {
		if err := p.matcher.DeleteAssignment(ctx, exec.JobAssignmentID); err != nil {
			p.log.Warn("Failed to delete remote job assignment",
				append(jobFields(job),
					zap.String("assignment_id", exec.JobAssignmentID),
					zap.Error(err))...)
		}
	}

	now := time.Now().UTC()
	exec.Status = model.StatusCanceled
	if exec.ActualEndDate == nil {
		exec.ActualEndDate = &now
	}
	exec.ComputeDuration()
	if err := p.store.UpdateExecution(ctx, exec); err != nil {
		return err
	}

	mirrorExecution(job, exec)
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return err
	}

	p.log.Info("Canceled job execution",
		append(jobFields(job), zap.String("execution_id", exec.ID))...)
	return nil
}
