package lifecycle

import (
	"context"

	"go.uber.org/zap"
)

// DeleteJob removes the job and all its execution records. Remote
// assignments are deleted best-effort: failures are logged and deletion
// continues. No notification is sent; the resource no longer exists.
func (p *Processor) DeleteJob(ctx context.Context, jobID string) error {
	return p.locks.WithLock(ctx, jobID, func(ctx context.Context) error {
		job, err := p.store.GetJob(ctx, jobID)
		if err != nil {
			return err
		}

		execs, err := p.store.GetExecutions(ctx, jobID)
		if err != nil {
			return err
		}

		for _, exec := range execs {
			if exec.JobAssignmentID != "" {
				if err := p.matcher.DeleteAssignment(ctx, exec.JobAssignmentID); err != nil {
					p.log.Warn("Failed to delete remote job assignment",
						append(jobFields(job),
							zap.String("assignment_id", exec.JobAssignmentID),
							zap.Error(err))...)
				}
			}
			if err := p.store.DeleteExecution(ctx, exec.ID); err != nil {
				return err
			}
		}

		if err := p.store.DeleteJob(ctx, jobID); err != nil {
			return err
		}

		p.log.Info("Deleted job",
			append(jobFields(job), zap.Int("executions", len(execs)))...)
		return nil
	})
}
