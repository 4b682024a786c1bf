package lifecycle

import (
	"context"
	"fmt"
	"time"
)

// RestartJob cancels the job's current execution and starts a new one under
// a single lock acquisition, so no other operation can interleave between
// the two halves. Exactly one notification goes out at the end.
//
// A restart past the job's deadline is rejected as a conflict before any
// mutation.
func (p *Processor) RestartJob(ctx context.Context, jobID string) error {
	return p.locks.WithLock(ctx, jobID, func(ctx context.Context) error {
		job, err := p.store.GetJob(ctx, jobID)
		if err != nil {
			return err
		}

		if job.Deadline != nil && time.Now().After(*job.Deadline) {
			return fmt.Errorf("%w: job %s deadline %s has passed",
				ErrConflict, jobID, job.Deadline.UTC().Format(time.RFC3339))
		}

		if err := p.cancelLocked(ctx, job); err != nil {
			return err
		}
		if err := p.startLocked(ctx, job); err != nil {
			return err
		}
		return p.notifySubscribers(ctx, job)
	})
}
