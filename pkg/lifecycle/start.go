package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ebu/mcma-projects-sub000/pkg/model"
	"github.com/ebu/mcma-projects-sub000/pkg/registry"
)

// StartExecution creates a new execution for the job, matches it to a
// capable service and dispatches a JobAssignment.
//
// Failures while computing the job's own outcome (validation, matching,
// dispatch) are persisted as a Failed status with a structured problem; they
// are a normal observable outcome, not an operation error. Exactly one
// notification goes out either way.
func (p *Processor) StartExecution(ctx context.Context, jobID string) error {
	return p.locks.WithLock(ctx, jobID, func(ctx context.Context) error {
		job, err := p.store.GetJob(ctx, jobID)
		if err != nil {
			return err
		}

		if err := p.startLocked(ctx, job); err != nil {
			return err
		}
		return p.notifySubscribers(ctx, job)
	})
}

// startLocked runs the start sequence under an already-held job lock. It
// persists all outcomes but sends no notification; callers own that.
func (p *Processor) startLocked(ctx context.Context, job *model.Job) error {
	// New attempt: prior outcome fields no longer apply.
	exec := &model.JobExecution{
		JobID:  job.ID,
		Status: model.StatusQueued,
	}
	if err := p.store.AddExecution(ctx, exec); err != nil {
		return err
	}
	mirrorExecution(job, exec)
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return err
	}

	if job.Deadline != nil && time.Now().After(*job.Deadline) {
		p.log.Info("Refusing to start job past its deadline", jobFields(job)...)
		return p.failLocked(ctx, job, exec, model.NewProblem(
			model.ProblemJobStartFailure, "Job deadline has passed", nil))
	}

	profile, err := registry.GetJobProfile(ctx, p.reg, job.JobProfileID)
	if err != nil {
		p.log.Warn("Failed to resolve job profile",
			append(jobFields(job), zap.Error(err))...)
		return p.failLocked(ctx, job, exec, model.NewProblem(
			model.ProblemJobStartFailure, "Failed to resolve job profile", err))
	}

	dispatchJob, err := p.resolveInputs(ctx, job)
	if err != nil {
		p.log.Warn("Failed to resolve job input locators",
			append(jobFields(job), zap.Error(err))...)
		return p.failLocked(ctx, job, exec, model.NewProblem(
			model.ProblemJobStartFailure, "Failed to resolve job input locators", err))
	}

	notificationEndpoint := exec.ID + "/notifications"
	assignmentID, err := p.matcher.Assign(ctx, dispatchJob, profile, notificationEndpoint)
	if err != nil {
		p.log.Warn("Failed to dispatch job assignment",
			append(jobFields(job), zap.Error(err))...)
		return p.failLocked(ctx, job, exec, model.NewProblem(
			model.ProblemJobStartFailure, "Failed to dispatch job assignment", err))
	}

	exec.Status = model.StatusScheduled
	exec.JobAssignmentID = assignmentID
	if err := p.store.UpdateExecution(ctx, exec); err != nil {
		return err
	}
	mirrorExecution(job, exec)
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return err
	}

	p.log.Info("Scheduled job execution",
		append(jobFields(job),
			zap.String("execution_id", exec.ID),
			zap.String("assignment_id", assignmentID))...)

	if p.triggers != nil {
		if err := p.triggers.EnableTrigger(ctx, job.JobType); err != nil {
			p.log.Warn("Failed to enable job type trigger",
				append(jobFields(job), zap.Error(err))...)
		}
	}
	return nil
}

// resolveInputs returns the job the assignment is built from. With a resolver
// configured, locator inputs are swapped for fetchable URLs on a copy; the
// stored job keeps the original locators, since resolved URLs expire.
func (p *Processor) resolveInputs(ctx context.Context, job *model.Job) (*model.Job, error) {
	if p.resolver == nil {
		return job, nil
	}

	var input model.ParameterBag
	resolved := false
	for _, param := range job.JobInput.Parameters() {
		if param.Value.Kind() != model.ValueLocator {
			input.Set(param.Name, param.Value)
			continue
		}
		loc, err := param.Value.AsLocator()
		if err != nil {
			return nil, err
		}
		u, err := p.resolver.ResolveURL(ctx, loc)
		if err != nil {
			return nil, fmt.Errorf("resolve input %q: %w", param.Name, err)
		}
		input.Set(param.Name, model.String(u))
		resolved = true
	}
	if !resolved {
		return job, nil
	}

	dispatchJob := *job
	dispatchJob.JobInput = input
	return &dispatchJob, nil
}

// failLocked records a job-outcome failure on the execution and job. The
// failure does not propagate; the job's own failure is the result.
func (p *Processor) failLocked(ctx context.Context, job *model.Job, exec *model.JobExecution, problem *model.ProblemDetail) error {
	now := time.Now().UTC()
	exec.Status = model.StatusFailed
	exec.Error = problem
	if exec.ActualEndDate == nil {
		exec.ActualEndDate = &now
	}
	exec.ComputeDuration()
	if err := p.store.UpdateExecution(ctx, exec); err != nil {
		return err
	}

	mirrorExecution(job, exec)
	return p.store.UpdateJob(ctx, job)
}
