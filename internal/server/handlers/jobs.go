package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/ebu/mcma-projects-sub000/internal/errors"
	"github.com/ebu/mcma-projects-sub000/pkg/dispatch"
	"github.com/ebu/mcma-projects-sub000/pkg/jobstore"
	"github.com/ebu/mcma-projects-sub000/pkg/model"
)

// CreateJob accepts a job document, persists it and queues its start. The
// response carries the stored job, id and status included; processing
// continues asynchronously.
func (a *API) CreateJob(w http.ResponseWriter, r *http.Request) {
	var job model.Job
	if err := decodeJSON(w, r, &job); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if job.JobType == "" {
		badRequest(w, r, "jobType is required")
		return
	}
	if job.JobProfileID == "" {
		badRequest(w, r, "jobProfileId is required")
		return
	}
	if job.Deadline != nil && time.Now().After(*job.Deadline) {
		badRequest(w, r, "deadline is already in the past")
		return
	}

	// Server-owned fields; whatever the caller sent is discarded.
	job.ID = ""
	job.Status = model.StatusNew
	job.StatusMessage = ""
	job.Error = nil
	job.JobOutput = model.ParameterBag{}
	job.Progress = nil

	if err := a.Store.AddJob(r.Context(), &job); err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}

	err := a.Dispatcher.Dispatch(r.Context(), dispatch.OperationRequest{
		Operation: dispatch.OpStartJob,
		JobType:   job.JobType,
		Input:     map[string]any{"jobId": job.ID},
		Tracker:   job.Tracker,
	})
	if err != nil {
		a.Log.Error("Failed to queue job start",
			zap.String("job_id", job.ID), zap.Error(err))
		apperrors.RespondWithError(w, r, err)
		return
	}

	w.Header().Set("Location", job.ID)
	writeJSON(w, http.StatusCreated, job)
}

// ListJobs returns jobs matching the query filters: status, from, to,
// order (asc|desc) and limit.
func (a *API) ListJobs(w http.ResponseWriter, r *http.Request) {
	var q jobstore.JobQuery

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.JobStatus(raw)
		if !status.IsValid() {
			badRequest(w, r, "unknown status "+strconv.Quote(raw))
			return
		}
		q.Status = status
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, r, "invalid from timestamp: "+err.Error())
			return
		}
		q.From = &t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, r, "invalid to timestamp: "+err.Error())
			return
		}
		q.To = &t
	}
	switch order := r.URL.Query().Get("order"); order {
	case "", "desc":
	case "asc":
		q.Ascending = true
	default:
		badRequest(w, r, "order must be asc or desc")
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			badRequest(w, r, "invalid limit")
			return
		}
		q.Limit = limit
	}

	jobs, err := a.Store.QueryJobs(r.Context(), q)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GetJob returns one job by id.
func (a *API) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Store.GetJob(r.Context(), a.jobURI(chi.URLParam(r, "jobId")))
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// DeleteJob queues deletion of a terminal job. Deleting a job that is still
// in flight is a conflict; cancel it first.
func (a *API) DeleteJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Store.GetJob(r.Context(), a.jobURI(chi.URLParam(r, "jobId")))
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	if !job.Status.IsTerminal() {
		apperrors.WriteError(w, r, http.StatusConflict, apperrors.CodeConflict,
			"job is not in a terminal state", nil)
		return
	}

	a.dispatchOperation(w, r, job, dispatch.OpDeleteJob)
}

// CancelJob queues cancellation of a running job.
func (a *API) CancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Store.GetJob(r.Context(), a.jobURI(chi.URLParam(r, "jobId")))
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	if job.Status.IsTerminal() {
		apperrors.WriteError(w, r, http.StatusConflict, apperrors.CodeConflict,
			"job is already in a terminal state", nil)
		return
	}

	a.dispatchOperation(w, r, job, dispatch.OpCancelJob)
}

// RestartJob queues a restart. Restarting past the job's deadline is a
// conflict.
func (a *API) RestartJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Store.GetJob(r.Context(), a.jobURI(chi.URLParam(r, "jobId")))
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	if job.Deadline != nil && time.Now().After(*job.Deadline) {
		apperrors.WriteError(w, r, http.StatusConflict, apperrors.CodeConflict,
			"job deadline has passed", nil)
		return
	}

	a.dispatchOperation(w, r, job, dispatch.OpRestartJob)
}

// dispatchOperation queues a job-scoped operation and answers 202.
func (a *API) dispatchOperation(w http.ResponseWriter, r *http.Request, job *model.Job, operation string) {
	err := a.Dispatcher.Dispatch(r.Context(), dispatch.OperationRequest{
		Operation: operation,
		JobType:   job.JobType,
		Input:     map[string]any{"jobId": job.ID},
		Tracker:   job.Tracker,
	})
	if err != nil {
		if errors.Is(err, dispatch.ErrFiltered) {
			apperrors.WriteError(w, r, http.StatusConflict, apperrors.CodeConflict,
				"job type is not handled by this processor", nil)
			return
		}
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}
