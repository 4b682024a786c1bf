package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/ebu/mcma-projects-sub000/internal/errors"
	"github.com/ebu/mcma-projects-sub000/pkg/dispatch"
	"github.com/ebu/mcma-projects-sub000/pkg/model"
)

// ListExecutions returns a job's executions, newest first.
func (a *API) ListExecutions(w http.ResponseWriter, r *http.Request) {
	jobURI := a.jobURI(chi.URLParam(r, "jobId"))
	if _, err := a.Store.GetJob(r.Context(), jobURI); err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}

	execs, err := a.Store.GetExecutions(r.Context(), jobURI)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, execs)
}

// GetExecution returns one execution by sequence number. The literal
// sequence "latest" resolves to the most recent execution.
func (a *API) GetExecution(w http.ResponseWriter, r *http.Request) {
	jobURI := a.jobURI(chi.URLParam(r, "jobId"))
	seq := chi.URLParam(r, "executionId")

	if seq == "latest" {
		exec, err := a.Store.LatestExecution(r.Context(), jobURI)
		if err != nil {
			apperrors.RespondWithError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, exec)
		return
	}

	if _, err := strconv.Atoi(seq); err != nil {
		badRequest(w, r, "execution id must be a sequence number or \"latest\"")
		return
	}
	exec, err := a.Store.GetExecution(r.Context(), a.executionURI(chi.URLParam(r, "jobId"), seq))
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

// PostNotification accepts a status callback from the remote service
// handling an execution and queues it for processing. The notification's
// source must match the execution's assignment.
func (a *API) PostNotification(w http.ResponseWriter, r *http.Request) {
	jobURI := a.jobURI(chi.URLParam(r, "jobId"))
	execURI := a.executionURI(chi.URLParam(r, "jobId"), chi.URLParam(r, "executionId"))

	var notification model.Notification
	if err := decodeJSON(w, r, &notification); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if !notification.Content.Status.IsValid() {
		badRequest(w, r, "unknown status "+strconv.Quote(string(notification.Content.Status)))
		return
	}

	exec, err := a.Store.GetExecution(r.Context(), execURI)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	if notification.Source != exec.JobAssignmentID {
		badRequest(w, r, "notification source does not match the execution's job assignment")
		return
	}

	job, err := a.Store.GetJob(r.Context(), jobURI)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}

	err = a.Dispatcher.Dispatch(r.Context(), dispatch.OperationRequest{
		Operation: dispatch.OpProcessNotification,
		JobType:   job.JobType,
		Input: map[string]any{
			"jobId":          jobURI,
			"jobExecutionId": execURI,
		},
		Tracker:      job.Tracker,
		Notification: &notification,
	})
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
