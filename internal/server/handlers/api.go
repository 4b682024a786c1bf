// Package handlers implements the REST handlers for jobs, executions and
// operational endpoints.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/ebu/mcma-projects-sub000/internal/errors"
	"github.com/ebu/mcma-projects-sub000/pkg/dispatch"
	"github.com/ebu/mcma-projects-sub000/pkg/jobstore"
)

// maxBodyBytes caps inbound request bodies.
const maxBodyBytes = 1 << 20

// API bundles the handler dependencies.
type API struct {
	Store      *jobstore.Store
	Dispatcher dispatch.Dispatcher
	Log        *zap.Logger
	Version    string
}

// NewAPI creates the handler set.
func NewAPI(store *jobstore.Store, dispatcher dispatch.Dispatcher, log *zap.Logger, version string) (*API, error) {
	if store == nil || dispatcher == nil {
		return nil, fmt.Errorf("handlers require store and dispatcher")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &API{Store: store, Dispatcher: dispatcher, Log: log, Version: version}, nil
}

// jobURI rebuilds the full job id from the path's uuid segment.
func (a *API) jobURI(jobID string) string {
	return a.Store.BaseURL() + "/jobs/" + jobID
}

// executionURI rebuilds the full execution id from its path segments.
func (a *API) executionURI(jobID, seq string) string {
	return a.jobURI(jobID) + "/executions/" + seq
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("parse request body: %w", err)
	}
	return nil
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	apperrors.WriteError(w, r, http.StatusBadRequest, apperrors.CodeValidation, message, nil)
}
