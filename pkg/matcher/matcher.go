// Package matcher finds a registered service capable of executing a job and
// posts a JobAssignment to it.
//
// Selection is deliberately first-match in registry-return order: no scoring
// and no load balancing. Matching is by jobProfileId only.
package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ebu/mcma-projects-sub000/pkg/model"
	"github.com/ebu/mcma-projects-sub000/pkg/registry"
)

// NotificationEndpoint is the callback the remote service invokes when the
// assignment changes state.
type NotificationEndpoint struct {
	HTTPEndpoint string `json:"httpEndpoint"`
}

// AssignmentRequest is the document posted to the matched service.
type AssignmentRequest struct {
	Job                  string               `json:"job"`
	JobInput             model.ParameterBag   `json:"jobInput"`
	NotificationEndpoint NotificationEndpoint `json:"notificationEndpoint"`
	Tracker              *model.Tracker       `json:"tracker,omitempty"`
}

// AssignmentResponse is the service's own tracking resource for the
// assignment; only the id matters here.
type AssignmentResponse struct {
	ID string `json:"id"`
}

// Config tunes the matcher's HTTP behavior.
type Config struct {
	// RequestTimeout bounds each assignment POST/DELETE. Zero uses
	// DefaultRequestTimeout.
	RequestTimeout time.Duration
}

// DefaultRequestTimeout bounds assignment POST/DELETE calls.
const DefaultRequestTimeout = 30 * time.Second

// Matcher validates job input against the profile and dispatches assignments.
type Matcher struct {
	reg  registry.Client
	http *http.Client
	log  *zap.Logger
}

// New creates a Matcher.
func New(reg registry.Client, cfg Config, log *zap.Logger) *Matcher {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{
		reg:  reg,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// ValidateInput checks that every required profile parameter is present in
// the job input. Missing parameters are reported together.
func ValidateInput(job *model.Job, profile *model.JobProfile) error {
	var missing []string
	for _, p := range profile.InputParameters {
		if !job.JobInput.Has(p.ParameterName) {
			missing = append(missing, p.ParameterName)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequiredInput, strings.Join(missing, ", "))
	}
	return nil
}

// Assign validates the job against its profile, selects the first capable
// service, and posts a JobAssignment to it. It returns the remote assignment
// id.
//
// A dispatch failure here is a hard failure of the start; retry policy
// belongs to the caller.
func (m *Matcher) Assign(ctx context.Context, job *model.Job, profile *model.JobProfile, notificationEndpoint string) (string, error) {
	if err := ValidateInput(job, profile); err != nil {
		return "", err
	}

	services, err := registry.QueryServices(ctx, m.reg)
	if err != nil {
		return "", fmt.Errorf("query services: %w", err)
	}

	endpoint, svcName, found := selectService(services, job)
	if !found {
		return "", fmt.Errorf("%w: jobType=%s jobProfileId=%s", ErrNoCapableService, job.JobType, job.JobProfileID)
	}

	m.log.Debug("Matched service for job",
		zap.String("job_id", job.ID),
		zap.String("service", svcName),
		zap.String("endpoint", endpoint))

	assignmentID, err := m.postAssignment(ctx, endpoint, AssignmentRequest{
		Job:                  job.ID,
		JobInput:             job.JobInput,
		NotificationEndpoint: NotificationEndpoint{HTTPEndpoint: notificationEndpoint},
		Tracker:              job.Tracker,
	})
	if err != nil {
		return "", err
	}
	return assignmentID, nil
}

// selectService returns the JobAssignment endpoint of the first service in
// registry-return order that declares the job's type and profile.
func selectService(services []model.Service, job *model.Job) (endpoint, name string, found bool) {
	for _, svc := range services {
		if svc.JobType != job.JobType {
			continue
		}
		ep, ok := svc.ResourceEndpoint(model.TypeJobAssignment)
		if !ok {
			continue
		}
		if !svc.AcceptsProfile(job.JobProfileID) {
			continue
		}
		return ep, svc.Name, true
	}
	return "", "", false
}

func (m *Matcher) postAssignment(ctx context.Context, endpoint string, req AssignmentRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal assignment: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &DispatchError{Op: "Create", Endpoint: endpoint, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(httpReq)
	if err != nil {
		return "", &DispatchError{Op: "Create", Endpoint: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return "", &DispatchError{Op: "Create", Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	var assignment AssignmentResponse
	if err := json.Unmarshal(body, &assignment); err != nil {
		return "", &DispatchError{Op: "Create", Endpoint: endpoint, Err: fmt.Errorf("parse response: %w", err)}
	}
	if assignment.ID == "" {
		return "", &DispatchError{Op: "Create", Endpoint: endpoint, Err: fmt.Errorf("response carries no assignment id")}
	}
	return assignment.ID, nil
}

// DeleteAssignment removes the remote service's assignment resource. Callers
// decide whether failures are fatal; cancel and delete treat them as
// best-effort.
func (m *Matcher) DeleteAssignment(ctx context.Context, assignmentID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, assignmentID, nil)
	if err != nil {
		return &DispatchError{Op: "Delete", Endpoint: assignmentID, Err: err}
	}

	resp, err := m.http.Do(httpReq)
	if err != nil {
		return &DispatchError{Op: "Delete", Endpoint: assignmentID, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	// 404 counts as already gone.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return &DispatchError{Op: "Delete", Endpoint: assignmentID, StatusCode: resp.StatusCode}
	}
	return nil
}
