// Package registry is the client for the central capability registry that
// owns Service and JobProfile resources and fans job notifications out to
// subscribers.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ebu/mcma-projects-sub000/pkg/model"
)

// ErrNotFound indicates the registry has no resource at the given uri.
var ErrNotFound = errors.New("registry resource not found")

// Client is the boundary contract the job processor consumes. The auth
// scheme behind it is deployment-specific and out of scope here.
type Client interface {
	// Get fetches a single resource document by uri.
	Get(ctx context.Context, uri string) (json.RawMessage, error)

	// Query lists resources of one type, optionally filtered by exact field
	// matches.
	Query(ctx context.Context, resourceType string, filter map[string]string) ([]json.RawMessage, error)

	// Create registers a new resource of the given type.
	Create(ctx context.Context, resourceType string, resource any) (json.RawMessage, error)

	// Update replaces the resource at uri.
	Update(ctx context.Context, uri string, resource any) error

	// SendNotification delivers a job state change to the job's subscribers.
	SendNotification(ctx context.Context, source string, notification model.Notification) error
}

// GetJobProfile fetches and decodes a JobProfile by its uri.
func GetJobProfile(ctx context.Context, c Client, uri string) (*model.JobProfile, error) {
	raw, err := c.Get(ctx, uri)
	if err != nil {
		return nil, err
	}
	var profile model.JobProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("parse job profile %s: %w", uri, err)
	}
	return &profile, nil
}

// QueryServices lists all registered services in registry-return order.
func QueryServices(ctx context.Context, c Client) ([]model.Service, error) {
	raws, err := c.Query(ctx, model.TypeService, nil)
	if err != nil {
		return nil, err
	}

	services := make([]model.Service, 0, len(raws))
	for _, raw := range raws {
		var svc model.Service
		if err := json.Unmarshal(raw, &svc); err != nil {
			return nil, fmt.Errorf("parse service: %w", err)
		}
		services = append(services, svc)
	}
	return services, nil
}

// QueryServicesByName lists registered services with the given name.
func QueryServicesByName(ctx context.Context, c Client, name string) ([]model.Service, error) {
	raws, err := c.Query(ctx, model.TypeService, map[string]string{"name": name})
	if err != nil {
		return nil, err
	}

	services := make([]model.Service, 0, len(raws))
	for _, raw := range raws {
		var svc model.Service
		if err := json.Unmarshal(raw, &svc); err != nil {
			return nil, fmt.Errorf("parse service: %w", err)
		}
		services = append(services, svc)
	}
	return services, nil
}

// QueryJobProfiles lists registered job profiles with the given name.
func QueryJobProfiles(ctx context.Context, c Client, name string) ([]model.JobProfile, error) {
	raws, err := c.Query(ctx, model.TypeJobProfile, map[string]string{"name": name})
	if err != nil {
		return nil, err
	}

	profiles := make([]model.JobProfile, 0, len(raws))
	for _, raw := range raws {
		var profile model.JobProfile
		if err := json.Unmarshal(raw, &profile); err != nil {
			return nil, fmt.Errorf("parse job profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// CreateService registers a service and returns the stored form, id
// included.
func CreateService(ctx context.Context, c Client, svc model.Service) (*model.Service, error) {
	raw, err := c.Create(ctx, model.TypeService, svc)
	if err != nil {
		return nil, err
	}
	var created model.Service
	if err := json.Unmarshal(raw, &created); err != nil {
		return nil, fmt.Errorf("parse created service: %w", err)
	}
	return &created, nil
}

// CreateJobProfile registers a job profile and returns the stored form, id
// included.
func CreateJobProfile(ctx context.Context, c Client, profile model.JobProfile) (*model.JobProfile, error) {
	raw, err := c.Create(ctx, model.TypeJobProfile, profile)
	if err != nil {
		return nil, err
	}
	var created model.JobProfile
	if err := json.Unmarshal(raw, &created); err != nil {
		return nil, fmt.Errorf("parse created job profile: %w", err)
	}
	return &created, nil
}
