package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ebu/mcma-projects-sub000/pkg/model"
)

// HTTPConfig configures the HTTP registry client.
type HTTPConfig struct {
	// ServicesEndpoint lists/creates Service resources.
	ServicesEndpoint string

	// JobProfilesEndpoint lists/creates JobProfile resources.
	JobProfilesEndpoint string

	// NotificationsEndpoint receives job state change notifications for
	// fan-out to subscribers.
	NotificationsEndpoint string

	// AuthHeader/AuthValue are attached to every request when set.
	AuthHeader string
	AuthValue  string

	// Timeout bounds each request. Zero uses DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout is the per-request timeout for registry calls.
const DefaultTimeout = 30 * time.Second

// HTTPClient talks to a capability registry over REST.
type HTTPClient struct {
	cfg  HTTPConfig
	http *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTP registry client.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.ServicesEndpoint == "" {
		return nil, fmt.Errorf("registry services endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) endpointFor(resourceType string) (string, error) {
	switch resourceType {
	case model.TypeService:
		return c.cfg.ServicesEndpoint, nil
	case model.TypeJobProfile:
		if c.cfg.JobProfilesEndpoint == "" {
			return "", fmt.Errorf("registry job profiles endpoint is not configured")
		}
		return c.cfg.JobProfilesEndpoint, nil
	default:
		return "", fmt.Errorf("registry has no endpoint for resource type %s", resourceType)
	}
}

func (c *HTTPClient) do(ctx context.Context, method, uri string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, reader)
	if err != nil {
		return nil, fmt.Errorf("build registry request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.AuthHeader != "" {
		req.Header.Set(c.cfg.AuthHeader, c.cfg.AuthValue)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry %s %s: %w", method, uri, err)
	}
	return resp, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

// Get implements Client.
func (c *HTTPClient) Get(ctx context.Context, uri string) (json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("registry GET %s: status %d: %s", uri, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// Query implements Client. Filters become query string parameters.
func (c *HTTPClient) Query(ctx context.Context, resourceType string, filter map[string]string) ([]json.RawMessage, error) {
	endpoint, err := c.endpointFor(resourceType)
	if err != nil {
		return nil, err
	}

	if len(filter) > 0 {
		values := url.Values{}
		for k, v := range filter {
			values.Set(k, v)
		}
		endpoint += "?" + values.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("registry query %s: status %d: %s", resourceType, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out []json.RawMessage
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parse registry query response: %w", err)
	}
	return out, nil
}

// Create implements Client.
func (c *HTTPClient) Create(ctx context.Context, resourceType string, resource any) (json.RawMessage, error) {
	endpoint, err := c.endpointFor(resourceType)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, endpoint, resource)
	if err != nil {
		return nil, err
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("registry create %s: status %d: %s", resourceType, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// Update implements Client.
func (c *HTTPClient) Update(ctx context.Context, uri string, resource any) error {
	resp, err := c.do(ctx, http.MethodPut, uri, resource)
	if err != nil {
		return err
	}
	body, err := readBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("registry PUT %s: status %d: %s", uri, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// SendNotification implements Client.
func (c *HTTPClient) SendNotification(ctx context.Context, source string, notification model.Notification) error {
	if c.cfg.NotificationsEndpoint == "" {
		// Registry without a notification fan-out; nothing to deliver.
		return nil
	}

	notification.Source = source
	resp, err := c.do(ctx, http.MethodPost, c.cfg.NotificationsEndpoint, notification)
	if err != nil {
		return err
	}
	body, err := readBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("registry notification: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
