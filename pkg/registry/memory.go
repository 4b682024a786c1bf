package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ebu/mcma-projects-sub000/pkg/model"
)

// MemoryClient is an in-process registry used by tests and single-node
// deployments that do not run a separate registry service.
//
// Resources keep their registration order, so query results are stable; the
// matcher's first-match rule depends on that.
type MemoryClient struct {
	mu            sync.RWMutex
	resources     map[string][]json.RawMessage // resourceType -> ordered docs
	byURI         map[string]json.RawMessage
	notifications []model.Notification
}

var _ Client = (*MemoryClient)(nil)

// NewMemoryClient creates an empty in-memory registry.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		resources: make(map[string][]json.RawMessage),
		byURI:     make(map[string]json.RawMessage),
	}
}

// Get implements Client.
func (m *MemoryClient) Get(_ context.Context, uri string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, ok := m.byURI[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	return raw, nil
}

// Query implements Client. Filters match top-level string fields exactly.
func (m *MemoryClient) Query(_ context.Context, resourceType string, filter map[string]string) ([]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []json.RawMessage
	for _, raw := range m.resources[resourceType] {
		if matchesFilter(raw, filter) {
			out = append(out, raw)
		}
	}
	return out, nil
}

func matchesFilter(raw json.RawMessage, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false
	}
	for k, want := range filter {
		have, ok := doc[k].(string)
		if !ok || have != want {
			return false
		}
	}
	return true
}

// Create implements Client. Resources without an id get one assigned.
func (m *MemoryClient) Create(_ context.Context, resourceType string, resource any) (json.RawMessage, error) {
	raw, err := json.Marshal(resource)
	if err != nil {
		return nil, fmt.Errorf("marshal resource: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse resource: %w", err)
	}
	id, _ := doc["id"].(string)
	if id == "" {
		id = fmt.Sprintf("urn:registry:%s:%s", resourceType, uuid.New().String())
		doc["id"] = id
		raw, err = json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("marshal resource: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[resourceType] = append(m.resources[resourceType], raw)
	m.byURI[id] = raw
	return raw, nil
}

// Update implements Client.
func (m *MemoryClient) Update(_ context.Context, uri string, resource any) error {
	raw, err := json.Marshal(resource)
	if err != nil {
		return fmt.Errorf("marshal resource: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byURI[uri]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	m.byURI[uri] = raw
	for resourceType, docs := range m.resources {
		for i, doc := range docs {
			var fields map[string]any
			if err := json.Unmarshal(doc, &fields); err != nil {
				continue
			}
			if id, _ := fields["id"].(string); id == uri {
				m.resources[resourceType][i] = raw
			}
		}
	}
	return nil
}

// SendNotification implements Client by recording the notification.
func (m *MemoryClient) SendNotification(_ context.Context, source string, notification model.Notification) error {
	notification.Source = source
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, notification)
	return nil
}

// Notifications returns all notifications sent so far, in order.
func (m *MemoryClient) Notifications() []model.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Notification, len(m.notifications))
	copy(out, m.notifications)
	return out
}
