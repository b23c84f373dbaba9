package mock

import (
	"context"
	"sync"

	"github.com/alexchen1337/SpeakWell/internal/domain"
	"github.com/alexchen1337/SpeakWell/internal/publisher"
)

// Ensure MockPublisher implements publisher.Publisher.
var _ publisher.Publisher = (*MockPublisher)(nil)

// MockPublisher is a mock event publisher for testing.
type MockPublisher struct {
	mu        sync.Mutex
	published []*domain.Event
	PublishFn func(ctx context.Context, event *domain.Event) error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, event *domain.Event) error {
	if m.PublishFn != nil {
		return m.PublishFn(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, event)
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// Published returns a copy of the recorded events.
func (m *MockPublisher) Published() []*domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Event, len(m.published))
	copy(out, m.published)
	return out
}

// Kinds returns the kinds of the recorded events in order.
func (m *MockPublisher) Kinds() []domain.EventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]domain.EventKind, 0, len(m.published))
	for _, e := range m.published {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}
