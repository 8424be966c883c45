package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/memorag/pkg/eventstream"
)

// MockPublisher records every published event.
type MockPublisher struct {
	// Fail causes PublishAnswer to return an error.
	Fail bool

	mu     sync.Mutex
	events []*eventstream.AnswerRecordedEvent
	closed bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishAnswer(_ context.Context, event *eventstream.AnswerRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilAnswerEvent
	}
	if m.Fail {
		return errors.New("mock publish failure")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Events returns every published event, in publish order.
func (m *MockPublisher) Events() []*eventstream.AnswerRecordedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.AnswerRecordedEvent(nil), m.events...)
}

// Closed reports whether Close was called.
func (m *MockPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
