package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/memorag/pkg/vector"
)

// MockVectorDriver is a test vector driver that returns canned results.
type MockVectorDriver struct {
	// Results is returned by Query, truncated to topK.
	Results []vector.QueryResult

	// FailQuery causes Query to return ErrConnection.
	FailQuery bool

	mu        sync.Mutex
	documents []vector.Document
	queries   int
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = append(m.documents, docs...)
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int) ([]vector.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if m.FailQuery {
		return nil, vector.ErrConnection
	}
	out := append([]vector.QueryResult(nil), m.Results...)
	return vector.TopK(out, topK), nil
}

func (m *MockVectorDriver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []vector.Document
	for _, d := range m.documents {
		if want[d.ID] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockVectorDriver) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.documents), nil
}

func (m *MockVectorDriver) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = nil
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}

// Documents returns every document added so far.
func (m *MockVectorDriver) Documents() []vector.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]vector.Document(nil), m.documents...)
}

// Queries returns how many times Query was invoked.
func (m *MockVectorDriver) Queries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries
}
