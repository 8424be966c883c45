package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/llm"
)

// MockGenerator answers deterministically with a prefix and the prompt, so
// tests can assert on what was sent.
type MockGenerator struct {
	// Prefix is prepended to every answer. Defaults to "answer: ".
	Prefix string

	// FailContaining causes Generate to fail when the prompt contains it.
	FailContaining string

	mu      sync.Mutex
	prompts []string
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{Prefix: "answer: "}
}

func (m *MockGenerator) Generate(_ context.Context, prompt string, params llm.Params) (*llm.Response, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.FailContaining != "" && strings.Contains(prompt, m.FailContaining) {
		return nil, fmt.Errorf("%w: mock generation failure", errdefs.ErrGeneration)
	}
	return &llm.Response{
		Model: "mock-generator",
		Text:  m.Prefix + prompt,
	}, nil
}

func (m *MockGenerator) Name() string {
	return "mock-generator"
}

func (m *MockGenerator) Close() error {
	return nil
}

// Prompts returns every prompt seen, in call order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Calls returns how many times Generate was invoked.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
