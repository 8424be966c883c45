package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/papercomputeco/memorag/pkg/compression"
	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/llm"
)

// MockCompression is a test compression model. Compress keeps the leading
// Budget bytes of the text; Generate echoes the prefilled memory and the
// prompt, so answers depend on both.
type MockCompression struct {
	// FailCompress causes Compress to return ErrCompression.
	FailCompress bool

	// FailContaining causes Generate to fail when the prompt contains it.
	FailContaining string

	// ModelName overrides Name. Defaults to "mock-compression".
	ModelName string

	// Replies maps a prompt substring to a canned answer, checked before
	// the echo.
	Replies map[string]string

	mu            sync.Mutex
	compressCalls int
	prefillCalls  int
	generateCalls int
	prompts       []string
}

func NewMockCompression() *MockCompression {
	return &MockCompression{Replies: make(map[string]string)}
}

func (m *MockCompression) Name() string {
	if m.ModelName != "" {
		return m.ModelName
	}
	return "mock-compression"
}

func (m *MockCompression) Compress(_ context.Context, text string, ratio int) ([]byte, error) {
	m.mu.Lock()
	m.compressCalls++
	m.mu.Unlock()

	if m.FailCompress {
		return nil, fmt.Errorf("%w: mock compression failure", errdefs.ErrCompression)
	}
	budget := compression.Budget(len(text), ratio)
	return []byte(text[:budget]), nil
}

func (m *MockCompression) Prefill(_ context.Context, payload []byte) (*compression.Prefix, error) {
	m.mu.Lock()
	m.prefillCalls++
	m.mu.Unlock()

	return &compression.Prefix{Text: string(payload)}, nil
}

func (m *MockCompression) Generate(_ context.Context, prefix *compression.Prefix, prompt string, params llm.Params) (*llm.Response, error) {
	m.mu.Lock()
	m.generateCalls++
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.FailContaining != "" && strings.Contains(prompt, m.FailContaining) {
		return nil, fmt.Errorf("%w: mock memory failure", errdefs.ErrGeneration)
	}

	for k, v := range m.Replies {
		if strings.Contains(prompt, k) {
			return &llm.Response{Model: m.Name(), Text: v}, nil
		}
	}

	text := fmt.Sprintf("memory[%s] %s", prefix.Text, prompt)
	if params.Tokens() > 0 && len(text) > params.Tokens()*4 {
		text = text[:params.Tokens()*4]
	}
	return &llm.Response{Model: m.Name(), Text: text}, nil
}

func (m *MockCompression) Close() error {
	return nil
}

// CompressCalls returns how many times Compress was invoked.
func (m *MockCompression) CompressCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.compressCalls
}

// PrefillCalls returns how many times Prefill was invoked.
func (m *MockCompression) PrefillCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefillCalls
}

// GenerateCalls returns how many times Generate was invoked.
func (m *MockCompression) GenerateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generateCalls
}

// Prompts returns every prompt seen by Generate, in call order.
func (m *MockCompression) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
