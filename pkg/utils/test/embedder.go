package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/papercomputeco/memorag/pkg/errdefs"
)

// MockEmbedder is a test embedder that returns predictable embeddings. Text
// without an explicit entry is embedded as a hashed bag of words, so texts
// sharing words score higher against each other.
type MockEmbedder struct {
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// FailContaining causes Embed to fail when the input contains it
	FailContaining string

	Dims int

	mu    sync.Mutex
	calls int
	texts []string
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
		Dims:       16,
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.texts = append(m.texts, text)
	m.mu.Unlock()

	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("%w: mock embedding failure for: %s", errdefs.ErrEmbedding, text)
	}
	if m.FailContaining != "" && strings.Contains(text, m.FailContaining) {
		return nil, fmt.Errorf("%w: mock embedding failure for: %s", errdefs.ErrEmbedding, text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	return BagOfWords(text, m.Dims), nil
}

func (m *MockEmbedder) Name() string {
	return "mock-embedder"
}

func (m *MockEmbedder) Close() error {
	return nil
}

// Calls returns how many times Embed was invoked.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Texts returns every input seen by Embed, in call order.
func (m *MockEmbedder) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// BagOfWords hashes each lowercased word of text into one of dims buckets.
func BagOfWords(text string, dims int) []float32 {
	if dims <= 0 {
		dims = 16
	}
	vec := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(dims)]++
	}
	if len(words) == 0 {
		vec[0] = 1
	}
	return vec
}
