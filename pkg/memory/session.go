package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/memorag/pkg/compression"
	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/llm"
)

const (
	// AnswerTemplate asks the memory model to answer directly.
	AnswerTemplate = "Answer the question using what you remember of the text. Be specific.\n\n" +
		"Question: {input}\n\nAnswer:"

	// ClueTemplate asks the memory model to recall evidence for retrieval.
	ClueTemplate = "Recall the text spans from memory that would help answer the question. " +
		"Write each span on its own line and nothing else.\n\nQuestion: {input}\n\nSpans:"

	// KeyPointsTemplate asks the memory model for a summary of the corpus.
	KeyPointsTemplate = "List the key points of the text you remember, one per line and nothing else.\n\n" +
		"Key points:"
)

// binding is the per-state shared part of every session: the prefilled
// prefix and the answer cache.
type binding struct {
	model  compression.Model
	state  *State
	digest string
	logger *slog.Logger

	prefillMu sync.Mutex
	prefix    *compression.Prefix

	cacheMu sync.Mutex
	cache   map[string]*llm.Response
}

func newBinding(model compression.Model, state *State, digest string, logger *slog.Logger) *binding {
	return &binding{
		model:  model,
		state:  state,
		digest: digest,
		logger: logger,
		cache:  make(map[string]*llm.Response),
	}
}

// ensurePrefix prefills the memory once. A failed prefill is retried on the
// next call.
func (b *binding) ensurePrefix(ctx context.Context) (*compression.Prefix, error) {
	b.prefillMu.Lock()
	defer b.prefillMu.Unlock()

	if b.prefix != nil {
		return b.prefix, nil
	}

	start := time.Now()
	prefix, err := b.model.Prefill(ctx, b.state.Payload)
	if err != nil {
		return nil, err
	}
	b.prefix = prefix
	b.logger.Debug("memory prefilled",
		"state", b.digest[:12],
		"context_tokens", len(prefix.Context),
		"duration", time.Since(start),
	)
	return prefix, nil
}

func (b *binding) cached(key string) (*llm.Response, bool) {
	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()
	r, ok := b.cache[key]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}

func (b *binding) store(key string, r *llm.Response) {
	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()
	cp := *r
	b.cache[key] = &cp
}

// Session answers prompts against one memory state with one template.
type Session struct {
	b        *binding
	template string
}

// State returns the state the session is bound to.
func (s *Session) State() *State {
	return s.b.state
}

// Template returns the session's prompt template.
func (s *Session) Template() string {
	return s.template
}

// Answer answers query with the session template. Deterministic calls are
// memoised.
func (s *Session) Answer(ctx context.Context, query string, params llm.Params) (*llm.Response, error) {
	return s.answer(ctx, s.template, query, params)
}

// Clue recalls evidence spans for query. The result is trimmed and may span
// several lines.
func (s *Session) Clue(ctx context.Context, query string, params llm.Params) (string, error) {
	resp, err := s.answer(ctx, ClueTemplate, query, params)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// KeyPoints recalls the key points of the corpus, one per element.
func (s *Session) KeyPoints(ctx context.Context, params llm.Params) ([]string, error) {
	resp, err := s.answer(ctx, KeyPointsTemplate, "", params)
	if err != nil {
		return nil, err
	}
	return Lines(resp.Text), nil
}

func (s *Session) answer(ctx context.Context, template, query string, params llm.Params) (*llm.Response, error) {
	if err := params.Validate(); err != nil {
		return nil, errdefs.InvalidArgument("%v", err)
	}

	prompt := llm.Fill(template, map[string]string{"input": query, "question": query})
	key := strings.Join([]string{s.b.digest, template, query, params.Key()}, "\x00")

	deterministic := params.Deterministic()
	if deterministic {
		if r, ok := s.b.cached(key); ok {
			return r, nil
		}
	}

	prefix, err := s.b.ensurePrefix(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.b.model.Generate(ctx, prefix, prompt, params)
	if err != nil {
		return nil, fmt.Errorf("memory answer: %w", err)
	}

	if deterministic {
		s.b.store(key, resp)
	}
	return resp, nil
}

// Lines splits text into trimmed non-empty lines, dropping list bullets.
func Lines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		l = strings.TrimLeft(l, "-*• ")
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
