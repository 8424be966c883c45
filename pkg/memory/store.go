package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/memorag/pkg/artifact"
	"github.com/papercomputeco/memorag/pkg/compression"
	"github.com/papercomputeco/memorag/pkg/corpus"
	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/llm"
)

// Store builds, persists and loads memory states with one compression model.
type Store struct {
	model  compression.Model
	logger *slog.Logger

	mu       sync.Mutex
	bindings map[string]*binding
}

// NewStore creates a store over model.
func NewStore(model compression.Model, logger *slog.Logger) *Store {
	return &Store{
		model:    model,
		logger:   logger,
		bindings: make(map[string]*binding),
	}
}

// Build compresses corpusText at ratio.
func (s *Store) Build(ctx context.Context, corpusText string, ratio int) (*State, error) {
	if ratio < 1 {
		return nil, errdefs.InvalidArgument("compression ratio must be a positive integer, got %d", ratio)
	}
	if strings.TrimSpace(corpusText) == "" {
		return nil, errdefs.InvalidArgument("corpus is empty")
	}

	start := time.Now()
	payload, err := s.model.Compress(ctx, corpusText, ratio)
	if err != nil {
		if errors.Is(err, errdefs.ErrCompression) || errdefs.IsValidation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errdefs.ErrCompression, err)
	}

	state := &State{
		Version:      artifact.FormatVersion,
		Ratio:        ratio,
		CorpusDigest: corpus.DigestText(corpusText),
		Model:        s.model.Name(),
		RawLength:    len(corpusText),
		CreatedAt:    time.Now().UTC(),
		Payload:      payload,
	}

	st := state.Stats()
	s.logger.Info("memory built",
		"model", state.Model,
		"ratio", ratio,
		"raw_length", st.RawLength,
		"compressed_length", st.CompressedLength,
		"duration", time.Since(start),
	)

	return state, nil
}

// Persist writes state to dir/memory.bin.
func (s *Store) Persist(state *State, dir string) error {
	if state == nil {
		return errdefs.InvalidArgument("nil memory state")
	}
	path := artifact.MemoryPath(dir)
	meta := artifact.Meta{
		CorpusDigest: state.CorpusDigest,
		Model:        state.Model,
		Ratio:        state.Ratio,
		RawLength:    state.RawLength,
		CreatedAt:    state.CreatedAt,
	}
	if err := artifact.Write(path, artifact.KindMemory, meta, state.Payload); err != nil {
		return err
	}
	s.logger.Debug("memory persisted", "path", path, "bytes", len(state.Payload))
	return nil
}

// Load reads dir/memory.bin.
func (s *Store) Load(dir string) (*State, error) {
	state, err := Load(dir)
	if err != nil {
		return nil, err
	}
	if state.Model != s.model.Name() {
		s.logger.Warn("memory was built by a different compression model",
			"built_with", state.Model,
			"loaded_with", s.model.Name(),
		)
	}
	return state, nil
}

// Load reads dir/memory.bin without a model. It is used by commands that
// only inspect the artifact.
func Load(dir string) (*State, error) {
	path := artifact.MemoryPath(dir)
	env, err := artifact.Read(path, artifact.KindMemory)
	if err != nil {
		return nil, err
	}
	if env.Meta.Ratio < 1 {
		return nil, errdefs.Corrupt(path, "invalid compression ratio %d", env.Meta.Ratio)
	}
	if env.Meta.CorpusDigest == "" {
		return nil, errdefs.Corrupt(path, "missing corpus digest")
	}
	return &State{
		Version:      env.Version,
		Ratio:        env.Meta.Ratio,
		CorpusDigest: env.Meta.CorpusDigest,
		Model:        env.Meta.Model,
		RawLength:    env.Meta.RawLength,
		CreatedAt:    env.Meta.CreatedAt,
		Payload:      env.Body,
	}, nil
}

// Session returns a session over state that answers with template. All
// sessions over the same state share one prefill; their answer caches are
// keyed by state digest and template, so two states or two templates never
// see each other's answers.
func (s *Store) Session(state *State, template string) *Session {
	if template == "" {
		template = AnswerTemplate
	}
	digest := state.Digest()

	s.mu.Lock()
	b, ok := s.bindings[digest]
	if !ok {
		b = newBinding(s.model, state, digest, s.logger)
		s.bindings[digest] = b
	}
	s.mu.Unlock()

	return &Session{b: b, template: template}
}

// Answer answers query against state using template.
func (s *Store) Answer(ctx context.Context, state *State, template, query string, params llm.Params) (*llm.Response, error) {
	return s.Session(state, template).Answer(ctx, query, params)
}

// Model returns the compression model the store uses.
func (s *Store) Model() compression.Model {
	return s.model
}
