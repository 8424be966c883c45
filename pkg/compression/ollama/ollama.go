// Package ollama implements the compression Model on Ollama's generate API.
// The memory model condenses the corpus window by window, and the returned
// token context of a prefill call is reused for every later answer, so the
// memory is only evaluated once per session.
package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/papercomputeco/memorag/pkg/compression"
	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/llm"
	"github.com/papercomputeco/memorag/pkg/ollama"
)

const (
	// DefaultModel is the Ollama tag of the default memory model.
	DefaultModel = "qwen2:7b-instruct"

	// DefaultWindowChars is the size of each compression window.
	DefaultWindowChars = 16000

	// DefaultNumCtx is the context window requested for prefill and answers.
	DefaultNumCtx = 32768

	compressPrompt = "Compress the following text into at most %d words. Keep every name, number, date and " +
		"fact. Output only the compressed text.\n\n%s"

	prefillPrompt = "You are given the compressed memory of a long text. Answer later questions from it.\n\n" +
		"Memory:\n%s\n\nReply with OK."
)

// Config holds configuration for the Ollama memory model.
type Config struct {
	BaseURL   string
	Model     string
	KeepAlive string
	Timeout   time.Duration

	// MaxInputChars rejects corpora longer than this many runes.
	MaxInputChars int

	WindowChars int
	NumCtx      int
}

// Model implements compression.Model.
type Model struct {
	client *ollama.Client
	cfg    Config
}

// New creates an Ollama memory model.
func New(cfg Config) *Model {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.WindowChars <= 0 {
		cfg.WindowChars = DefaultWindowChars
	}
	if cfg.NumCtx <= 0 {
		cfg.NumCtx = DefaultNumCtx
	}
	return &Model{
		client: ollama.NewClient(cfg.BaseURL, cfg.Timeout),
		cfg:    cfg,
	}
}

func (m *Model) Name() string {
	return m.cfg.Model
}

// Compress condenses text window by window and clamps the result to the
// ratio's byte budget.
func (m *Model) Compress(ctx context.Context, text string, ratio int) ([]byte, error) {
	if ratio < 1 {
		return nil, errdefs.InvalidArgument("compression ratio must be >= 1, got %d", ratio)
	}
	if m.cfg.MaxInputChars > 0 {
		if n := utf8.RuneCountInString(text); n > m.cfg.MaxInputChars {
			return nil, fmt.Errorf("%w: input of %d chars exceeds capacity of %d", errdefs.ErrCompression, n, m.cfg.MaxInputChars)
		}
	}

	budget := compression.Budget(len(text), ratio)
	if ratio == 1 || len(text) <= budget {
		return []byte(text), nil
	}

	var out []string
	for i, window := range windows(text, m.cfg.WindowChars) {
		target := compression.Budget(len(window), ratio)
		// about six bytes per English word, four per token
		words := max(target/6, 1)
		tokens := max(target/4, 16)

		resp, err := m.client.Generate(ctx, &ollama.GenerateRequest{
			Model:     m.cfg.Model,
			Prompt:    fmt.Sprintf(compressPrompt, words, window),
			KeepAlive: m.cfg.KeepAlive,
			Options: &ollama.Options{
				Temperature: llm.Float(0),
				NumPredict:  llm.Int(tokens),
				NumCtx:      llm.Int(m.cfg.NumCtx),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: window %d: %v", errdefs.ErrCompression, i, err)
		}
		out = append(out, strings.TrimSpace(resp.Response))
	}

	joined := strings.Join(out, "\n\n")
	if len(joined) > budget {
		n := budget
		for n > 0 && !utf8.RuneStart(joined[n]) {
			n--
		}
		joined = joined[:n]
	}
	return []byte(joined), nil
}

// Prefill evaluates the memory once and keeps Ollama's token context.
func (m *Model) Prefill(ctx context.Context, payload []byte) (*compression.Prefix, error) {
	resp, err := m.client.Generate(ctx, &ollama.GenerateRequest{
		Model:     m.cfg.Model,
		Prompt:    fmt.Sprintf(prefillPrompt, payload),
		KeepAlive: m.cfg.KeepAlive,
		Options: &ollama.Options{
			Temperature: llm.Float(0),
			NumPredict:  llm.Int(1),
			NumCtx:      llm.Int(m.cfg.NumCtx),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: prefill: %v", errdefs.ErrCompression, err)
	}
	return &compression.Prefix{Context: resp.Context, Text: string(payload)}, nil
}

// Generate continues from the prefix context. Without a context (servers
// that do not return one) the memory text is sent again with the prompt.
func (m *Model) Generate(ctx context.Context, prefix *compression.Prefix, prompt string, params llm.Params) (*llm.Response, error) {
	if prefix == nil {
		return nil, errdefs.InvalidArgument("generate called without a prefilled prefix")
	}

	opts := ollama.OptionsFromParams(params)
	opts.NumCtx = llm.Int(m.cfg.NumCtx)

	req := &ollama.GenerateRequest{
		Model:     m.cfg.Model,
		Prompt:    prompt,
		Context:   prefix.Context,
		KeepAlive: m.cfg.KeepAlive,
		Options:   opts,
	}
	if len(prefix.Context) == 0 {
		req.Prompt = fmt.Sprintf(prefillPrompt, prefix.Text) + "\n\n" + prompt
	}

	resp, err := m.client.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrGeneration, err)
	}
	return resp.LLMResponse(), nil
}

func (m *Model) Close() error {
	return m.client.Close()
}

// windows splits text into pieces of at most size bytes, preferring
// paragraph and then line boundaries.
func windows(text string, size int) []string {
	var out []string
	for len(text) > size {
		cut := strings.LastIndex(text[:size], "\n\n")
		if cut <= 0 {
			cut = strings.LastIndexByte(text[:size], '\n')
		}
		if cut <= 0 {
			cut = size
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		out = append(out, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if strings.TrimSpace(text) != "" {
		out = append(out, text)
	}
	return out
}

var _ compression.Model = (*Model)(nil)
