// Package extractive implements a compression Model that needs no model
// server. Compress keeps the highest ranked sentences of the corpus within
// the ratio's byte budget; answers come from an optional reader model given
// the kept sentences, or, without one, from the sentences that best overlap
// the prompt.
package extractive

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/papercomputeco/memorag/pkg/compression"
	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/generation"
	"github.com/papercomputeco/memorag/pkg/llm"
)

// Name is reported as the model name in memory.bin.
const Name = "extractive"

// DefaultAnswerSentences bounds the fallback answer.
const DefaultAnswerSentences = 3

// Config holds configuration for the extractive model.
type Config struct {
	// MaxInputChars rejects corpora longer than this many runes. 0 disables
	// the check.
	MaxInputChars int

	// Reader answers prompts over the kept sentences. Nil selects the
	// overlap fallback.
	Reader generation.Model

	// AnswerSentences is the number of sentences the fallback returns.
	AnswerSentences int
}

// Model implements compression.Model.
type Model struct {
	cfg Config
}

// New creates an extractive model.
func New(cfg Config) *Model {
	if cfg.AnswerSentences <= 0 {
		cfg.AnswerSentences = DefaultAnswerSentences
	}
	return &Model{cfg: cfg}
}

func (m *Model) Name() string {
	if m.cfg.Reader != nil {
		return Name + "+" + m.cfg.Reader.Name()
	}
	return Name
}

// Compress keeps ranked sentences while they fit the budget and stops at the
// first that does not, so a smaller budget always keeps a prefix of what a
// larger one keeps. Kept sentences are emitted in corpus order.
func (m *Model) Compress(_ context.Context, text string, ratio int) ([]byte, error) {
	if ratio < 1 {
		return nil, errdefs.InvalidArgument("compression ratio must be >= 1, got %d", ratio)
	}
	if m.cfg.MaxInputChars > 0 {
		if n := utf8.RuneCountInString(text); n > m.cfg.MaxInputChars {
			return nil, fmt.Errorf("%w: input of %d chars exceeds capacity of %d", errdefs.ErrCompression, n, m.cfg.MaxInputChars)
		}
	}

	sents := sentences(text)
	if len(sents) == 0 {
		return []byte{}, nil
	}

	budget := compression.Budget(len(text), ratio)
	var (
		kept []int
		size int
	)
	for _, i := range rankByFrequency(sents) {
		add := len(sents[i])
		if len(kept) > 0 {
			add++ // newline separator
		}
		if size+add > budget {
			break
		}
		kept = append(kept, i)
		size += add
	}

	if len(kept) == 0 {
		// the top sentence alone exceeds the budget
		return []byte(cutRunes(sents[rankByFrequency(sents)[0]], budget)), nil
	}

	sort.Ints(kept)
	out := make([]string, len(kept))
	for j, i := range kept {
		out[j] = sents[i]
	}
	return []byte(strings.Join(out, "\n")), nil
}

// Prefill carries the kept sentences as prefix text.
func (m *Model) Prefill(_ context.Context, payload []byte) (*compression.Prefix, error) {
	if !utf8.Valid(payload) {
		return nil, fmt.Errorf("%w: payload is not valid UTF-8", errdefs.ErrCompression)
	}
	return &compression.Prefix{Text: string(payload)}, nil
}

// Generate answers prompt from the prefix.
func (m *Model) Generate(ctx context.Context, prefix *compression.Prefix, prompt string, params llm.Params) (*llm.Response, error) {
	if prefix == nil {
		return nil, errdefs.InvalidArgument("generate called without a prefilled prefix")
	}

	if m.cfg.Reader != nil {
		return m.cfg.Reader.Generate(ctx, ReaderPrompt(prefix.Text, prompt), params)
	}

	sents := sentences(prefix.Text)
	order, scores := rankByOverlap(sents, prompt)

	var picked []int
	for _, i := range order {
		if scores[i] <= 0 || len(picked) == m.cfg.AnswerSentences {
			break
		}
		picked = append(picked, i)
	}
	if len(picked) == 0 {
		for i := 0; i < len(sents) && i < m.cfg.AnswerSentences; i++ {
			picked = append(picked, i)
		}
	}
	sort.Ints(picked)

	parts := make([]string, len(picked))
	for j, i := range picked {
		parts[j] = sents[i]
	}

	text := strings.Join(parts, "\n")
	stop := "stop"
	// roughly four bytes per token
	if limit := params.Tokens() * 4; len(text) > limit {
		text = cutRunes(text, limit)
		stop = "length"
	}

	return &llm.Response{
		Model:      m.Name(),
		Text:       text,
		StopReason: stop,
	}, nil
}

// Close closes the reader, if any.
func (m *Model) Close() error {
	if m.cfg.Reader != nil {
		return m.cfg.Reader.Close()
	}
	return nil
}

// ReaderPrompt places memory text ahead of a prompt for a reader model.
func ReaderPrompt(memory, prompt string) string {
	return "The following is a compressed memory of a long text.\n\n" +
		memory + "\n\n" + prompt
}

// cutRunes trims s to at most n bytes without splitting a rune.
func cutRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

var _ compression.Model = (*Model)(nil)
