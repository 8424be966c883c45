package corpus

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultTargetSize = 1200
	DefaultMaxSize    = 2000
)

// ChunkOptions configures how records are split into passages. Sizes are in
// bytes of trimmed text.
type ChunkOptions struct {
	TargetSize int
	MaxSize    int
}

// DefaultChunkOptions returns the chunking defaults.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{
		TargetSize: DefaultTargetSize,
		MaxSize:    DefaultMaxSize,
	}
}

var (
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	sentenceSplit  = regexp.MustCompile(`(?s)[^.!?]+(?:[.!?]+|$)`)
)

// Split breaks text into passages. Paragraphs are merged greedily up to
// TargetSize; a paragraph larger than MaxSize is split on sentence
// boundaries, and a sentence larger than MaxSize is split on whitespace.
func Split(text string, opts ChunkOptions) []string {
	if opts.TargetSize <= 0 {
		opts.TargetSize = DefaultTargetSize
	}
	if opts.MaxSize < opts.TargetSize {
		opts.MaxSize = opts.TargetSize
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= opts.MaxSize {
		return []string{text}
	}

	var units []string
	for _, para := range paragraphSplit.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= opts.MaxSize {
			units = append(units, para)
			continue
		}
		for _, sent := range sentenceSplit.FindAllString(para, -1) {
			sent = strings.TrimSpace(sent)
			if sent == "" {
				continue
			}
			if len(sent) <= opts.MaxSize {
				units = append(units, sent)
				continue
			}
			units = append(units, hardSplit(sent, opts.MaxSize)...)
		}
	}

	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, u := range units {
		if cur.Len() > 0 && cur.Len()+2+len(u) > opts.TargetSize {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString(Separator)
		}
		cur.WriteString(u)
	}
	flush()

	return out
}

// hardSplit cuts s into pieces no longer than limit, preferring whitespace.
func hardSplit(s string, limit int) []string {
	var out []string
	for len(s) > limit {
		cut := strings.LastIndexAny(s[:limit], " \t\n")
		if cut <= 0 {
			cut = limit
			for cut > 1 && !utf8.RuneStart(s[cut]) {
				cut--
			}
		}
		out = append(out, strings.TrimSpace(s[:cut]))
		s = strings.TrimSpace(s[cut:])
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
