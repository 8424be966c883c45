package pipeline

import (
	"strings"

	"github.com/papercomputeco/memorag/pkg/errdefs"
)

// Mode selects how a query is resolved.
type Mode string

const (
	// ModeMemoryOnly answers directly from memory.
	ModeMemoryOnly Mode = "memory-only"

	// ModeRetrievalOnly retrieves passages with the raw query and generates.
	ModeRetrievalOnly Mode = "retrieval-only"

	// ModeMemoRAG recalls a clue from memory, retrieves with it, and generates.
	ModeMemoRAG Mode = "memory-then-retrieval"

	// ModeSummarize recalls the corpus key points, retrieves with them, and
	// generates a summary.
	ModeSummarize Mode = "summarize"
)

// DefaultMode is used when no mode is configured.
const DefaultMode = ModeMemoRAG

// Modes lists every mode in display order.
func Modes() []Mode {
	return []Mode{ModeMemoryOnly, ModeRetrievalOnly, ModeMemoRAG, ModeSummarize}
}

// ParseMode parses a mode name. "memorag" is accepted for
// memory-then-retrieval and the empty string selects DefaultMode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultMode, nil
	case ModeMemoryOnly, "memory":
		return ModeMemoryOnly, nil
	case ModeRetrievalOnly, "retrieval", "rag":
		return ModeRetrievalOnly, nil
	case ModeMemoRAG, "memorag":
		return ModeMemoRAG, nil
	case ModeSummarize, "summarise":
		return ModeSummarize, nil
	default:
		return "", errdefs.UnsupportedMode(s)
	}
}

// NeedsRetrieval reports whether the mode searches the index and generates.
func (m Mode) NeedsRetrieval() bool {
	switch m {
	case ModeMemoryOnly:
		return false
	case ModeRetrievalOnly, ModeMemoRAG, ModeSummarize:
		return true
	default:
		return false
	}
}

// NeedsMemory reports whether the mode consults the memory at query time.
func (m Mode) NeedsMemory() bool {
	switch m {
	case ModeRetrievalOnly:
		return false
	case ModeMemoryOnly, ModeMemoRAG, ModeSummarize:
		return true
	default:
		return false
	}
}

// Path is the terminal resolution path of an answer.
type Path string

const (
	PathDirectMemory Path = "direct-memory"
	PathRetrieval    Path = "retrieval"
)
