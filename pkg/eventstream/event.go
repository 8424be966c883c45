package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/memorag/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeAnswerRecorded is emitted after an answer is logged.
	EventTypeAnswerRecorded = "memorag.answer.recorded"
)

// AnswerRecordedEvent is a transport-neutral event payload for a logged
// answer.
type AnswerRecordedEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Source        EventSource    `json:"source"`
	Answer        storage.Record `json:"answer"`
}

// EventSource identifies the pipeline that produced the answer.
type EventSource struct {
	// Surface is the entry point that answered: "api", "mcp" or "cli".
	Surface      string `json:"surface"`
	MemoryDir    string `json:"memory_dir,omitempty"`
	CorpusDigest string `json:"corpus_digest,omitempty"`
}

// NewAnswerRecordedEvent wraps rec in a fresh event.
func NewAnswerRecordedEvent(source EventSource, rec *storage.Record) *AnswerRecordedEvent {
	return &AnswerRecordedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeAnswerRecorded,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Answer:        *rec,
	}
}
