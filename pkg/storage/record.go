package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/memorag/pkg/pipeline"
)

// Record is one logged answer.
type Record struct {
	ID           string    `json:"id"`
	Query        string    `json:"query"`
	Mode         string    `json:"mode"`
	Path         string    `json:"path,omitempty"`
	Answer       string    `json:"answer,omitempty"`
	Clue         string    `json:"clue,omitempty"`
	Passages     []string  `json:"passages,omitempty"`
	CorpusDigest string    `json:"corpus_digest,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewRecord builds a record from a pipeline answer. Either ans or err may be
// nil.
func NewRecord(query string, mode pipeline.Mode, ans *pipeline.Answer, corpusDigest string, err error) *Record {
	rec := &Record{
		ID:           uuid.NewString(),
		Query:        query,
		Mode:         string(mode),
		CorpusDigest: corpusDigest,
		CreatedAt:    time.Now().UTC(),
	}
	if ans != nil {
		rec.Mode = string(ans.Mode)
		rec.Path = string(ans.Path)
		rec.Answer = ans.Text
		rec.Clue = ans.Clue
		rec.DurationMs = ans.Duration.Milliseconds()
		for _, p := range ans.Passages {
			rec.Passages = append(rec.Passages, p.ID)
		}
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// Fill assigns an ID and creation time when missing.
func (r *Record) Fill() {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
}

// Matches reports whether r passes the mode and time filters of opts.
func (r *Record) Matches(opts ListOptions) bool {
	if opts.Mode != "" && r.Mode != opts.Mode {
		return false
	}
	if !opts.Since.IsZero() && r.CreatedAt.Before(opts.Since) {
		return false
	}
	return true
}

// EffectiveLimit returns the effective limit of opts.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}
