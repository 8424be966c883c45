// Package corpus models the immutable text corpus a memorag pipeline is built
// from: the ordered source records, the chunks carved out of them for dense
// retrieval, and the digest that ties persisted artifacts back to the corpus.
package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Separator joins records before they are handed to the memory model.
const Separator = "\n\n"

// Chunk is one retrievable passage.
type Chunk struct {
	// ID is stable across runs for the same corpus: "<record>:<n>".
	ID string `json:"id"`
	// Ordinal is the chunk's position in the whole corpus and is the
	// tie-breaker for equal retrieval scores.
	Ordinal int    `json:"ordinal"`
	Record  int    `json:"record"`
	Text    string `json:"text"`
}

// Corpus is an ordered, read-only set of records and their chunks.
type Corpus struct {
	records []string
	chunks  []Chunk
	byID    map[string]int
	joined  string
	digest  string
}

// New builds a corpus from records, chunking each record with opts. Empty
// records are kept for alignment but contribute no chunks.
func New(records []string, opts ChunkOptions) *Corpus {
	c := &Corpus{
		records: append([]string(nil), records...),
		byID:    make(map[string]int),
	}

	for r, text := range c.records {
		for n, piece := range Split(text, opts) {
			ch := Chunk{
				ID:      fmt.Sprintf("%d:%d", r, n),
				Ordinal: len(c.chunks),
				Record:  r,
				Text:    piece,
			}
			c.byID[ch.ID] = ch.Ordinal
			c.chunks = append(c.chunks, ch)
		}
	}

	c.joined = strings.Join(c.records, Separator)
	sum := sha256.Sum256([]byte(c.joined))
	c.digest = hex.EncodeToString(sum[:])

	return c
}

// Joined returns all records concatenated with a blank line between them.
func (c *Corpus) Joined() string {
	return c.joined
}

// Digest identifies the corpus content.
func (c *Corpus) Digest() string {
	return c.digest
}

// Records returns the number of source records.
func (c *Corpus) Records() int {
	return len(c.records)
}

// Len returns the number of chunks.
func (c *Corpus) Len() int {
	return len(c.chunks)
}

// Chunks returns a copy of the chunks in insertion order.
func (c *Corpus) Chunks() []Chunk {
	return append([]Chunk(nil), c.chunks...)
}

// Chunk looks up a chunk by id.
func (c *Corpus) Chunk(id string) (Chunk, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Chunk{}, false
	}
	return c.chunks[i], true
}

// DigestText returns the digest New would compute for text that is already
// joined. It lets callers check a memory state against raw text.
func DigestText(joined string) string {
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}
