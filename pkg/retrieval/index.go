package retrieval

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/papercomputeco/memorag/pkg/artifact"
	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/vector"
)

// Entry is one embedded chunk.
type Entry struct {
	ID      string
	Ordinal int
	Text    string
	Vector  []float32
}

// Index is a dense index over one corpus. It is read-only once built or
// loaded.
type Index struct {
	CorpusDigest string
	Model        string
	Dimensions   int
	CreatedAt    time.Time
	Entries      []Entry

	// Skipped lists chunk ids that failed to embed under SkipAndReport.
	Skipped []string
}

// Len returns the number of embedded chunks.
func (ix *Index) Len() int {
	return len(ix.Entries)
}

// Documents converts the entries for a vector driver.
func (ix *Index) Documents() []vector.Document {
	docs := make([]vector.Document, len(ix.Entries))
	for i, e := range ix.Entries {
		docs[i] = vector.Document{
			ID:        e.ID,
			Ordinal:   e.Ordinal,
			Text:      e.Text,
			Embedding: e.Vector,
		}
	}
	return docs
}

func (ix *Index) meta() artifact.Meta {
	return artifact.Meta{
		CorpusDigest: ix.CorpusDigest,
		Model:        ix.Model,
		Dimensions:   ix.Dimensions,
		Count:        len(ix.Entries),
		Skipped:      len(ix.Skipped),
		CreatedAt:    ix.CreatedAt,
	}
}

// Index body layout, before zstd:
//
//	count   uint32
//	dims    uint32
//	entries count * { ordinal uint32, id str, text str, vector dims*float32 }
//	skipped uint32, then that many str
//
// where str is a uint32 length followed by UTF-8 bytes.

func encodeBody(ix *Index) ([]byte, error) {
	var raw bytes.Buffer
	w := &binWriter{w: &raw}
	w.u32(uint32(len(ix.Entries)))
	w.u32(uint32(ix.Dimensions))
	for _, e := range ix.Entries {
		if len(e.Vector) != ix.Dimensions {
			return nil, fmt.Errorf("%w: entry %s has %d dimensions, index has %d",
				vector.ErrDimension, e.ID, len(e.Vector), ix.Dimensions)
		}
		w.u32(uint32(e.Ordinal))
		w.str(e.ID)
		w.str(e.Text)
		for _, f := range e.Vector {
			w.u32(math.Float32bits(f))
		}
	}
	w.u32(uint32(len(ix.Skipped)))
	for _, id := range ix.Skipped {
		w.str(id)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw.Bytes(), nil), nil
}

func decodeBody(path string, meta artifact.Meta, body []byte) (*Index, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(body, nil)
	if err != nil {
		return nil, errdefs.Corrupt(path, "index body: %v", err)
	}

	r := &binReader{r: bytes.NewReader(raw)}
	count := int(r.u32())
	dims := int(r.u32())
	if r.err != nil {
		return nil, errdefs.Corrupt(path, "index header: %v", r.err)
	}
	if count != meta.Count || (count > 0 && dims != meta.Dimensions) {
		return nil, errdefs.Corrupt(path, "index body holds %d entries of %d dimensions, metadata says %d of %d",
			count, dims, meta.Count, meta.Dimensions)
	}
	if count > len(raw) {
		return nil, errdefs.Corrupt(path, "entry count %d exceeds body size", count)
	}

	ix := &Index{
		CorpusDigest: meta.CorpusDigest,
		Model:        meta.Model,
		Dimensions:   dims,
		CreatedAt:    meta.CreatedAt,
		Entries:      make([]Entry, 0, count),
	}
	for i := 0; i < count && r.err == nil; i++ {
		e := Entry{
			Ordinal: int(r.u32()),
			ID:      r.str(),
			Text:    r.str(),
			Vector:  make([]float32, dims),
		}
		for d := range e.Vector {
			e.Vector[d] = math.Float32frombits(r.u32())
		}
		ix.Entries = append(ix.Entries, e)
	}
	skipped := int(r.u32())
	for i := 0; i < skipped && r.err == nil; i++ {
		ix.Skipped = append(ix.Skipped, r.str())
	}
	if r.err != nil {
		return nil, errdefs.Corrupt(path, "index entries: %v", r.err)
	}
	if r.r.Len() != 0 {
		return nil, errdefs.Corrupt(path, "%d trailing bytes after index entries", r.r.Len())
	}
	return ix, nil
}

type binWriter struct {
	w *bytes.Buffer
}

func (b *binWriter) u32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	b.w.Write(buf[:])
}

func (b *binWriter) str(s string) {
	b.u32(uint32(len(s)))
	b.w.WriteString(s)
}

// binReader latches the first error so callers can check once.
type binReader struct {
	r   *bytes.Reader
	err error
}

func (b *binReader) u32() uint32 {
	if b.err != nil {
		return 0
	}
	var buf [4]byte
	if _, err := io.ReadFull(b.r, buf[:]); err != nil {
		b.err = err
		return 0
	}
	return binary.LittleEndian.Uint32(buf[:])
}

func (b *binReader) str() string {
	n := b.u32()
	if b.err != nil {
		return ""
	}
	if int64(n) > int64(b.r.Len()) {
		b.err = errors.New("string length exceeds remaining body")
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(b.r, buf); err != nil {
		b.err = err
		return ""
	}
	return string(buf)
}
