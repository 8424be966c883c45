// Package memory owns the lifecycle of a corpus's compressed memory: build it
// with a compression model, persist it as memory.bin, load it back, and serve
// cached answers against it through sessions.
package memory

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// State is the compressed representation of one corpus. It is read-only
// once built or loaded.
type State struct {
	Version      uint16
	Ratio        int
	CorpusDigest string
	Model        string
	RawLength    int
	CreatedAt    time.Time
	Payload      []byte
}

// Stats summarises a state's compression.
type Stats struct {
	RawLength        int     `json:"raw_length"`
	CompressedLength int     `json:"compressed_length"`
	Ratio            int     `json:"ratio"`
	EffectiveRatio   float64 `json:"effective_ratio"`
}

// Stats reports raw and compressed sizes.
func (s *State) Stats() Stats {
	st := Stats{
		RawLength:        s.RawLength,
		CompressedLength: len(s.Payload),
		Ratio:            s.Ratio,
	}
	if len(s.Payload) > 0 {
		st.EffectiveRatio = float64(s.RawLength) / float64(len(s.Payload))
	}
	return st
}

// Digest identifies the state's content. Two states with the same digest
// answer identically, which makes it the root of every cache key.
func (s *State) Digest() string {
	h := sha256.New()
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(s.Ratio))
	h.Write(n[:])
	h.Write([]byte(s.CorpusDigest))
	h.Write([]byte{0})
	h.Write([]byte(s.Model))
	h.Write([]byte{0})
	h.Write(s.Payload)
	return hex.EncodeToString(h.Sum(nil))
}
