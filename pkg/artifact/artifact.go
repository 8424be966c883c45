// Package artifact reads and writes the persisted memorag artifacts
// (memory.bin and index.bin) that live side by side in a memory directory.
//
// Both files share one self-describing envelope:
//
//	magic    [8]byte  "MEMORAG\x00"
//	kind     uint8
//	version  uint16
//	metaLen  uint32
//	meta     []byte   JSON encoded Meta
//	bodyLen  uint64
//	body     []byte
//	crc32    uint32   IEEE checksum over everything above
//
// All integers are little-endian.
package artifact

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/papercomputeco/memorag/pkg/errdefs"
)

const (
	// MemoryFile is the file name of the persisted memory state.
	MemoryFile = "memory.bin"

	// IndexFile is the file name of the persisted dense index.
	IndexFile = "index.bin"

	// FormatVersion is the envelope version written by this package.
	FormatVersion uint16 = 1
)

// Kind identifies which artifact an envelope holds.
type Kind uint8

const (
	KindMemory Kind = 1
	KindIndex  Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindMemory:
		return "memory"
	case KindIndex:
		return "index"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var magic = [8]byte{'M', 'E', 'M', 'O', 'R', 'A', 'G', 0}

// fixed header: magic + kind + version + metaLen
const headerLen = 8 + 1 + 2 + 4

// Meta is the JSON metadata carried in every envelope. Fields that do not
// apply to an artifact kind are left empty.
type Meta struct {
	CorpusDigest string    `json:"corpus_digest"`
	Model        string    `json:"model,omitempty"`
	Ratio        int       `json:"ratio,omitempty"`
	RawLength    int       `json:"raw_length,omitempty"`
	Dimensions   int       `json:"dimensions,omitempty"`
	Count        int       `json:"count,omitempty"`
	Skipped      int       `json:"skipped,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Envelope is a decoded artifact.
type Envelope struct {
	Kind    Kind
	Version uint16
	Meta    Meta
	Body    []byte
}

// MemoryPath returns the memory artifact path inside dir.
func MemoryPath(dir string) string {
	return filepath.Join(dir, MemoryFile)
}

// IndexPath returns the index artifact path inside dir.
func IndexPath(dir string) string {
	return filepath.Join(dir, IndexFile)
}

// Require checks that every named file exists inside dir. It only stats the
// files, so it is safe to call before any model is constructed.
func Require(dir string, files ...string) error {
	for _, name := range files {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s not found in %s (run memorize first)", errdefs.ErrMissingArtifact, name, dir)
			}
			return fmt.Errorf("checking %s: %w", path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%w: %s is a directory", errdefs.ErrMissingArtifact, path)
		}
	}
	return nil
}

// Encode serializes an envelope.
func Encode(kind Kind, meta Meta, body []byte) ([]byte, error) {
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding artifact metadata: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(headerLen + len(metaBytes) + 8 + len(body) + 4)
	buf.Write(magic[:])
	buf.WriteByte(byte(kind))
	_ = binary.Write(&buf, binary.LittleEndian, FormatVersion)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(metaBytes)))
	buf.Write(metaBytes)
	_ = binary.Write(&buf, binary.LittleEndian, uint64(len(body)))
	buf.Write(body)
	_ = binary.Write(&buf, binary.LittleEndian, crc32.ChecksumIEEE(buf.Bytes()))

	return buf.Bytes(), nil
}

// Decode parses an envelope and verifies it holds the wanted kind. The path
// is only used to annotate CorruptStateError.
func Decode(path string, want Kind, data []byte) (*Envelope, error) {
	if len(data) < headerLen+8+4 {
		return nil, errdefs.Corrupt(path, "truncated header (%d bytes)", len(data))
	}

	payload, trailer := data[:len(data)-4], data[len(data)-4:]
	if got, sum := binary.LittleEndian.Uint32(trailer), crc32.ChecksumIEEE(payload); got != sum {
		return nil, errdefs.Corrupt(path, "checksum mismatch (stored %08x, computed %08x)", got, sum)
	}

	if !bytes.Equal(payload[:8], magic[:]) {
		return nil, errdefs.Corrupt(path, "bad magic %q", payload[:8])
	}

	env := &Envelope{
		Kind:    Kind(payload[8]),
		Version: binary.LittleEndian.Uint16(payload[9:11]),
	}
	if env.Version != FormatVersion {
		return nil, errdefs.Corrupt(path, "unsupported format version %d (expected %d)", env.Version, FormatVersion)
	}
	if env.Kind != want {
		return nil, errdefs.Corrupt(path, "artifact holds %s, expected %s", env.Kind, want)
	}

	metaLen := uint64(binary.LittleEndian.Uint32(payload[11:15]))
	rest := payload[headerLen:]
	if metaLen+8 > uint64(len(rest)) {
		return nil, errdefs.Corrupt(path, "metadata length %d exceeds artifact size", metaLen)
	}
	if err := json.Unmarshal(rest[:metaLen], &env.Meta); err != nil {
		return nil, errdefs.Corrupt(path, "malformed metadata: %v", err)
	}
	rest = rest[metaLen:]

	bodyLen := binary.LittleEndian.Uint64(rest[:8])
	rest = rest[8:]
	if bodyLen != uint64(len(rest)) {
		return nil, errdefs.Corrupt(path, "body length %d does not match remaining %d bytes", bodyLen, len(rest))
	}
	env.Body = rest

	return env, nil
}

// Write atomically writes an envelope to path: the bytes go to a temp file in
// the same directory which is then renamed over path.
func Write(path string, kind Kind, meta Meta, body []byte) error {
	data, err := Encode(kind, meta, body)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming artifact into place: %w", err)
	}
	return nil
}

// Read loads and decodes the envelope at path.
func Read(path string, want Kind) (*Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errdefs.ErrMissingArtifact, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Decode(path, want, data)
}

// ReadMeta decodes only what is needed to report an artifact's metadata.
// The whole file is still verified against its checksum.
func ReadMeta(path string, want Kind) (Meta, int64, error) {
	env, err := Read(path, want)
	if err != nil {
		return Meta{}, 0, err
	}
	return env.Meta, int64(len(env.Body)), nil
}
