// Package errdefs defines the error taxonomy shared by the memorag pipeline.
//
// Callers match on the sentinel values with errors.Is. Components wrap them
// with fmt.Errorf("%w: ...") so the identifying context (path, chunk id,
// record index) travels with the error.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingArtifact is returned when a required memory.bin or index.bin
	// is absent. It is raised before any model is loaded.
	ErrMissingArtifact = errors.New("missing artifact")

	// ErrCorruptState is returned when a persisted artifact fails its
	// integrity or version check.
	ErrCorruptState = errors.New("corrupt state")

	// ErrCompression is returned when the compression model rejects its input.
	ErrCompression = errors.New("compression failure")

	// ErrEmbedding is returned when the embedding model rejects its input.
	ErrEmbedding = errors.New("embedding failure")

	// ErrGeneration is returned when the generation model fails to answer.
	ErrGeneration = errors.New("generation failure")

	// ErrInvalidArgument is returned for malformed configuration or arguments.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedMode is returned for an unrecognized pipeline mode.
	ErrUnsupportedMode = errors.New("unsupported mode")

	// ErrCorpusMismatch is returned when the memory state and the index were
	// built from different corpora.
	ErrCorpusMismatch = errors.New("corpus mismatch")

	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("not found")
)

// CorruptStateError reports an artifact that could not be decoded.
type CorruptStateError struct {
	Path   string
	Reason string
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state in %s: %s", e.Path, e.Reason)
}

// Is reports whether target is ErrCorruptState.
func (e *CorruptStateError) Is(target error) bool {
	return target == ErrCorruptState
}

// Corrupt builds a CorruptStateError for path.
func Corrupt(path, format string, args ...any) error {
	return &CorruptStateError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// RecordError ties a failure to the batch record that produced it.
type RecordError struct {
	Index int
	Query string
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d (%q): %v", e.Index, truncate(e.Query, 80), e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// InvalidArgument wraps ErrInvalidArgument with a formatted message.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// UnsupportedMode wraps ErrUnsupportedMode for mode.
func UnsupportedMode(mode string) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
}

// IsValidation reports whether err is one of the eagerly checked validation
// errors rather than a capability failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingArtifact) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrUnsupportedMode)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
