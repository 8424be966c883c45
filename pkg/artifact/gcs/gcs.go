// Package gcs pushes and pulls memorag artifacts to a Google Cloud Storage
// bucket so that an expensive memorize run can be shared between machines.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/papercomputeco/memorag/pkg/artifact"
	"github.com/papercomputeco/memorag/pkg/errdefs"
)

// Store is the object storage surface used by Syncer.
type Store interface {
	// Put returns a writer that uploads to key when closed.
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get opens key for reading. A missing key yields errdefs.ErrNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

type bucketStore struct {
	client *storage.Client
	bucket string
}

// NewStore creates a Store backed by a Cloud Storage bucket using
// application default credentials.
func NewStore(ctx context.Context, bucket string) (Store, io.Closer, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &bucketStore{client: client, bucket: bucket}, client, nil
}

func (s *bucketStore) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	return w, nil
}

func (s *bucketStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", errdefs.ErrNotFound, s.bucket, key)
		}
		return nil, fmt.Errorf("reading gs://%s/%s: %w", s.bucket, key, err)
	}
	return r, nil
}

// ParseURL splits a gs://bucket/prefix URL.
func ParseURL(raw string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(raw, "gs://")
	if !ok {
		return "", "", errdefs.InvalidArgument("%q is not a gs:// URL", raw)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", errdefs.InvalidArgument("%q has no bucket", raw)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// Syncer copies the artifact pair between a local memory directory and a
// bucket prefix.
type Syncer struct {
	store  Store
	prefix string
}

// NewSyncer creates a Syncer writing under prefix.
func NewSyncer(store Store, prefix string) *Syncer {
	return &Syncer{store: store, prefix: prefix}
}

var files = []struct {
	name string
	kind artifact.Kind
}{
	{artifact.MemoryFile, artifact.KindMemory},
	{artifact.IndexFile, artifact.KindIndex},
}

func (s *Syncer) key(name string) string {
	return path.Join(s.prefix, name)
}

// Push uploads memory.bin and index.bin from dir. Both files are verified
// before anything is uploaded so that a corrupt artifact never leaves the
// machine.
func (s *Syncer) Push(ctx context.Context, dir string) ([]string, error) {
	if err := artifact.Require(dir, artifact.MemoryFile, artifact.IndexFile); err != nil {
		return nil, err
	}

	payloads := make([][]byte, len(files))
	for i, f := range files {
		p := filepath.Join(dir, f.name)
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		if _, err := artifact.Decode(p, f.kind, data); err != nil {
			return nil, err
		}
		payloads[i] = data
	}

	keys := make([]string, 0, len(files))
	for i, f := range files {
		key := s.key(f.name)
		w, err := s.store.Put(ctx, key)
		if err != nil {
			return keys, fmt.Errorf("opening %s for upload: %w", key, err)
		}
		if _, err := io.Copy(w, bytes.NewReader(payloads[i])); err != nil {
			w.Close()
			return keys, fmt.Errorf("uploading %s: %w", key, err)
		}
		if err := w.Close(); err != nil {
			return keys, fmt.Errorf("finalizing upload of %s: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Pull downloads both artifacts into dir. Each download is verified and then
// written atomically, so a failed pull leaves the previous artifacts intact.
func (s *Syncer) Pull(ctx context.Context, dir string) ([]string, error) {
	downloaded := make([][]byte, len(files))
	for i, f := range files {
		key := s.key(f.name)
		r, err := s.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, errdefs.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s not present under remote prefix %q", errdefs.ErrMissingArtifact, f.name, s.prefix)
			}
			return nil, err
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("downloading %s: %w", key, err)
		}
		if _, err := artifact.Decode(key, f.kind, data); err != nil {
			return nil, err
		}
		downloaded[i] = data
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	written := make([]string, 0, len(files))
	for i, f := range files {
		dst := filepath.Join(dir, f.name)
		if err := writeAtomic(dst, downloaded[i]); err != nil {
			return written, err
		}
		written = append(written, dst)
	}
	return written, nil
}

func writeAtomic(dst string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".pull-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", dst, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dst, err)
	}
	return os.Rename(tmp.Name(), dst)
}
