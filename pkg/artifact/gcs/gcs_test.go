package gcs_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/artifact"
	"github.com/papercomputeco/memorag/pkg/artifact/gcs"
	"github.com/papercomputeco/memorag/pkg/errdefs"
)

func TestGCS(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "GCS Suite")
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

type memWriter struct {
	bytes.Buffer
	store *memStore
	key   string
}

func (w *memWriter) Close() error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.objects[w.key] = w.Bytes()
	return nil
}

func (s *memStore) Put(_ context.Context, key string) (io.WriteCloser, error) {
	return &memWriter{store: s, key: key}, nil
}

func (s *memStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errdefs.ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

var _ = Describe("Syncer", func() {
	var (
		store *memStore
		src   string
		ctx   context.Context
	)

	BeforeEach(func() {
		store = &memStore{objects: map[string][]byte{}}
		src = GinkgoT().TempDir()
		ctx = context.Background()

		meta := artifact.Meta{CorpusDigest: "digest", Ratio: 4}
		Expect(artifact.Write(artifact.MemoryPath(src), artifact.KindMemory, meta, []byte("mem"))).To(Succeed())
		Expect(artifact.Write(artifact.IndexPath(src), artifact.KindIndex, meta, []byte("idx"))).To(Succeed())
	})

	It("pushes and pulls both artifacts byte for byte", func() {
		syncer := gcs.NewSyncer(store, "runs/2026")

		keys, err := syncer.Push(ctx, src)
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(Equal([]string{"runs/2026/memory.bin", "runs/2026/index.bin"}))

		dst := GinkgoT().TempDir()
		_, err = syncer.Pull(ctx, dst)
		Expect(err).NotTo(HaveOccurred())

		for _, name := range []string{artifact.MemoryFile, artifact.IndexFile} {
			want, _ := os.ReadFile(src + "/" + name)
			got, _ := os.ReadFile(dst + "/" + name)
			Expect(got).To(Equal(want))
		}
	})

	It("refuses to push a corrupt artifact", func() {
		Expect(os.WriteFile(artifact.IndexPath(src), []byte("garbage-garbage-garbage"), 0o600)).To(Succeed())

		_, err := gcs.NewSyncer(store, "p").Push(ctx, src)
		Expect(errors.Is(err, errdefs.ErrCorruptState)).To(BeTrue())
		Expect(store.objects).To(BeEmpty())
	})

	It("reports missing remote artifacts", func() {
		_, err := gcs.NewSyncer(store, "empty").Pull(ctx, GinkgoT().TempDir())
		Expect(errors.Is(err, errdefs.ErrMissingArtifact)).To(BeTrue())
	})

	DescribeTable("ParseURL",
		func(raw, bucket, prefix string, ok bool) {
			b, p, err := gcs.ParseURL(raw)
			if !ok {
				Expect(errors.Is(err, errdefs.ErrInvalidArgument)).To(BeTrue())
				return
			}
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(bucket))
			Expect(p).To(Equal(prefix))
		},
		Entry("bucket and prefix", "gs://corp/memories/q3/", "corp", "memories/q3", true),
		Entry("bucket only", "gs://corp", "corp", "", true),
		Entry("wrong scheme", "s3://corp/x", "", "", false),
		Entry("no bucket", "gs:///x", "", "", false),
	)
})
