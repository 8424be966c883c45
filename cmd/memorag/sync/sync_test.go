package synccmder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/artifact"
	"github.com/papercomputeco/memorag/pkg/artifact/gcs"
	"github.com/papercomputeco/memorag/pkg/errdefs"
)

func TestSyncCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Sync Command Suite")
}

type bucket map[string][]byte

type objectWriter struct {
	bytes.Buffer
	b   bucket
	key string
}

func (w *objectWriter) Close() error {
	w.b[w.key] = w.Bytes()
	return nil
}

func (b bucket) Put(_ context.Context, key string) (io.WriteCloser, error) {
	return &objectWriter{b: b, key: key}, nil
}

func (b bucket) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := b[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errdefs.ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b bucket) Close() error { return nil }

var _ = Describe("push and pull", func() {
	var (
		b       bucket
		buckets []string
		factory storeFactory
		out     *bytes.Buffer
		ctx     context.Context
	)

	BeforeEach(func() {
		b = bucket{}
		buckets = nil
		factory = func(_ context.Context, name string) (gcs.Store, io.Closer, error) {
			buckets = append(buckets, name)
			return b, b, nil
		}
		out = &bytes.Buffer{}
		ctx = context.Background()
	})

	It("registers both commands with the remote flag", func() {
		pushCmd := NewPushCmd()
		pullCmd := NewPullCmd()
		Expect(pushCmd.Name()).To(Equal("push"))
		Expect(pullCmd.Name()).To(Equal("pull"))
		Expect(pushCmd.Flags().Lookup("remote")).NotTo(BeNil())
		Expect(pullCmd.Flags().Lookup("memory-dir")).NotTo(BeNil())
		Expect(pushCmd.Args(pushCmd, []string{"a", "b"})).To(HaveOccurred())
	})

	It("round trips artifacts through the bucket", func() {
		src := GinkgoT().TempDir()
		meta := artifact.Meta{CorpusDigest: "digest", Ratio: 4}
		Expect(artifact.Write(artifact.MemoryPath(src), artifact.KindMemory, meta, []byte("mem"))).To(Succeed())
		Expect(artifact.Write(artifact.IndexPath(src), artifact.KindIndex, meta, []byte("idx"))).To(Succeed())

		pusher := &syncCommander{dir: push, newStore: factory}
		Expect(pusher.run(ctx, out, src, "gs://team/handbook")).To(Succeed())
		Expect(buckets).To(Equal([]string{"team"}))
		Expect(b).To(HaveKey("handbook/memory.bin"))
		Expect(b).To(HaveKey("handbook/index.bin"))
		Expect(out.String()).To(ContainSubstring("Pushed 2 artifacts"))

		dst := filepath.Join(GinkgoT().TempDir(), "pulled")
		puller := &syncCommander{dir: pull, newStore: factory}
		Expect(puller.run(ctx, out, dst, "gs://team/handbook")).To(Succeed())

		want, err := os.ReadFile(artifact.MemoryPath(src))
		Expect(err).NotTo(HaveOccurred())
		got, err := os.ReadFile(artifact.MemoryPath(dst))
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(want))
	})

	It("requires a remote", func() {
		c := &syncCommander{dir: push, newStore: factory}
		err := c.run(ctx, out, GinkgoT().TempDir(), "")
		Expect(errors.Is(err, errdefs.ErrInvalidArgument)).To(BeTrue())
		Expect(buckets).To(BeEmpty())
	})

	It("rejects non gs:// remotes", func() {
		c := &syncCommander{dir: pull, newStore: factory}
		err := c.run(ctx, out, GinkgoT().TempDir(), "s3://bucket/x")
		Expect(errors.Is(err, errdefs.ErrInvalidArgument)).To(BeTrue())
	})

	It("reports missing artifacts on pull", func() {
		c := &syncCommander{dir: pull, newStore: factory}
		err := c.run(ctx, out, GinkgoT().TempDir(), "gs://team/empty")
		Expect(errors.Is(err, errdefs.ErrMissingArtifact)).To(BeTrue())
	})
})
