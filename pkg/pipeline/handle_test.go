package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/artifact"
	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/logger"
	"github.com/papercomputeco/memorag/pkg/pipeline"
	"github.com/papercomputeco/memorag/pkg/vector"
	"github.com/papercomputeco/memorag/pkg/vector/flat"
)

// sharedDriver stands in for an external vector store that every pipeline
// opened by a handle connects to. Once armed, Reset announces itself and
// waits for release.
type sharedDriver struct {
	*flat.Driver
	resetting chan struct{}
	release   chan struct{}
}

func (d *sharedDriver) Reset(ctx context.Context) error {
	if d.resetting != nil {
		close(d.resetting)
		<-d.release
	}
	return d.Driver.Reset(ctx)
}

func (d *sharedDriver) Close() error {
	return nil
}

var _ = Describe("Handle", func() {
	var (
		ctx    context.Context
		dir    string
		f      *fixture
		opener pipeline.Opener
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		f = newFixture()
		opener = func(ctx context.Context) (*pipeline.Pipeline, error) {
			return pipeline.Open(ctx, pipeline.Options{
				Dir:       dir,
				Factories: f.factories(),
				Logger:    logger.Nop(),
			})
		}
	})

	digest := func(h *pipeline.Handle) string {
		var d string
		Expect(h.With(func(p *pipeline.Pipeline) error {
			d = p.State().CorpusDigest
			return nil
		})).To(Succeed())
		return d
	}

	It("requires an opener", func() {
		_, err := pipeline.NewHandle(ctx, nil, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("surfaces the first open error", func() {
		_, err := pipeline.NewHandle(ctx, opener, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("swaps in a rebuilt pipeline on reload", func() {
		first := memorize(ctx, f, dir, docA)
		h, err := pipeline.NewHandle(ctx, opener, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(h.Close)
		Expect(digest(h)).To(Equal(first.CorpusDigest))

		second := memorize(ctx, f, dir, docA, docB)
		Expect(h.Reload(ctx)).To(Succeed())
		Expect(digest(h)).To(Equal(second.CorpusDigest))
	})

	It("keeps serving the current pipeline when a reload fails", func() {
		first := memorize(ctx, f, dir, docA)
		h, err := pipeline.NewHandle(ctx, opener, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(h.Close)

		Expect(os.Remove(filepath.Join(dir, artifact.IndexFile))).To(Succeed())
		Expect(h.Reload(ctx)).NotTo(Succeed())
		Expect(digest(h)).To(Equal(first.CorpusDigest))
	})

	It("reloads when the artifacts are rewritten", func() {
		memorize(ctx, f, dir, docA)
		h, err := pipeline.NewHandle(ctx, opener, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(h.Close)

		watchCtx, cancel := context.WithCancel(ctx)
		DeferCleanup(cancel)
		go func() {
			defer GinkgoRecover()
			_ = h.Watch(watchCtx, dir, 50*time.Millisecond)
		}()
		// Let the watcher register before rewriting.
		time.Sleep(100 * time.Millisecond)

		second := memorize(ctx, f, dir, docA, docB)
		Eventually(func() string { return digest(h) }, 5*time.Second, 50*time.Millisecond).
			Should(Equal(second.CorpusDigest))
	})

	Describe("with an external vector store", func() {
		var shared *sharedDriver

		BeforeEach(func() {
			shared = &sharedDriver{Driver: flat.NewDriver(0)}
			opener = func(ctx context.Context) (*pipeline.Pipeline, error) {
				factories := f.factories()
				factories.VectorDriver = func(context.Context) (vector.Driver, error) {
					return shared, nil
				}
				return pipeline.Open(ctx, pipeline.Options{
					Dir:       dir,
					TopK:      1,
					Factories: factories,
					Logger:    logger.Nop(),
				})
			}
		})

		search := func(h *pipeline.Handle) ([]vector.QueryResult, error) {
			var results []vector.QueryResult
			err := h.With(func(p *pipeline.Pipeline) error {
				var err error
				results, err = p.Search(ctx, ceoQuery, 1)
				return err
			})
			return results, err
		}

		It("holds queries while the store is reloaded", func() {
			memorize(ctx, f, dir, docA, docB)
			h, err := pipeline.NewHandle(ctx, opener, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(h.Close)
			Expect(h.With(func(p *pipeline.Pipeline) error {
				Expect(p.SharesIndexBackend()).To(BeTrue())
				return nil
			})).To(Succeed())

			shared.resetting = make(chan struct{})
			shared.release = make(chan struct{})
			reloaded := make(chan error, 1)
			go func() {
				reloaded <- h.Reload(ctx)
			}()
			Eventually(shared.resetting).Should(BeClosed())

			searched := make(chan []vector.QueryResult, 1)
			go func() {
				defer GinkgoRecover()
				results, err := search(h)
				Expect(err).NotTo(HaveOccurred())
				searched <- results
			}()
			Consistently(searched, 100*time.Millisecond).ShouldNot(Receive())

			close(shared.release)
			Eventually(reloaded).Should(Receive(BeNil()))

			var results []vector.QueryResult
			Eventually(searched).Should(Receive(&results))
			Expect(results).To(HaveLen(1))
			Expect(results[0].Text).To(Equal(docB))
		})

		It("reloads the store for the current pipeline after a failed reload", func() {
			memorize(ctx, f, dir, docA, docB)
			h, err := pipeline.NewHandle(ctx, opener, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(h.Close)

			other := GinkgoT().TempDir()
			memorize(ctx, f, other, docA)
			data, err := os.ReadFile(filepath.Join(other, artifact.IndexFile))
			Expect(err).NotTo(HaveOccurred())
			Expect(os.WriteFile(filepath.Join(dir, artifact.IndexFile), data, 0o600)).To(Succeed())

			err = h.Reload(ctx)
			Expect(errors.Is(err, errdefs.ErrCorpusMismatch)).To(BeTrue())
			Expect(shared.Count(ctx)).To(Equal(1))

			results, err := search(h)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Text).To(Equal(docB))
			Expect(shared.Count(ctx)).To(Equal(2))
		})
	})

	It("rejects use after close", func() {
		memorize(ctx, f, dir, docA)
		h, err := pipeline.NewHandle(ctx, opener, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Close()).To(Succeed())
		Expect(h.Close()).To(Succeed())
		Expect(h.With(func(*pipeline.Pipeline) error { return nil })).To(HaveOccurred())
	})
})
