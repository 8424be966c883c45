package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/logger"
	"github.com/papercomputeco/memorag/pkg/worker"
)

var _ = Describe("Worker Pool", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("requires a handler", func() {
		_, err := worker.NewPool(ctx, &worker.Config[int]{Logger: logger.Nop()})
		Expect(err).To(HaveOccurred())
	})

	It("runs every submitted job before Close returns", func() {
		var (
			mu   sync.Mutex
			seen = map[int]bool{}
		)
		wp, err := worker.NewPool(ctx, &worker.Config[int]{
			NumWorkers: 4,
			QueueSize:  2,
			Logger:     logger.Nop(),
			Handler: func(_ context.Context, n int) error {
				mu.Lock()
				seen[n] = true
				mu.Unlock()
				return nil
			},
		})
		Expect(err).NotTo(HaveOccurred())

		for i := range 50 {
			Expect(wp.Submit(ctx, i)).To(Succeed())
		}
		wp.Close()

		Expect(seen).To(HaveLen(50))
	})

	It("counts failed jobs", func() {
		wp, err := worker.NewPool(ctx, &worker.Config[int]{
			Logger: logger.Nop(),
			Handler: func(_ context.Context, n int) error {
				if n%2 == 0 {
					return errors.New("even")
				}
				return nil
			},
		})
		Expect(err).NotTo(HaveOccurred())

		for i := range 10 {
			Expect(wp.Submit(ctx, i)).To(Succeed())
		}
		wp.Close()
		Expect(wp.Failed()).To(Equal(5))
	})

	It("drops jobs when the queue is full", func() {
		release := make(chan struct{})
		var started atomic.Int32
		wp, err := worker.NewPool(ctx, &worker.Config[int]{
			NumWorkers: 1,
			QueueSize:  1,
			Logger:     logger.Nop(),
			Handler: func(_ context.Context, _ int) error {
				started.Add(1)
				<-release
				return nil
			},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(wp.Enqueue(1)).To(BeTrue())
		Eventually(started.Load).Should(Equal(int32(1)))
		Expect(wp.Enqueue(2)).To(BeTrue())
		Expect(wp.Enqueue(3)).To(BeFalse())

		close(release)
		wp.Close()
	})

	It("refuses jobs after Close", func() {
		wp, err := worker.NewPool(ctx, &worker.Config[int]{
			Logger:  logger.Nop(),
			Handler: func(context.Context, int) error { return nil },
		})
		Expect(err).NotTo(HaveOccurred())
		wp.Close()
		wp.Close()

		Expect(wp.Enqueue(1)).To(BeFalse())
		Expect(wp.Submit(ctx, 1)).To(HaveOccurred())
	})

	It("stops waiting when the submit context is cancelled", func() {
		release := make(chan struct{})
		wp, err := worker.NewPool(ctx, &worker.Config[int]{
			NumWorkers: 1,
			QueueSize:  1,
			Logger:     logger.Nop(),
			Handler: func(context.Context, int) error {
				<-release
				return nil
			},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(wp.Submit(ctx, 1)).To(Succeed())
		Expect(wp.Submit(ctx, 2)).To(Succeed())

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		Expect(wp.Submit(cctx, 3)).To(MatchError(context.Canceled))

		close(release)
		wp.Close()
	})
})
