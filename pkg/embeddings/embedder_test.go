package embeddings_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/embeddings"
	"github.com/papercomputeco/memorag/pkg/errdefs"
	testutils "github.com/papercomputeco/memorag/pkg/utils/test"
)

func TestEmbeddings(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Embeddings Suite")
}

// overlapDetector fails if Embed is entered while another call is running.
type overlapDetector struct {
	embeddings.Embedder
	inFlight atomic.Int32
	overlaps atomic.Int32
}

func (o *overlapDetector) Embed(ctx context.Context, text string) ([]float32, error) {
	if o.inFlight.Add(1) > 1 {
		o.overlaps.Add(1)
	}
	defer o.inFlight.Add(-1)
	time.Sleep(2 * time.Millisecond)
	return o.Embedder.Embed(ctx, text)
}

var _ = Describe("LengthLimited", func() {
	It("rejects oversized input with ErrEmbedding without calling the model", func() {
		mock := testutils.NewMockEmbedder()
		limited := &embeddings.LengthLimited{Embedder: mock, MaxChars: 5}

		_, err := limited.Embed(context.Background(), "héllo wörld")
		Expect(errors.Is(err, errdefs.ErrEmbedding)).To(BeTrue())
		Expect(mock.Calls()).To(BeZero())

		_, err = limited.Embed(context.Background(), "héllo")
		Expect(err).NotTo(HaveOccurred())
		Expect(mock.Calls()).To(Equal(1))
	})

	It("passes everything through when the limit is zero", func() {
		limited := &embeddings.LengthLimited{Embedder: testutils.NewMockEmbedder()}
		_, err := limited.Embed(context.Background(), strings.Repeat("x", 10000))
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("Serialized", func() {
	It("never lets calls overlap", func() {
		det := &overlapDetector{Embedder: testutils.NewMockEmbedder()}
		s := embeddings.NewSerialized(det)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				_, err := s.Embed(context.Background(), "text")
				Expect(err).NotTo(HaveOccurred())
			}()
		}
		wg.Wait()

		Expect(det.overlaps.Load()).To(BeZero())
	})
})
