package extractive_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/compression"
	"github.com/papercomputeco/memorag/pkg/compression/extractive"
	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/llm"
	testutils "github.com/papercomputeco/memorag/pkg/utils/test"
)

func TestExtractive(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Extractive Suite")
}

const corpusText = `Apples grow on trees in temperate orchards. Orchards need bees for pollination.
Bees visit apple blossoms in spring. The harvest of apples happens in autumn.

Rust is a systems programming language. Rust guarantees memory safety without a garbage collector.
Cargo is the Rust package manager. Many teams adopt Rust for command line tools.`

var _ = Describe("Model", func() {
	var (
		ctx context.Context
		m   *extractive.Model
	)

	BeforeEach(func() {
		ctx = context.Background()
		m = extractive.New(extractive.Config{})
	})

	Describe("Compress", func() {
		It("keeps the payload within the ratio budget", func() {
			for _, r := range []int{1, 2, 4, 8} {
				payload, err := m.Compress(ctx, corpusText, r)
				Expect(err).NotTo(HaveOccurred())
				Expect(len(payload)).To(BeNumerically("<=", compression.Budget(len(corpusText), r)))
			}
		})

		It("never grows as the ratio increases", func() {
			prev := -1
			for r := 1; r <= 12; r++ {
				payload, err := m.Compress(ctx, corpusText, r)
				Expect(err).NotTo(HaveOccurred())
				if prev >= 0 {
					Expect(len(payload)).To(BeNumerically("<=", prev), "ratio %d", r)
				}
				prev = len(payload)
			}
		})

		It("is deterministic", func() {
			a, err := m.Compress(ctx, corpusText, 3)
			Expect(err).NotTo(HaveOccurred())
			b, err := m.Compress(ctx, corpusText, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal(b))
		})

		It("keeps kept sentences in corpus order", func() {
			payload, err := m.Compress(ctx, corpusText, 2)
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(string(payload), "\n")
			last := -1
			for _, l := range lines {
				i := strings.Index(corpusText, l)
				Expect(i).To(BeNumerically(">", last))
				last = i
			}
		})

		It("rejects a ratio below one", func() {
			_, err := m.Compress(ctx, corpusText, 0)
			Expect(errors.Is(err, errdefs.ErrInvalidArgument)).To(BeTrue())
		})

		It("fails with a compression error past capacity", func() {
			small := extractive.New(extractive.Config{MaxInputChars: 10})
			_, err := small.Compress(ctx, corpusText, 4)
			Expect(errors.Is(err, errdefs.ErrCompression)).To(BeTrue())
		})

		It("cuts a single oversized sentence to the budget", func() {
			text := strings.Repeat("word", 100)
			payload, err := m.Compress(ctx, text, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(payload).To(HaveLen(100))
		})
	})

	Describe("Generate", func() {
		It("answers with the sentences overlapping the prompt", func() {
			payload, err := m.Compress(ctx, corpusText, 1)
			Expect(err).NotTo(HaveOccurred())
			prefix, err := m.Prefill(ctx, payload)
			Expect(err).NotTo(HaveOccurred())

			resp, err := m.Generate(ctx, prefix, "Which package manager does Cargo belong to?", llm.DefaultParams())
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Text).To(ContainSubstring("Cargo is the Rust package manager."))
			Expect(resp.Text).NotTo(ContainSubstring("Apples"))
		})

		It("delegates to a reader when configured", func() {
			reader := testutils.NewMockGenerator()
			withReader := extractive.New(extractive.Config{Reader: reader})

			prefix, err := withReader.Prefill(ctx, []byte("Bees visit apple blossoms."))
			Expect(err).NotTo(HaveOccurred())
			resp, err := withReader.Generate(ctx, prefix, "When do bees visit?", llm.DefaultParams())
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Text).To(ContainSubstring("Bees visit apple blossoms."))
			Expect(resp.Text).To(ContainSubstring("When do bees visit?"))
			Expect(withReader.Name()).To(Equal("extractive+mock-generator"))
		})

		It("requires a prefix", func() {
			_, err := m.Generate(ctx, nil, "q", llm.DefaultParams())
			Expect(errors.Is(err, errdefs.ErrInvalidArgument)).To(BeTrue())
		})
	})
})
