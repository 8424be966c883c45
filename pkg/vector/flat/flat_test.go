package flat_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/vector"
	"github.com/papercomputeco/memorag/pkg/vector/flat"
)

func TestFlat(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Flat Suite")
}

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *flat.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = flat.NewDriver(0)
		Expect(driver.Add(ctx, []vector.Document{
			{ID: "0:0", Ordinal: 0, Text: "east", Embedding: []float32{1, 0, 0}},
			{ID: "1:0", Ordinal: 1, Text: "north", Embedding: []float32{0, 1, 0}},
			{ID: "2:0", Ordinal: 2, Text: "also east", Embedding: []float32{5, 0, 0}},
			{ID: "3:0", Ordinal: 3, Text: "up", Embedding: []float32{0, 0, 1}},
		})).To(Succeed())
	})

	It("adopts the first document's dimension", func() {
		Expect(driver.Dimensions()).To(Equal(3))
	})

	It("orders by descending score with ties broken by ordinal", func() {
		results, err := driver.Query(ctx, []float32{2, 0, 0}, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))
		Expect(results[0].ID).To(Equal("0:0"))
		Expect(results[1].ID).To(Equal("2:0"))
		Expect(results[0].Score).To(BeNumerically("~", 1.0, 1e-6))
		Expect(results[1].Score).To(Equal(results[0].Score))
		Expect(results[2].Score).To(BeNumerically("~", 0.0, 1e-6))
		Expect(results[2].ID).To(Equal("1:0"))
	})

	It("returns identical results for repeated queries", func() {
		a, err := driver.Query(ctx, []float32{1, 1, 1}, 4)
		Expect(err).NotTo(HaveOccurred())
		b, err := driver.Query(ctx, []float32{1, 1, 1}, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(b))
	})

	It("strips embeddings from results", func() {
		results, err := driver.Query(ctx, []float32{0, 1, 0}, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].Text).To(Equal("north"))
		Expect(results[0].Embedding).To(BeNil())
	})

	It("returns everything when topK exceeds the count", func() {
		results, err := driver.Query(ctx, []float32{0, 1, 0}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))
	})

	It("rejects mismatched dimensions", func() {
		_, err := driver.Query(ctx, []float32{1, 0}, 1)
		Expect(errors.Is(err, vector.ErrDimension)).To(BeTrue())

		err = driver.Add(ctx, []vector.Document{{ID: "x", Embedding: []float32{1}}})
		Expect(errors.Is(err, vector.ErrDimension)).To(BeTrue())
	})

	It("replaces a document in place", func() {
		Expect(driver.Add(ctx, []vector.Document{
			{ID: "1:0", Ordinal: 1, Text: "now east", Embedding: []float32{1, 0, 0}},
		})).To(Succeed())

		n, _ := driver.Count(ctx)
		Expect(n).To(Equal(4))
		Expect(driver.All()[1].Text).To(Equal("now east"))

		docs, err := driver.Get(ctx, []string{"1:0", "missing"})
		Expect(err).NotTo(HaveOccurred())
		Expect(docs).To(HaveLen(1))
		Expect(docs[0].Embedding).To(Equal([]float32{1, 0, 0}))
	})

	It("empties on reset", func() {
		Expect(driver.Reset(ctx)).To(Succeed())
		n, _ := driver.Count(ctx)
		Expect(n).To(BeZero())

		results, err := driver.Query(ctx, []float32{1, 0, 0}, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(BeEmpty())
	})
})
