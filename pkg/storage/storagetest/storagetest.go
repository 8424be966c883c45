// Package storagetest holds the behaviour every storage.Driver shares, as
// ginkgo specs each driver's suite runs against its own backend.
package storagetest

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/storage"
)

// DriverSpecs registers the shared answer log specs. newDriver is called
// before each spec and must return an empty store.
func DriverSpecs(newDriver func() storage.Driver) {
	var (
		ctx    context.Context
		driver storage.Driver
		base   time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = nil
		driver = newDriver()
		base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	record := func(query, mode string, offset time.Duration) *storage.Record {
		return &storage.Record{
			Query:     query,
			Mode:      mode,
			Path:      "retrieval",
			Answer:    "answer to " + query,
			Passages:  []string{"0:0", "1:0"},
			CreatedAt: base.Add(offset),
		}
	}

	It("stores and gets a record", func() {
		rec := record("Who is the CEO?", "memory-then-retrieval", 0)
		rec.DurationMs = 42
		Expect(driver.Put(ctx, rec)).To(Succeed())
		Expect(rec.ID).NotTo(BeEmpty())

		got, err := driver.Get(ctx, rec.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Query).To(Equal(rec.Query))
		Expect(got.Answer).To(Equal(rec.Answer))
		Expect(got.Passages).To(Equal([]string{"0:0", "1:0"}))
		Expect(got.DurationMs).To(Equal(int64(42)))
		Expect(got.CreatedAt).To(BeTemporally("~", rec.CreatedAt, time.Millisecond))
	})

	It("reports unknown ids as not found", func() {
		_, err := driver.Get(ctx, "nope")
		Expect(errors.Is(err, errdefs.ErrNotFound)).To(BeTrue())
		var nf storage.NotFoundError
		Expect(errors.As(err, &nf)).To(BeTrue())
		Expect(nf.ID).To(Equal("nope"))
	})

	It("replaces a record with the same id", func() {
		rec := record("q", "memory-only", 0)
		Expect(driver.Put(ctx, rec)).To(Succeed())
		rec.Answer = "revised"
		Expect(driver.Put(ctx, rec)).To(Succeed())

		got, err := driver.Get(ctx, rec.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Answer).To(Equal("revised"))

		st, err := driver.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Total).To(Equal(1))
	})

	It("lists newest first with filters and a limit", func() {
		Expect(driver.Put(ctx, record("first", "memory-only", 0))).To(Succeed())
		Expect(driver.Put(ctx, record("second", "retrieval-only", time.Minute))).To(Succeed())
		Expect(driver.Put(ctx, record("third", "memory-only", 2*time.Minute))).To(Succeed())

		all, err := driver.List(ctx, storage.ListOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(queries(all)).To(Equal([]string{"third", "second", "first"}))

		mem, err := driver.List(ctx, storage.ListOptions{Mode: "memory-only"})
		Expect(err).NotTo(HaveOccurred())
		Expect(queries(mem)).To(Equal([]string{"third", "first"}))

		recent, err := driver.List(ctx, storage.ListOptions{Since: base.Add(30 * time.Second)})
		Expect(err).NotTo(HaveOccurred())
		Expect(queries(recent)).To(Equal([]string{"third", "second"}))

		one, err := driver.List(ctx, storage.ListOptions{Limit: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(queries(one)).To(Equal([]string{"third"}))
	})

	It("counts records by mode and failure", func() {
		failed := record("broken", "retrieval-only", 0)
		failed.Error = "embedding failure"
		Expect(driver.Put(ctx, failed)).To(Succeed())
		Expect(driver.Put(ctx, record("a", "memory-only", time.Second))).To(Succeed())
		Expect(driver.Put(ctx, record("b", "memory-only", 2*time.Second))).To(Succeed())

		st, err := driver.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Total).To(Equal(3))
		Expect(st.Failed).To(Equal(1))
		Expect(st.ByMode).To(Equal(map[string]int{"memory-only": 2, "retrieval-only": 1}))
	})

	It("clears every record", func() {
		Expect(driver.Put(ctx, record("a", "memory-only", 0))).To(Succeed())
		Expect(driver.Clear(ctx)).To(Succeed())

		all, err := driver.List(ctx, storage.ListOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(BeEmpty())
	})
}

func queries(recs []*storage.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Query
	}
	return out
}
