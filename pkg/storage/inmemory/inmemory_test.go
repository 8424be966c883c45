package inmemory_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/storage"
	"github.com/papercomputeco/memorag/pkg/storage/inmemory"
	"github.com/papercomputeco/memorag/pkg/storage/storagetest"
)

func TestInMemory(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "InMemory Storage Suite")
}

var _ = Describe("Driver", func() {
	storagetest.DriverSpecs(func() storage.Driver {
		return inmemory.NewDriver()
	})

	It("returns copies that callers cannot mutate", func() {
		d := inmemory.NewDriver()
		rec := &storage.Record{Query: "q", Mode: "memory-only", Passages: []string{"0:0"}}
		Expect(d.Put(context.Background(), rec)).To(Succeed())
		rec.Passages[0] = "changed"

		got, err := d.Get(context.Background(), rec.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Passages).To(Equal([]string{"0:0"}))
	})
})
