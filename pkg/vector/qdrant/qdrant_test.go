package qdrant_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/logger"
	"github.com/papercomputeco/memorag/pkg/vector"
	"github.com/papercomputeco/memorag/pkg/vector/qdrant"
)

func TestQdrant(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Qdrant Suite")
}

var _ = Describe("Driver", func() {
	It("requires a host", func() {
		_, err := qdrant.NewDriver(context.Background(), qdrant.Config{Dimensions: 4}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("host is required")))
	})

	It("requires dimensions", func() {
		_, err := qdrant.NewDriver(context.Background(), qdrant.Config{Host: "localhost"}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("dimensions")))
	})

	It("implements vector.Driver", func() {
		var _ vector.Driver = (*qdrant.Driver)(nil)
	})
})
