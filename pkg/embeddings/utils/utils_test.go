package embeddingutils_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/memorag/pkg/embeddings/utils"
)

func TestEmbeddingUtils(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Embedding Utils Suite")
}

var _ = Describe("NewEmbedder", func() {
	It("builds an ollama embedder", func() {
		e, err := embeddingutils.NewEmbedder(context.Background(), &embeddingutils.NewEmbedderOpts{
			ProviderType: "ollama",
			Model:        "e5",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Name()).To(Equal("e5"))
	})

	It("wraps with a length limit when configured", func() {
		e, err := embeddingutils.NewEmbedder(context.Background(), &embeddingutils.NewEmbedderOpts{
			ProviderType:  "openai",
			APIKey:        "test",
			MaxInputChars: 100,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(e).To(BeAssignableToTypeOf(&embeddings.LengthLimited{}))
	})

	It("rejects unknown providers", func() {
		_, err := embeddingutils.NewEmbedder(context.Background(), &embeddingutils.NewEmbedderOpts{ProviderType: "word2vec"})
		Expect(err).To(MatchError(ContainSubstring("unsupported embedding provider")))
	})
})
