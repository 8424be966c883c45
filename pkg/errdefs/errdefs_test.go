package errdefs_test

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/errdefs"
)

func TestErrdefs(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Errdefs Suite")
}

var _ = Describe("errdefs", func() {
	It("matches CorruptStateError against ErrCorruptState and keeps the path", func() {
		err := fmt.Errorf("loading: %w", errdefs.Corrupt("/tmp/m/memory.bin", "bad magic %q", "XX"))

		Expect(errors.Is(err, errdefs.ErrCorruptState)).To(BeTrue())

		var cse *errdefs.CorruptStateError
		Expect(errors.As(err, &cse)).To(BeTrue())
		Expect(cse.Path).To(Equal("/tmp/m/memory.bin"))
		Expect(err.Error()).To(ContainSubstring(`bad magic "XX"`))
	})

	It("unwraps RecordError to the underlying cause", func() {
		cause := fmt.Errorf("%w: chunk too long", errdefs.ErrEmbedding)
		err := &errdefs.RecordError{Index: 3, Query: "who sued?", Err: cause}

		Expect(errors.Is(err, errdefs.ErrEmbedding)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("record 3"))
		Expect(err.Error()).To(ContainSubstring("who sued?"))
	})

	It("classifies validation errors", func() {
		Expect(errdefs.IsValidation(errdefs.InvalidArgument("k must be >= 1"))).To(BeTrue())
		Expect(errdefs.IsValidation(fmt.Errorf("%w: memory.bin", errdefs.ErrMissingArtifact))).To(BeTrue())
		Expect(errdefs.IsValidation(errdefs.ErrUnsupportedMode)).To(BeTrue())
		Expect(errdefs.IsValidation(errdefs.ErrCompression)).To(BeFalse())
	})
})
