package eventstream_test

import (
	"encoding/json"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/eventstream"
	"github.com/papercomputeco/memorag/pkg/storage"
)

func TestEventstream(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Eventstream Suite")
}

var _ = Describe("Event", func() {
	It("marshals AnswerRecordedEvent with expected top-level keys", func() {
		event := eventstream.NewAnswerRecordedEvent(
			eventstream.EventSource{Surface: "api", MemoryDir: "/data/mem", CorpusDigest: "abc"},
			&storage.Record{ID: "r1", Query: "Who is the CEO?", Mode: "memory-only", Answer: "Jane Doe"},
		)

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKeyWithValue("event_type", eventstream.EventTypeAnswerRecorded))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("source"))
		Expect(got).To(HaveKey("answer"))
		Expect(got["answer"]).To(HaveKeyWithValue("query", "Who is the CEO?"))
	})

	It("gives every event a distinct id", func() {
		rec := &storage.Record{ID: "r1"}
		a := eventstream.NewAnswerRecordedEvent(eventstream.EventSource{}, rec)
		b := eventstream.NewAnswerRecordedEvent(eventstream.EventSource{}, rec)
		Expect(a.EventID).NotTo(Equal(b.EventID))
		Expect(strings.HasPrefix(a.EventID, "evt_")).To(BeTrue())
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeAnswerRecorded).To(Equal("memorag.answer.recorded"))
	})

	It("provides ErrNilAnswerEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilAnswerEvent).To(MatchError("nil answer event"))
	})
})
