package kafka_test

import (
	"encoding/json"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/eventstream"
	"github.com/papercomputeco/memorag/pkg/eventstream/kafka"
	"github.com/papercomputeco/memorag/pkg/logger"
	"github.com/papercomputeco/memorag/pkg/storage"
)

func TestKafka(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Kafka Publisher Suite")
}

var _ = Describe("Publisher", func() {
	It("requires a broker", func() {
		_, err := kafka.NewPublisher(kafka.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("creates a publisher without dialing", func() {
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: []string{"127.0.0.1:1"},
			Logger:  logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Close()).To(Succeed())
	})

	It("parses broker lists", func() {
		Expect(kafka.ParseBrokers(" a:9092, ,b:9092 ")).To(Equal([]string{"a:9092", "b:9092"}))
		Expect(kafka.ParseBrokers("")).To(BeEmpty())
	})

	It("keys messages by answer id", func() {
		event := eventstream.NewAnswerRecordedEvent(eventstream.EventSource{Surface: "cli"}, &storage.Record{ID: "answer-1", Query: "q"})
		msg, err := kafka.Message(event)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(msg.Key)).To(Equal("answer-1"))
		Expect(msg.Headers[0].Key).To(Equal("event_type"))
		Expect(string(msg.Headers[0].Value)).To(Equal(eventstream.EventTypeAnswerRecorded))

		var decoded eventstream.AnswerRecordedEvent
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.Answer.Query).To(Equal("q"))
	})

	It("rejects nil events", func() {
		_, err := kafka.Message(nil)
		Expect(err).To(MatchError(eventstream.ErrNilAnswerEvent))
	})
})
