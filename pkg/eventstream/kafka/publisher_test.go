package kafka_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/eventstream"
	"github.com/papercomputeco/insurag/pkg/eventstream/kafka"
)

var _ = Describe("Publisher", func() {
	var (
		w *kafka.RecordingWriter
		p *kafka.Publisher
	)

	BeforeEach(func() {
		w = &kafka.RecordingWriter{}
		p = kafka.NewTestPublisher(w)
	})

	It("requires brokers", func() {
		_, err := kafka.NewPublisher(kafka.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("creates a writer for configured brokers", func() {
		pub, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(pub.Close()).To(Succeed())
	})

	It("keys messages by collection and entity id", func() {
		ev := eventstream.NewEvent(eventstream.EventTypeEntityChanged, eventstream.ActionUpdated, entity.Claims, "c-7", 4)
		Expect(p.Publish(context.Background(), ev)).To(Succeed())

		Expect(w.Messages).To(HaveLen(1))
		msg := w.Messages[0]
		Expect(string(msg.Key)).To(Equal("claims/c-7"))

		var decoded eventstream.Event
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal(ev.EventID))
		Expect(decoded.Version).To(Equal(int64(4)))
		Expect(msg.Headers).To(ContainElement(HaveField("Key", "event_type")))
	})

	It("rejects nil events", func() {
		Expect(p.Publish(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
		Expect(w.Messages).To(BeEmpty())
	})

	It("wraps writer failures", func() {
		w.Err = errors.New("leader not available")
		ev := eventstream.NewEvent(eventstream.EventTypeEntityChanged, eventstream.ActionCreated, entity.Policies, "p-1", 1)
		Expect(p.Publish(context.Background(), ev)).To(MatchError(ContainSubstring("leader not available")))
	})

	It("closes the writer", func() {
		Expect(p.Close()).To(Succeed())
		Expect(w.Closed).To(BeTrue())
	})
})
