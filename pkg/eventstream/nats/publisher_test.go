package nats

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	natsgo "github.com/nats-io/nats.go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/eventstream"
)

type fakeConn struct {
	msgs   []*natsgo.Msg
	err    error
	closed bool
}

func (f *fakeConn) PublishMsg(m *natsgo.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeConn) FlushTimeout(time.Duration) error { return nil }

func (f *fakeConn) Close() { f.closed = true }

var _ = Describe("Publisher", func() {
	var (
		nc *fakeConn
		p  *Publisher
	)

	BeforeEach(func() {
		nc = &fakeConn{}
		p = newPublisher(nc, "")
	})

	It("publishes on <prefix>.<collection>.<action>", func() {
		ev := eventstream.NewEvent(eventstream.EventTypeEntityIndexed, eventstream.ActionIndexed, entity.Documents, "d-1", 2)
		Expect(p.Publish(context.Background(), ev)).To(Succeed())

		Expect(nc.msgs).To(HaveLen(1))
		Expect(nc.msgs[0].Subject).To(Equal("insurag.entities.documents.indexed"))
		Expect(nc.msgs[0].Header.Get("Nats-Msg-Id")).To(Equal(ev.EventID))

		var decoded eventstream.Event
		Expect(json.Unmarshal(nc.msgs[0].Data, &decoded)).To(Succeed())
		Expect(decoded.EntityID).To(Equal("d-1"))
	})

	It("injects the trace context into headers", func() {
		prev := otel.GetTextMapPropagator()
		otel.SetTextMapPropagator(propagation.TraceContext{})
		DeferCleanup(func() { otel.SetTextMapPropagator(prev) })

		traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
		spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
		ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: trace.FlagsSampled,
		}))

		ev := eventstream.NewEvent(eventstream.EventTypeEntityChanged, eventstream.ActionCreated, entity.Claims, "c-1", 1)
		Expect(p.Publish(ctx, ev)).To(Succeed())
		Expect(nc.msgs[0].Header.Get("traceparent")).To(ContainSubstring("4bf92f3577b34da6a3ce929d0e0e4736"))
	})

	It("rejects nil events", func() {
		Expect(p.Publish(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
	})

	It("wraps publish failures", func() {
		nc.err = errors.New("connection closed")
		ev := eventstream.NewEvent(eventstream.EventTypeEntityChanged, eventstream.ActionDeleted, entity.Claims, "c-1", 1)
		Expect(p.Publish(context.Background(), ev)).To(MatchError(ContainSubstring("connection closed")))
	})

	It("closes the connection", func() {
		Expect(p.Close()).To(Succeed())
		Expect(nc.closed).To(BeTrue())
	})

	Describe("headerCarrier", func() {
		It("lists keys it was given", func() {
			msg := &natsgo.Msg{}
			c := (*headerCarrier)(msg)
			Expect(c.Get("x")).To(BeEmpty())
			c.Set("x", "1")
			Expect(c.Keys()).To(HaveLen(1))
			Expect(c.Get("x")).To(Equal("1"))
		})
	})
})
