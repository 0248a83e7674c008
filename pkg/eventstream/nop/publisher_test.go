package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/eventstream"
	"github.com/papercomputeco/insurag/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	It("rejects nil events", func() {
		Expect(nop.NewPublisher().Publish(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
	})

	It("accepts events and closes cleanly", func() {
		p := nop.NewPublisher()
		ev := eventstream.NewEvent(eventstream.EventTypeEntityChanged, eventstream.ActionCreated, entity.Claims, "c-1", 1)
		Expect(p.Publish(context.Background(), ev)).To(Succeed())
		Expect(p.Close()).To(Succeed())
	})
})
