// Package eventstreamutils builds an eventstream.Publisher from configuration.
package eventstreamutils

import (
	"fmt"

	"github.com/papercomputeco/insurag/pkg/eventstream"
	"github.com/papercomputeco/insurag/pkg/eventstream/kafka"
	"github.com/papercomputeco/insurag/pkg/eventstream/nats"
	"github.com/papercomputeco/insurag/pkg/eventstream/nop"
)

// Supported publisher types.
const (
	ProviderNop   = "nop"
	ProviderKafka = "kafka"
	ProviderNATS  = "nats"
)

type NewPublisherOpts struct {
	ProviderType string
	Brokers      []string
	Topic        string
	NATSURL      string
}

// NewPublisher returns the configured publisher. An empty provider type
// disables publishing.
func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", ProviderNop:
		return nop.NewPublisher(), nil
	case ProviderKafka:
		return kafka.NewPublisher(kafka.Config{Brokers: o.Brokers, Topic: o.Topic})
	case ProviderNATS:
		return nats.NewPublisher(nats.Config{URL: o.NATSURL, SubjectPrefix: o.Topic})
	default:
		return nil, fmt.Errorf("unsupported event stream provider: %s", o.ProviderType)
	}
}
