// Package nats publishes entity events to NATS subjects of the form
// <prefix>.<collection>.<action>, carrying OpenTelemetry trace context in
// the message headers.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/papercomputeco/insurag/pkg/eventstream"
)

// DefaultSubjectPrefix is used when Config.SubjectPrefix is empty.
const DefaultSubjectPrefix = "insurag.entities"

// Config configures the NATS publisher.
type Config struct {
	URL           string
	SubjectPrefix string
	Name          string
}

type conn interface {
	PublishMsg(m *natsgo.Msg) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// Publisher publishes JSON-encoded events on a NATS connection.
type Publisher struct {
	nc     conn
	prefix string
}

// NewPublisher connects to NATS. Reconnects are handled by the client.
func NewPublisher(cfg Config) (*Publisher, error) {
	url := cfg.URL
	if url == "" {
		url = natsgo.DefaultURL
	}
	name := cfg.Name
	if name == "" {
		name = "insurag"
	}

	nc, err := natsgo.Connect(url, natsgo.Name(name), natsgo.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return newPublisher(nc, cfg.SubjectPrefix), nil
}

func newPublisher(nc conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{nc: nc, prefix: prefix}
}

// Subject returns the subject an event is published on.
func (p *Publisher) Subject(event *eventstream.Event) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, event.Collection, event.Action)
}

// Publish sends one event. Trace context from ctx is injected into the
// message headers.
func (p *Publisher) Publish(ctx context.Context, event *eventstream.Event) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	msg := &natsgo.Msg{
		Subject: p.Subject(event),
		Data:    data,
		Header:  natsgo.Header{},
	}
	msg.Header.Set("Nats-Msg-Id", event.EventID)
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing to %s: %w", msg.Subject, err)
	}
	return nil
}

// Close flushes buffered messages and closes the connection.
func (p *Publisher) Close() error {
	err := p.nc.FlushTimeout(5 * time.Second)
	p.nc.Close()
	if err != nil {
		return fmt.Errorf("flushing nats connection: %w", err)
	}
	return nil
}

// headerCarrier adapts nats.Msg headers to propagation.TextMapCarrier.
type headerCarrier natsgo.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(natsgo.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

var _ eventstream.Publisher = (*Publisher)(nil)
