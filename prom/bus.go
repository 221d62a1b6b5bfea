package prom

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fwojciec/trawl"
)

// Ensure Bus implements trawl.Bus.
var _ trawl.Bus = (*Bus)(nil)

// Bus wraps a Bus with per-topic publish and handling counters. The
// dead-letter topic shows up like any other, which makes terminal fetch
// failures visible as `trawl_bus_published_total{topic="crawl-dlq"}`.
type Bus struct {
	next trawl.Bus

	published *prometheus.CounterVec
	handled   *prometheus.CounterVec
}

// NewBus creates an instrumented Bus and registers its collectors.
func NewBus(next trawl.Bus, reg prometheus.Registerer) *Bus {
	b := &Bus{
		next: next,
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trawl_bus_published_total",
			Help: "Messages published by topic.",
		}, []string{"topic"}),
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trawl_bus_handled_total",
			Help: "Message deliveries by topic and result.",
		}, []string{"topic", "result"}),
	}
	reg.MustRegister(b.published, b.handled)
	return b
}

// Publish delegates to the wrapped bus and counts the message.
func (b *Bus) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if err := b.next.Publish(ctx, topic, key, payload); err != nil {
		return err
	}
	b.published.WithLabelValues(topic).Inc()
	return nil
}

// Consume delegates to the wrapped bus with a counting handler.
func (b *Bus) Consume(ctx context.Context, topic, group, consumer string, handler trawl.Handler) error {
	counted := func(ctx context.Context, msg *trawl.Message) error {
		err := handler(ctx, msg)
		if err != nil {
			b.handled.WithLabelValues(topic, "error").Inc()
			return err
		}
		b.handled.WithLabelValues(topic, "ok").Inc()
		return nil
	}
	return b.next.Consume(ctx, topic, group, consumer, counted)
}
