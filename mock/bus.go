package mock

import (
	"context"

	"github.com/fwojciec/trawl"
)

var _ trawl.Bus = (*Bus)(nil)

// Bus is a mock implementation of trawl.Bus.
type Bus struct {
	PublishFn func(ctx context.Context, topic, key string, payload []byte) error
	ConsumeFn func(ctx context.Context, topic, group, consumer string, handler trawl.Handler) error
}

func (b *Bus) Publish(ctx context.Context, topic, key string, payload []byte) error {
	return b.PublishFn(ctx, topic, key, payload)
}

func (b *Bus) Consume(ctx context.Context, topic, group, consumer string, handler trawl.Handler) error {
	return b.ConsumeFn(ctx, topic, group, consumer, handler)
}
