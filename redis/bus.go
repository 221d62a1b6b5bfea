package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fwojciec/trawl"
)

// Compile-time interface verification.
var _ trawl.Bus = (*Bus)(nil)

// Bus implements trawl.Bus on Redis Streams. Each topic is a fixed set of
// partition streams named "<topic>:<n>"; keys hash onto partitions, so
// entries sharing a key stay FIFO within their stream. Consumer groups
// span all partitions of a topic and deliveries stay pending until the
// handler acknowledges them.
type Bus struct {
	client     *Client
	partitions int
	block      time.Duration
	claimIdle  time.Duration
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBlock overrides the read blocking interval. Used by tests.
func WithBlock(d time.Duration) BusOption {
	return func(b *Bus) {
		b.block = d
	}
}

// WithClaimIdle overrides how long a delivery stays pending on a dead
// consumer before another consumer claims it.
func WithClaimIdle(d time.Duration) BusOption {
	return func(b *Bus) {
		b.claimIdle = d
	}
}

// NewBus creates a Bus with the given partition count per topic.
func NewBus(client *Client, partitions int, opts ...BusOption) *Bus {
	if partitions < 1 {
		partitions = 1
	}
	b := &Bus{
		client:     client,
		partitions: partitions,
		block:      5 * time.Second,
		claimIdle:  time.Minute,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) stream(topic string, partition int) string {
	return fmt.Sprintf("%s:%d", topic, partition)
}

func (b *Bus) partition(key string) int {
	return int(xxhash.Sum64String(key) % uint64(b.partitions))
}

// Publish appends a message to a topic under the given partition key.
func (b *Bus) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if topic == "" {
		return trawl.Errorf(trawl.EINVALID, "topic required")
	}
	return b.client.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream(topic, b.partition(key)),
		Values: map[string]any{"key": key, "payload": payload},
	}).Err()
}

// Consume joins the consumer group on a topic and calls handler for each
// delivery until ctx is canceled. Messages are acknowledged only after
// handler returns nil; unacknowledged deliveries are reclaimed from dead
// consumers after the claim-idle interval.
func (b *Bus) Consume(ctx context.Context, topic, group, consumer string, handler trawl.Handler) error {
	streams := make([]string, b.partitions)
	for p := 0; p < b.partitions; p++ {
		streams[p] = b.stream(topic, p)
		err := b.client.rdb.XGroupCreateMkStream(ctx, streams[p], group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return err
		}
	}

	// XREADGROUP wants the stream list followed by one ">" per stream.
	args := make([]string, 0, 2*b.partitions)
	args = append(args, streams...)
	for range streams {
		args = append(args, ">")
	}

	lastClaim := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := b.client.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  args,
			Count:    10,
			Block:    b.block,
		}).Result()
		if err != nil && err != redis.Nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		for _, stream := range res {
			for _, m := range stream.Messages {
				b.handle(ctx, stream.Stream, group, m, handler)
			}
		}

		if time.Since(lastClaim) >= b.claimIdle {
			lastClaim = time.Now()
			b.reclaim(ctx, streams, group, consumer, handler)
		}
	}
}

func (b *Bus) handle(ctx context.Context, stream, group string, m redis.XMessage, handler trawl.Handler) {
	key, _ := m.Values["key"].(string)
	payload, _ := m.Values["payload"].(string)

	err := handler(ctx, &trawl.Message{ID: m.ID, Key: key, Payload: []byte(payload)})
	if err != nil {
		// Stays pending for redelivery.
		return
	}
	_ = b.client.rdb.XAck(ctx, stream, group, m.ID).Err()
}

// reclaim transfers deliveries pending on dead consumers to this one and
// reprocesses them.
func (b *Bus) reclaim(ctx context.Context, streams []string, group, consumer string, handler trawl.Handler) {
	for _, stream := range streams {
		start := "0-0"
		for {
			msgs, next, err := b.client.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   stream,
				Group:    group,
				Consumer: consumer,
				MinIdle:  b.claimIdle,
				Start:    start,
				Count:    100,
			}).Result()
			if err != nil {
				break
			}
			for _, m := range msgs {
				b.handle(ctx, stream, group, m, handler)
			}
			if next == "0-0" || len(msgs) == 0 {
				break
			}
			start = next
		}
	}
}
