package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus fans changes out across server instances over Redis pub/sub.
// Publish goes to Redis only; every instance, the publisher included,
// receives the change back through Run.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	local   *LocalBus
	logger  *zap.Logger
}

// NewRedisBus creates a bus on channel.
func NewRedisBus(rdb *redis.Client, channel string, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel == "" {
		channel = "cmg:changes"
	}
	return &RedisBus{rdb: rdb, channel: channel, local: NewLocalBus(0), logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe() (<-chan Change, func()) {
	return b.local.Subscribe()
}

// Run relays Redis messages to local subscribers until ctx is done. ready,
// when non-nil, is closed once the Redis subscription is confirmed.
func (b *RedisBus) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	if ready != nil {
		close(ready)
	}

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				b.logger.Warn("drop malformed change", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			b.local.dispatch(c)
		}
	}
}
