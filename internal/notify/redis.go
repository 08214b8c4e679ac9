package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// statusTTL bounds how long the last known status of a transaction stays
// cached for pollers.
const statusTTL = 24 * time.Hour

// RedisSink publishes events on a pub/sub channel and caches each
// transaction's latest status under "<channel>:status:<transaction id>".
type RedisSink struct {
	client  *redis.Client
	channel string
}

func NewRedisSink(addr, channel string) *RedisSink {
	return &RedisSink{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
	}
}

func (r *RedisSink) statusKey(transactionID string) string {
	return fmt.Sprintf("%s:status:%s", r.channel, transactionID)
}

func (r *RedisSink) Publish(ctx context.Context, e Event) error {
	payload, err := encode(e)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.statusKey(e.TransactionID), string(e.Status), statusTTL).Err(); err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

func (r *RedisSink) Close() error {
	return r.client.Close()
}
