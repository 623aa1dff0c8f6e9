package notification

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Publisher delivers post-commit events. Best effort: callers log failures
// and move on; a publish never rolls back or retries the triggering
// operation.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

const channelPrefix = "siterank:events:"

// RedisPublisher publishes events on redis pub/sub channels.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	if p == nil || p.client == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.client.Publish(ctx, channelPrefix+topic, raw).Err()
}

// Fanout publishes to every configured transport. The first error is
// returned for logging purposes, but all transports are still attempted.
type Fanout struct {
	publishers []Publisher
}

func NewFanout(publishers ...Publisher) *Fanout {
	return &Fanout{publishers: publishers}
}

func (f *Fanout) Publish(ctx context.Context, topic string, payload interface{}) error {
	var firstErr error
	for _, p := range f.publishers {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, topic, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		log.Debug().Err(firstErr).Str("topic", topic).Msg("partial publish failure")
	}
	return firstErr
}
