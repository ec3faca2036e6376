package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gridpulse/gridpulse/internal/config"
	"github.com/gridpulse/gridpulse/internal/dispatch"
	"github.com/gridpulse/gridpulse/internal/log"
	"github.com/gridpulse/gridpulse/internal/timing/patch"
)

// Redis carries both directions of pub/sub traffic over one client.
type Redis struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedis connects and verifies the connection.
func NewRedis(cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger := log.WithComponent("transport")
	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to redis")
	return &Redis{client: client, logger: logger}, nil
}

// NewRedisWithClient wraps an existing client; used by tests with miniredis.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client, logger: log.WithComponent("transport")}
}

// PublishUpdate ships one consolidated update on the session's channel.
func (r *Redis) PublishUpdate(ctx context.Context, eventID, sessionID int, u *patch.Update) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("transport: encoding update: %w", err)
	}
	if err := r.client.Publish(ctx, UpdateChannel(eventID, sessionID), payload).Err(); err != nil {
		return fmt.Errorf("transport: publishing update: %w", err)
	}
	return nil
}

// PublishEnvelope puts one feed envelope on the inbound channel. Ingestion
// edges use this; the daemon consumes the other end.
func (r *Redis) PublishEnvelope(ctx context.Context, e dispatch.Envelope) error {
	payload, err := e.Encode()
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, FeedChannel, payload).Err(); err != nil {
		return fmt.Errorf("transport: publishing envelope: %w", err)
	}
	return nil
}

// ConsumeFeed subscribes to the inbound channel and hands each decoded
// envelope to handle until ctx is cancelled. Malformed envelopes are logged
// and skipped.
func (r *Redis) ConsumeFeed(ctx context.Context, handle func(dispatch.Envelope)) error {
	sub := r.client.Subscribe(ctx, FeedChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("transport: subscribing to feed: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("transport: feed subscription closed")
			}
			env, err := dispatch.DecodeEnvelope([]byte(msg.Payload))
			if err != nil {
				r.logger.Warn().Err(err).Msg("dropping malformed envelope")
				continue
			}
			handle(env)
		}
	}
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
