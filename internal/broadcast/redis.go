package broadcast

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis pub/sub channel used between replicas.
const DefaultChannel = "lotes:sync"

// Redis relays signals through a Redis pub/sub channel so that every
// server replica, and through them every connected browser, sees them.
type Redis struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

// NewRedis constructs a Redis broadcaster on channel.
func NewRedis(rdb *redis.Client, channel string, log *zap.Logger) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{rdb: rdb, channel: channel, log: log}
}

// Publish sends s to the channel.
func (r *Redis) Publish(ctx context.Context, s Signal) error {
	b, err := encode(s)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, b).Err()
}

// Subscribe opens a dedicated pub/sub connection that lives until ctx is
// cancelled.
func (r *Redis) Subscribe(ctx context.Context) (<-chan Signal, error) {
	ps := r.rdb.Subscribe(ctx, r.channel)
	// wait for the subscription confirmation so no publish is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan Signal, 8)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				s, err := decode([]byte(m.Payload))
				if err != nil {
					r.log.Warn("broadcast: bad payload", zap.String("channel", m.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- s:
				default:
				}
			}
		}
	}()
	return out, nil
}
