package layer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis 通过 PUBLISH / PSUBSCRIBE 在实例间转发组广播。
type Redis struct {
	client  *redis.Client
	prefix  string
	deliver DeliverFunc
}

// NewRedis 连接 Redis 并检查可用性。
func NewRedis(addr, prefix string, deliver DeliverFunc) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Str("prefix", prefix).Msg("channel layer: redis connected")
	return &Redis{client: client, prefix: prefix, deliver: deliver}, nil
}

func (r *Redis) Publish(ctx context.Context, group string, payload []byte) error {
	if err := r.client.Publish(ctx, r.prefix+group, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", group, err)
	}
	return nil
}

// Run 订阅全部组频道，按接收顺序逐条投递。
func (r *Redis) Run(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, r.prefix+"*")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return ErrClosed
			}
			r.deliver(strings.TrimPrefix(msg.Channel, r.prefix), []byte(msg.Payload))
		}
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
