// Package layer 提供跨实例的分组消息通道：同一部署中的多个实例通过它共享组广播。
package layer

import (
	"context"
	"errors"
	"fmt"

	"rentchat/internal/config"
)

// DeliverFunc 把一个组的负载交给本实例的连接注册表。
type DeliverFunc func(group string, payload []byte)

// Layer 是组广播的传输层。Publish 对同一调用方保持顺序；
// Run 阻塞直到 ctx 结束，负责把收到的负载交给 DeliverFunc。
type Layer interface {
	Publish(ctx context.Context, group string, payload []byte) error
	Run(ctx context.Context) error
	Close() error
}

var ErrClosed = errors.New("channel layer closed")

// New 按配置创建通道层。
func New(cfg config.Config, deliver DeliverFunc) (Layer, error) {
	switch cfg.ChannelLayer {
	case "", "memory":
		return NewMemory(deliver), nil
	case "redis":
		return NewRedis(cfg.RedisAddr, DefaultPrefix, deliver)
	case "nats":
		return NewNATS(cfg.NATSURL, DefaultPrefix, deliver)
	default:
		return nil, fmt.Errorf("unknown channel layer %q", cfg.ChannelLayer)
	}
}

// DefaultPrefix 是 Redis 频道 / NATS subject 的统一前缀。
const DefaultPrefix = "rentchat.group."
