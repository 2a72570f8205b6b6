package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"rentchat/internal/layer"

	"github.com/rs/zerolog/log"
)

// Broadcaster 把事件序列化一次后交给通道层，由通道层投递到各实例的注册表。
// 同一调用方按发布顺序同步交付，因此每个接收者看到的组内顺序与发布顺序一致。
type Broadcaster struct {
	layer layer.Layer
}

func NewBroadcaster(l layer.Layer) *Broadcaster {
	return &Broadcaster{layer: l}
}

func (b *Broadcaster) Publish(ctx context.Context, group string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", group, err)
	}
	if err := b.layer.Publish(ctx, group, payload); err != nil {
		log.Error().Err(err).Str("group", group).Msg("ws: publish failed")
		return err
	}
	return nil
}

// PublishEach 向多个组分别发布，单个组失败不会中断其余组。返回遇到的第一个错误。
func (b *Broadcaster) PublishEach(ctx context.Context, groups []string, event interface{}) error {
	var first error
	for _, g := range groups {
		if err := b.Publish(ctx, g, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
