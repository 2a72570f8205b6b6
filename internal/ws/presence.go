package ws

import (
	"context"
	"strconv"

	"rentchat/internal/metrics"
	"rentchat/internal/service"

	"github.com/rs/zerolog/log"
)

// Presence 维护用户在线状态，并在变化时通知与其共享房间的联系人。
// 同一用户的上线和下线按用户串行执行：加入用户频道、计数检查、写库和通知
// 都在该用户的锁内完成，重连与断开交错时最终状态仍与在线连接一致。
type Presence struct {
	store    *service.PresenceService
	registry *Registry
	bc       *Broadcaster
	locks    *service.KeyLock
}

func NewPresence(store *service.PresenceService, registry *Registry, bc *Broadcaster) *Presence {
	return &Presence{store: store, registry: registry, bc: bc, locks: service.NewKeyLock()}
}

func (p *Presence) lock(userID uint) func() {
	return p.locks.Lock(strconv.FormatUint(uint64(userID), 10))
}

// Online 把连接加入用户频道，持久化在线状态后向每个联系人的用户频道发送 online。
func (p *Presence) Online(ctx context.Context, userID uint, c *Client) error {
	unlock := p.lock(userID)
	defer unlock()
	p.registry.Register(UserGroup(userID), c)
	if err := p.store.SetOnline(ctx, userID, true); err != nil {
		return err
	}
	metrics.PresenceChanges.WithLabelValues(typeOnline).Inc()
	return p.announce(ctx, userID, typeOnline)
}

// Offline 与 Online 对称。用户在本实例仍有其他在线状态连接时不做任何事。
func (p *Presence) Offline(ctx context.Context, userID uint, c *Client) error {
	unlock := p.lock(userID)
	defer unlock()
	p.registry.Unregister(UserGroup(userID), c)
	if n := p.registry.Count(UserGroup(userID)); n > 0 {
		log.Debug().Uint("user_id", userID).Int("connections", n).Msg("presence: user still connected, offline skipped")
		return nil
	}
	if err := p.store.SetOnline(ctx, userID, false); err != nil {
		return err
	}
	metrics.PresenceChanges.WithLabelValues(typeOffline).Inc()
	return p.announce(ctx, userID, typeOffline)
}

// announce 每次都重新计算联系人集合。
func (p *Presence) announce(ctx context.Context, userID uint, kind string) error {
	contacts, err := p.store.Contacts(ctx, userID)
	if err != nil {
		return err
	}
	groups := make([]string, 0, len(contacts))
	for _, c := range contacts {
		groups = append(groups, UserGroup(c))
	}
	log.Debug().Uint("user_id", userID).Str("state", kind).Int("contacts", len(contacts)).Msg("presence: announce")
	return p.bc.PublishEach(ctx, groups, envelope{Type: kind, Message: userRef{UserID: userID}})
}
