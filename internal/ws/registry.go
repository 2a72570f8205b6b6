package ws

import (
	"sync"

	"rentchat/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Registry 按组键记录在线连接，是进程内唯一的共享可变状态。
// 所有修改都经过 Register / Unregister / UnregisterAll。
type Registry struct {
	mu          sync.RWMutex
	groups      map[string]map[*Client]struct{}
	memberships map[*Client]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		groups:      make(map[string]map[*Client]struct{}),
		memberships: make(map[*Client]map[string]struct{}),
	}
}

// Register 将连接加入组，对同一连接/组重复调用是幂等的。
func (r *Registry) Register(group string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.groups[group]
	if members == nil {
		members = make(map[*Client]struct{})
		r.groups[group] = members
	}
	members[c] = struct{}{}
	owned := r.memberships[c]
	if owned == nil {
		owned = make(map[string]struct{})
		r.memberships[c] = owned
	}
	owned[group] = struct{}{}
}

// Unregister 将连接移出组，不在组中时为空操作。
func (r *Registry) Unregister(group string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(group, c)
}

func (r *Registry) removeLocked(group string, c *Client) {
	if members, ok := r.groups[group]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(r.groups, group)
		}
	}
	if owned, ok := r.memberships[c]; ok {
		delete(owned, group)
		if len(owned) == 0 {
			delete(r.memberships, c)
		}
	}
}

// UnregisterAll 一次性释放连接的全部组成员关系，返回被释放的组。
func (r *Registry) UnregisterAll(c *Client) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	owned := r.memberships[c]
	groups := make([]string, 0, len(owned))
	for g := range owned {
		groups = append(groups, g)
	}
	for _, g := range groups {
		r.removeLocked(g, c)
	}
	return groups
}

// MembersOf 返回组成员的快照，读者之间不互斥。
func (r *Registry) MembersOf(group string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.groups[group]
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Count(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[group])
}

// Groups 返回连接当前所在的组。
func (r *Registry) Groups(c *Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.memberships[c]))
	for g := range r.memberships[c] {
		out = append(out, g)
	}
	return out
}

// Clients 返回所有已注册连接的快照，用于停服时统一关闭。
func (r *Registry) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.memberships))
	for c := range r.memberships {
		out = append(out, c)
	}
	return out
}

// Deliver 把负载逐个投递给组内每个连接。单个连接失败只记录日志，不影响其他成员。
// 返回成功入队的连接数。
func (r *Registry) Deliver(group string, payload []byte) int {
	delivered := 0
	for _, c := range r.MembersOf(group) {
		if c.enqueue(payload) {
			delivered++
			continue
		}
		metrics.WsDroppedDeliveries.Inc()
		log.Warn().Str("group", group).Str("conn_id", c.ID()).Msg("ws: delivery dropped")
	}
	return delivered
}
