package ws

import (
	"context"
	"time"

	"rentchat/internal/auth"
	"rentchat/internal/config"
	"rentchat/internal/layer"
	"rentchat/internal/metrics"
	"rentchat/internal/mw"
	"rentchat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	eventTimeout    = 10 * time.Second
	teardownTimeout = 5 * time.Second
)

// Services 是 WebSocket 层依赖的业务服务。
type Services struct {
	Users    *service.UserService
	Rooms    *service.RoomService
	Messages *service.MessageService
	Comments *service.CommentService
	Presence *service.PresenceService
}

// Hub 串起连接生命周期：握手 → 注册 → 逐条分发入站事件 → 断开清理。
type Hub struct {
	cfg         config.Config
	registry    *Registry
	layer       layer.Layer
	broadcaster *Broadcaster
	presence    *Presence
	limiter     *mw.Limiter
	svc         Services
}

// NewHub 创建 Hub；l 需要以 registry.Deliver 作为投递函数构造。
func NewHub(cfg config.Config, registry *Registry, l layer.Layer, svc Services) *Hub {
	bc := NewBroadcaster(l)
	// 入站事件按连接限速，突发为每秒速率的两倍。
	eps := cfg.WSEventsPerSecond
	if eps <= 0 {
		eps = 20
	}
	return &Hub{
		cfg:         cfg,
		registry:    registry,
		layer:       l,
		broadcaster: bc,
		presence:    NewPresence(svc.Presence, registry, bc),
		limiter:     mw.NewLimiter(rate.Limit(eps), eps*2, 2*pongWait),
		svc:         svc,
	}
}

func (h *Hub) Registry() *Registry { return h.registry }

// Run 运行通道层的订阅循环，直到 ctx 结束。
func (h *Hub) Run(ctx context.Context) error {
	return h.layer.Run(ctx)
}

// Shutdown 关闭所有连接的传输层（各自的清理流程随之执行），然后关闭通道层。
func (h *Hub) Shutdown(ctx context.Context) error {
	defer h.limiter.Stop()
	for _, c := range h.registry.Clients() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for len(h.registry.Clients()) > 0 {
		select {
		case <-ctx.Done():
			log.Warn().Int("remaining", len(h.registry.Clients())).Msg("ws: shutdown before all connections were released")
			return h.layer.Close()
		case <-ticker.C:
		}
	}
	return h.layer.Close()
}

// protocol 是一种线协议的连接处理逻辑，由 Hub 统一驱动。
type protocol interface {
	kind() protocolKind
	// admit 在连接进入 Admitted 前注册组并发送初始通知。
	admit(ctx context.Context, c *Client)
	handle(ctx context.Context, c *Client, ev event) error
	// leave 在组成员关系全部释放之后调用。
	leave(ctx context.Context, c *Client)
	rejection(e *EventError) interface{}
}

// Routes 注册三个 WebSocket 入口。
func (h *Hub) Routes(r gin.IRoutes) {
	r.GET("/ws/announcement/:announcementId/", h.ServeComments)
	r.GET("/ws/chat/:roomName/", h.ServeLegacy)
	r.GET("/ws/chat/", h.ServePresence)
}

// serve 完成握手与协议升级，并在当前 goroutine 上运行读循环。
func (h *Hub) serve(c *gin.Context, p protocol) {
	identity := auth.Handshake(c.Request.Context(), h.svc.Users, h.cfg.JWTSecret, auth.TokenFromRequest(c.Request))
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug().Err(err).Msg("ws: upgrade failed")
		return
	}
	client := newClient(conn, identity, h.cfg.WSSendBuffer)
	go client.writePump()

	h.open(client, p)
	defer h.close(client, p)
	client.readPump(func(data []byte) { h.dispatch(client, p, data) })
}

// open 把连接从 Connecting 推进到 Admitted。
func (h *Hub) open(c *Client, p protocol) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	h.registry.Register(c.privateGroup(), c)
	p.admit(ctx, c)
	c.admit()
	metrics.WsConnections.WithLabelValues(string(p.kind())).Inc()
	log.Debug().Str("conn_id", c.ID()).Uint("user_id", c.Identity().UserID).Str("protocol", string(p.kind())).Msg("ws: connection admitted")
}

// close 释放连接的全部组成员关系并执行协议的离开逻辑；使用独立的 context，
// 不受请求取消或事件错误影响。
func (h *Hub) close(c *Client, p protocol) {
	if !c.markClosed() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	groups := h.registry.UnregisterAll(c)
	p.leave(ctx, c)
	metrics.WsConnections.WithLabelValues(string(p.kind())).Dec()
	log.Debug().Str("conn_id", c.ID()).Strs("groups", groups).Msg("ws: connection closed")
}

// dispatch 处理一条入站消息；所有业务错误都转换为回送给发起者的通知。
func (h *Hub) dispatch(c *Client, p protocol, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	if !h.limiter.Allow(c.ID()) {
		h.reject(ctx, c, p, tooManyRequests())
		return
	}
	ev, evErr := decodeEvent(p.kind(), data)
	if evErr != nil {
		h.reject(ctx, c, p, evErr)
		return
	}
	if err := p.handle(ctx, c, ev); err != nil {
		h.reject(ctx, c, p, asEventError(err))
	}
}

// reject 通过连接私有组回送拒绝通知。
func (h *Hub) reject(ctx context.Context, c *Client, p protocol, e *EventError) {
	metrics.WsRejectedEvents.WithLabelValues(e.Status).Inc()
	log.Debug().Str("conn_id", c.ID()).Str("status", e.Status).Str("reason", e.Message).Msg("ws: event rejected")
	_ = h.broadcaster.Publish(ctx, c.privateGroup(), p.rejection(e))
}
