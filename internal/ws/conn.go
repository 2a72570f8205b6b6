package ws

import (
	"net/http"
	"sync"
	"time"

	"rentchat/internal/auth"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 20 // 1MB
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// connState 描述连接生命周期：Connecting → Admitted → Closed。
type connState int

const (
	stateConnecting connState = iota
	stateAdmitted
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateAdmitted:
		return "admitted"
	default:
		return "closed"
	}
}

// Client 是一个在线连接：身份和发送缓冲。
type Client struct {
	id       string
	conn     *websocket.Conn
	identity auth.Identity
	send     chan []byte

	mu    sync.Mutex
	state connState
}

func newClient(conn *websocket.Conn, identity auth.Identity, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		id:       uuid.NewString(),
		conn:     conn,
		identity: identity,
		send:     make(chan []byte, buffer),
		state:    stateConnecting,
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Identity() auth.Identity { return c.identity }

func (c *Client) privateGroup() string { return PrivateGroup(c.id) }

func (c *Client) State() connState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// admit 仅在 Connecting 状态下生效。
func (c *Client) admit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateConnecting {
		return false
	}
	c.state = stateAdmitted
	return true
}

// enqueue 非阻塞地放入发送缓冲；连接已关闭或缓冲已满时返回 false。
func (c *Client) enqueue(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateClosed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// markClosed 切换到 Closed 并关闭发送通道，只有第一次调用返回 true。
func (c *Client) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateClosed {
		return false
	}
	c.state = stateClosed
	close(c.send)
	return true
}

// readPump 顺序读取入站消息并逐条交给 handle，同一连接内不会并发处理。
func (c *Client) readPump(handle func([]byte)) {
	defer func() { _ = c.conn.Close() }()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("ws: read failed")
			}
			return
		}
		handle(data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
