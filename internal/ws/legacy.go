package ws

import (
	"context"
	"strconv"
	"strings"

	"rentchat/internal/metrics"
	"rentchat/internal/service"

	"github.com/gin-gonic/gin"
)

// legacyRoom 处理旧版配对房间协议 /ws/chat/:roomName/。
// 房间名直接来自路径（例如 "7-3"），既用作组键后缀也用作房间记录名，不做排序。
// 每个连接持有自己的 legacyRoom，只在该连接的 goroutine 上访问。
type legacyRoom struct {
	hub      *Hub
	roomName string
	// joined 表示连接通过了鉴权与参与者校验并加入了房间组
	joined bool
}

func (h *Hub) ServeLegacy(c *gin.Context) {
	h.serve(c, &legacyRoom{hub: h, roomName: c.Param("roomName")})
}

func (r *legacyRoom) kind() protocolKind { return protocolLegacy }

func (r *legacyRoom) group() string { return LegacyRoomGroup(r.roomName) }

// participants 返回路径中的用户 ID 片段（原样字符串）。
func (r *legacyRoom) participants() []string {
	return strings.Split(r.roomName, "-")
}

func (r *legacyRoom) isParticipant(userID uint) bool {
	id := strconv.FormatUint(uint64(userID), 10)
	for _, p := range r.participants() {
		if p == id {
			return true
		}
	}
	return false
}

// admit 匿名连接收到 401，非房间参与者收到 403；二者都只保留私有组。
func (r *legacyRoom) admit(ctx context.Context, c *Client) {
	identity := c.Identity()
	if identity.IsAnonymous() {
		r.hub.reject(ctx, c, r, unauthenticated())
		return
	}
	if !r.isParticipant(identity.UserID) {
		r.hub.reject(ctx, c, r, forbidden("You are not allowed to join this room"))
		return
	}
	r.joined = true
	r.hub.registry.Register(r.group(), c)
}

func (r *legacyRoom) handle(ctx context.Context, c *Client, ev event) error {
	in, ok := ev.(sendEvent)
	if !ok {
		return badRequest("Unsupported event")
	}
	sender := c.Identity().UserID
	if c.Identity().IsAnonymous() {
		return unauthenticated()
	}
	if !r.joined {
		return forbidden("You are not allowed to join this room")
	}
	if strings.TrimSpace(in.Message) == "" {
		return badRequest("message is required")
	}
	if in.Receiver == nil {
		return badRequest("receiver is required")
	}
	receiver := uint(*in.Receiver)
	if receiver == sender {
		return badRequest("receiver must be another user")
	}
	if !r.isParticipant(receiver) {
		return forbidden("Receiver is not a participant of this room")
	}
	if _, err := r.hub.svc.Users.FindUser(ctx, receiver); err != nil {
		return err
	}
	room, _, err := r.hub.svc.Rooms.GetOrCreate(ctx, r.roomName, sender, receiver)
	if err != nil {
		return err
	}
	msg, err := r.hub.svc.Messages.Append(ctx, sender, receiver, room.ID, in.Message)
	if err != nil {
		return err
	}
	metrics.WsMessagesTotal.WithLabelValues(string(protocolLegacy)).Inc()
	_ = r.hub.broadcaster.Publish(ctx, r.group(), envelope{Message: service.ToMessageDTO(*msg)})
	return nil
}

func (r *legacyRoom) leave(context.Context, *Client) {
	r.joined = false
}

func (r *legacyRoom) rejection(e *EventError) interface{} {
	name := r.roomName
	return statusNotice{RoomName: &name, Status: e.Status, Message: e.Message}
}
