package ws

import (
	"context"
	"strings"

	"rentchat/internal/metrics"
	"rentchat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// directChat 处理多路复用的在线状态协议 /ws/chat/：私聊发送、已读回执、上下线通知。
type directChat struct {
	hub *Hub
	// online 表示该连接已加入用户频道并发布过 online
	online bool
}

func (h *Hub) ServePresence(c *gin.Context) {
	h.serve(c, &directChat{hub: h})
}

func (d *directChat) kind() protocolKind { return protocolPresence }

func (d *directChat) admit(ctx context.Context, c *Client) {
	identity := c.Identity()
	if identity.IsAnonymous() {
		d.hub.reject(ctx, c, d, unauthenticated())
		return
	}
	d.online = true
	if err := d.hub.presence.Online(ctx, identity.UserID, c); err != nil {
		log.Error().Err(err).Uint("user_id", identity.UserID).Msg("presence: online failed")
	}
}

func (d *directChat) leave(ctx context.Context, c *Client) {
	if !d.online {
		return
	}
	d.online = false
	userID := c.Identity().UserID
	if err := d.hub.presence.Offline(ctx, userID, c); err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("presence: offline failed")
	}
}

func (d *directChat) rejection(e *EventError) interface{} {
	return statusNotice{Type: typeNotAllowed, Status: e.Status, Message: e.Message}
}

func (d *directChat) handle(ctx context.Context, c *Client, ev event) error {
	if c.Identity().IsAnonymous() {
		return unauthenticated()
	}
	switch in := ev.(type) {
	case sendEvent:
		return d.send(ctx, c.Identity().UserID, in)
	case readEvent:
		return d.read(ctx, c.Identity().UserID, in)
	default:
		return badRequest("Unsupported event")
	}
}

// send 解析（必要时创建）双方的规范房间，先持久化消息再广播给双方的用户频道。
func (d *directChat) send(ctx context.Context, sender uint, in sendEvent) error {
	if strings.TrimSpace(in.Message) == "" {
		return badRequest("message is required")
	}
	if in.Receiver == nil {
		return badRequest("receiver is required")
	}
	receiver := uint(*in.Receiver)
	if receiver == 0 || receiver == sender {
		return badRequest("receiver must be another user")
	}
	if _, err := d.hub.svc.Users.FindUser(ctx, receiver); err != nil {
		return err
	}
	room, created, err := d.hub.svc.Rooms.Resolve(ctx, sender, receiver)
	if err != nil {
		return err
	}
	channels := []string{UserGroup(sender), UserGroup(receiver)}
	if created {
		dto, err := d.hub.svc.Rooms.Serialize(ctx, *room)
		if err != nil {
			return err
		}
		_ = d.hub.broadcaster.PublishEach(ctx, channels, envelope{Type: typeGroupCreated, Message: dto})
	}
	msg, err := d.hub.svc.Messages.Append(ctx, sender, receiver, room.ID, in.Message)
	if err != nil {
		return err
	}
	metrics.WsMessagesTotal.WithLabelValues(string(protocolPresence)).Inc()
	_ = d.hub.broadcaster.PublishEach(ctx, channels, envelope{Type: typeChatMessage, Message: service.ToMessageDTO(*msg)})
	return nil
}

// read 批量标记已读，回执发给读者本人和每位原消息发送者。
// 存在性、房间归属、接收者与成员资格都由 MarkRead 在同一事务内检查。
func (d *directChat) read(ctx context.Context, reader uint, in readEvent) error {
	if in.RoomID == nil {
		return badRequest("room_id is required")
	}
	if len(in.IDs) == 0 {
		return badRequest("ids are required")
	}
	roomID := uint(*in.RoomID)
	msgs, err := d.hub.svc.Messages.MarkRead(ctx, in.ids(), roomID, reader)
	if err != nil {
		return err
	}

	receipt := readReceipt{RoomID: roomID, Reader: reader, IDs: make([]uint, 0, len(msgs))}
	channels := []string{UserGroup(reader)}
	seen := map[uint]bool{reader: true}
	for _, m := range msgs {
		receipt.IDs = append(receipt.IDs, m.ID)
		if !seen[m.SenderID] {
			seen[m.SenderID] = true
			channels = append(channels, UserGroup(m.SenderID))
		}
	}
	_ = d.hub.broadcaster.PublishEach(ctx, channels, envelope{Type: typeRead, Message: receipt})
	return nil
}
