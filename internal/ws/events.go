package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"rentchat/internal/service"

	"github.com/rs/zerolog/log"
)

// protocolKind 标识三种 WebSocket 线协议。
type protocolKind string

const (
	protocolComments protocolKind = "comments"
	protocolLegacy   protocolKind = "legacy"
	protocolPresence protocolKind = "presence"
)

// 出站事件类型（在线状态协议）。
const (
	typeChatMessage  = "chat_message"
	typeGroupCreated = "group_created"
	typeOnline       = "online"
	typeOffline      = "offline"
	typeRead         = "read"
	typeNotAllowed   = "not_allowed"
)

// EventError 是单条入站事件被拒绝时回送给发起者的结构化通知，不会关闭连接。
type EventError struct {
	Status  string
	Message string
}

func (e *EventError) Error() string { return e.Status + ": " + e.Message }

func badRequest(msg string) *EventError { return &EventError{Status: "400", Message: msg} }
func forbidden(msg string) *EventError  { return &EventError{Status: "403", Message: msg} }
func notFound(msg string) *EventError   { return &EventError{Status: "404", Message: msg} }
func unauthenticated() *EventError {
	return &EventError{Status: "401", Message: "You are not authenticated"}
}
func tooManyRequests() *EventError { return &EventError{Status: "429", Message: "Too many requests"} }
func internalError() *EventError   { return &EventError{Status: "500", Message: "Internal server error"} }

// asEventError 把业务错误映射为通知状态码，未知错误视为持久化失败。
func asEventError(err error) *EventError {
	var evErr *EventError
	switch {
	case errors.As(err, &evErr):
		return evErr
	case errors.Is(err, service.ErrUserNotFound):
		return notFound("User not found")
	case errors.Is(err, service.ErrRoomNotFound):
		return notFound("Room not found")
	case errors.Is(err, service.ErrMessageNotFound):
		return notFound("Message not found")
	case errors.Is(err, service.ErrAnnouncementNotFound):
		return notFound("Announcement not found")
	case errors.Is(err, service.ErrRoomMismatch):
		return forbidden("Message does not belong to this room")
	case errors.Is(err, service.ErrNotRecipient):
		return forbidden("Only the receiver can mark a message as read")
	case errors.Is(err, service.ErrNotRoomMember):
		return forbidden("You are not a member of this room")
	default:
		log.Error().Err(err).Msg("ws: event failed")
		return internalError()
	}
}

// flexID 兼容客户端以数字或数字字符串传递的 ID。
type flexID uint

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", b)
	}
	*f = flexID(v)
	return nil
}

// event 是入站事件的标签联合，每种协议只接受其中的一部分。
type event interface {
	eventName() string
}

// commentEvent 评论流：{text}
type commentEvent struct {
	Text string `json:"text"`
}

// sendEvent 私聊发送：{message, receiver}
type sendEvent struct {
	Message  string  `json:"message"`
	Receiver *flexID `json:"receiver"`
}

// readEvent 已读回执：{type:"read", ids, room_id, sender}。
// sender 只作参考，回执的接收方以数据库中消息的发送者为准。
type readEvent struct {
	IDs    []flexID `json:"ids"`
	RoomID *flexID  `json:"room_id"`
	Sender *flexID  `json:"sender"`
}

func (commentEvent) eventName() string { return "comment" }
func (sendEvent) eventName() string    { return "send" }
func (readEvent) eventName() string    { return "read" }

func (e readEvent) ids() []uint {
	out := make([]uint, 0, len(e.IDs))
	for _, id := range e.IDs {
		out = append(out, uint(id))
	}
	return out
}

// decodeEvent 是三种协议共用的入站解码器。
func decodeEvent(kind protocolKind, data []byte) (event, *EventError) {
	switch kind {
	case protocolComments:
		var ev commentEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, badRequest("Invalid payload")
		}
		return ev, nil
	case protocolLegacy:
		var ev sendEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, badRequest("Invalid payload")
		}
		return ev, nil
	case protocolPresence:
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			return nil, badRequest("Invalid payload")
		}
		if head.Type == typeRead {
			var ev readEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				return nil, badRequest("Invalid payload")
			}
			return ev, nil
		}
		var ev sendEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, badRequest("Invalid payload")
		}
		return ev, nil
	default:
		return nil, badRequest("Unsupported protocol")
	}
}

// 出站负载

// envelope 旧版协议与评论流：{message}；在线状态协议额外带 type。
type envelope struct {
	Type    string      `json:"type,omitempty"`
	Message interface{} `json:"message"`
}

type userRef struct {
	UserID uint `json:"user_id"`
}

type readReceipt struct {
	RoomID uint   `json:"room_id"`
	IDs    []uint `json:"ids"`
	Reader uint   `json:"reader"`
}

// statusNotice 是拒绝通知；旧版协议带 room_name，在线状态协议带 type。
type statusNotice struct {
	Type     string  `json:"type,omitempty"`
	RoomName *string `json:"room_name,omitempty"`
	Status   string  `json:"status"`
	Message  string  `json:"message"`
}
