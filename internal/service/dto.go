package service

import (
	"time"

	"rentchat/internal/models"
)

// 以下 DTO 定义了对外（REST 与 WebSocket）的 JSON 结构，字段名与现有客户端保持一致。

type ImageDTO struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	UUID  string `json:"uuid"`
	Image string `json:"image"`
}

type ChatUserDTO struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	PhoneNumber string     `json:"phone_number"`
	Images      []ImageDTO `json:"images"`
	IsOnline    bool       `json:"is_online"`
}

type MessageDTO struct {
	ID        uint      `json:"id"`
	Sender    uint      `json:"sender"`
	Receiver  uint      `json:"receiver"`
	CreatedAt time.Time `json:"created_at"`
	Room      uint      `json:"room"`
	IsRead    bool      `json:"is_read"`
	Message   string    `json:"message"`
}

// RoomCreatedDTO 是 group_created 事件携带的房间数据。
type RoomCreatedDTO struct {
	ID        uint          `json:"id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
	Users     []ChatUserDTO `json:"users"`
}

// RoomDTO 用于房间列表（仅未读消息）和房间详情（全部消息）。
type RoomDTO struct {
	RoomCreatedDTO
	Messages []MessageDTO `json:"messages"`
}

type CommentUserDTO struct {
	ID     uint       `json:"id"`
	Name   string     `json:"name"`
	Images []ImageDTO `json:"images"`
}

type CommentDTO struct {
	ID           uint           `json:"id"`
	Created      time.Time      `json:"created"`
	User         CommentUserDTO `json:"user"`
	Announcement uint           `json:"announcement"`
	Comment      string         `json:"comment"`
}

func ToImageDTOs(images []models.Image) []ImageDTO {
	out := make([]ImageDTO, 0, len(images))
	for _, img := range images {
		out = append(out, ImageDTO{ID: img.ID, Name: img.Name, UUID: img.UUID, Image: img.Path})
	}
	return out
}

func ToMessageDTO(m models.Message) MessageDTO {
	return MessageDTO{
		ID:        m.ID,
		Sender:    m.SenderID,
		Receiver:  m.ReceiverID,
		CreatedAt: m.CreatedAt,
		Room:      m.RoomID,
		IsRead:    m.IsRead,
		Message:   m.Message,
	}
}

func ToMessageDTOs(msgs []models.Message) []MessageDTO {
	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ToMessageDTO(m))
	}
	return out
}

// ToRoomCreatedDTO 序列化房间及成员，online 给出成员的在线状态。
func ToRoomCreatedDTO(r models.Room, online map[uint]bool) RoomCreatedDTO {
	users := make([]ChatUserDTO, 0, len(r.Users))
	for _, u := range r.Users {
		users = append(users, ChatUserDTO{
			ID:          u.ID,
			Name:        u.Name,
			PhoneNumber: u.PhoneNumber,
			Images:      ToImageDTOs(u.Images),
			IsOnline:    online[u.ID],
		})
	}
	return RoomCreatedDTO{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt, Users: users}
}

func ToCommentDTO(c models.Comment) CommentDTO {
	return CommentDTO{
		ID:      c.ID,
		Created: c.CreatedAt,
		User: CommentUserDTO{
			ID:     c.User.ID,
			Name:   c.User.Name,
			Images: ToImageDTOs(c.User.Images),
		},
		Announcement: c.AnnouncementID,
		Comment:      c.Comment,
	}
}
