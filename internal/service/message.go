package service

import (
	"context"
	"fmt"

	"rentchat/internal/models"

	"gorm.io/gorm"
)

// MessageService 封装私聊消息的持久化与已读状态。
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// Append 持久化一条新消息（is_read=false）。返回时数据已落库，调用方之后才能广播。
func (s *MessageService) Append(ctx context.Context, senderID, receiverID, roomID uint, body string) (*models.Message, error) {
	msg := models.Message{RoomID: roomID, SenderID: senderID, ReceiverID: receiverID, Message: body}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("append message to room %d: %w", roomID, err)
	}
	return &msg, nil
}

// MarkRead 将一批消息标记为已读。所有消息必须存在、属于 roomID 且接收者是 readerID，
// 读者还必须是房间成员；任一条件不满足则整批拒绝、不做任何修改。返回被标记的消息。
// 检查顺序：消息不存在 > 房间不符 > 非接收者 > 非成员。
func (s *MessageService) MarkRead(ctx context.Context, ids []uint, roomID, readerID uint) ([]models.Message, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, ErrMessageNotFound
	}
	var msgs []models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id IN ?", ids).Order("created_at, id").Find(&msgs).Error; err != nil {
			return err
		}
		if len(msgs) != len(ids) {
			return ErrMessageNotFound
		}
		for _, m := range msgs {
			if m.RoomID != roomID {
				return ErrRoomMismatch
			}
		}
		for _, m := range msgs {
			if m.ReceiverID != readerID {
				return ErrNotRecipient
			}
		}
		var member int64
		if err := tx.Table("room_users").Where("room_id = ? AND user_id = ?", roomID, readerID).Count(&member).Error; err != nil {
			return err
		}
		if member == 0 {
			return ErrNotRoomMember
		}
		return tx.Model(&models.Message{}).Where("id IN ?", ids).Update("is_read", true).Error
	})
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].IsRead = true
	}
	return msgs, nil
}

// UnreadIn 按创建顺序返回房间内的未读消息。
func (s *MessageService) UnreadIn(ctx context.Context, roomID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND is_read = ?", roomID, false).
		Order("created_at, id").
		Find(&msgs).Error
	return msgs, err
}

// ListByRoom 分页查询指定房间的消息，按 id 升序返回。
func (s *MessageService) ListByRoom(ctx context.Context, roomID uint, limit int, beforeID uint) ([]models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Where("room_id = ?", roomID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	var msgs []models.Message
	if err := q.Order("id desc").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	// 反转为升序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
