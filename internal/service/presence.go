package service

import (
	"context"
	"fmt"
	"time"

	"rentchat/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PresenceService 持有 user_presences 表的唯一写入口。
type PresenceService struct {
	db *gorm.DB
}

func NewPresenceService(db *gorm.DB) *PresenceService {
	return &PresenceService{db: db}
}

// SetOnline 写入用户在线状态（upsert）。
func (s *PresenceService) SetOnline(ctx context.Context, userID uint, online bool) error {
	p := models.Presence{UserID: userID, IsOnline: online, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"is_online": online, "updated_at": p.UpdatedAt}),
	}).Create(&p).Error
	if err != nil {
		return fmt.Errorf("set presence for user %d: %w", userID, err)
	}
	return nil
}

// IsOnline 查询单个用户的在线状态，没有记录视为离线。
func (s *PresenceService) IsOnline(ctx context.Context, userID uint) (bool, error) {
	m, err := s.OnlineMap(ctx, []uint{userID})
	if err != nil {
		return false, err
	}
	return m[userID], nil
}

// OnlineMap 批量查询在线状态。
func (s *PresenceService) OnlineMap(ctx context.Context, userIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []models.Presence
	if err := s.db.WithContext(ctx).Where("user_id IN ?", uniqueIDs(userIDs)).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.UserID] = p.IsOnline
	}
	return out, nil
}

// Contacts 返回与该用户至少共享一个房间的其他用户 ID（去重、不含自己）。
// 每次调用都重新查询，不做缓存。
func (s *PresenceService) Contacts(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Raw(
		`SELECT DISTINCT other.user_id FROM room_users mine
		JOIN room_users other ON other.room_id = mine.room_id
		WHERE mine.user_id = ? AND other.user_id <> ?
		ORDER BY other.user_id`, userID, userID,
	).Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("contacts of user %d: %w", userID, err)
	}
	return ids, nil
}
