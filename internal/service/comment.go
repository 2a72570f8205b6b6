package service

import (
	"context"
	"errors"
	"fmt"

	"rentchat/internal/models"

	"gorm.io/gorm"
)

// CommentService 封装房源评论流的持久化。
type CommentService struct {
	db *gorm.DB
}

func NewCommentService(db *gorm.DB) *CommentService {
	return &CommentService{db: db}
}

// Append 为房源写入一条评论，返回带作者信息的评论。
func (s *CommentService) Append(ctx context.Context, announcementID, userID uint, text string) (*models.Comment, error) {
	db := s.db.WithContext(ctx)
	var ann models.Announcement
	if err := db.Select("id").First(&ann, announcementID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnnouncementNotFound
		}
		return nil, err
	}
	c := models.Comment{AnnouncementID: announcementID, UserID: userID, Comment: text}
	if err := db.Omit("User").Create(&c).Error; err != nil {
		return nil, fmt.Errorf("append comment to announcement %d: %w", announcementID, err)
	}
	if err := db.Preload("Images").First(&c.User, userID).Error; err != nil {
		return nil, fmt.Errorf("load comment author %d: %w", userID, err)
	}
	return &c, nil
}

// List 返回房源的评论，按时间升序。
func (s *CommentService) List(ctx context.Context, announcementID uint, limit int) ([]models.Comment, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var comments []models.Comment
	err := s.db.WithContext(ctx).
		Preload("User.Images").
		Where("announcement_id = ?", announcementID).
		Order("created_at, id").
		Limit(limit).
		Find(&comments).Error
	return comments, err
}
