package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentchat/internal/auth"
	"rentchat/internal/config"
	"rentchat/internal/models"

	"gorm.io/gorm"
)

// UserService 封装用户相关的业务逻辑。
type UserService struct {
	db  *gorm.DB
	cfg config.Config
}

func NewUserService(db *gorm.DB, cfg config.Config) *UserService {
	return &UserService{db: db, cfg: cfg}
}

// ValidatePhoneNumber 校验手机号：必须以 +998 开头且总长 13 位数字。
func ValidatePhoneNumber(phone string) error {
	if !strings.HasPrefix(phone, "+998") || len(phone) != 13 {
		return ErrInvalidPhone
	}
	for _, r := range phone[1:] {
		if r < '0' || r > '9' {
			return ErrInvalidPhone
		}
	}
	return nil
}

// RegisterResult 注册成功后返回的数据。
type RegisterResult struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// Register 注册新用户。
func (s *UserService) Register(ctx context.Context, name, phone, password string) (*RegisterResult, error) {
	if err := ValidatePhoneNumber(phone); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.User{}).Where("phone_number = ?", phone).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrPhoneTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.User{Name: name, PhoneNumber: phone, PasswordHash: hash}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrPhoneTaken
		}
		return nil, err
	}
	return &RegisterResult{ID: user.ID, Name: user.Name, PhoneNumber: user.PhoneNumber}, nil
}

// LoginResult 登录成功后返回的数据。
type LoginResult struct {
	auth.TokenPair
	User models.User `json:"-"`
}

// Login 校验手机号与密码并签发 token 对。
func (s *UserService) Login(ctx context.Context, phone, password string) (*LoginResult, error) {
	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.Where("phone_number = ?", phone).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	pair, err := auth.IssueTokens(user.ID, s.cfg)
	if err != nil {
		return nil, err
	}
	if err := storeRefreshToken(db, user.ID, pair); err != nil {
		return nil, err
	}
	return &LoginResult{TokenPair: pair, User: user}, nil
}

// RefreshTokens 吊销旧 refresh token 并签发新 token 对（旋转刷新）。
// 吊销是带条件的单条 UPDATE，同一个旧 token 并发刷新时只有一个成功。
func (s *UserService) RefreshTokens(ctx context.Context, oldRT string) (*auth.TokenPair, error) {
	var pair auth.TokenPair
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		hash := auth.HashRefreshToken(oldRT)
		now := time.Now()
		res := tx.Model(&models.RefreshToken{}).
			Where("token_hash = ? AND revoked_at IS NULL AND expires_at > ?", hash, now).
			Update("revoked_at", &now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidRefreshToken
		}
		var rec models.RefreshToken
		if err := tx.Where("token_hash = ?", hash).First(&rec).Error; err != nil {
			return err
		}
		var err error
		if pair, err = auth.IssueTokens(rec.UserID, s.cfg); err != nil {
			return err
		}
		return storeRefreshToken(tx, rec.UserID, pair)
	})
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

func storeRefreshToken(db *gorm.DB, userID uint, pair auth.TokenPair) error {
	rec := models.RefreshToken{UserID: userID, TokenHash: auth.HashRefreshToken(pair.RefreshToken), ExpiresAt: pair.RefreshExpiresAt}
	return db.Create(&rec).Error
}

// FindUser 按 ID 查询用户（含头像），实现 auth.UserLookup。
func (s *UserService) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Images").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return &user, nil
}
