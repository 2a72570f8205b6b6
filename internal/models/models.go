package models

import "time"

type User struct {
	ID           uint    `gorm:"primaryKey"`
	Name         string  `gorm:"size:255"`
	PhoneNumber  string  `gorm:"uniqueIndex;size:13;not null"`
	PasswordHash string  `gorm:"not null"`
	Images       []Image `gorm:"many2many:user_images"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Presence 是用户在线状态的独立表，只由在线状态追踪器在连接/断开时写入。
type Presence struct {
	UserID    uint `gorm:"primaryKey;autoIncrement:false"`
	IsOnline  bool `gorm:"not null;default:false"`
	UpdatedAt time.Time
}

func (Presence) TableName() string { return "user_presences" }

type Image struct {
	ID   uint   `gorm:"primaryKey"`
	UUID string `gorm:"uniqueIndex;size:36;not null"`
	Name string `gorm:"size:255"`
	Path string `gorm:"size:512;not null"`
}

// Room 的成员在创建时确定，之后不再增删。
type Room struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;size:255;not null"`
	Users     []User `gorm:"many2many:room_users"`
	CreatedAt time.Time
}

type Message struct {
	ID         uint   `gorm:"primaryKey"`
	RoomID     uint   `gorm:"index:idx_msg_room_id;not null"`
	SenderID   uint   `gorm:"index;not null"`
	ReceiverID uint   `gorm:"index;not null"`
	Message    string `gorm:"type:text;not null"`
	IsRead     bool   `gorm:"index;not null;default:false"`
	CreatedAt  time.Time
}

type Announcement struct {
	ID        uint   `gorm:"primaryKey"`
	Title     string `gorm:"size:255;not null"`
	UserID    uint   `gorm:"index;not null"`
	CreatedAt time.Time
}

type Comment struct {
	ID             uint   `gorm:"primaryKey"`
	AnnouncementID uint   `gorm:"index;not null"`
	UserID         uint   `gorm:"index;not null"`
	User           User   `gorm:"foreignKey:UserID"`
	Comment        string `gorm:"type:text"`
	CreatedAt      time.Time
}

// RefreshToken 只保存 token 的摘要，轮换时旧记录被吊销。
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	TokenHash string    `gorm:"uniqueIndex;size:64;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}

// All 列出需要自动迁移的全部模型。
func All() []interface{} {
	return []interface{}{
		&User{}, &Image{}, &Presence{}, &Room{}, &Message{},
		&Announcement{}, &Comment{}, &RefreshToken{},
	}
}
