package service

import (
	"context"
	"fmt"
	"testing"

	"rentchat/internal/config"
	"rentchat/internal/db"
	"rentchat/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupTestDB 创建内存 SQLite 数据库并完成迁移。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Connect("sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func createUsers(t *testing.T, gdb *gorm.DB, ids ...uint) {
	t.Helper()
	for _, id := range ids {
		u := models.User{ID: id, Name: fmt.Sprintf("user%d", id), PhoneNumber: fmt.Sprintf("+998%09d", id), PasswordHash: "x"}
		require.NoError(t, gdb.Create(&u).Error)
	}
}

type services struct {
	users    *UserService
	rooms    *RoomService
	messages *MessageService
	presence *PresenceService
	comments *CommentService
}

func newServices(gdb *gorm.DB) services {
	presence := NewPresenceService(gdb)
	cfg := config.Config{JWTSecret: "test-secret", AccessTokenTTLMinutes: 15, RefreshTokenTTLDays: 7}
	return services{
		users:    NewUserService(gdb, cfg),
		rooms:    NewRoomService(gdb, presence),
		messages: NewMessageService(gdb),
		presence: presence,
		comments: NewCommentService(gdb),
	}
}

var ctx = context.Background()
