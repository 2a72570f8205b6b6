package db

import (
	"strings"
	"time"

	"rentchat/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

func dialector(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, sqlitePrefix) {
		return sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix))
	}
	return postgres.Open(dsn)
}

// Connect 负责建立数据库连接，并带有简单的重试来等待容器就绪。
// 以 "sqlite:" 开头的 DSN 使用 SQLite，便于本地开发和测试。
func Connect(dsn string) (*gorm.DB, error) {
	var gdb *gorm.DB
	var err error
	isSQLite := strings.HasPrefix(dsn, sqlitePrefix)
	for i := 0; i < 10; i++ {
		gdb, err = gorm.Open(dialector(dsn), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		if err == nil {
			sqlDB, err2 := gdb.DB()
			if err2 == nil {
				if isSQLite {
					// SQLite 只允许单写连接，内存库在多连接下也不共享数据。
					sqlDB.SetMaxOpenConns(1)
				} else {
					sqlDB.SetMaxIdleConns(5)
					sqlDB.SetMaxOpenConns(20)
					sqlDB.SetConnMaxLifetime(time.Hour)
				}
				return gdb, nil
			}
			err = err2
		}
		if isSQLite {
			break
		}
		time.Sleep(time.Duration(500+i*200) * time.Millisecond)
	}
	return nil, err
}

// Migrate 自动迁移全部表结构。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(models.All()...)
}
