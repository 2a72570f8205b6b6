package server

import (
	"time"

	"rentchat/internal/config"
	"rentchat/internal/layer"
	"rentchat/internal/mw"
	"rentchat/internal/service"
	"rentchat/internal/ws"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// App 是装配好的服务：HTTP 路由与 WebSocket Hub。
type App struct {
	Engine  *gin.Engine
	Hub     *ws.Hub
	limiter *mw.Limiter
}

// Close 释放 HTTP 限速器的后台回收；Hub 由 Shutdown 单独关闭。
func (a *App) Close() {
	a.limiter.Stop()
}

// Build 按配置装配服务层、通道层、Hub 和路由。
func Build(cfg config.Config, gdb *gorm.DB) (*App, error) {
	presence := service.NewPresenceService(gdb)
	svc := ws.Services{
		Users:    service.NewUserService(gdb, cfg),
		Rooms:    service.NewRoomService(gdb, presence),
		Messages: service.NewMessageService(gdb),
		Comments: service.NewCommentService(gdb),
		Presence: presence,
	}
	registry := ws.NewRegistry()
	l, err := layer.New(cfg, func(group string, payload []byte) { registry.Deliver(group, payload) })
	if err != nil {
		return nil, err
	}
	hub := ws.NewHub(cfg, registry, l, svc)
	h := NewHandler(svc.Users, svc.Rooms, svc.Messages, svc.Comments)
	limiter := mw.NewLimiter(rate.Every(time.Second/20), 40, 10*time.Minute)
	return &App{Engine: SetupRouter(cfg, h, hub, limiter), Hub: hub, limiter: limiter}, nil
}
