package server

import (
	"net/http"

	"rentchat/internal/auth"
	"rentchat/internal/config"
	"rentchat/internal/metrics"
	"rentchat/internal/mw"
	"rentchat/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, h *Handler, hub *ws.Hub, limiter *mw.Limiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env, cfg.CORSAllowedOrigins))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	// 控制单个 IP+路由的速率；WebSocket 入站事件由 Hub 按连接限速。
	api.Use(mw.RateLimit(limiter))

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.RefreshToken)
	api.GET("/announcements/:id/comments", h.ListComments)

	// 需要 Bearer Token 的业务接口。
	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(cfg, h.userSvc))
	authed.GET("/chat/rooms", h.ListRooms)
	authed.GET("/chat/rooms/:id", h.RoomDetail)
	authed.GET("/chat/rooms/:id/messages", h.ListMessages)

	hub.Routes(r)
	return r
}
