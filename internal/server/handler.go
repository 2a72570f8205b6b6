package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"rentchat/internal/auth"
	"rentchat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	userSvc    *service.UserService
	roomSvc    *service.RoomService
	msgSvc     *service.MessageService
	commentSvc *service.CommentService
}

func NewHandler(userSvc *service.UserService, roomSvc *service.RoomService, msgSvc *service.MessageService, commentSvc *service.CommentService) *Handler {
	return &Handler{userSvc: userSvc, roomSvc: roomSvc, msgSvc: msgSvc, commentSvc: commentSvc}
}

// Register 处理手机号注册请求。
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		PhoneNumber string `json:"phone_number"`
		Password    string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if req.PhoneNumber == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len(req.Name) > 255 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name"})
		return
	}
	if len(req.Password) < 4 || len(req.Password) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password"})
		return
	}
	result, err := h.userSvc.Register(c.Request.Context(), req.Name, req.PhoneNumber, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPhone):
			c.JSON(http.StatusBadRequest, gin.H{"error": "phone number must start with +998 and be 13 characters long"})
		case errors.Is(err, service.ErrPhoneTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "phone number taken"})
		default:
			log.Error().Err(err).Str("phone_number", req.PhoneNumber).Msg("register")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

// Login 处理登录请求。
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		PhoneNumber string `json:"phone_number"`
		Password    string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if req.PhoneNumber == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.userSvc.Login(c.Request.Context(), req.PhoneNumber, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.Error().Err(err).Str("phone_number", req.PhoneNumber).Msg("login")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"user":          gin.H{"id": result.User.ID, "name": result.User.Name, "phone_number": result.User.PhoneNumber},
	})
}

// RefreshToken 处理 token 刷新请求。
func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.userSvc.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		log.Error().Err(err).Msg("refresh token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListRooms 返回当前用户的房间，每个房间只附带未读消息。
func (h *Handler) ListRooms(c *gin.Context) {
	userID := auth.GetUserID(c)
	rooms, err := h.roomSvc.ListForUser(c.Request.Context(), userID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("list rooms")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rooms"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// RoomDetail 返回房间详情及全部消息，仅成员可见。
func (h *Handler) RoomDetail(c *gin.Context) {
	roomID, ok := parseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	userID := auth.GetUserID(c)
	room, err := h.roomSvc.Detail(c.Request.Context(), roomID, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		case errors.Is(err, service.ErrNotRoomMember):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		default:
			log.Error().Err(err).Uint("room_id", roomID).Msg("room detail")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		}
		return
	}
	c.JSON(http.StatusOK, room)
}

// ListMessages 分页返回房间消息，仅成员可见。
func (h *Handler) ListMessages(c *gin.Context) {
	roomID, ok := parseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	member, err := h.roomSvc.IsMember(c.Request.Context(), roomID, auth.GetUserID(c))
	if err != nil {
		log.Error().Err(err).Uint("room_id", roomID).Msg("list messages membership")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	var beforeID uint
	if bid := c.Query("before_id"); bid != "" {
		if v, err := strconv.Atoi(bid); err == nil && v > 0 {
			beforeID = uint(v)
		}
	}
	msgs, err := h.msgSvc.ListByRoom(c.Request.Context(), roomID, limit, beforeID)
	if err != nil {
		log.Error().Err(err).Uint("room_id", roomID).Msg("list messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": service.ToMessageDTOs(msgs)})
}

// ListComments 返回房源评论，公开接口。
func (h *Handler) ListComments(c *gin.Context) {
	annID, ok := parseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid announcement id"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	comments, err := h.commentSvc.List(c.Request.Context(), annID, limit)
	if err != nil {
		log.Error().Err(err).Uint("announcement_id", annID).Msg("list comments")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list comments"})
		return
	}
	out := make([]service.CommentDTO, 0, len(comments))
	for _, cm := range comments {
		out = append(out, service.ToCommentDTO(cm))
	}
	c.JSON(http.StatusOK, gin.H{"comments": out})
}

func parseID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}
