package ws

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"rentchat/internal/metrics"
	"rentchat/internal/service"

	"github.com/gin-gonic/gin"
)

// commentStream 处理 /ws/announcement/:announcementId/ 评论流。
type commentStream struct {
	hub            *Hub
	announcementID uint
}

// ServeComments 打开房源评论流。匿名连接可以订阅，但不能发表评论。
func (h *Hub) ServeComments(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("announcementId"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "announcement not found"})
		return
	}
	h.serve(c, &commentStream{hub: h, announcementID: uint(id)})
}

func (s *commentStream) kind() protocolKind { return protocolComments }

func (s *commentStream) group() string { return CommentsGroup(s.announcementID) }

func (s *commentStream) admit(_ context.Context, c *Client) {
	s.hub.registry.Register(s.group(), c)
}

func (s *commentStream) handle(ctx context.Context, c *Client, ev event) error {
	in, ok := ev.(commentEvent)
	if !ok {
		return badRequest("Unsupported event")
	}
	if c.Identity().IsAnonymous() {
		return unauthenticated()
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return badRequest("text is required")
	}
	comment, err := s.hub.svc.Comments.Append(ctx, s.announcementID, c.Identity().UserID, text)
	if err != nil {
		return err
	}
	metrics.WsMessagesTotal.WithLabelValues(string(protocolComments)).Inc()
	_ = s.hub.broadcaster.Publish(ctx, s.group(), envelope{Message: service.ToCommentDTO(*comment)})
	return nil
}

func (s *commentStream) leave(context.Context, *Client) {}

func (s *commentStream) rejection(e *EventError) interface{} {
	return statusNotice{Status: e.Status, Message: e.Message}
}
