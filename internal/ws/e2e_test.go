package ws

import (
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"rentchat/internal/auth"
	"rentchat/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jwtDate(t time.Time) *jwt.NumericDate { return jwt.NewNumericDate(t) }

func signClaims(t *testing.T, claims auth.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func startServer(t *testing.T, f *fixture) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	f.hub.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		// 等待服务端完成每个连接的清理，再关闭数据库
		require.Eventually(t, func() bool { return len(f.hub.registry.Clients()) == 0 }, 3*time.Second, 10*time.Millisecond)
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var m frame
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestEndToEnd_PresenceProtocolSend(t *testing.T) {
	f := newFixture(t)
	f.createUsers(t, 3, 7)
	base := startServer(t, f)

	token7, err := auth.GenerateAccessToken(7, testSecret, 15)
	require.NoError(t, err)
	token3, err := auth.GenerateAccessToken(3, testSecret, 15)
	require.NoError(t, err)

	c3 := dial(t, base+"/ws/chat/?token="+token3)
	c7 := dial(t, base+"/ws/chat/?token="+token7)
	require.Eventually(t, func() bool {
		return f.hub.registry.Count(UserGroup(3)) == 1 && f.hub.registry.Count(UserGroup(7)) == 1
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, c7.WriteJSON(map[string]interface{}{"message": "hi", "receiver": 3}))

	for _, conn := range []*websocket.Conn{c7, c3} {
		assert.Equal(t, typeGroupCreated, readFrame(t, conn)["type"])
		m := readFrame(t, conn)
		assert.Equal(t, typeChatMessage, m["type"])
		body := m["message"].(map[string]interface{})
		assert.Equal(t, "hi", body["message"])
		assert.Equal(t, float64(7), body["sender"])
		assert.Equal(t, float64(3), body["receiver"])
	}

	var stored models.Message
	require.NoError(t, f.db.Where("sender_id = ? AND receiver_id = ?", 7, 3).First(&stored).Error)
	assert.False(t, stored.IsRead)
	assert.Equal(t, "hi", stored.Message)
}

func TestEndToEnd_AnonymousConnectionIsAccepted(t *testing.T) {
	f := newFixture(t)
	base := startServer(t, f)

	conn := dial(t, base+"/ws/chat/?token=not-a-jwt")
	m := readFrame(t, conn)
	assert.Equal(t, typeNotAllowed, m["type"])
	assert.Equal(t, "401", m["status"])
}

func TestEndToEnd_BearerHeaderAndCommentStream(t *testing.T) {
	f := newFixture(t)
	f.createUsers(t, 1)
	ann := models.Announcement{Title: "flat", UserID: 1}
	require.NoError(t, f.db.Create(&ann).Error)
	base := startServer(t, f)

	token, err := auth.GenerateAccessToken(1, testSecret, 15)
	require.NoError(t, err)
	header := map[string][]string{"Authorization": {"Bearer " + token}}
	url := base + "/ws/announcement/" + strconv.FormatUint(uint64(ann.ID), 10) + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.WriteJSON(map[string]string{"text": "is it free?"}))
	m := readFrame(t, conn)
	comment := m["message"].(map[string]interface{})
	assert.Equal(t, "is it free?", comment["comment"])
}

func TestEndToEnd_InvalidAnnouncementPath(t *testing.T) {
	f := newFixture(t)
	base := startServer(t, f)
	_, resp, err := websocket.DefaultDialer.Dial(base+"/ws/announcement/abc/", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}
