package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// Identity 是握手阶段解析出的连接身份。UserID 为 0 表示匿名。
type Identity struct {
	UserID uint
	Name   string
}

// Anonymous 是所有握手失败路径的统一结果。
var Anonymous = Identity{}

func (i Identity) IsAnonymous() bool { return i.UserID == 0 }

// TokenFromRequest 优先读取 ?token= 查询参数，其次是 Authorization 头。
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return BearerToken(r)
}

// Handshake 校验 token 并解析用户。任何失败都降级为匿名身份并记录日志，
// 不会向调用方返回错误：传输层连接照常建立，鉴权在每条消息上执行。
func Handshake(ctx context.Context, users UserLookup, secret, token string) Identity {
	if token == "" {
		return Anonymous
	}
	claims, err := ParseAccessToken(token, secret)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			log.Debug().Msg("handshake: token expired")
		case errors.Is(err, jwt.ErrTokenMalformed):
			log.Debug().Msg("handshake: token malformed")
		default:
			log.Warn().Err(err).Msg("handshake: token rejected")
		}
		return Anonymous
	}
	if claims.UserID == 0 {
		log.Debug().Msg("handshake: token without user id")
		return Anonymous
	}
	user, err := users.FindUser(ctx, claims.UserID)
	if err != nil || user == nil {
		log.Warn().Err(err).Uint("user_id", claims.UserID).Msg("handshake: user lookup failed")
		return Anonymous
	}
	return Identity{UserID: user.ID, Name: user.Name}
}
