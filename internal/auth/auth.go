package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rentchat/internal/config"
	"rentchat/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Claims 与既有客户端兼容：用户 ID 放在 user_id 声明里。
type Claims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// UserLookup 按 ID 解析用户，由 service.UserService 实现。
type UserLookup interface {
	FindUser(ctx context.Context, id uint) (*models.User, error)
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func VerifyPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func GenerateAccessToken(userID uint, secret string, ttlMinutes int) (string, error) {
	return generateAccessToken(userID, secret, time.Duration(ttlMinutes)*time.Minute)
}

func generateAccessToken(userID uint, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseAccessToken(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

func GenerateRefreshToken() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashRefreshToken 返回 refresh token 的 SHA-256 摘要；数据库只保存摘要。
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenPair 是一次签发的 access/refresh token。
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"-"`
}

// IssueTokens 按配置的有效期为用户签发一对新 token。
func IssueTokens(userID uint, cfg config.Config) (TokenPair, error) {
	at, err := GenerateAccessToken(userID, cfg.JWTSecret, cfg.AccessTokenTTLMinutes)
	if err != nil {
		return TokenPair{}, err
	}
	rt, err := GenerateRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      at,
		RefreshToken:     rt,
		RefreshExpiresAt: time.Now().Add(time.Duration(cfg.RefreshTokenTTLDays) * 24 * time.Hour),
	}, nil
}

// BearerToken 从 Authorization 头中取出 Bearer token。
func BearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("Bearer "):])
}

func AuthMiddleware(cfg config.Config, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := BearerToken(c.Request)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := ParseAccessToken(tokenStr, cfg.JWTSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		user, err := users.FindUser(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		c.Set("userID", user.ID)
		c.Set("user", *user)
		c.Next()
	}
}

func GetUserID(c *gin.Context) uint {
	if v, ok := c.Get("userID"); ok {
		if id, ok2 := v.(uint); ok2 {
			return id
		}
	}
	return 0
}
