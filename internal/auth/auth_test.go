package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rentchat/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid password", "password123", false},
		{"empty password", "", false},
		{"long password", "a" + string(make([]byte, 70)), false}, // bcrypt max is 72 bytes
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("HashPassword() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && hash == "" {
				t.Error("HashPassword() returned empty hash")
			}
		})
	}
}

func TestHashPassword_DifferentHashes(t *testing.T) {
	password := "testpassword"
	hash1, _ := HashPassword(password)
	hash2, _ := HashPassword(password)

	if hash1 == hash2 {
		t.Error("HashPassword() should produce different hashes for same password")
	}
}

func TestVerifyPassword(t *testing.T) {
	password := "testpassword123"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		hash     string
		password string
		want     bool
	}{
		{"correct password", hash, password, true},
		{"wrong password", hash, "wrongpassword", false},
		{"empty password", hash, "", false},
		{"invalid hash", "invalidhash", password, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyPassword(tt.hash, tt.password); got != tt.want {
				t.Errorf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateAccessToken(t *testing.T) {
	tests := []struct {
		name       string
		userID     uint
		secret     string
		ttlMinutes int
		wantErr    bool
	}{
		{"valid token", 1, "test-secret", 15, false},
		{"zero user id", 0, "test-secret", 15, false},
		{"zero ttl", 1, "test-secret", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateAccessToken(tt.userID, tt.secret, tt.ttlMinutes)
			if (err != nil) != tt.wantErr {
				t.Errorf("GenerateAccessToken() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && token == "" {
				t.Error("GenerateAccessToken() returned empty token")
			}
		})
	}
}

func TestParseAccessToken(t *testing.T) {
	secret := "test-secret-key"
	userID := uint(42)

	token, err := GenerateAccessToken(userID, secret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	tests := []struct {
		name    string
		token   string
		secret  string
		wantUID uint
		wantErr bool
	}{
		{"valid token", token, secret, userID, false},
		{"wrong secret", token, "wrong-secret", 0, true},
		{"invalid token", "invalid.token.here", secret, 0, true},
		{"empty token", "", secret, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ParseAccessToken(tt.token, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseAccessToken() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && claims.UserID != tt.wantUID {
				t.Errorf("ParseAccessToken() UserID = %v, want %v", claims.UserID, tt.wantUID)
			}
		})
	}
}

func TestParseAccessToken_Expired(t *testing.T) {
	secret := "test-secret"
	// Generate token with -1 minute TTL (already expired)
	token, err := GenerateAccessToken(1, secret, -1)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := ParseAccessToken(token, secret)
	if err == nil {
		t.Error("ParseAccessToken() should return error for expired token")
	}
	if claims != nil {
		t.Error("ParseAccessToken() should return nil claims for expired token")
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	token1, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}

	token2, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}

	if token1 == "" {
		t.Error("GenerateRefreshToken() returned empty token")
	}

	if token1 == token2 {
		t.Error("GenerateRefreshToken() should generate unique tokens")
	}

	// Check token length (hex encoded 32 bytes = 64 chars)
	if len(token1) != 64 {
		t.Errorf("GenerateRefreshToken() token length = %d, want 64", len(token1))
	}
}

func TestTokenExpiration(t *testing.T) {
	secret := "test-secret"

	fresh, err := generateAccessToken(1, secret, time.Minute)
	if err != nil {
		t.Fatalf("generateAccessToken() error = %v", err)
	}
	if _, err := ParseAccessToken(fresh, secret); err != nil {
		t.Errorf("ParseAccessToken() should succeed for fresh token: %v", err)
	}

	stale, err := generateAccessToken(1, secret, -time.Minute)
	if err != nil {
		t.Fatalf("generateAccessToken() error = %v", err)
	}
	_, err = ParseAccessToken(stale, secret)
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Errorf("ParseAccessToken() error = %v, want ErrTokenExpired", err)
	}
}

func TestParseAccessToken_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	if _, err := ParseAccessToken(token, "secret"); err == nil {
		t.Error("ParseAccessToken() should reject HS512 tokens")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"bearer", "Bearer abc", "abc"},
		{"lowercase", "bearer abc", "abc"},
		{"missing", "", ""},
		{"basic", "Basic abc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := BearerToken(r); got != tt.want {
				t.Errorf("BearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHashRefreshToken(t *testing.T) {
	token, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}
	h1, h2 := HashRefreshToken(token), HashRefreshToken(token)
	if h1 != h2 {
		t.Error("HashRefreshToken() should be deterministic")
	}
	if h1 == token || len(h1) != 64 {
		t.Errorf("HashRefreshToken() = %q, want a 64-char digest different from the token", h1)
	}
}

func TestIssueTokens(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret", AccessTokenTTLMinutes: 15, RefreshTokenTTLDays: 7}
	pair, err := IssueTokens(9, cfg)
	if err != nil {
		t.Fatalf("IssueTokens() error = %v", err)
	}
	claims, err := ParseAccessToken(pair.AccessToken, cfg.JWTSecret)
	if err != nil {
		t.Fatalf("ParseAccessToken() error = %v", err)
	}
	if claims.UserID != 9 {
		t.Errorf("claims.UserID = %d, want 9", claims.UserID)
	}
	if d := time.Until(pair.RefreshExpiresAt); d < 6*24*time.Hour || d > 7*24*time.Hour {
		t.Errorf("RefreshExpiresAt in %v, want about 7 days", d)
	}
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Config{JWTSecret: "mw-secret"}
	users := fakeUsers{3: {ID: 3, Name: "Dilnoza"}}

	r := gin.New()
	r.GET("/me", AuthMiddleware(cfg, users), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetUserID(c)})
	})

	valid, _ := GenerateAccessToken(3, cfg.JWTSecret, 5)
	unknown, _ := GenerateAccessToken(4, cfg.JWTSecret, 5)
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"unknown user", "Bearer " + unknown, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
