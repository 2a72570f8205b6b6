package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestLimiter_AllowPerKey(t *testing.T) {
	l := NewLimiter(rate.Every(time.Hour), 2, time.Minute)
	defer l.Stop()

	for i := 0; i < 2; i++ {
		if !l.Allow("a") {
			t.Fatalf("Allow(a) #%d = false, want true", i+1)
		}
	}
	if l.Allow("a") {
		t.Error("Allow(a) after burst = true, want false")
	}
	if !l.Allow("b") {
		t.Error("Allow(b) = false, keys must not share a bucket")
	}
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
}

func TestLimiter_EvictsIdleKeys(t *testing.T) {
	l := NewLimiter(rate.Every(time.Hour), 1, time.Minute)
	defer l.Stop()
	l.Allow("a")
	l.evict(time.Now().Add(2 * time.Minute))
	if l.Len() != 0 {
		t.Errorf("Len() after evict = %d, want 0", l.Len())
	}
	l.Stop()
	l.Stop()
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewLimiter(rate.Every(time.Hour), 1, time.Minute)
	defer l.Stop()
	r := gin.New()
	r.Use(RateLimit(l))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests && w.Header().Get("Retry-After") == "" {
			t.Error("429 response without Retry-After")
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name    string
		env     string
		allowed []string
		origin  string
		host    string
		want    string
	}{
		{"dev allows any origin", "dev", nil, "http://localhost:3000", "api.example.com", "http://localhost:3000"},
		{"same host", "prod", nil, "https://api.example.com", "api.example.com", "https://api.example.com"},
		{"substring host rejected", "prod", nil, "https://api.example.com.evil.io", "api.example.com", ""},
		{"allow list", "prod", []string{"https://app.example.com/"}, "https://app.example.com", "api.example.com", "https://app.example.com"},
		{"unknown origin", "prod", []string{"https://app.example.com"}, "https://other.io", "api.example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORS(tt.env, tt.allowed))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Host = tt.host
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("dev", nil))
	r.OPTIONS("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
}
