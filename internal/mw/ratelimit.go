package mw

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type keyLimiter struct {
	lim *rate.Limiter
	ts  time.Time
}

// Limiter 为每个 key 维护一个令牌桶，长时间未使用的 key 会被回收。
// HTTP 中间件按 IP+路由使用它，WebSocket 层按用户（匿名时按连接）使用它。
type Limiter struct {
	mu   sync.Mutex
	m    map[string]*keyLimiter
	r    rate.Limit
	b    int
	ttl  time.Duration
	stop chan struct{}
	once sync.Once
}

// NewLimiter 创建限速器并启动回收 goroutine，停用时需调用 Stop。
func NewLimiter(r rate.Limit, burst int, ttl time.Duration) *Limiter {
	l := &Limiter{m: make(map[string]*keyLimiter), r: r, b: burst, ttl: ttl, stop: make(chan struct{})}
	go l.gc()
	return l
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.m[key]
	if ok {
		kl.ts = time.Now()
		return kl.lim
	}
	lim := rate.NewLimiter(l.r, l.b)
	l.m[key] = &keyLimiter{lim: lim, ts: time.Now()}
	return lim
}

// Allow 消耗 key 的一个令牌。
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Len 返回当前跟踪的 key 数量。
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

func (l *Limiter) gc() {
	interval := l.ttl / 2
	if interval <= 0 || interval > 30*time.Second {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.evict(time.Now())
		}
	}
}

func (l *Limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range l.m {
		if now.Sub(v.ts) > l.ttl {
			delete(l.m, k)
		}
	}
}

// Stop 停止回收 goroutine，可重复调用。
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// RateLimit 返回基于 IP+路由的令牌桶限速中间件。
func RateLimit(l *Limiter) gin.HandlerFunc {
	retryAfter := "1"
	if l.r > 0 {
		if secs := int(1/float64(l.r) + 0.999); secs > 1 {
			retryAfter = strconv.Itoa(secs)
		}
	}
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if !l.Allow(c.ClientIP() + "|" + path) {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
