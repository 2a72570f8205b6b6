package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WsConnections = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rentchat_ws_connections",
		Help: "Current number of admitted websocket connections",
	}, []string{"protocol"})
	WsMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rentchat_ws_messages_total",
		Help: "Total number of persisted chat messages and comments",
	}, []string{"protocol"})
	WsRejectedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rentchat_ws_rejected_events_total",
		Help: "Inbound websocket events rejected with a status notification",
	}, []string{"status"})
	WsDroppedDeliveries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rentchat_ws_dropped_deliveries_total",
		Help: "Group deliveries dropped because the recipient was closed or its buffer was full",
	})
	PresenceChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rentchat_presence_changes_total",
		Help: "Presence transitions written by the presence tracker",
	}, []string{"state"})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		WsConnections, WsMessagesTotal, WsRejectedEvents, WsDroppedDeliveries,
		PresenceChanges, HttpRequestsTotal, HttpRequestDuration,
	)
}

// GinMiddleware 统计基础请求指标，供 Prometheus 拉取。
// WebSocket 升级请求的耗时等于连接时长，不计入直方图。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		if c.IsWebsocket() {
			return
		}
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
