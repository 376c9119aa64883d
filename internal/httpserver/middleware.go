package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"projectflow/internal/handler"
	"projectflow/pkg/metrics"
	"projectflow/pkg/trace"
	"projectflow/pkg/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdempotencyHeader lets clients retry a create without creating twice.
const IdempotencyHeader = "Idempotency-Key"

// OnceGuard is satisfied by *util.Deduper.
type OnceGuard interface {
	AcquireOnce(ctx context.Context, scope, id string) bool
	Release(ctx context.Context, scope, id string)
}

// TraceMiddleware 为每个请求分配 trace_id，沿用客户端传入的值
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := strings.TrimSpace(c.GetHeader(trace.HeaderName()))
		if traceID == "" {
			traceID = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.HeaderName(), traceID)
		c.Next()
	}
}

// RequestLogMiddleware 请求日志 + 延迟指标
func RequestLogMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), latency)

		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.String("trace_id", trace.FromContext(c.Request.Context())),
		)
	}
}

func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		userID, err := util.ParseJWT(token, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		// store user_id in context so handlers can use it
		c.Set(handler.UserIDKey, userID)
		c.Next()
	}
}

// IdempotencyMiddleware rejects a repeated Idempotency-Key for the same
// user, method and request path with 409. A request that fails releases its key so the
// client can retry it. Requests without the header pass through.
func IdempotencyMiddleware(guard OnceGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
		if guard == nil || key == "" {
			c.Next()
			return
		}
		scope := "http:" + c.GetString(handler.UserIDKey) + ":" + c.Request.Method + " " + c.Request.URL.Path
		ctx := c.Request.Context()
		if !guard.AcquireOnce(ctx, scope, key) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error": "request with this Idempotency-Key was already processed",
				"code":  "duplicate_request",
			})
			return
		}
		c.Next()
		if c.Writer.Status() >= http.StatusBadRequest {
			guard.Release(ctx, scope, key)
		}
	}
}
