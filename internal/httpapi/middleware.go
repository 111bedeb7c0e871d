package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// LoggerMiddleware logs method, path, status, duration and client IP once per request.
func LoggerMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if query := c.Request.URL.RawQuery; query != "" {
			fields = append(fields, zap.String("query", query))
		}

		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
			log.Error("HTTP request with errors", fields...)
			return
		}
		log.Info("HTTP request", fields...)
	}
}

// BearerAuth rejects requests without "Authorization: Bearer <token>" matching token.
func BearerAuth(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			fail(c, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}

		given := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if len(expected) == 0 || given == "" || subtle.ConstantTimeCompare([]byte(given), expected) != 1 {
			fail(c, http.StatusForbidden, "Invalid token")
			return
		}
		c.Next()
	}
}

// ClientLimiter allows one request per window for each client IP.
type ClientLimiter struct {
	window time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClientLimiter builds a limiter with burst 1 per client.
func NewClientLimiter(window time.Duration) *ClientLimiter {
	return &ClientLimiter{window: window, limiters: map[string]*rate.Limiter{}}
}

// Allow consumes a token for key if one is available.
func (l *ClientLimiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.window), 1)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Middleware answers 429 once a client exceeds its allowance.
func (l *ClientLimiter) Middleware() gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(l.window.Seconds()))
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.Header("Retry-After", retryAfter)
			fail(c, http.StatusTooManyRequests, "Too many requests, please try again after 15 mins.")
			return
		}
		c.Next()
	}
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
