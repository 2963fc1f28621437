package http

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"reze-chat/internal/service"
)

const requestIDHeader = "X-Request-ID"

// NewRouter configura el router de Gin con middlewares y rutas del chat y del sitio.
func NewRouter(
	logger *zap.Logger,
	chatH *ChatHandler,
	siteH *SiteHandler,
	limiter service.ExchangeRateLimiter,
) *gin.Engine {
	r := gin.New()

	r.Use(requestIDMiddleware(), zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/robots.txt", siteH.Robots)
	r.GET("/api/robots", siteH.Robots)
	r.GET("/sitemap.xml", siteH.Sitemap)
	r.GET("/api/sitemap", siteH.Sitemap)

	chat := r.Group("/api/chat", jsonContentTypeMiddleware())
	chat.GET("/suggestions", chatH.Suggestions)
	chat.POST("/sessions", rateLimitMiddleware(limiter), chatH.CreateSession)
	chat.GET("/sessions/:id", chatH.GetSession)
	chat.DELETE("/sessions/:id", chatH.DeleteSession)
	chat.POST("/sessions/:id/messages", rateLimitMiddleware(limiter), chatH.PostMessage)
	chat.POST("/sessions/:id/regenerate", rateLimitMiddleware(limiter), chatH.Regenerate)
	chat.GET("/sessions/:id/messages/:index/copy", chatH.CopyMessage)

	return r
}

// requestIDMiddleware propaga X-Request-ID o genera uno nuevo.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString("request_id")),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

// rateLimitMiddleware limita por IP y por sesión las rutas que disparan turnos contra el gateway.
func rateLimitMiddleware(limiter service.ExchangeRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		decision := limiter.Allow(c.Request.Context(), c.ClientIP(), c.Param("id"))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if decision.Allowed {
			c.Next()
			return
		}
		if decision.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(decision.RetryAfter.Seconds()))))
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, slow down"})
	}
}
