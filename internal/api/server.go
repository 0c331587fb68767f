package api

import (
	"net/http"
	"strings"
	"time"

	"ai-trend-radar/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, allowOrigins []string, logger zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
	r.Use(requestLogger(logger))
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("💥 handler panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
			"code":  common.ErrCodeInternal,
		})
	}))
	r.Use(cors(allowOrigins))

	setupRoutes(r, handler)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, h *Handler) {
	r.GET("/healthz", h.Health)

	api := r.Group("/api")
	{
		api.GET("/feed", h.GetFeed)

		api.GET("/github", h.ListSource(sourceGitHub))
		api.POST("/github", h.ResolveReadme(sourceGitHub))
		api.GET("/huggingface", h.ListSource(sourceHuggingFace))
		api.POST("/huggingface", h.ResolveReadme(sourceHuggingFace))

		api.POST("/summarize/:provider", h.Summarize)
		api.POST("/deploy", h.Deploy)
		api.GET("/cache/stats", h.CacheStats)

		// 旧路由
		for route, provider := range legacySummaryRoutes {
			api.POST(route, h.SummarizeWith(provider))
		}
		api.POST("/vercel", h.Deploy)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "code": "NOT_FOUND"})
	})
}

var legacySummaryRoutes = map[string]string{
	"/groq":      "groq",
	"/openAI":    "openai",
	"/chatGPT":   "chatgpt",
	"/anthropic": "anthropic",
	"/gemini":    "gemini",
}

// requestLogger 用 zerolog 输出访问日志，不记录请求头 (里面有调用方的 API Key)
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		evt := logger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			evt = logger.Error()
		case status >= http.StatusBadRequest:
			evt = logger.Warn()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("dur", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("http")
	}
}

// cors CORS middleware for API endpoints
func cors(allowOrigins []string) gin.HandlerFunc {
	allowAll := len(allowOrigins) == 0
	allowed := make(map[string]bool, len(allowOrigins))
	for _, o := range allowOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, x-api-key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
