package api

import (
	"net/http"
	"strings"

	"ai-trend-radar/internal/cache"
	"ai-trend-radar/internal/common"
	"ai-trend-radar/internal/domain"
	"ai-trend-radar/internal/port"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	sourceGitHub      = domain.SourceGitHub
	sourceHuggingFace = domain.SourceHuggingFace
)

// Dependencies 处理器依赖的服务，Deployer 可以为 nil (未配置部署)
type Dependencies struct {
	Aggregator port.Aggregator
	Sources    map[domain.Source]port.Source
	Resolvers  map[domain.Source]port.ReadmeResolver
	Summarizer port.Summarizer
	Deployer   port.Deployer
	CacheStats func() map[string]cache.Stats
}

type Handler struct {
	deps   Dependencies
	logger zerolog.Logger
}

func NewHandler(deps Dependencies, logger zerolog.Logger) *Handler {
	return &Handler{deps: deps, logger: logger}
}

type urlRequest struct {
	URL string `json:"url"`
}

type summarizeRequest struct {
	Text string `json:"text"`
}

// writeError 统一的错误响应 {error, code}
func (h *Handler) writeError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	evt := h.logger.Warn()
	if status >= http.StatusInternalServerError {
		evt = h.logger.Error()
	}
	evt.Err(err).Str("path", c.Request.URL.Path).Int("status", status).Msg("❌ 请求失败")

	c.JSON(status, gin.H{
		"error": common.PublicMessage(err),
		"code":  common.CodeOf(err),
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetFeed 合并后的榜单，数据源失败时也返回 200
func (h *Handler) GetFeed(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Aggregator.Aggregate(c.Request.Context()))
}

// ListSource 单个数据源的榜单，失败时返回空数组
func (h *Handler) ListSource(name domain.Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		src, ok := h.deps.Sources[name]
		if !ok {
			c.JSON(http.StatusOK, []domain.FeedItem{})
			return
		}
		items, err := src.Fetch(c.Request.Context())
		if err != nil {
			h.logger.Warn().Err(err).Str("source", string(name)).Msg("⚠️ 数据源失败，返回空列表")
			items = []domain.FeedItem{}
		}
		if items == nil {
			items = []domain.FeedItem{}
		}
		c.JSON(http.StatusOK, items)
	}
}

// ResolveReadme POST {url} => {readme}
func (h *Handler) ResolveReadme(name domain.Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req urlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.writeError(c, common.WrapError(common.ErrCodeInvalidInput, "Invalid JSON body", err))
			return
		}
		if strings.TrimSpace(req.URL) == "" {
			h.writeError(c, common.NewError(common.ErrCodeInvalidInput, "URL is required"))
			return
		}
		resolver, ok := h.deps.Resolvers[name]
		if !ok {
			h.writeError(c, common.NewError(common.ErrCodeNotConfigured, "README resolver is not configured"))
			return
		}

		text, err := resolver.ResolveReadme(c.Request.Context(), req.URL)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"readme": text})
	}
}

// Summarize POST /api/summarize/:provider
func (h *Handler) Summarize(c *gin.Context) {
	h.summarize(c, c.Param("provider"))
}

// SummarizeWith 固定厂商的旧路由
func (h *Handler) SummarizeWith(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.summarize(c, provider)
	}
}

func (h *Handler) summarize(c *gin.Context, provider string) {
	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, common.WrapError(common.ErrCodeInvalidInput, "Invalid JSON body", err))
		return
	}

	summary, err := h.deps.Summarizer.Summarize(c.Request.Context(), provider, req.Text, apiKeyFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// apiKeyFrom 优先取 x-api-key，其次是 Authorization: Bearer
func apiKeyFrom(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader("x-api-key")); key != "" {
		return key
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// Deploy POST /api/deploy
func (h *Handler) Deploy(c *gin.Context) {
	if h.deps.Deployer == nil {
		h.writeError(c, common.NewError(common.ErrCodeNotConfigured, "Deployment is not configured"))
		return
	}
	result, err := h.deps.Deployer.Trigger(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CacheStats 各缓存的命中统计
func (h *Handler) CacheStats(c *gin.Context) {
	stats := map[string]cache.Stats{}
	if h.deps.CacheStats != nil {
		stats = h.deps.CacheStats()
	}
	c.JSON(http.StatusOK, stats)
}
