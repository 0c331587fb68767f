package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"ai-trend-radar/internal/adapter/filter"
	"ai-trend-radar/internal/adapter/readme"
	"ai-trend-radar/internal/cache"
	"ai-trend-radar/internal/common"
	"ai-trend-radar/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBaseURL Hugging Face 站点地址
	DefaultBaseURL = "https://huggingface.co"
	// UserAgent 对上游表明身份
	UserAgent = "ai-trend-radar/1.0"
	// DefaultMaxItems 合并后最多保留的模型数
	DefaultMaxItems = 24
)

// Category 一个按 pipeline tag 划分的查询
type Category struct {
	PipelineTag string
	Limit       int
}

// DefaultCategories 默认查询的内容分类
var DefaultCategories = []Category{
	{PipelineTag: "text-generation", Limit: 8},
	{PipelineTag: "text-classification", Limit: 4},
	{PipelineTag: "image-to-text", Limit: 4},
}

// apiModel /api/models 返回的单条记录
type apiModel struct {
	ID           string          `json:"id"`
	ModelID      string          `json:"modelId"`
	Likes        int             `json:"likes"`
	PipelineTag  string          `json:"pipeline_tag"`
	LibraryName  string          `json:"library_name"`
	Library      json.RawMessage `json:"library"`
	LastModified *time.Time      `json:"lastModified"`
	CreatedAt    *time.Time      `json:"createdAt"`
	Description  string          `json:"description"`
	CardData     *struct {
		Description string `json:"description"`
	} `json:"cardData"`
}

func (m apiModel) key() string {
	if m.ID != "" {
		return m.ID
	}
	return m.ModelID
}

// library library 字段可能是字符串也可能是数组，只取第一个
func (m apiModel) library() string {
	if m.LibraryName != "" {
		return m.LibraryName
	}
	if len(m.Library) == 0 {
		return ""
	}
	var list []string
	if err := json.Unmarshal(m.Library, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	var single string
	if err := json.Unmarshal(m.Library, &single); err == nil {
		return single
	}
	return ""
}

// shortDescription 上游自带的简短描述
func (m apiModel) shortDescription() string {
	if m.CardData != nil && strings.TrimSpace(m.CardData.Description) != "" {
		return strings.TrimSpace(m.CardData.Description)
	}
	return strings.TrimSpace(m.Description)
}

// Fetcher 实现了 port.Source 和 port.ReadmeResolver 接口
type Fetcher struct {
	client     *http.Client
	baseURL    string
	categories []Category
	maxItems   int
	cache      *cache.TTLCache[string, []domain.FeedItem]
	recency    *filter.RecencyFilter
	resolver   *readme.HTTPResolver
	logger     zerolog.Logger
}

// Option Fetcher 构造选项
type Option func(*Fetcher)

// WithBaseURL 替换站点地址 (测试服务器)
func WithBaseURL(base string) Option {
	return func(f *Fetcher) {
		if base != "" {
			f.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithCategories 替换查询的分类
func WithCategories(categories []Category) Option {
	return func(f *Fetcher) {
		if len(categories) > 0 {
			f.categories = categories
		}
	}
}

// WithMaxItems 设置合并后的上限
func WithMaxItems(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxItems = n
		}
	}
}

// WithRecencyFilter 替换时间窗口
func WithRecencyFilter(r *filter.RecencyFilter) Option {
	return func(f *Fetcher) {
		if r != nil {
			f.recency = r
		}
	}
}

// NewFetcher 创建 Hugging Face 数据源
func NewFetcher(timeout, readmeTimeout time.Duration, c *cache.TTLCache[string, []domain.FeedItem], logger zerolog.Logger, opts ...Option) *Fetcher {
	if c == nil {
		c = cache.New[string, []domain.FeedItem](cache.DefaultTTL)
	}
	f := &Fetcher{
		client:     &http.Client{Timeout: timeout},
		baseURL:    DefaultBaseURL,
		categories: DefaultCategories,
		maxItems:   DefaultMaxItems,
		cache:      c,
		recency:    filter.NewRecencyFilter(7),
		logger:     logger.With().Str("source", string(domain.SourceHuggingFace)).Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}

	host := "huggingface.co"
	if u, err := url.Parse(f.baseURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	f.resolver = readme.NewHTTPResolver(f.client, readmeTimeout, UserAgent, host)
	return f
}

// Name 数据源名称
func (f *Fetcher) Name() domain.Source {
	return domain.SourceHuggingFace
}

// categoryURL 构造单个分类的查询地址
func (f *Fetcher) categoryURL(c Category) string {
	q := url.Values{}
	q.Set("pipeline_tag", c.PipelineTag)
	q.Set("sort", "likes")
	q.Set("direction", "-1")
	q.Set("limit", fmt.Sprintf("%d", c.Limit))
	return f.baseURL + "/api/models?" + q.Encode()
}

func (f *Fetcher) cacheKey() string {
	parts := make([]string, 0, len(f.categories))
	for _, c := range f.categories {
		parts = append(parts, f.categoryURL(c))
	}
	return strings.Join(parts, "|")
}

// Fetch 并发查询所有分类，合并、去重、按时效过滤后按 like 倒序截断
// 单个分类失败只会让该分类缺席；全部失败时返回空切片且不写缓存
func (f *Fetcher) Fetch(ctx context.Context) ([]domain.FeedItem, error) {
	key := f.cacheKey()

	// 1. 先查缓存
	if items, ok := f.cache.Get(key); ok {
		f.logger.Debug().Int("count", len(items)).Msg("✅ HUGGINGFACE: 命中缓存")
		return items, nil
	}
	f.logger.Debug().Int("categories", len(f.categories)).Msg("🔄 HUGGINGFACE: 缓存未命中，开始抓取")

	// 2. 并发抓取所有分类
	results := make([][]apiModel, len(f.categories))
	errs := make([]error, len(f.categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range f.categories {
		i, c := i, c
		g.Go(func() error {
			models, err := f.fetchCategory(gctx, c)
			if err != nil {
				f.logger.Warn().Err(err).Str("pipeline_tag", c.PipelineTag).Msg("❌ HUGGINGFACE: 分类请求失败")
				errs[i] = err
				return nil // 单个分类失败不影响其他分类
			}
			results[i] = models
			return nil
		})
	}
	_ = g.Wait()

	// 3. 按分类顺序合并
	var all []apiModel
	succeeded := 0
	for i := range f.categories {
		if errs[i] != nil {
			continue
		}
		succeeded++
		all = append(all, results[i]...)
	}
	if succeeded == 0 {
		return []domain.FeedItem{}, common.WrapError(common.ErrCodeUpstreamUnavailable, "Hugging Face 所有分类请求失败", errors.Join(errs...))
	}

	// 4. 去重 + 时效过滤 + 排序 + 截断
	unique := filter.Dedupe(all, apiModel.key)
	recent := make([]apiModel, 0, len(unique))
	for _, m := range unique {
		if f.recency.Keep(m.LastModified) {
			recent = append(recent, m)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Likes > recent[j].Likes
	})
	if len(recent) > f.maxItems {
		recent = recent[:f.maxItems]
	}

	// 5. 转换为统一结构
	items := make([]domain.FeedItem, 0, len(recent))
	for _, m := range recent {
		items = append(items, f.toFeedItem(m))
	}

	f.cache.Set(key, items)
	f.logger.Info().Int("collected", len(all)).Int("count", len(items)).Int("failed_categories", len(f.categories)-succeeded).Msg("💾 HUGGINGFACE: 已缓存最新结果")
	return items, nil
}

// fetchCategory 请求单个分类
func (f *Fetcher) fetchCategory(ctx context.Context, c Category) ([]apiModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.categoryURL(c), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求 %s 失败: %w", c.PipelineTag, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var models []apiModel
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, fmt.Errorf("解析 %s 响应失败: %w", c.PipelineTag, err)
	}
	return models, nil
}

// toFeedItem DTO 转换
func (f *Fetcher) toFeedItem(m apiModel) domain.FeedItem {
	id := m.key()

	// 没有命名空间的老模型 (如 gpt2) 以 id 本身作为 owner
	owner, _, _ := strings.Cut(id, "/")

	language := m.PipelineTag
	if language == "" {
		language = m.library()
	}

	description := m.shortDescription()
	if description == "" {
		// 不主动拉取 README，交给摘要环节按需解析
		description = fmt.Sprintf("%s/%s/raw/main/README.md", f.baseURL, id)
	}

	var updated time.Time
	switch {
	case m.LastModified != nil:
		updated = *m.LastModified
	case m.CreatedAt != nil:
		updated = *m.CreatedAt
	}

	item := domain.FeedItem{
		ID:          domain.HuggingFaceIDPrefix + id,
		Source:      domain.SourceHuggingFace,
		Title:       id,
		Description: description,
		URL:         fmt.Sprintf("%s/%s", f.baseURL, id),
		Stars:       m.Likes,
		Language:    language,
		Owner:       owner,
		Avatar:      nil,
		UpdatedAt:   updated,
	}
	item.Normalize()
	return item
}

// ResolveReadme 拉取 README 原文，只允许 Hugging Face 域名
func (f *Fetcher) ResolveReadme(ctx context.Context, rawURL string) (string, error) {
	text, err := f.resolver.ResolveReadme(ctx, rawURL)
	if err != nil {
		f.logger.Warn().Err(err).Str("url", rawURL).Msg("❌ HF README: 获取失败")
		return "", err
	}
	f.logger.Debug().Int("chars", len(text)).Msg("📄 HF README: 获取成功")
	return text, nil
}
