package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"ai-trend-radar/internal/adapter/filter"
	"ai-trend-radar/internal/adapter/readme"
	"ai-trend-radar/internal/cache"
	"ai-trend-radar/internal/common"
	"ai-trend-radar/internal/domain"

	"github.com/google/go-github/v53/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	// UserAgent 对上游表明身份
	UserAgent = "ai-trend-radar/1.0"
	// DefaultPerPage 每次拉取的仓库数
	DefaultPerPage = 24
	// searchKeywords 领域关键词
	searchKeywords = "AI machine learning"
)

// Fetcher 实现了 port.Source 和 port.ReadmeResolver 接口
type Fetcher struct {
	client        *github.Client
	cache         *cache.TTLCache[string, []domain.FeedItem]
	recency       *filter.RecencyFilter
	perPage       int
	readmeTimeout time.Duration
	logger        zerolog.Logger
}

// Option Fetcher 构造选项
type Option func(*Fetcher)

// WithPerPage 设置每页数量 (GitHub 上限 100)
func WithPerPage(n int) Option {
	return func(f *Fetcher) {
		if n > 0 && n <= 100 {
			f.perPage = n
		}
	}
}

// WithReadmeTimeout 设置 README 拉取超时
func WithReadmeTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.readmeTimeout = d
		}
	}
}

// WithRecencyFilter 替换时间窗口 (测试时注入固定时钟)
func WithRecencyFilter(r *filter.RecencyFilter) Option {
	return func(f *Fetcher) {
		if r != nil {
			f.recency = r
		}
	}
}

// WithBaseURL 指向其他 API 地址 (GitHub Enterprise 或测试服务器)
func WithBaseURL(raw string) Option {
	return func(f *Fetcher) {
		if u, err := url.Parse(raw); err == nil && raw != "" {
			if u.Path == "" || u.Path[len(u.Path)-1] != '/' {
				u.Path += "/"
			}
			f.client.BaseURL = u
		}
	}
}

// NewFetcher 初始化 GitHub 客户端
// token: 可选的服务端 Token (为空时匿名访问，限制 60次/小时)
func NewFetcher(token string, timeout time.Duration, c *cache.TTLCache[string, []domain.FeedItem], logger zerolog.Logger, opts ...Option) *Fetcher {
	httpClient := &http.Client{Timeout: timeout}
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		httpClient = oauth2.NewClient(context.Background(), ts)
		httpClient.Timeout = timeout
	}

	client := github.NewClient(httpClient)
	client.UserAgent = UserAgent

	if c == nil {
		c = cache.New[string, []domain.FeedItem](cache.DefaultTTL)
	}

	f := &Fetcher{
		client:        client,
		cache:         c,
		recency:       filter.NewRecencyFilter(7),
		perPage:       DefaultPerPage,
		readmeTimeout: readme.DefaultTimeout,
		logger:        logger.With().Str("source", string(domain.SourceGitHub)).Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name 数据源名称
func (f *Fetcher) Name() domain.Source {
	return domain.SourceGitHub
}

// Query 构造搜索条件：AI/ML 关键词 + 最近 7 天有推送
func (f *Fetcher) Query() string {
	since := f.recency.Cutoff().Format("2006-01-02")
	return fmt.Sprintf("%s pushed:>=%s", searchKeywords, since)
}

// Fetch 搜索最近活跃的 AI/ML 仓库，按 star 倒序
// 失败时返回空切片，且不写缓存
func (f *Fetcher) Fetch(ctx context.Context) ([]domain.FeedItem, error) {
	query := f.Query()
	key := fmt.Sprintf("q=%s&sort=stars&order=desc&per_page=%d", query, f.perPage)

	// 1. 先查缓存
	if items, ok := f.cache.Get(key); ok {
		f.logger.Debug().Int("count", len(items)).Msg("✅ GitHub: 命中缓存")
		return items, nil
	}

	// 2. 调用 Search API
	opts := &github.SearchOptions{
		Sort:  "stars",
		Order: "desc",
		ListOptions: github.ListOptions{
			PerPage: f.perPage,
		},
	}
	result, _, err := f.client.Search.Repositories(ctx, query, opts)
	if err != nil {
		f.logger.Warn().Err(err).Str("query", query).Msg("❌ GitHub API 调用失败")
		return []domain.FeedItem{}, common.WrapError(common.ErrCodeUpstreamUnavailable, "GitHub API 调用失败", err)
	}

	// 3. 将 GitHub 的数据结构转换为统一的 FeedItem
	items := make([]domain.FeedItem, 0, len(result.Repositories))
	for _, repo := range result.Repositories {
		items = append(items, toFeedItem(repo))
	}

	f.cache.Set(key, items)
	f.logger.Info().Int("count", len(items)).Msg("💾 GitHub: 已缓存最新结果")
	return items, nil
}

// toFeedItem DTO 转换，缺失字段按约定回退
func toFeedItem(repo *github.Repository) domain.FeedItem {
	item := domain.FeedItem{
		ID:          fmt.Sprintf("%s%d", domain.GitHubIDPrefix, repo.GetID()), // 加上前缀防止冲突
		Source:      domain.SourceGitHub,
		Title:       repo.GetFullName(),
		Description: repo.GetDescription(),
		URL:         repo.GetHTMLURL(),
		Stars:       repo.GetStargazersCount(),
		Language:    repo.GetLanguage(),
		Owner:       repo.GetOwner().GetLogin(),
		Avatar:      domain.StringPtr(repo.GetOwner().GetAvatarURL()),
		UpdatedAt:   repo.GetUpdatedAt().Time,
	}
	if item.Description == "" && item.Title != "" {
		// 没有描述的仓库改为延迟拉取 README
		item.Description = fmt.Sprintf("https://api.github.com/repos/%s/readme", item.Title)
	}
	item.Normalize()
	return item
}

// ResolveReadme 通过 contents API 获取 README 并做 base64 解码
func (f *Fetcher) ResolveReadme(ctx context.Context, rawURL string) (string, error) {
	if rawURL == "" {
		return "", common.NewError(common.ErrCodeInvalidInput, "URL is required")
	}
	owner, repoName, err := filter.ParseRepoURL(rawURL)
	if err != nil {
		return "", common.WrapError(common.ErrCodeInvalidInput, "URL is not a GitHub repository", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.readmeTimeout)
	defer cancel()

	content, _, err := f.client.Repositories.GetReadme(ctx, owner, repoName, nil)
	if err != nil {
		f.logger.Warn().Err(err).Str("repo", owner+"/"+repoName).Msg("❌ GitHub README 获取失败")
		return "", classifyReadmeError(err)
	}

	text, err := content.GetContent()
	if err != nil {
		return "", common.WrapError(common.ErrCodeUpstreamUnavailable, "README 解码失败", err)
	}
	return readme.Validate(text, readme.MinLength)
}

// classifyReadmeError 把 go-github 的错误类型映射为 README 错误码
func classifyReadmeError(err error) error {
	var (
		respErr  *github.ErrorResponse
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
		resp     *http.Response
	)
	switch {
	case errors.As(err, &rateErr):
		resp = rateErr.Response
	case errors.As(err, &abuseErr):
		resp = abuseErr.Response
	case errors.As(err, &respErr):
		resp = respErr.Response
	}
	if resp != nil {
		if classified := readme.ClassifyStatus(resp.StatusCode); classified != nil {
			return classified
		}
	}
	return readme.ClassifyTransportError(err)
}
