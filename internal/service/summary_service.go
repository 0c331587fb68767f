package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"ai-trend-radar/internal/adapter/llm"
	"ai-trend-radar/internal/cache"
	"ai-trend-radar/internal/common"
	"ai-trend-radar/internal/domain"
	"ai-trend-radar/internal/port"

	"github.com/rs/zerolog"
)

type provider struct {
	completer port.Completer
	cache     *cache.TTLCache[string, domain.Summary]
}

// SummaryService 实现了 port.Summarizer 接口
// 每个厂商一份独立缓存，key 为调用方传入的原始文本
type SummaryService struct {
	providers  map[string]*provider
	ttl        time.Duration
	maxEntries int
	budget     int
	logger     zerolog.Logger
}

// NewSummaryService 创建摘要服务，maxEntries <= 0 表示缓存不设上限
func NewSummaryService(ttl time.Duration, maxEntries int, logger zerolog.Logger) *SummaryService {
	return &SummaryService{
		providers:  make(map[string]*provider),
		ttl:        ttl,
		maxEntries: maxEntries,
		budget:     llm.DefaultBudget,
		logger:     logger.With().Str("component", "summary").Logger(),
	}
}

// Register 注册一个厂商，需要在开始服务前完成
func (s *SummaryService) Register(name string, c port.Completer) {
	var opts []cache.Option
	if s.maxEntries > 0 {
		opts = append(opts, cache.WithMaxEntries(s.maxEntries))
	}
	s.providers[strings.ToLower(name)] = &provider{
		completer: c,
		cache:     cache.New[string, domain.Summary](s.ttl, opts...),
	}
}

// Providers 已注册的厂商名称
func (s *SummaryService) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats 各厂商缓存的统计
func (s *SummaryService) Stats() map[string]cache.Stats {
	out := make(map[string]cache.Stats, len(s.providers))
	for name, p := range s.providers {
		out[name] = p.cache.Stats()
	}
	return out
}

// Sweep 清理所有厂商缓存中的过期条目
func (s *SummaryService) Sweep() int {
	removed := 0
	for _, p := range s.providers {
		removed += p.cache.Sweep()
	}
	return removed
}

// Summarize 命中缓存直接返回；否则截断后调用厂商，只缓存成功结果
func (s *SummaryService) Summarize(ctx context.Context, name, text, apiKey string) (domain.Summary, error) {
	// 1. 参数校验
	if strings.TrimSpace(text) == "" || strings.TrimSpace(apiKey) == "" {
		return "", common.NewError(common.ErrCodeInvalidInput, "Missing input")
	}
	p, ok := s.providers[strings.ToLower(name)]
	if !ok {
		return "", common.NewError(common.ErrCodeInvalidInput, fmt.Sprintf("Unknown provider %q", name))
	}
	log := s.logger.With().Str("provider", name).Logger()

	// 2. 查缓存
	if summary, ok := p.cache.Get(text); ok {
		log.Debug().Msg("✅ 摘要命中缓存")
		return summary, nil
	}

	// 3. 截断 + 调用厂商
	input, truncated := llm.Truncate(text, s.budget)
	if truncated {
		log.Info().Int("from", utf8.RuneCountInString(text)).Int("to", utf8.RuneCountInString(input)).Msg("✂️ 输入过长，已截断")
	}
	out, err := p.completer.Complete(ctx, apiKey, input)
	if err != nil {
		log.Warn().Err(err).Msg("❌ 摘要失败")
		return "", err
	}

	summary := domain.Summary(strings.TrimSpace(out))
	p.cache.Set(text, summary)
	return summary, nil
}
