package service

import (
	"context"
	"sort"
	"time"

	"ai-trend-radar/internal/domain"
	"ai-trend-radar/internal/port"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// FeedService 合并多个数据源的榜单
type FeedService struct {
	sources []port.Source
	logger  zerolog.Logger
}

// NewFeedService 创建聚合服务
func NewFeedService(logger zerolog.Logger, sources ...port.Source) *FeedService {
	return &FeedService{
		sources: sources,
		logger:  logger.With().Str("component", "feed").Logger(),
	}
}

// Source 按名称取出某个数据源
func (s *FeedService) Source(name domain.Source) (port.Source, bool) {
	for _, src := range s.sources {
		if src.Name() == name {
			return src, true
		}
	}
	return nil, false
}

// Aggregate 并发拉取所有数据源，单个数据源失败只会让它缺席
// 结果按 stars 倒序，同分按 updated_at 倒序，永远不返回 nil
func (s *FeedService) Aggregate(ctx context.Context) []domain.FeedItem {
	start := time.Now()
	results := make([][]domain.FeedItem, len(s.sources))

	// 1. 并发抓取
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range s.sources {
		i, src := i, src
		g.Go(func() error {
			items, err := src.Fetch(gctx)
			if err != nil {
				s.logger.Warn().Err(err).Str("source", string(src.Name())).Msg("⚠️ 数据源失败，本轮跳过")
				return nil // 不取消其他数据源
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	// 2. 合并
	total := 0
	for _, r := range results {
		total += len(r)
	}
	merged := make([]domain.FeedItem, 0, total)
	for _, r := range results {
		merged = append(merged, r...)
	}

	// 3. 排序
	SortFeed(merged)

	s.logger.Info().Int("count", len(merged)).Dur("dur", time.Since(start)).Msg("📰 榜单聚合完成")
	return merged
}

// SortFeed 稳定排序：stars 倒序，其次 updated_at 倒序
func SortFeed(items []domain.FeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Stars != items[j].Stars {
			return items[i].Stars > items[j].Stars
		}
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
}
