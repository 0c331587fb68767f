package port

import (
	"context"

	"ai-trend-radar/internal/domain"
)

// Source (数据源): 负责从一个上游榜单拉取条目并统一成 FeedItem
// 失败时返回空切片和错误，由调用方决定是否吞掉
type Source interface {
	Name() domain.Source
	Fetch(ctx context.Context) ([]domain.FeedItem, error)
}

// ReadmeResolver (README 解析器): 把延迟描述地址换成 README 原文
type ReadmeResolver interface {
	ResolveReadme(ctx context.Context, url string) (string, error)
}

// Completer (LLM 适配器): 用调用方提供的密钥把文本发给某个厂商并返回纯文本摘要
type Completer interface {
	Complete(ctx context.Context, apiKey, text string) (string, error)
}

// Summarizer (摘要代理): 带缓存的摘要入口
type Summarizer interface {
	Summarize(ctx context.Context, provider, text, apiKey string) (domain.Summary, error)
}

// Deployer (部署触发器): 调用外部部署接口
type Deployer interface {
	Trigger(ctx context.Context) (*domain.Deployment, error)
}

// Aggregator (榜单聚合): 合并所有数据源，永远返回排好序的非 nil 切片
type Aggregator interface {
	Aggregate(ctx context.Context) []domain.FeedItem
}
