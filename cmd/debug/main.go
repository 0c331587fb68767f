package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"ai-trend-radar/internal/adapter/gemini"
	"ai-trend-radar/internal/adapter/github"
	"ai-trend-radar/internal/adapter/huggingface"
	"ai-trend-radar/internal/adapter/llm"
	"ai-trend-radar/internal/common"
	"ai-trend-radar/internal/config"
	"ai-trend-radar/internal/domain"
	"ai-trend-radar/internal/port"
	"ai-trend-radar/internal/service"

	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("ai-trend-radar-debug", pflag.ContinueOnError)
	top := fs.Int("top", 10, "打印前 N 个条目")
	provider := fs.String("summarize", "", "用指定厂商为第一名生成摘要 (groq|openai|chatgpt|anthropic|gemini)")
	apiKey := fs.String("api-key", os.Getenv("TRENDS_SUMMARY_API_KEY"), "摘要厂商的 API Key")

	cfg, err := config.Load("", fs, os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "❌ 配置加载失败: %v\n", err)
		os.Exit(2)
	}
	logger, err := common.NewLogger(cfg.LogLevel, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 日志初始化失败: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.HTTPTimeout+cfg.ReadmeTimeout)
	defer cancel()

	// 初始化组件
	gh := github.NewFetcher(cfg.GithubToken, cfg.HTTPTimeout, nil, logger,
		github.WithPerPage(cfg.GithubPerPage),
		github.WithReadmeTimeout(cfg.ReadmeTimeout),
	)
	hf := huggingface.NewFetcher(cfg.HTTPTimeout, cfg.ReadmeTimeout, nil, logger,
		huggingface.WithMaxItems(cfg.HFMaxItems),
	)
	feed := service.NewFeedService(logger, gh, hf)

	fmt.Println("🔍 调试模式：获取合并后的榜单")

	// 1. 抓取
	items := feed.Aggregate(ctx)
	if len(items) == 0 {
		fmt.Println("❌ 没有获取到任何条目")
		return
	}
	fmt.Printf("✅ 共获取 %d 个条目\n\n", len(items))

	for i, it := range items {
		if i >= *top {
			break
		}
		fmt.Printf("#%-2d [%s] %s  ⭐ %s  %s\n", i+1, it.Source, it.Title, domain.FormatStars(it.Stars), it.UpdatedAt.Format("2006-01-02"))
		fmt.Printf("    %s\n", it.URL)
	}

	if *provider == "" {
		return
	}

	// 2. 第一名的摘要
	first := items[0]
	fmt.Printf("\n🧠 使用 %s 为 %s 生成摘要\n", *provider, first.Title)

	resolvers := map[domain.Source]port.ReadmeResolver{
		domain.SourceGitHub:      gh,
		domain.SourceHuggingFace: hf,
	}
	text := describe(ctx, first, resolvers[first.Source])

	summaries := service.NewSummaryService(cfg.CacheTTL, cfg.CacheMaxEntries, logger)
	for _, p := range llm.HTTPProviders() {
		summaries.Register(p.Name, llm.NewClient(p, cfg.HTTPTimeout, logger))
	}
	summaries.Register(llm.ProviderGemini, gemini.NewCompleter(cfg.HTTPTimeout, logger))

	summary, err := summaries.Summarize(ctx, *provider, text, *apiKey)
	if err != nil {
		fmt.Printf("    ⚠️ 摘要失败 [%s]: %s\n", common.CodeOf(err), common.PublicMessage(err))
		return
	}
	for _, line := range strings.Split(string(summary), "\n") {
		fmt.Printf("    %s\n", line)
	}
}

// describe 需要时解析 README，失败则回退到合成的描述
func describe(ctx context.Context, item domain.FeedItem, resolver port.ReadmeResolver) string {
	if !item.HasDeferredDescription() {
		return item.Description
	}
	if resolver == nil {
		return item.FallbackDescription()
	}
	text, err := resolver.ResolveReadme(ctx, item.Description)
	if err != nil {
		fmt.Printf("    ⚠️ README 获取失败 [%s]，使用合成描述\n", common.CodeOf(err))
		return item.FallbackDescription()
	}
	return text
}
