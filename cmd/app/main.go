package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-trend-radar/internal/adapter/gemini"
	"ai-trend-radar/internal/adapter/github"
	"ai-trend-radar/internal/adapter/huggingface"
	"ai-trend-radar/internal/adapter/llm"
	"ai-trend-radar/internal/adapter/vercel"
	"ai-trend-radar/internal/api"
	"ai-trend-radar/internal/cache"
	"ai-trend-radar/internal/common"
	"ai-trend-radar/internal/config"
	"ai-trend-radar/internal/domain"
	"ai-trend-radar/internal/port"
	"ai-trend-radar/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	// 1. 加载配置
	fs := pflag.NewFlagSet("ai-trend-radar", pflag.ContinueOnError)
	cfg, err := config.Load("", fs, os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "❌ 配置加载失败: %v\n", err)
		os.Exit(2)
	}

	logger, err := common.NewLogger(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 日志初始化失败: %v\n", err)
		os.Exit(2)
	}

	// 2. 组装依赖
	app := buildApp(cfg, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 3. 设置信号处理，优雅关闭
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runSweeper(ctx, cfg.CacheTTL, logger, app.sweepers...)

	go func() {
		logger.Info().Int("port", cfg.Port).Strs("providers", app.summaries.Providers()).Msg("🚀 服务已启动")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("❌ 服务启动失败")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("👋 收到停止信号，正在退出...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("⚠️ 优雅关闭失败")
	}
}

// sweeper 可以被定期清理的缓存
type sweeper interface {
	Sweep() int
}

type app struct {
	engine    *gin.Engine
	feed      *service.FeedService
	summaries *service.SummaryService
	sweepers  []sweeper
}

// buildApp 按配置组装所有组件
func buildApp(cfg config.Specification, logger zerolog.Logger) *app {
	// 榜单缓存
	ghCache := cache.New[string, []domain.FeedItem](cfg.CacheTTL)
	hfCache := cache.New[string, []domain.FeedItem](cfg.CacheTTL)

	// 数据源
	gh := github.NewFetcher(cfg.GithubToken, cfg.HTTPTimeout, ghCache, logger,
		github.WithPerPage(cfg.GithubPerPage),
		github.WithReadmeTimeout(cfg.ReadmeTimeout),
	)
	hf := huggingface.NewFetcher(cfg.HTTPTimeout, cfg.ReadmeTimeout, hfCache, logger,
		huggingface.WithMaxItems(cfg.HFMaxItems),
	)
	feed := service.NewFeedService(logger, gh, hf)

	// 摘要厂商
	summaries := service.NewSummaryService(cfg.CacheTTL, cfg.CacheMaxEntries, logger)
	for _, p := range llm.HTTPProviders() {
		summaries.Register(p.Name, llm.NewClient(p, cfg.HTTPTimeout, logger))
	}
	summaries.Register(llm.ProviderGemini, gemini.NewCompleter(cfg.HTTPTimeout, logger))

	// 部署
	deployer := vercel.NewDeployer(vercel.Config{
		Token:       cfg.VercelToken,
		Project:     cfg.VercelProject,
		GitOrg:      cfg.VercelGitOrg,
		GitRepo:     cfg.VercelGitRepo,
		APIURL:      cfg.VercelAPIURL,
		MinInterval: cfg.DeployMinInterval,
	}, cfg.HTTPTimeout, logger)

	handler := api.NewHandler(api.Dependencies{
		Aggregator: feed,
		Sources: map[domain.Source]port.Source{
			domain.SourceGitHub:      gh,
			domain.SourceHuggingFace: hf,
		},
		Resolvers: map[domain.Source]port.ReadmeResolver{
			domain.SourceGitHub:      gh,
			domain.SourceHuggingFace: hf,
		},
		Summarizer: summaries,
		Deployer:   deployer,
		CacheStats: func() map[string]cache.Stats {
			stats := map[string]cache.Stats{
				string(domain.SourceGitHub):      ghCache.Stats(),
				string(domain.SourceHuggingFace): hfCache.Stats(),
			}
			for name, s := range summaries.Stats() {
				stats["summary."+name] = s
			}
			return stats
		},
	}, logger)

	return &app{
		engine:    api.NewServer(handler, cfg.AllowOrigins, logger),
		feed:      feed,
		summaries: summaries,
		sweepers:  []sweeper{ghCache, hfCache, summaries},
	}
}

// runSweeper 定时清理过期缓存，直到 ctx 结束
func runSweeper(ctx context.Context, interval time.Duration, logger zerolog.Logger, targets ...sweeper) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := 0
			for _, t := range targets {
				removed += t.Sweep()
			}
			if removed > 0 {
				logger.Debug().Int("removed", removed).Msg("🧹 已清理过期缓存")
			}
		case <-ctx.Done():
			return
		}
	}
}
