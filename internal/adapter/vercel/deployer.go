package vercel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"ai-trend-radar/internal/common"
	"ai-trend-radar/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultAPIURL Vercel 创建部署的接口
const DefaultAPIURL = "https://api.vercel.com/v13/deployments"

// Config 部署所需的服务端配置
type Config struct {
	Token       string
	Project     string
	GitOrg      string
	GitRepo     string
	APIURL      string
	MinInterval time.Duration
}

// missing 返回缺失的配置项名称
func (c Config) missing() []string {
	var out []string
	for _, kv := range [][2]string{
		{"token", c.Token},
		{"project", c.Project},
		{"git_org", c.GitOrg},
		{"git_repo", c.GitRepo},
	} {
		if strings.TrimSpace(kv[1]) == "" {
			out = append(out, kv[0])
		}
	}
	return out
}

type deployRequest struct {
	Name      string `json:"name"`
	GitSource string `json:"gitSource"`
	GitOrg    string `json:"gitOrg"`
	GitRepo   string `json:"gitRepo"`
	Target    string `json:"target"`
}

type deployResponse struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Deployer 实现了 port.Deployer 接口
type Deployer struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewDeployer 创建部署触发器，MinInterval > 0 时限制两次成功部署的最小间隔
func NewDeployer(cfg Config, timeout time.Duration, logger zerolog.Logger) *Deployer {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	d := &Deployer{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "vercel").Logger(),
	}
	if cfg.MinInterval > 0 {
		d.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	if len(cfg.missing()) > 0 {
		d.logger.Warn().Strs("missing", cfg.missing()).Msg("⚠️ 警告: Vercel 配置不完整，部署功能将无法工作！")
	}
	return d
}

// Trigger 触发一次生产环境部署
func (d *Deployer) Trigger(ctx context.Context) (*domain.Deployment, error) {
	if missing := d.cfg.missing(); len(missing) > 0 {
		return nil, common.NewError(common.ErrCodeNotConfigured, "Missing Vercel environment variables")
	}
	// 只有成功的部署才消耗令牌，失败后可以立即重试
	if d.limiter != nil && d.limiter.Tokens() < 1 {
		d.logger.Warn().Msg("⏳ 部署触发过于频繁")
		return nil, common.NewError(common.ErrCodeRateLimited, "Deployment was triggered too recently, try again later")
	}

	// 1. 构造请求
	body, err := json.Marshal(deployRequest{
		Name:      d.cfg.Project,
		GitSource: "github",
		GitOrg:    d.cfg.GitOrg,
		GitRepo:   d.cfg.GitRepo,
		Target:    "production",
	})
	if err != nil {
		return nil, common.WrapError(common.ErrCodeInternal, "构造部署请求失败", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, common.WrapError(common.ErrCodeInternal, "构造部署请求失败", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	// 2. 发送请求
	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Error().Err(err).Msg("❌ 发送部署请求失败")
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, common.WrapError(common.ErrCodeTimeout, "Vercel request timed out", err)
		}
		return nil, common.WrapError(common.ErrCodeUpstreamUnavailable, "Vercel is unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, common.WrapError(common.ErrCodeUpstreamUnavailable, "读取部署响应失败", err)
	}
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300

	// 3. Vercel 出错时可能返回非 JSON，原文透传
	var data deployResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		text := strings.TrimSpace(string(raw))
		if text == "" {
			text = "Failed to deploy"
		}
		status := resp.StatusCode
		if ok {
			status = http.StatusBadGateway
		}
		d.logger.Error().Int("status", resp.StatusCode).Str("body", text).Msg("❌ Vercel 返回了非 JSON 响应")
		return nil, common.Upstream(status, text)
	}

	if !ok {
		msg := "Failed to deploy"
		if data.Error != nil && data.Error.Message != "" {
			msg = data.Error.Message
		}
		d.logger.Error().Int("status", resp.StatusCode).Str("message", msg).Msg("❌ Vercel API 报错")
		return nil, common.Upstream(resp.StatusCode, msg)
	}

	if d.limiter != nil {
		d.limiter.Allow()
	}
	d.logger.Info().Str("id", data.ID).Str("url", data.URL).Msg("🚀 已触发 Vercel 部署")
	return &domain.Deployment{
		Success: true,
		Message: fmt.Sprintf("Deployment of %s triggered", d.cfg.Project),
		URL:     data.URL,
	}, nil
}
