package llm

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

	"github.com/rs/zerolog"
)

const maxResponseBytes = 1 << 20

// Client 实现了 port.Completer 接口，按 Provider 描述调用厂商
type Client struct {
	provider Provider
	http     *http.Client
	logger   zerolog.Logger
}

// NewClient 创建某个厂商的客户端
func NewClient(p Provider, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		provider: p,
		http:     &http.Client{Timeout: timeout},
		logger:   logger.With().Str("provider", p.Name).Logger(),
	}
}

// Name 厂商名称
func (c *Client) Name() string {
	return c.provider.Name
}

// Complete 发送一次摘要请求，非 2xx 原样带回上游状态码和 error.message
func (c *Client) Complete(ctx context.Context, apiKey, text string) (string, error) {
	p := c.provider

	// 1. 构造请求
	payload, err := json.Marshal(p.Build(p.Model, text))
	if err != nil {
		return "", common.WrapError(common.ErrCodeInternal, "构造请求失败", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", common.WrapError(common.ErrCodeInternal, "构造请求失败", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.Authorize(req.Header, apiKey)

	// 2. 发送
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("❌ LLM 请求失败")
		return "", transportError(p.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", transportError(p.Name, err)
	}

	// 3. 非 2xx 透传上游错误
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ErrorMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("%s request failed", p.Name)
		}
		c.logger.Warn().Int("status", resp.StatusCode).Str("message", msg).Msg("❌ LLM 返回错误")
		return "", common.Upstream(resp.StatusCode, msg)
	}

	// 4. 解析摘要
	summary, err := p.Extract(body)
	if err != nil {
		return "", common.WrapError(common.ErrCodeUpstreamUnavailable, fmt.Sprintf("%s returned an unreadable response", p.Name), err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", common.NewError(common.ErrCodeUpstreamUnavailable, fmt.Sprintf("%s returned an empty summary", p.Name))
	}

	c.logger.Info().Dur("dur", time.Since(start)).Int("chars", len(summary)).Msg("🤖 LLM 摘要完成")
	return summary, nil
}

func transportError(name string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return common.WrapError(common.ErrCodeTimeout, fmt.Sprintf("%s request timed out", name), err)
	}
	return common.WrapError(common.ErrCodeUpstreamUnavailable, fmt.Sprintf("%s is unreachable", name), err)
}
