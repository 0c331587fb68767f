package readme

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ai-trend-radar/internal/common"
)

const (
	// DefaultTimeout README 拉取的超时时间
	DefaultTimeout = 8 * time.Second
	// MinLength 少于这个长度的 README 视为空
	MinLength = 50
	// maxBodyBytes 防止超大 README 撑爆内存
	maxBodyBytes = 2 << 20
)

// HTTPResolver 直接 GET 一个 README 原文地址
type HTTPResolver struct {
	client       *http.Client
	timeout      time.Duration
	minLength    int
	userAgent    string
	allowedHosts []string
}

// NewHTTPResolver 创建解析器，allowedHosts 为空时不限制域名
func NewHTTPResolver(client *http.Client, timeout time.Duration, userAgent string, allowedHosts ...string) *HTTPResolver {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPResolver{
		client:       client,
		timeout:      timeout,
		minLength:    MinLength,
		userAgent:    userAgent,
		allowedHosts: allowedHosts,
	}
}

// ResolveReadme 拉取 README 原文
func (r *HTTPResolver) ResolveReadme(ctx context.Context, rawURL string) (string, error) {
	u, err := r.validateURL(rawURL)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", common.WrapError(common.ErrCodeInvalidInput, "URL is invalid", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	if err := ClassifyStatus(resp.StatusCode); err != nil {
		return "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", ClassifyTransportError(err)
	}
	return Validate(string(body), r.minLength)
}

func (r *HTTPResolver) validateURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, common.NewError(common.ErrCodeInvalidInput, "URL is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, common.NewError(common.ErrCodeInvalidInput, "URL is invalid")
	}
	if len(r.allowedHosts) == 0 {
		return u, nil
	}
	for _, h := range r.allowedHosts {
		if strings.EqualFold(u.Hostname(), h) {
			return u, nil
		}
	}
	return nil, common.NewError(common.ErrCodeInvalidInput, fmt.Sprintf("host %s is not allowed", u.Hostname()))
}

// ClassifyStatus 把上游状态码映射为 README 错误，2xx 返回 nil
func ClassifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusForbidden:
		return &common.AppError{Code: common.ErrCodeReadmeForbidden, Message: "README access forbidden", Status: status}
	case status == http.StatusNotFound:
		return &common.AppError{Code: common.ErrCodeReadmeNotFound, Message: "README not found", Status: status}
	default:
		return &common.AppError{
			Code:    common.ErrCodeUpstreamUnavailable,
			Message: fmt.Sprintf("Failed to fetch README (HTTP %d)", status),
			Status:  http.StatusBadGateway,
		}
	}
}

// ClassifyTransportError 区分超时与其他网络错误
func ClassifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return common.WrapError(common.ErrCodeTimeout, "README fetch timed out", err)
	}
	return common.WrapError(common.ErrCodeUpstreamUnavailable, "Failed to fetch README", err)
}

// Validate 校验 README 内容的最小长度
func Validate(text string, minLength int) (string, error) {
	if len(strings.TrimSpace(text)) < minLength {
		return "", common.NewError(common.ErrCodeReadmeEmpty, "README is empty or too short")
	}
	return text, nil
}
