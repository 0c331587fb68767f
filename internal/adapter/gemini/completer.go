package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"ai-trend-radar/internal/adapter/llm"
	"ai-trend-radar/internal/common"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DefaultModel 默认使用的轻量模型
const DefaultModel = "gemini-2.5-flash-lite"

// Completer 实现了 port.Completer 接口
// 密钥由调用方逐次提供，所以每次请求都新建一个 genai 客户端
type Completer struct {
	model   string
	timeout time.Duration
	opts    []option.ClientOption
	logger  zerolog.Logger
}

// NewCompleter 创建 Gemini 摘要适配器，opts 追加在 API Key 之后 (测试时可替换 endpoint)
func NewCompleter(timeout time.Duration, logger zerolog.Logger, opts ...option.ClientOption) *Completer {
	return &Completer{
		model:   DefaultModel,
		timeout: timeout,
		opts:    opts,
		logger:  logger.With().Str("provider", llm.ProviderGemini).Logger(),
	}
}

// Name 厂商名称
func (g *Completer) Name() string {
	return llm.ProviderGemini
}

// Complete 用调用方的 API Key 生成摘要
func (g *Completer) Complete(ctx context.Context, apiKey, text string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	// 1. 初始化客户端
	opts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, g.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", common.WrapError(common.ErrCodeUpstreamUnavailable, "gemini client init failed", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	model.SetTemperature(0.3)
	model.SetMaxOutputTokens(150)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(llm.Instruction(text) + ".")},
	}

	// 2. 调用 AI
	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		g.logger.Warn().Err(err).Msg("❌ Gemini 调用失败")
		return "", classifyError(err)
	}

	// 3. 取出文本
	summary := extractText(resp)
	if summary == "" {
		return "", common.NewError(common.ErrCodeUpstreamUnavailable, "gemini returned an empty summary")
	}

	g.logger.Info().Dur("dur", time.Since(start)).Int("chars", len(summary)).Msg("🤖 Gemini 摘要完成")
	return summary, nil
}

// extractText 拼接第一个候选里的全部文本片段
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return strings.TrimSpace(sb.String())
}

// classifyError 透传 Google API 的状态码和错误信息
func classifyError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code >= http.StatusBadRequest {
		msg := apiErr.Message
		if msg == "" {
			msg = "gemini request failed"
		}
		return common.Upstream(apiErr.Code, msg)
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return common.WrapError(common.ErrCodeUpstreamUnavailable, "gemini blocked the request", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return common.WrapError(common.ErrCodeTimeout, "gemini request timed out", err)
	}
	return common.WrapError(common.ErrCodeUpstreamUnavailable, "gemini request failed", err)
}
