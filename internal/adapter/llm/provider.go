package llm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// 厂商名称
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderChatGPT   = "chatgpt"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

const (
	maxTokens       = 150
	temperature     = 0.3
	anthropicAPIVer = "2023-06-01"
)

// Provider 描述一个基于 HTTP JSON 的摘要厂商
// 同一个 Client 根据描述完成请求构造、鉴权和响应解析
type Provider struct {
	Name     string
	Endpoint string
	Model    string
	// Build 构造请求体
	Build func(model, text string) any
	// Authorize 写入鉴权头
	Authorize func(h http.Header, apiKey string)
	// Extract 从 2xx 响应中取出摘要文本
	Extract func(body []byte) (string, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type responsesRequest struct {
	Model           string `json:"model"`
	Instructions    string `json:"instructions,omitempty"`
	Input           string `json:"input"`
	MaxOutputTokens int    `json:"max_output_tokens,omitempty"`
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
}

func bearer(h http.Header, apiKey string) {
	h.Set("Authorization", "Bearer "+apiKey)
}

// buildChat OpenAI 兼容的 chat completions，指令和正文放在同一条 user 消息里
func buildChat(model, text string) any {
	return chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: BuildPrompt(text)}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

func buildResponses(model, text string) any {
	return responsesRequest{
		Model:           model,
		Instructions:    Instruction(text) + ".",
		Input:           text,
		MaxOutputTokens: maxTokens,
	}
}

func buildAnthropic(model, text string) any {
	return anthropicRequest{
		Model:       model,
		System:      Instruction(text) + ".",
		Messages:    []chatMessage{{Role: "user", Content: text}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

// ExtractChatCompletion choices[0].message.content
func ExtractChatCompletion(body []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("解析 chat completions 响应失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// ExtractResponses 优先取 output_text，否则拼接 output[*].content[*].text
func ExtractResponses(body []byte) (string, error) {
	var resp struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("解析 responses 响应失败: %w", err)
	}
	if resp.OutputText != "" {
		return resp.OutputText, nil
	}
	var parts []string
	for _, out := range resp.Output {
		for _, c := range out.Content {
			if c.Text != "" {
				parts = append(parts, c.Text)
			}
		}
	}
	return strings.Join(parts, "\n"), nil
}

// ExtractAnthropic content[0].text
func ExtractAnthropic(body []byte) (string, error) {
	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("解析 messages 响应失败: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", nil
	}
	return resp.Content[0].Text, nil
}

// ErrorMessage 取出厂商错误体里的 error.message
// error 可能是对象也可能是字符串；非 JSON 时返回截断后的原文
func ErrorMessage(body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		text := strings.TrimSpace(string(body))
		if len(text) > 300 {
			text = text[:300]
		}
		return text
	}
	if len(envelope.Error) > 0 {
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
		var s string
		if json.Unmarshal(envelope.Error, &s) == nil && s != "" {
			return s
		}
	}
	return envelope.Message
}

// Groq 的 OpenAI 兼容接口
func Groq() Provider {
	return Provider{
		Name:      ProviderGroq,
		Endpoint:  "https://api.groq.com/openai/v1/chat/completions",
		Model:     "llama-3.1-8b-instant",
		Build:     buildChat,
		Authorize: bearer,
		Extract:   ExtractChatCompletion,
	}
}

// OpenAI chat completions
func OpenAI() Provider {
	return Provider{
		Name:      ProviderOpenAI,
		Endpoint:  "https://api.openai.com/v1/chat/completions",
		Model:     "gpt-4o-mini",
		Build:     buildChat,
		Authorize: bearer,
		Extract:   ExtractChatCompletion,
	}
}

// ChatGPT OpenAI Responses API，指令放在 instructions
func ChatGPT() Provider {
	return Provider{
		Name:      ProviderChatGPT,
		Endpoint:  "https://api.openai.com/v1/responses",
		Model:     "gpt-4o-mini",
		Build:     buildResponses,
		Authorize: bearer,
		Extract:   ExtractResponses,
	}
}

// Anthropic messages API
func Anthropic() Provider {
	return Provider{
		Name:     ProviderAnthropic,
		Endpoint: "https://api.anthropic.com/v1/messages",
		Model:    "claude-3-haiku-20240307",
		Build:    buildAnthropic,
		Authorize: func(h http.Header, apiKey string) {
			h.Set("x-api-key", apiKey)
			h.Set("anthropic-version", anthropicAPIVer)
		},
		Extract: ExtractAnthropic,
	}
}

// HTTPProviders 所有走 HTTP JSON 的厂商
func HTTPProviders() []Provider {
	return []Provider{Groq(), OpenAI(), ChatGPT(), Anthropic()}
}
