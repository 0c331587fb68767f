package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Source 标识条目来自哪个上游
type Source string

const (
	SourceGitHub      Source = "github"
	SourceHuggingFace Source = "huggingface"
)

// ID 前缀，保证两个来源合并后 id 不冲突
const (
	GitHubIDPrefix      = "gh-"
	HuggingFaceIDPrefix = "hf-"
)

// Epoch 上游缺失时间时的兜底值
var Epoch = time.Unix(0, 0).UTC()

// FeedItem 统一后的条目结构 (GitHub 仓库或 Hugging Face 模型)
type FeedItem struct {
	ID     string `json:"id"`
	Source Source `json:"source"`
	Title  string `json:"title"` // 例如 "owner/repo" 或 "org/model"
	// 纯文本描述，或者一个延迟解析的 README 地址
	Description string `json:"description"`
	URL         string `json:"url"`
	// 统一的热度指标：GitHub 的 star 或 Hugging Face 的 like
	Stars    int    `json:"stars"`
	Language string `json:"language"` // 主语言或 pipeline tag
	Owner    string `json:"owner"`
	// nil 时前端使用来源对应的默认图标
	Avatar    *string   `json:"avatar"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Normalize 修正违反约束的字段：负数热度归零，零值时间回退到 epoch
func (f *FeedItem) Normalize() {
	if f.Stars < 0 {
		f.Stars = 0
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = Epoch
	}
}

// HasDeferredDescription 判断描述是否是尚未拉取的 README 地址
func (f *FeedItem) HasDeferredDescription() bool {
	d := strings.TrimSpace(f.Description)
	return strings.HasPrefix(d, "https://") || strings.HasPrefix(d, "http://")
}

// FallbackDescription 在 README 拉取失败时，用标题/语言/热度拼一段描述
func (f *FeedItem) FallbackDescription() string {
	var sb strings.Builder
	kind := "repository"
	metric := "stars"
	if f.Source == SourceHuggingFace {
		kind = "model"
		metric = "likes"
	}
	sb.WriteString(fmt.Sprintf("%s is a trending %s", f.Title, kind))
	if f.Language != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", f.Language))
	}
	if f.Owner != "" {
		sb.WriteString(fmt.Sprintf(" by %s", f.Owner))
	}
	sb.WriteString(fmt.Sprintf(" with %s %s.", FormatStars(f.Stars), metric))
	return sb.String()
}

// FormatStars 把热度格式化成 "950" / "1.2k" / "120k"
func FormatStars(n int) string {
	switch {
	case n >= 100000:
		return fmt.Sprintf("%dk", int(math.Round(float64(n)/1000)))
	case n >= 1000:
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// StringPtr 返回字符串指针，空串返回 nil
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Summary LLM 生成的摘要，与作为缓存键的原始输入一一对应
type Summary string

// Deployment 部署触发结果
type Deployment struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}
