package filter

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// RecencyFilter 按时间窗口筛选条目
// 缺失时间戳的条目一律保留：时效性只是尽力而为的过滤条件
type RecencyFilter struct {
	maxAge  time.Duration
	nowFunc func() time.Time
}

// NewRecencyFilter 创建新的过滤器实例，maxDaysOld <= 0 时默认 7 天
func NewRecencyFilter(maxDaysOld int) *RecencyFilter {
	if maxDaysOld <= 0 {
		maxDaysOld = 7
	}
	return &RecencyFilter{
		maxAge:  time.Duration(maxDaysOld) * 24 * time.Hour,
		nowFunc: time.Now,
	}
}

// WithClock 注入当前时间，便于测试
func (f *RecencyFilter) WithClock(now func() time.Time) *RecencyFilter {
	if now != nil {
		f.nowFunc = now
	}
	return f
}

// Cutoff 返回窗口起点
func (f *RecencyFilter) Cutoff() time.Time {
	current := time.Now()
	if f != nil && f.nowFunc != nil {
		current = f.nowFunc()
	}
	return current.Add(-f.maxAge)
}

// Keep 判断时间戳是否落在窗口内，nil 表示上游没给时间，保留
func (f *RecencyFilter) Keep(ts *time.Time) bool {
	if ts == nil || ts.IsZero() {
		return true
	}
	return !ts.Before(f.Cutoff())
}

// Dedupe 按 key 去重，先出现的记录胜出，key 为空的记录直接丢弃
func Dedupe[T any](items []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

// ParseRepoURL 从仓库地址中提取 owner 和 repo name
// 支持 https://github.com/owner/repo、api.github.com/repos/owner/repo
// 以及 raw.githubusercontent.com/owner/repo/... 三种格式
func ParseRepoURL(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("无法解析仓库URL %s: %w", raw, err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch strings.ToLower(u.Host) {
	case "github.com", "www.github.com", "raw.githubusercontent.com":
	case "api.github.com":
		if len(parts) > 0 && parts[0] == "repos" {
			parts = parts[1:]
		}
	default:
		return "", "", fmt.Errorf("无法解析仓库URL %s: 不是 GitHub 地址", raw)
	}

	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("无法解析仓库URL %s: 路径格式不正确", raw)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}
