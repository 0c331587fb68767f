package huggingface

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-trend-radar/internal/adapter/filter"
	"ai-trend-radar/internal/cache"
	"ai-trend-radar/internal/common"
	"ai-trend-radar/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

func ts(daysAgo int) string {
	return fixedNow.AddDate(0, 0, -daysAgo).Format(time.RFC3339)
}

// setupMockHFServer 按 pipeline_tag 返回不同的模拟数据
func setupMockHFServer(t *testing.T, byTag map[string]func(w http.ResponseWriter)) (*httptest.Server, *Fetcher) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/models" {
			w.Write([]byte(strings.Repeat("# README line for the model card\n", 5)))
			return
		}
		assert.Equal(t, "likes", r.URL.Query().Get("sort"))
		assert.Equal(t, "-1", r.URL.Query().Get("direction"))
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))

		respond, ok := byTag[r.URL.Query().Get("pipeline_tag")]
		if !ok {
			w.Write([]byte(`[]`))
			return
		}
		respond(w)
	}))

	fetcher := NewFetcher(5*time.Second, 200*time.Millisecond,
		cache.New[string, []domain.FeedItem](cache.DefaultTTL),
		zerolog.Nop(),
		WithBaseURL(server.URL),
		WithRecencyFilter(filter.NewRecencyFilter(7).WithClock(func() time.Time { return fixedNow })),
	)
	return server, fetcher
}

func jsonBody(body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func failWith(status int) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(status)
	}
}

func TestFetcher_Fetch_MergeDedupeSort(t *testing.T) {
	server, fetcher := setupMockHFServer(t, map[string]func(http.ResponseWriter){
		"text-generation": jsonBody(fmt.Sprintf(`[
			{"id": "meta/llama", "likes": 500, "pipeline_tag": "text-generation", "lastModified": %q},
			{"id": "org/shared", "likes": 40, "pipeline_tag": "text-generation", "lastModified": %q},
			{"id": "old/model", "likes": 9000, "pipeline_tag": "text-generation", "lastModified": %q}
		]`, ts(1), ts(2), ts(30))),
		"text-classification": jsonBody(fmt.Sprintf(`[
			{"id": "org/shared", "likes": 40, "pipeline_tag": "text-classification", "lastModified": %q},
			{"id": "undated/model", "likes": 60, "library_name": "transformers"}
		]`, ts(2))),
		"image-to-text": jsonBody(`[{"id": "", "likes": 1000}]`),
	})
	defer server.Close()

	items, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	// old/model 超出 7 天被过滤；无时间戳的 undated/model 保留；空 id 丢弃
	assert.Equal(t, []string{"hf-meta/llama", "hf-undated/model", "hf-org/shared"}, ids)

	// 重复模型只出现一次，保留先出现的记录
	shared := items[2]
	assert.Equal(t, "text-generation", shared.Language)

	undated := items[1]
	assert.Equal(t, "transformers", undated.Language)
	assert.True(t, undated.UpdatedAt.Equal(domain.Epoch))
}

func TestFetcher_Fetch_Mapping(t *testing.T) {
	server, fetcher := setupMockHFServer(t, map[string]func(http.ResponseWriter){
		"text-generation": jsonBody(fmt.Sprintf(`[
			{"id": "meta/llama", "likes": 500, "pipeline_tag": "text-generation", "lastModified": %q},
			{"id": "gpt2", "likes": 10, "library": ["pytorch"], "createdAt": %q, "cardData": {"description": "Classic small LM"}}
		]`, ts(1), ts(3))),
	})
	defer server.Close()

	items, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	llama := items[0]
	assert.Equal(t, "hf-meta/llama", llama.ID)
	assert.Equal(t, domain.SourceHuggingFace, llama.Source)
	assert.Equal(t, "meta/llama", llama.Title)
	assert.Equal(t, server.URL+"/meta/llama", llama.URL)
	assert.Equal(t, server.URL+"/meta/llama/raw/main/README.md", llama.Description)
	assert.True(t, llama.HasDeferredDescription())
	assert.Equal(t, 500, llama.Stars)
	assert.Equal(t, "meta", llama.Owner)
	assert.Nil(t, llama.Avatar)
	assert.Equal(t, ts(1), llama.UpdatedAt.Format(time.RFC3339))

	gpt2 := items[1]
	assert.Equal(t, "Classic small LM", gpt2.Description) // 上游自带描述时直接使用
	assert.Equal(t, "pytorch", gpt2.Language)
	assert.Equal(t, "gpt2", gpt2.Owner) // 没有命名空间时 owner 就是 id
	assert.Equal(t, ts(3), gpt2.UpdatedAt.Format(time.RFC3339)) // 没有 lastModified 时回退到 createdAt
}

func TestFetcher_Fetch_Truncates(t *testing.T) {
	var models []string
	for i := 0; i < 30; i++ {
		models = append(models, fmt.Sprintf(`{"id": "org/m%d", "likes": %d, "lastModified": %q}`, i, i, ts(1)))
	}
	server, fetcher := setupMockHFServer(t, map[string]func(http.ResponseWriter){
		"text-generation": jsonBody("[" + strings.Join(models, ",") + "]"),
	})
	defer server.Close()

	items, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, DefaultMaxItems)
	assert.Equal(t, "hf-org/m29", items[0].ID)
	assert.Equal(t, "hf-org/m6", items[DefaultMaxItems-1].ID)
}

func TestFetcher_Fetch_PartialFailure(t *testing.T) {
	server, fetcher := setupMockHFServer(t, map[string]func(http.ResponseWriter){
		"text-generation":     failWith(http.StatusInternalServerError),
		"text-classification": jsonBody(fmt.Sprintf(`[{"id": "org/clf", "likes": 3, "lastModified": %q}]`, ts(1))),
		"image-to-text":       jsonBody(`not json`),
	})
	defer server.Close()

	items, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "hf-org/clf", items[0].ID)
}

func TestFetcher_Fetch_AllFail(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	fetcher := NewFetcher(time.Second, time.Second, nil, zerolog.Nop(), WithBaseURL(server.URL))

	items, err := fetcher.Fetch(context.Background())
	assert.Error(t, err)
	assert.Equal(t, common.ErrCodeUpstreamUnavailable, common.CodeOf(err))
	assert.NotNil(t, items)
	assert.Empty(t, items)

	// 失败结果不写缓存
	_, _ = fetcher.Fetch(context.Background())
	assert.Equal(t, int32(2*len(DefaultCategories)), atomic.LoadInt32(&calls))
}

func TestFetcher_Fetch_UsesCache(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`[{"id": "org/a", "likes": 1}]`))
	}))
	defer server.Close()

	fetcher := NewFetcher(time.Second, time.Second, nil, zerolog.Nop(), WithBaseURL(server.URL))

	first, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	second, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(len(DefaultCategories)), atomic.LoadInt32(&calls))
}

func TestFetcher_Fetch_Concurrent(t *testing.T) {
	// 每个分类都阻塞到三个请求全部到达，串行实现会在这里超时
	var (
		mu      sync.Mutex
		arrived int
		release = make(chan struct{})
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrived++
		if arrived == len(DefaultCategories) {
			close(release)
		}
		mu.Unlock()

		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, time.Second, nil, zerolog.Nop(), WithBaseURL(server.URL))

	start := time.Now()
	_, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetcher_ResolveReadme(t *testing.T) {
	server, fetcher := setupMockHFServer(t, nil)
	defer server.Close()

	text, err := fetcher.ResolveReadme(context.Background(), server.URL+"/meta/llama/raw/main/README.md")
	require.NoError(t, err)
	assert.Contains(t, text, "README line")

	_, err = fetcher.ResolveReadme(context.Background(), "https://example.com/README.md")
	require.Error(t, err)
	assert.Equal(t, common.ErrCodeInvalidInput, common.CodeOf(err))
}

func TestApiModel_Library(t *testing.T) {
	var m apiModel
	require.NoError(t, json.Unmarshal([]byte(`{"library": "diffusers"}`), &m))
	assert.Equal(t, "diffusers", m.library())

	require.NoError(t, json.Unmarshal([]byte(`{"library": ["timm", "pytorch"]}`), &m))
	assert.Equal(t, "timm", m.library())
}
