package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-trend-radar/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSource 模拟 port.Source 接口
type MockSource struct {
	mock.Mock
	name domain.Source
}

func (m *MockSource) Name() domain.Source {
	return m.name
}

func (m *MockSource) Fetch(ctx context.Context) ([]domain.FeedItem, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.FeedItem), args.Error(1)
}

var base = time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

func item(id string, stars int, updated time.Time) domain.FeedItem {
	return domain.FeedItem{ID: id, Stars: stars, UpdatedAt: updated}
}

func ids(items []domain.FeedItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestFeedService_Aggregate(t *testing.T) {
	tests := []struct {
		name      string
		github    []domain.FeedItem
		githubErr error
		hf        []domain.FeedItem
		hfErr     error
		expected  []string
	}{
		{
			name:     "按 stars 倒序，同分按更新时间倒序",
			github:   []domain.FeedItem{item("gh-5a", 5, base.Add(-time.Hour)), item("gh-20", 20, base)},
			hf:       []domain.FeedItem{item("hf-5b", 5, base), item("hf-10", 10, base)},
			expected: []string{"gh-20", "hf-10", "hf-5b", "gh-5a"},
		},
		{
			name:     "完全相同时保持数据源顺序",
			github:   []domain.FeedItem{item("gh-a", 1, base)},
			hf:       []domain.FeedItem{item("hf-a", 1, base)},
			expected: []string{"gh-a", "hf-a"},
		},
		{
			name:      "GitHub 失败时只返回 Hugging Face",
			github:    []domain.FeedItem{},
			githubErr: errors.New("rate limited"),
			hf:        []domain.FeedItem{item("hf-1", 1, base), item("hf-3", 3, base), item("hf-2", 2, base)},
			expected:  []string{"hf-3", "hf-2", "hf-1"},
		},
		{
			name:      "全部失败时返回空数组",
			github:    []domain.FeedItem{},
			githubErr: errors.New("down"),
			hf:        []domain.FeedItem{},
			hfErr:     errors.New("down"),
			expected:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gh := &MockSource{name: domain.SourceGitHub}
			gh.On("Fetch", mock.Anything).Return(tt.github, tt.githubErr).Once()
			hf := &MockSource{name: domain.SourceHuggingFace}
			hf.On("Fetch", mock.Anything).Return(tt.hf, tt.hfErr).Once()

			svc := NewFeedService(zerolog.Nop(), gh, hf)
			items := svc.Aggregate(context.Background())

			require.NotNil(t, items)
			assert.Equal(t, tt.expected, ids(items))
			gh.AssertExpectations(t)
			hf.AssertExpectations(t)
		})
	}
}

func TestFeedService_Aggregate_Deterministic(t *testing.T) {
	gh := &MockSource{name: domain.SourceGitHub}
	gh.On("Fetch", mock.Anything).Return([]domain.FeedItem{item("a", 20, base), item("b", 5, base)}, nil)
	hf := &MockSource{name: domain.SourceHuggingFace}
	hf.On("Fetch", mock.Anything).Return([]domain.FeedItem{item("c", 10, base), item("d", 5, base.Add(time.Minute))}, nil)

	svc := NewFeedService(zerolog.Nop(), gh, hf)
	first := ids(svc.Aggregate(context.Background()))
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ids(svc.Aggregate(context.Background())))
	}
	assert.Equal(t, []string{"a", "c", "d", "b"}, first)
}

func TestFeedService_Aggregate_NoSources(t *testing.T) {
	svc := NewFeedService(zerolog.Nop())
	items := svc.Aggregate(context.Background())
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestFeedService_Source(t *testing.T) {
	gh := &MockSource{name: domain.SourceGitHub}
	svc := NewFeedService(zerolog.Nop(), gh)

	src, ok := svc.Source(domain.SourceGitHub)
	assert.True(t, ok)
	assert.Same(t, gh, src)

	_, ok = svc.Source(domain.SourceHuggingFace)
	assert.False(t, ok)
}
