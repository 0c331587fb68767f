package cache

import (
	"math"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultTTL 所有缓存实例默认的存活时间
const DefaultTTL = 5 * time.Minute

// Entry 缓存条目
type Entry[V any] struct {
	Value    V
	StoredAt time.Time
}

// Stats 缓存命中统计
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// TTLCache 进程内读穿缓存，过期在读取时惰性判断
// 过期条目不会被主动删除，直到被同 key 的 Set 覆盖、被 Sweep 清理或因容量上限被淘汰
// 底层存储是 LRU，容量满时淘汰最久未使用的条目
type TTLCache[K comparable, V any] struct {
	mu         sync.RWMutex
	items      *simplelru.LRU[K, Entry[V]]
	ttl        time.Duration
	maxEntries int // 0 表示不限制
	hits       int64
	misses     int64
	nowFunc    func() time.Time
}

// Option 缓存构造选项
type Option func(*options)

type options struct {
	maxEntries int
	nowFunc    func() time.Time
}

// WithMaxEntries 设置条目上限，超出时先清过期条目再淘汰最久未使用的条目
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

// WithClock 注入时钟，便于测试
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.nowFunc = now
		}
	}
}

// New 创建缓存实例，ttl <= 0 时使用 DefaultTTL
func New[K comparable, V any](ttl time.Duration, opts ...Option) *TTLCache[K, V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	o := &options{nowFunc: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	size := o.maxEntries
	if size <= 0 {
		size = math.MaxInt
	}
	items, err := simplelru.NewLRU[K, Entry[V]](size, nil)
	if err != nil {
		// size 始终为正数，不会走到这里
		panic(err)
	}
	return &TTLCache[K, V]{
		items:      items,
		ttl:        ttl,
		maxEntries: o.maxEntries,
		nowFunc:    o.nowFunc,
	}
}

// TTL 返回实例的存活时间
func (c *TTLCache[K, V]) TTL() time.Duration {
	return c.ttl
}

// Get 只有在 now - storedAt < TTL 时才返回值
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	now := c.nowFunc()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items.Get(key)
	if !ok || now.Sub(entry.StoredAt) >= c.ttl {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return entry.Value, true
}

// Set 以当前时间写入，无条件覆盖旧值
func (c *TTLCache[K, V]) Set(key K, value V) {
	now := c.nowFunc()

	c.mu.Lock()
	defer c.mu.Unlock()

	// 满了先清理过期条目，仍然满则由 LRU 淘汰
	if c.maxEntries > 0 && !c.items.Contains(key) && c.items.Len() >= c.maxEntries {
		c.sweepLocked(now)
	}
	c.items.Add(key, Entry[V]{Value: value, StoredAt: now})
}

// Sweep 删除所有已过期条目，返回删除数量
func (c *TTLCache[K, V]) Sweep() int {
	now := c.nowFunc()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(now)
}

func (c *TTLCache[K, V]) sweepLocked(now time.Time) int {
	removed := 0
	for _, k := range c.items.Keys() {
		if e, ok := c.items.Peek(k); ok && now.Sub(e.StoredAt) >= c.ttl {
			c.items.Remove(k)
			removed++
		}
	}
	return removed
}

// Len 返回物理存储的条目数 (包含尚未清理的过期条目)
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items.Len()
}

// Stats 返回命中统计
func (c *TTLCache[K, V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries: c.items.Len(),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}
