package cache

import (
	"sync"
	"time"
)

// =============================================================================
// 推荐提问缓存
// =============================================================================

// Clock 时钟抽象，测试中注入假时钟控制过期判定
type Clock interface {
	Now() time.Time
}

// systemClock 系统时钟
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock 返回系统时钟
func SystemClock() Clock { return systemClock{} }

// SuggestionsCache 推荐提问缓存，带TTL的单值缓存
type SuggestionsCache struct {
	mu        sync.RWMutex
	clock     Clock
	ttl       time.Duration
	items     []string
	expiresAt time.Time
}

// NewSuggestionsCache 创建推荐提问缓存，clock为nil时使用系统时钟
func NewSuggestionsCache(ttl time.Duration, clock Clock) *SuggestionsCache {
	if clock == nil {
		clock = SystemClock()
	}
	return &SuggestionsCache{clock: clock, ttl: ttl}
}

// Get 读取缓存，过期或未填充时返回false
func (c *SuggestionsCache) Get() ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.items == nil || c.clock.Now().After(c.expiresAt) {
		return nil, false
	}
	// 返回副本，防止调用方修改缓存内容
	out := make([]string, len(c.items))
	copy(out, c.items)
	return out, true
}

// Set 写入缓存并重置过期时间
func (c *SuggestionsCache) Set(items []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make([]string, len(items))
	copy(c.items, items)
	c.expiresAt = c.clock.Now().Add(c.ttl)
}

// Invalidate 主动失效缓存
func (c *SuggestionsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}
