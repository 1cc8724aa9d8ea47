package cache

import (
	"context"
	"regexp"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory 进程内的过期缓存
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewMemory 创建内存缓存
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
	}
}

// Get 读取缓存值，过期条目在读取时惰性删除
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if !time.Now().Before(e.expiresAt) {
		m.mu.Lock()
		// 重新确认：期间可能已被覆盖写入
		if cur, ok := m.entries[key]; ok && !time.Now().Before(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set 写入缓存值
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Delete 删除指定键
func (m *Memory) Delete(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
}

// DeletePattern 删除所有匹配正则表达式的键
func (m *Memory) DeletePattern(_ context.Context, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.entries {
		if re.MatchString(key) {
			delete(m.entries, key)
		}
	}
	return nil
}
