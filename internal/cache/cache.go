// Package cache 提供一个带过期时间的键值缓存，用于减少对后端 REST 接口的
// 重复读取。默认实现是进程内的内存缓存；同一台机器上跑多个客户端时
// 可以切换到 Redis 后端共享缓存。
package cache

import (
	"context"
	"time"
)

// Store 过期缓存契约
// 值在 now >= storedAt + ttl 之后视为不存在；除读取时的惰性过期外
// 不做任何淘汰，容量不设上限（数据规模只有几个键）
type Store interface {
	// Get 读取缓存值，过期或不存在返回 false
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set 写入缓存值并设置存活时间
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	// Delete 删除指定键
	Delete(ctx context.Context, key string)

	// DeletePattern 删除所有匹配正则表达式的键
	DeletePattern(ctx context.Context, pattern string) error
}
