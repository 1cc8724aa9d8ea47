package cache

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scenery67/boss/internal/config"
)

// keyPrefix 避免与同一 Redis 实例上的其他应用冲突
const keyPrefix = "raid:cache:"

// Redis Redis 缓存后端
// 同一台机器上的多个客户端进程共享读缓存时使用
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedis 创建 Redis 缓存
func NewRedis(cfg config.RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	return &Redis{
		client: client,
		logger: slog.Default().With("component", "cache"),
	}
}

// Get 读取缓存值，TTL 由 Redis 负责
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		r.logger.Warn("Redis get failed", "key", key, "error", err)
		return nil, false
	}
	return data, true
}

// Set 写入缓存值并设置存活时间
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := r.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		r.logger.Warn("Redis set failed", "key", key, "error", err)
	}
}

// Delete 删除指定键
func (r *Redis) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		r.logger.Warn("Redis delete failed", "key", key, "error", err)
	}
}

// DeletePattern 删除所有匹配正则表达式的键
// SCAN 按前缀取回本应用的键，再用正则逐个过滤
func (r *Redis) DeletePattern(ctx context.Context, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}

	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	toDelete := []string{}
	for iter.Next(ctx) {
		full := iter.Val()
		if re.MatchString(full[len(keyPrefix):]) {
			toDelete = append(toDelete, full)
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(toDelete) > 0 {
		if err := r.client.Del(ctx, toDelete...).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Ping 检查 Redis 连接
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close 关闭连接
func (r *Redis) Close() error {
	return r.client.Close()
}
