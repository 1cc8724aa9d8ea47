package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	NATS   NATSConfig   `mapstructure:"nats"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Client ClientConfig `mapstructure:"client"`
}

type ServerConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type CacheConfig struct {
	Backend string      `mapstructure:"backend"` // memory | redis
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type AuthConfig struct {
	Token string `mapstructure:"token"`
}

type ClientConfig struct {
	FallbackRefreshDelay time.Duration `mapstructure:"fallback_refresh_delay"`
	RespawnTickInterval  time.Duration `mapstructure:"respawn_tick_interval"`
}

// Load 从指定路径加载配置
// 配置文件缺失时使用默认值启动；后端地址可用 RAID_BACKEND_URL 环境变量覆盖
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.base_url", "http://localhost:8080")
	viper.SetDefault("server.request_timeout", 10*time.Second)
	viper.SetDefault("nats.url", "nats://localhost:4222")
	viper.SetDefault("nats.max_reconnects", 5)
	viper.SetDefault("nats.reconnect_wait", 3*time.Second)
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.redis.addr", "localhost:6379")
	viper.SetDefault("cache.redis.pool_size", 10)
	viper.SetDefault("client.fallback_refresh_delay", time.Second)
	viper.SetDefault("client.respawn_tick_interval", time.Second)

	viper.SetEnvPrefix("RAID")
	viper.AutomaticEnv()
	_ = viper.BindEnv("server.base_url", "RAID_BACKEND_URL")
	_ = viper.BindEnv("auth.token", "RAID_TOKEN")

	if err := viper.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
