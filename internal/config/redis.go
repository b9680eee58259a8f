package config

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig backs the rate limiter, the subscription cache and the flag
// change channel that keeps every instance's flag cache coherent.
type RedisConfig struct {
	Host          string
	Port          string
	Password      string
	DB            int
	PoolSize      int
	DialTimeout   time.Duration
	ChangeChannel string
}

func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:          getEnvWithDefault("REDIS_HOST", "localhost"),
		Port:          getEnvWithDefault("REDIS_PORT", "6379"),
		Password:      getEnvWithDefault("REDIS_PASSWORD", ""),
		DB:            getEnvIntWithDefault("REDIS_DB", 0),
		PoolSize:      getEnvIntWithDefault("REDIS_POOL_SIZE", 0),
		DialTimeout:   getEnvDurationWithDefault("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ChangeChannel: getEnvWithDefault("REDIS_FLAG_CHANGE_CHANNEL", "feature_flags:changes"),
	}
}

func (c *RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Options leaves PoolSize at the go-redis default when unset.
func (c *RedisConfig) Options() *redis.Options {
	return &redis.Options{
		Addr:        c.Addr(),
		Password:    c.Password,
		DB:          c.DB,
		PoolSize:    c.PoolSize,
		DialTimeout: c.DialTimeout,
	}
}

func (c *RedisConfig) GetClient() (*redis.Client, error) {
	client := redis.NewClient(c.Options())

	ctx, cancel := context.WithTimeout(context.Background(), c.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", c.Addr(), err)
	}

	return client, nil
}
