package redis

import (
	"context"
	"fmt"
	"time"

	"chat-server/config"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// NewClient 根据配置创建Redis客户端并测试连接
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		// 连接池配置
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis连接失败: %w", err)
	}
	return rdb, nil
}

// InitRedis 初始化全局Redis连接
func InitRedis(ctx context.Context, cfg config.RedisConfig) error {
	rdb, err := NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	client = rdb
	return nil
}

// GetClient 获取Redis客户端，未初始化时返回nil
func GetClient() *redis.Client {
	return client
}

// Close 关闭Redis连接
func Close() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// HealthCheck 检查Redis健康状态
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis连接异常: %w", err)
	}
	return nil
}
