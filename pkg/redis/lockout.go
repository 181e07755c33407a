package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockoutKeyPrefix = "auth:lockout:"

// LockoutStore 登录失败计数，连续失败达到阈值后在窗口期内拒绝登录
// nil 接收者表示未启用，所有方法都是空操作
type LockoutStore struct {
	rdb       *redis.Client
	threshold int
	window    time.Duration
}

// NewLockoutStore 创建LockoutStore，rdb 为 nil 或阈值非正时返回 nil
func NewLockoutStore(rdb *redis.Client, threshold int, window time.Duration) *LockoutStore {
	if rdb == nil || threshold <= 0 {
		return nil
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &LockoutStore{rdb: rdb, threshold: threshold, window: window}
}

func lockoutKey(email string) string {
	return lockoutKeyPrefix + strings.ToLower(strings.TrimSpace(email))
}

// IsLocked 是否处于锁定状态
func (s *LockoutStore) IsLocked(ctx context.Context, email string) (bool, error) {
	if s == nil {
		return false, nil
	}
	n, err := s.rdb.HGet(ctx, lockoutKey(email), "failures").Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("查询登录锁定状态失败: %w", err)
	}
	return n >= s.threshold, nil
}

// RecordFailure 记录一次失败，返回当前连续失败次数
func (s *LockoutStore) RecordFailure(ctx context.Context, email string, at time.Time) (int64, error) {
	if s == nil {
		return 0, nil
	}
	key := lockoutKey(email)
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, key, "failures", 1)
		pipe.HSet(ctx, key, "last_failure", at.UTC().Unix())
		pipe.Expire(ctx, key, s.window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("记录登录失败次数失败: %w", err)
	}
	return incr.Val(), nil
}

// Clear 登录成功后清除失败计数
func (s *LockoutStore) Clear(ctx context.Context, email string) error {
	if s == nil {
		return nil
	}
	if err := s.rdb.Del(ctx, lockoutKey(email)).Err(); err != nil {
		return fmt.Errorf("清除登录失败计数失败: %w", err)
	}
	return nil
}
