package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceData 在线状态数据
type PresenceData struct {
	UserID   uint      `json:"user_id"`
	Status   string    `json:"status"` // online/offline
	LastSeen time.Time `json:"last_seen"`
}

// 在线状态相关常量
const (
	PresenceKeyPrefix  = "im:presence:user:" // 用户在线状态key前缀
	OnlineUsersKey     = "im:online:users"   // 在线用户集合key
	DefaultPresenceTTL = 2 * time.Minute     // 在线状态TTL（2倍心跳周期）

	StatusOnline  = "online"
	StatusOffline = "offline"
)

// PresenceStore 在线状态镜像，数据库中的在线标记才是准确值
// nil 接收者上的所有方法都是空操作，未启用Redis时直接传nil
type PresenceStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPresenceStore 创建PresenceStore，rdb 为 nil 时返回 nil
func NewPresenceStore(rdb *redis.Client, ttl time.Duration) *PresenceStore {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &PresenceStore{rdb: rdb, ttl: ttl}
}

func presenceKey(userID uint) string {
	return fmt.Sprintf("%s%d", PresenceKeyPrefix, userID)
}

// SetOnline 记录用户上线
func (s *PresenceStore) SetOnline(ctx context.Context, userID uint, at time.Time) error {
	return s.set(ctx, userID, StatusOnline, at)
}

// SetOffline 记录用户离线，保留最近在线时间
func (s *PresenceStore) SetOffline(ctx context.Context, userID uint, at time.Time) error {
	return s.set(ctx, userID, StatusOffline, at)
}

func (s *PresenceStore) set(ctx context.Context, userID uint, status string, at time.Time) error {
	if s == nil {
		return nil
	}

	data, err := json.Marshal(PresenceData{UserID: userID, Status: status, LastSeen: at.UTC()})
	if err != nil {
		return fmt.Errorf("序列化在线状态失败: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if status == StatusOnline {
			pipe.Set(ctx, presenceKey(userID), data, s.ttl)
			pipe.SAdd(ctx, OnlineUsersKey, userID)
		} else {
			// 离线记录不过期，用于查询最近在线时间
			pipe.Set(ctx, presenceKey(userID), data, 0)
			pipe.SRem(ctx, OnlineUsersKey, userID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("更新用户在线状态失败: %w", err)
	}
	return nil
}

// Refresh 延长在线状态TTL（收到心跳时调用）
func (s *PresenceStore) Refresh(ctx context.Context, userID uint) error {
	if s == nil {
		return nil
	}
	if err := s.rdb.Expire(ctx, presenceKey(userID), s.ttl).Err(); err != nil {
		return fmt.Errorf("刷新用户在线状态失败: %w", err)
	}
	return nil
}

// Reset 清空在线用户集合（进程启动时调用）
func (s *PresenceStore) Reset(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if err := s.rdb.Del(ctx, OnlineUsersKey).Err(); err != nil {
		return fmt.Errorf("清空在线用户集合失败: %w", err)
	}
	return nil
}
