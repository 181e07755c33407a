package service

import (
	"context"
	"time"

	"chat-server/internal/model"
	"chat-server/pkg/jwt"
)

// UserStore 服务层依赖的用户存储
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	ListExcept(ctx context.Context, id uint) ([]model.User, error)
	ListOnlineIDs(ctx context.Context) ([]uint, error)
	SetVerificationToken(ctx context.Context, id uint, tokenHash string, expiresAt time.Time) error
	ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)
	SetResetToken(ctx context.Context, id uint, tokenHash string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) error
}

// MessageStore 服务层依赖的消息存储
type MessageStore interface {
	ListBetween(ctx context.Context, userID, otherUserID uint) ([]model.Message, error)
	UnreadCountsBySender(ctx context.Context, receiverID uint) (map[uint]int64, error)
}

// TokenIssuer 签发访问令牌
type TokenIssuer interface {
	Issue(id jwt.Identity) (string, error)
}

// PasswordHasher 密码哈希
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// LoginLimiter 登录失败锁定
type LoginLimiter interface {
	IsLocked(ctx context.Context, email string) (bool, error)
	RecordFailure(ctx context.Context, email string, at time.Time) (int64, error)
	Clear(ctx context.Context, email string) error
}
