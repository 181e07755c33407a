package repository

import (
	"context"
	"time"

	"chat-server/internal/model"

	"gorm.io/gorm"
)

// UserRepository 用户数据仓储，同时承担在线状态的持久化
type UserRepository struct {
	orm     *gorm.DB
	timeout time.Duration
}

// NewUserRepository 创建UserRepository实例
func NewUserRepository(orm *gorm.DB, timeout time.Duration) *UserRepository {
	return &UserRepository{orm: orm, timeout: timeout}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return translate(r.orm.WithContext(ctx).Create(user).Error, "")
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	var u model.User
	if err := r.orm.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err, "User not found")
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	var u model.User
	if err := r.orm.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate(err, "User not found")
	}
	return &u, nil
}

// ExistsByEmailOrUsername 注册前检查邮箱或用户名是否已被占用
func (r *UserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	var count int64
	err := r.orm.WithContext(ctx).Model(&model.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "")
	}
	return count > 0, nil
}

// ListExcept 列出除指定用户外的所有用户
func (r *UserRepository) ListExcept(ctx context.Context, id uint) ([]model.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	var users []model.User
	err := r.orm.WithContext(ctx).Where("id <> ?", id).Order("username ASC").Find(&users).Error
	return users, translate(err, "")
}

// SetVerificationToken 保存邮箱验证令牌摘要
func (r *UserRepository) SetVerificationToken(ctx context.Context, id uint, tokenHash string, expiresAt time.Time) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	err := r.orm.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"verification_token":         tokenHash,
			"verification_token_expires": expiresAt,
		}).Error
	return translate(err, "")
}

// ConsumeVerificationToken 使用验证令牌：令牌有效则标记已验证并清空令牌
// 令牌不存在或已过期返回 NotFound，且不修改任何数据
func (r *UserRepository) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	var u model.User
	err := r.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("verification_token = ? AND verification_token_expires > ?", tokenHash, now).
			First(&u).Error; err != nil {
			return err
		}
		return tx.Model(&model.User{}).Where("id = ?", u.ID).
			Updates(map[string]interface{}{
				"is_verified":                true,
				"verification_token":         nil,
				"verification_token_expires": nil,
			}).Error
	})
	if err != nil {
		return nil, translate(err, "Invalid or expired verification token")
	}
	u.IsVerified = true
	u.VerificationToken = nil
	u.VerificationTokenExpires = nil
	return &u, nil
}

// SetResetToken 保存重置密码令牌摘要
func (r *UserRepository) SetResetToken(ctx context.Context, id uint, tokenHash string, expiresAt time.Time) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	err := r.orm.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"reset_password_token":   tokenHash,
			"reset_password_expires": expiresAt,
		}).Error
	return translate(err, "")
}

// ConsumeResetToken 使用重置令牌并写入新密码哈希，令牌只能使用一次
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	err := r.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u model.User
		if err := tx.Where("reset_password_token = ? AND reset_password_expires > ?", tokenHash, now).
			First(&u).Error; err != nil {
			return err
		}
		return tx.Model(&model.User{}).Where("id = ?", u.ID).
			Updates(map[string]interface{}{
				"password_hash":          passwordHash,
				"reset_password_token":   nil,
				"reset_password_expires": nil,
			}).Error
	})
	return translate(err, "Invalid or expired reset token")
}

// SetOnline 写入在线标记与最近在线时间
func (r *UserRepository) SetOnline(ctx context.Context, id uint, online bool, at time.Time) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	err := r.orm.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"online":    online,
			"last_seen": at,
		}).Error
	return translate(err, "")
}

// ListOnlineIDs 返回所有在线用户ID
func (r *UserRepository) ListOnlineIDs(ctx context.Context) ([]uint, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	var ids []uint
	err := r.orm.WithContext(ctx).Model(&model.User{}).
		Where("online = ?", true).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, translate(err, "")
}

// ResetAllOffline 启动时把所有用户置为离线（上次进程退出时遗留的在线标记）
func (r *UserRepository) ResetAllOffline(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	res := r.orm.WithContext(ctx).Model(&model.User{}).
		Where("online = ?", true).
		Update("online", false)
	return res.RowsAffected, translate(res.Error, "")
}
