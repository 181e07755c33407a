package model

import (
	"time"
)

// User 用户模型
// 索引与唯一约束：用户名唯一、邮箱唯一（统一小写存储）
// 说明：密码仅存储哈希（PasswordHash），不存储明文；验证与重置令牌只存 sha256 摘要
// Online 当且仅当该用户至少有一个实时连接时为 true
// LastSeen 在线状态每次切换时更新

type User struct {
	ID                       uint       `gorm:"primaryKey" json:"id"`
	Username                 string     `gorm:"type:varchar(64);not null;uniqueIndex;comment:用户名" json:"username"`
	Email                    string     `gorm:"type:varchar(128);not null;uniqueIndex;comment:邮箱" json:"email"`
	PasswordHash             string     `gorm:"type:varchar(255);not null;comment:密码哈希" json:"-"`
	IsVerified               bool       `gorm:"not null;default:false;index;comment:邮箱是否已验证" json:"isVerified"`
	Online                   bool       `gorm:"not null;default:false;index;comment:是否在线" json:"online"`
	LastSeen                 *time.Time `gorm:"comment:最近在线时间" json:"lastSeen,omitempty"`
	VerificationToken        *string    `gorm:"type:varchar(64);index;comment:验证令牌摘要" json:"-"`
	VerificationTokenExpires *time.Time `gorm:"comment:验证令牌过期时间" json:"-"`
	ResetPasswordToken       *string    `gorm:"type:varchar(64);index;comment:重置令牌摘要" json:"-"`
	ResetPasswordExpires     *time.Time `gorm:"comment:重置令牌过期时间" json:"-"`
	CreatedAt                time.Time  `gorm:"comment:创建时间" json:"createdAt"`
	UpdatedAt                time.Time  `gorm:"comment:更新时间" json:"updatedAt"`
}

// TableName 指定表名（全局配置使用单数表名）
func (User) TableName() string { return "user" }
