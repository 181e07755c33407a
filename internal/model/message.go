package model

import (
	"time"
)

// 消息状态，只允许 sent -> read 单向迁移
const (
	MessageStatusSent = "sent"
	MessageStatusRead = "read"
)

// Message 私聊消息模型
// 创建后除状态外不可修改，不做删除

type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SenderID   uint      `gorm:"not null;index:idx_message_pair,priority:1;comment:发送者ID" json:"sender"`
	ReceiverID uint      `gorm:"not null;index:idx_message_pair,priority:2;index;comment:接收者ID" json:"receiver"`
	Text       string    `gorm:"type:text;not null;comment:消息内容" json:"text"`
	Status     string    `gorm:"type:varchar(16);not null;default:'sent';index;comment:消息状态" json:"status"`
	CreatedAt  time.Time `gorm:"index;comment:创建时间" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"comment:更新时间" json:"updatedAt"`
}

func (Message) TableName() string { return "message" }
