package repository

import (
	"context"
	"time"

	"chat-server/internal/model"

	"gorm.io/gorm"
)

// MessageRepository 消息数据仓储
type MessageRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewMessageRepository 创建MessageRepository实例
func NewMessageRepository(db *gorm.DB, timeout time.Duration) *MessageRepository {
	return &MessageRepository{db: db, timeout: timeout}
}

// Create 追加一条消息，状态固定为 sent
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	message.Status = model.MessageStatusSent
	return translate(r.db.WithContext(ctx).Create(message).Error, "")
}

// ListBetween 获取两个用户之间的全部消息，按时间从早到晚
func (r *MessageRepository) ListBetween(ctx context.Context, userID, otherUserID uint) ([]model.Message, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	var messages []model.Message

	// 查询双向消息
	err := r.db.WithContext(ctx).Where(
		"(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
		userID, otherUserID, otherUserID, userID,
	).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error

	return messages, translate(err, "")
}

// CountUnreadFrom 统计 sender 发给 receiver 的未读消息数
func (r *MessageRepository) CountUnreadFrom(ctx context.Context, receiverID, senderID uint) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND status <> ?", receiverID, senderID, model.MessageStatusRead).
		Count(&count).Error
	return count, translate(err, "")
}

// unreadRow 聚合结果行
type unreadRow struct {
	SenderID uint
	Count    int64
}

// UnreadCountsBySender 按发送者分组统计发给 receiver 的未读消息数
// 每次调用都重新聚合，不做缓存
func (r *MessageRepository) UnreadCountsBySender(ctx context.Context, receiverID uint) (map[uint]int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	var rows []unreadRow
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Select("sender_id, COUNT(*) AS count").
		Where("receiver_id = ? AND status <> ?", receiverID, model.MessageStatusRead).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "")
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.SenderID] = row.Count
	}
	return counts, nil
}

// MarkReadFrom 把 sender 发给 receiver 的所有未读消息一次性标记为已读
func (r *MessageRepository) MarkReadFrom(ctx context.Context, receiverID, senderID uint) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND status <> ?", receiverID, senderID, model.MessageStatusRead).
		Update("status", model.MessageStatusRead)
	return res.RowsAffected, translate(res.Error, "")
}
