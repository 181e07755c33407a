package service

import (
	"context"

	"chat-server/internal/model"
	"chat-server/pkg/apperr"
)

// MessageService 消息历史与未读统计
type MessageService struct {
	messages MessageStore
}

// NewMessageService 创建MessageService实例
func NewMessageService(messages MessageStore) *MessageService {
	return &MessageService{messages: messages}
}

// History 获取调用者与对方之间的全部消息，按时间从早到晚
func (s *MessageService) History(ctx context.Context, userID, otherUserID uint) ([]model.Message, error) {
	if otherUserID == 0 {
		return nil, apperr.Validation("Invalid user ID")
	}
	messages, err := s.messages.ListBetween(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

// UnreadCounts 按发送者聚合发给 userID 的未读消息数，每次实时查询
func (s *MessageService) UnreadCounts(ctx context.Context, userID uint) (map[uint]int64, error) {
	counts, err := s.messages.UnreadCountsBySender(ctx, userID)
	if err != nil {
		return nil, err
	}
	if counts == nil {
		counts = map[uint]int64{}
	}
	return counts, nil
}
