package handler

import (
	"context"

	"chat-server/internal/model"
	"chat-server/pkg/jwt"
	"chat-server/pkg/response"

	"github.com/gin-gonic/gin"
)

// MessageReader 消息查询用例
type MessageReader interface {
	History(ctx context.Context, userID, otherUserID uint) ([]model.Message, error)
	UnreadCounts(ctx context.Context, userID uint) (map[uint]int64, error)
}

// MessageHandler 消息处理器，存储错误按500返回
type MessageHandler struct {
	service MessageReader
}

// NewMessageHandler 创建MessageHandler实例
func NewMessageHandler(s MessageReader) *MessageHandler {
	return &MessageHandler{service: s}
}

// History 与某个用户之间的全部消息，按时间从早到晚
func (h *MessageHandler) History(c *gin.Context) {
	otherID, ok := parseID(c, "id")
	if !ok {
		return
	}

	messages, err := h.service.History(c.Request.Context(), jwt.GetUserID(c), otherID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, messages)
}

// UnreadCounts 按发送者统计的未读消息数
func (h *MessageHandler) UnreadCounts(c *gin.Context) {
	counts, err := h.service.UnreadCounts(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, counts)
}
