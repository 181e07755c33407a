package websocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// 客户端 -> 服务端
const (
	EventSendMessage       = "send_message"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventMarkAsRead        = "mark_as_read"
)

// 服务端 -> 客户端
const (
	EventUserOnline         = "user_online"
	EventUserOffline        = "user_offline"
	EventOnlineUsers        = "online_users"
	EventUnreadCounts       = "unread_counts"
	EventReceiveMessage     = "receive_message"
	EventUnreadCountUpdate  = "unread_count_update"
	EventMessagesReadUpdate = "messages_read_update"
)

// Frame 一帧消息：{"type": ..., "data": ...}
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outgoing struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// encode 编码服务端推送帧
func encode(eventType string, data interface{}) ([]byte, error) {
	return json.Marshal(outgoing{Type: eventType, Data: data})
}

// ID 客户端传来的用户ID，可以是数字或数字字符串
type ID uint

var errBadID = errors.New("id must be a positive integer or numeric string")

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return errBadID
	}
	*id = ID(n)
	return nil
}

type sendMessagePayload struct {
	ReceiverID ID     `json:"receiverId"`
	Text       string `json:"text"`
}

type typingPayload struct {
	ReceiverID ID `json:"receiverId"`
}

type markAsReadPayload struct {
	SenderID ID `json:"senderId"`
}

// UnreadCountUpdate 某个发送者的未读数变化
type UnreadCountUpdate struct {
	SenderID uint  `json:"senderId"`
	Count    int64 `json:"count"`
}

// TypingNotice 输入状态提示
type TypingNotice struct {
	UserID uint `json:"userId"`
}

// ReadReceipt 已读回执，推送给消息发送者
type ReadReceipt struct {
	ReceiverID uint   `json:"receiverId"`
	Status     string `json:"status"`
}
