package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"chat-server/config"
	"chat-server/internal/model"
	"chat-server/pkg/keylock"
	"chat-server/pkg/logger"

	"go.uber.org/zap"
)

// ErrHubClosed Hub 已关闭，不再接受新连接
var ErrHubClosed = errors.New("hub closed")

// PresenceStore 在线标记的持久化（数据库中的 online / last_seen）
type PresenceStore interface {
	SetOnline(ctx context.Context, id uint, online bool, at time.Time) error
}

// MessageStore 实时链路需要的消息存储操作
type MessageStore interface {
	Create(ctx context.Context, message *model.Message) error
	CountUnreadFrom(ctx context.Context, receiverID, senderID uint) (int64, error)
	UnreadCountsBySender(ctx context.Context, receiverID uint) (map[uint]int64, error)
	MarkReadFrom(ctx context.Context, receiverID, senderID uint) (int64, error)
}

// PresenceMirror 在线状态镜像（Redis），写失败只记日志
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID uint, at time.Time) error
	SetOffline(ctx context.Context, userID uint, at time.Time) error
	Refresh(ctx context.Context, userID uint) error
}

// Hub 管理所有实时连接：上线/下线、消息转发、输入提示、已读回执
//
// 加锁约定：
//   - 同一用户的上线/下线在该用户的锁内完成（登记连接 + 写在线标记 + 广播）
//   - send_message 与 mark_as_read 在用户对 (a,b) 的锁内完成
//   - 存储调用不持有任何全局锁
type Hub struct {
	registry *Registry
	presence PresenceStore
	messages MessageStore
	mirror   PresenceMirror
	cfg      config.WebSocketConfig
	now      func() time.Time

	userLocks *keylock.KeyedMutex[uint]
	pairLocks *keylock.KeyedMutex[keylock.Pair]

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// NewHub 创建Hub，mirror 可为 nil
func NewHub(presence PresenceStore, messages MessageStore, mirror PresenceMirror, cfg config.WebSocketConfig) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 3 * cfg.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 64 * 1024
	}
	return &Hub{
		registry:  NewRegistry(),
		presence:  presence,
		messages:  messages,
		mirror:    mirror,
		cfg:       cfg,
		now:       time.Now,
		userLocks: keylock.New[uint](),
		pairLocks: keylock.New[keylock.Pair](),
	}
}

// Registry 连接表
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Join 登记一个刚通过认证的连接
// 用户的第一个连接会把在线标记置为 true；每个新连接都会触发 user_online 广播，
// 并单独收到当前在线用户列表和自己的未读统计
func (h *Hub) Join(ctx context.Context, c *Client) error {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.wg.Add(1)
	h.mu.Unlock()

	unlock := h.userLocks.Lock(c.UserID)
	if first := h.registry.Add(c); first {
		at := h.now()
		if err := h.presence.SetOnline(ctx, c.UserID, true, at); err != nil {
			// 在线标记写失败则放弃这个连接，保证标记与连接表一致
			h.registry.Remove(c)
			unlock()
			h.wg.Done()
			return err
		}
		h.mirrorOnline(ctx, c.UserID, at)
	}
	h.broadcastAll(EventUserOnline, c.UserID)
	unlock()

	// 与 Shutdown 并发时，Shutdown 取快照后才登记的连接由这里关闭
	h.mu.Lock()
	closing := h.closing
	h.mu.Unlock()
	if closing {
		c.Close()
	}

	logger.Info("用户连接",
		zap.Uint("user_id", c.UserID),
		zap.String("conn_id", c.ID),
		zap.Int("connections", h.registry.Count(c.UserID)),
	)

	h.sendTo(c, EventOnlineUsers, h.registry.UserIDs())

	counts, err := h.messages.UnreadCountsBySender(ctx, c.UserID)
	if err != nil {
		logger.Error("查询未读统计失败", zap.Uint("user_id", c.UserID), zap.Error(err))
		return nil
	}
	h.sendTo(c, EventUnreadCounts, counts)
	return nil
}

// Leave 注销连接；用户最后一个连接断开时置为离线并广播 user_offline
// 重复调用是安全的
func (h *Hub) Leave(ctx context.Context, c *Client) {
	unlock := h.userLocks.Lock(c.UserID)
	last, removed := h.registry.Remove(c)
	if !removed {
		unlock()
		return
	}
	if last {
		at := h.now()
		if err := h.presence.SetOnline(ctx, c.UserID, false, at); err != nil {
			logger.Error("更新离线状态失败", zap.Uint("user_id", c.UserID), zap.Error(err))
		}
		h.mirrorOffline(ctx, c.UserID, at)
		h.broadcastAll(EventUserOffline, c.UserID)
	}
	unlock()
	h.wg.Done()

	logger.Info("用户断开",
		zap.Uint("user_id", c.UserID),
		zap.String("conn_id", c.ID),
		zap.Bool("offline", last),
	)
}

// HandleFrame 处理客户端发来的一帧，任何错误都只记录日志，不会影响连接
func (h *Hub) HandleFrame(ctx context.Context, c *Client, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		logger.Debug("无法解析的消息帧", zap.String("conn_id", c.ID), zap.Error(err))
		return
	}

	switch frame.Type {
	case EventSendMessage:
		var p sendMessagePayload
		if !decodePayload(c, frame, &p) {
			return
		}
		h.SendMessage(ctx, c.UserID, uint(p.ReceiverID), p.Text)
	case EventUserTyping, EventUserStoppedTyping:
		var p typingPayload
		if !decodePayload(c, frame, &p) {
			return
		}
		h.RelayTyping(c.UserID, uint(p.ReceiverID), frame.Type)
	case EventMarkAsRead:
		var p markAsReadPayload
		if !decodePayload(c, frame, &p) {
			return
		}
		h.MarkAsRead(ctx, c.UserID, uint(p.SenderID))
	default:
		logger.Debug("未知事件类型", zap.String("type", frame.Type), zap.String("conn_id", c.ID))
	}
}

func decodePayload(c *Client, frame Frame, v interface{}) bool {
	if len(frame.Data) == 0 {
		return false
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		logger.Debug("事件参数不合法",
			zap.String("type", frame.Type),
			zap.String("conn_id", c.ID),
			zap.Error(err),
		)
		return false
	}
	return true
}

// SendMessage 保存消息并推送给收发双方的所有连接，再把最新未读数推给接收者
// 参数不完整时直接丢弃；保存失败则不做任何推送
func (h *Hub) SendMessage(ctx context.Context, senderID, receiverID uint, text string) {
	if senderID == 0 || receiverID == 0 || text == "" {
		return
	}

	unlock := h.pairLocks.Lock(keylock.PairOf(senderID, receiverID))
	defer unlock()

	msg := &model.Message{SenderID: senderID, ReceiverID: receiverID, Text: text}
	if err := h.messages.Create(ctx, msg); err != nil {
		logger.Error("保存消息失败",
			zap.Uint("sender_id", senderID),
			zap.Uint("receiver_id", receiverID),
			zap.Error(err),
		)
		return
	}

	targets := h.registry.Clients(receiverID)
	if senderID != receiverID {
		targets = append(targets, h.registry.Clients(senderID)...)
	}
	h.fanOut(targets, EventReceiveMessage, msg)

	count, err := h.messages.CountUnreadFrom(ctx, receiverID, senderID)
	if err != nil {
		logger.Error("统计未读消息失败",
			zap.Uint("sender_id", senderID),
			zap.Uint("receiver_id", receiverID),
			zap.Error(err),
		)
		return
	}
	h.fanOut(h.registry.Clients(receiverID), EventUnreadCountUpdate, UnreadCountUpdate{SenderID: senderID, Count: count})
}

// RelayTyping 转发输入状态，不落库
func (h *Hub) RelayTyping(senderID, receiverID uint, eventType string) {
	if senderID == 0 || receiverID == 0 {
		return
	}
	h.fanOut(h.registry.Clients(receiverID), eventType, TypingNotice{UserID: senderID})
}

// MarkAsRead 把 senderID 发给 readerID 的未读消息一次性标记为已读，
// 通知发送者，并把阅读者对该发送者的未读数清零
func (h *Hub) MarkAsRead(ctx context.Context, readerID, senderID uint) {
	if readerID == 0 || senderID == 0 {
		return
	}

	unlock := h.pairLocks.Lock(keylock.PairOf(readerID, senderID))
	defer unlock()

	if _, err := h.messages.MarkReadFrom(ctx, readerID, senderID); err != nil {
		logger.Error("标记已读失败",
			zap.Uint("reader_id", readerID),
			zap.Uint("sender_id", senderID),
			zap.Error(err),
		)
		return
	}

	h.fanOut(h.registry.Clients(senderID), EventMessagesReadUpdate, ReadReceipt{ReceiverID: readerID, Status: model.MessageStatusRead})
	h.fanOut(h.registry.Clients(readerID), EventUnreadCountUpdate, UnreadCountUpdate{SenderID: senderID, Count: 0})
}

// touch 收到pong时刷新在线镜像的TTL
func (h *Hub) touch(c *Client) {
	if h.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.WriteTimeout)
	defer cancel()
	if err := h.mirror.Refresh(ctx, c.UserID); err != nil {
		logger.Debug("刷新在线镜像失败", zap.Uint("user_id", c.UserID), zap.Error(err))
	}
}

func (h *Hub) mirrorOnline(ctx context.Context, userID uint, at time.Time) {
	if h.mirror == nil {
		return
	}
	if err := h.mirror.SetOnline(ctx, userID, at); err != nil {
		logger.Warn("写入在线镜像失败", zap.Uint("user_id", userID), zap.Error(err))
	}
}

func (h *Hub) mirrorOffline(ctx context.Context, userID uint, at time.Time) {
	if h.mirror == nil {
		return
	}
	if err := h.mirror.SetOffline(ctx, userID, at); err != nil {
		logger.Warn("写入离线镜像失败", zap.Uint("user_id", userID), zap.Error(err))
	}
}

func (h *Hub) broadcastAll(eventType string, data interface{}) {
	h.fanOut(h.registry.All(), eventType, data)
}

func (h *Hub) sendTo(c *Client, eventType string, data interface{}) {
	h.fanOut([]*Client{c}, eventType, data)
}

// fanOut 编码一次，非阻塞地投递给每个目标连接
func (h *Hub) fanOut(targets []*Client, eventType string, data interface{}) {
	if len(targets) == 0 {
		return
	}
	frame, err := encode(eventType, data)
	if err != nil {
		logger.Error("编码推送消息失败", zap.String("type", eventType), zap.Error(err))
		return
	}
	for _, c := range targets {
		c.Enqueue(frame)
	}
}

// Shutdown 关闭所有连接并等待它们完成离线处理
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()

	for _, c := range h.registry.All() {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("所有WebSocket连接已关闭")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
