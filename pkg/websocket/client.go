package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"chat-server/pkg/jwt"
	"chat-server/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client 一个已通过认证的实时连接
type Client struct {
	ID     string // 连接ID
	UserID uint
	Email  string

	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
}

func newClient(hub *Hub, conn *websocket.Conn, id jwt.Identity) *Client {
	cfg := hub.cfg
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		ID:      uuid.NewString(),
		UserID:  id.UserID,
		Email:   id.Email,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, cfg.SendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Enqueue 非阻塞地放入发送队列，队列满或连接已关闭时丢弃并返回 false
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		logger.Warn("发送队列已满，丢弃消息",
			zap.Uint("user_id", c.UserID),
			zap.String("conn_id", c.ID),
		)
		return false
	}
}

// Close 通知写协程发送关闭帧并断开，可重复调用
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// Done 连接关闭后可读
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// readPump 逐帧读取客户端事件，同一连接上的事件按顺序处理
func (c *Client) readPump() {
	cfg := c.hub.cfg
	defer func() {
		c.hub.Leave(context.Background(), c)
		c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.hub.touch(c)
		return c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		if !c.limiter.Allow() {
			logger.Warn("客户端事件过于频繁，丢弃",
				zap.Uint("user_id", c.UserID),
				zap.String("conn_id", c.ID),
			)
			continue
		}
		c.hub.HandleFrame(context.Background(), c, raw)
	}
}

func (c *Client) logReadError(err error) {
	fields := []zap.Field{zap.Uint("user_id", c.UserID), zap.String("conn_id", c.ID), zap.Error(err)}
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		logger.Warn("消息超过最大长度，断开连接", fields...)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		logger.Debug("客户端关闭连接", fields...)
	default:
		logger.Debug("读取WebSocket消息失败", fields...)
	}
}

// writePump 把发送队列写到连接上，并定时发送ping
func (c *Client) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debug("写WebSocket消息失败",
					zap.Uint("user_id", c.UserID),
					zap.String("conn_id", c.ID),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteTimeout)); err != nil {
				return
			}
		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(cfg.WriteTimeout))
			return
		}
	}
}
