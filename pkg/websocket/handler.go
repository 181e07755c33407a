package websocket

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chat-server/pkg/jwt"
	"chat-server/pkg/logger"
	"chat-server/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TokenVerifier 校验访问令牌
type TokenVerifier interface {
	Verify(token string) (jwt.Identity, error)
}

// Handler WebSocket握手：认证通过才升级连接并交给Hub
type Handler struct {
	hub      *Hub
	verifier TokenVerifier
	upgrader websocket.Upgrader
}

// NewHandler 创建握手处理器，allowedOrigins 含 "*" 时允许任意来源
func NewHandler(hub *Hub, verifier TokenVerifier, allowedOrigins []string) *Handler {
	checker := newOriginChecker(allowedOrigins)
	return &Handler{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      checker.allowed,
		},
	}
}

// ServeWS Gin路由处理函数
func (h *Handler) ServeWS(c *gin.Context) {
	token, protocol := ExtractToken(c.Request)
	identity, err := h.verifier.Verify(token)
	if err != nil {
		logger.Debug("WebSocket握手认证失败",
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		response.Fail(c, err)
		return
	}

	// 回显子协议，避免客户端提示 "Server sent no subprotocol"
	var respHeader http.Header
	if protocol != "" {
		respHeader = http.Header{"Sec-WebSocket-Protocol": []string{protocol}}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, respHeader)
	if err != nil {
		// Upgrade 已经写好了错误响应
		logger.Debug("WebSocket升级失败", zap.Uint("user_id", identity.UserID), zap.Error(err))
		return
	}

	client := newClient(h.hub, conn, identity)
	if err := h.hub.Join(context.Background(), client); err != nil {
		logger.Error("登记WebSocket连接失败",
			zap.Uint("user_id", identity.UserID),
			zap.String("conn_id", client.ID),
			zap.Error(err),
		)
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

// ExtractToken 按顺序查找令牌：cookie、?token=、Authorization: Bearer、Sec-WebSocket-Protocol
// 令牌来自子协议时，第二个返回值是需要回显的子协议
func ExtractToken(r *http.Request) (token, protocol string) {
	if ck, err := r.Cookie(jwt.TokenCookieName); err == nil && ck.Value != "" {
		if v, err := url.QueryUnescape(ck.Value); err == nil {
			return v, ""
		}
		return ck.Value, ""
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t, ""
	}
	if t := jwt.BearerToken(r.Header.Get("Authorization")); t != "" {
		return t, ""
	}

	protocols := websocket.Subprotocols(r)
	switch {
	case len(protocols) >= 2 && strings.EqualFold(protocols[0], "Bearer"):
		// Sec-WebSocket-Protocol: Bearer, <token>
		return protocols[1], protocols[0]
	case len(protocols) == 1:
		if t := jwt.BearerToken(protocols[0]); t != "" {
			return t, protocols[0]
		}
	}
	return "", ""
}

// originChecker 来源白名单
type originChecker struct {
	allowAll bool
	origins  map[string]struct{}
}

func newOriginChecker(origins []string) *originChecker {
	oc := &originChecker{origins: make(map[string]struct{})}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			oc.allowAll = true
			continue
		}
		if n, ok := normalizeOrigin(o); ok {
			oc.origins[n] = struct{}{}
		} else {
			logger.Warn("忽略无效的Origin配置", zap.String("origin", o))
		}
	}
	return oc
}

// allowed 没有 Origin 头的非浏览器客户端直接放行
func (oc *originChecker) allowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || oc.allowAll {
		return true
	}
	n, ok := normalizeOrigin(origin)
	if ok {
		if _, exists := oc.origins[n]; exists {
			return true
		}
	}
	logger.Warn("拒绝来自未授权Origin的WebSocket连接", zap.String("origin", origin))
	return false
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}
