package jwt

import (
	"strings"

	"chat-server/pkg/logger"
	"chat-server/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// ContextUserIDKey 用户ID在gin.Context中的键名
	ContextUserIDKey = "user_id"
	// ContextEmailKey 邮箱在gin.Context中的键名
	ContextEmailKey = "email"
	// TokenCookieName 登录后下发的令牌cookie，实时连接握手优先读取它
	TokenCookieName = "token"
)

// BearerToken 从 Authorization: Bearer <token> 中取出令牌
func BearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// requestToken 优先 Authorization 头，其次登录时下发的 cookie
func requestToken(c *gin.Context) string {
	if tok := BearerToken(c.GetHeader("Authorization")); tok != "" {
		return tok
	}
	if tok, err := c.Cookie(TokenCookieName); err == nil {
		return tok
	}
	return ""
}

// AuthMiddleware JWT认证中间件
// 验证通过后把用户ID与邮箱存入gin.Context
func (s *JWTService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := s.Verify(requestToken(c))
		if err != nil {
			logger.Debug("JWT验证失败",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
			)
			response.Fail(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, id.UserID)
		c.Set(ContextEmailKey, id.Email)
		c.Next()
	}
}

// GetUserID 从gin.Context中获取用户ID
func GetUserID(c *gin.Context) uint {
	if v, exists := c.Get(ContextUserIDKey); exists {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// GetEmail 从gin.Context中获取邮箱
func GetEmail(c *gin.Context) string {
	return c.GetString(ContextEmailKey)
}
