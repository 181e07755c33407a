package logger

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader 请求ID响应头
const RequestIDHeader = "X-Request-ID"

// ContextRequestIDKey 请求ID在gin.Context中的键名
const ContextRequestIDKey = "request_id"

// RequestID 为每个请求分配请求ID（沿用客户端传入的值）
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// ErrorLoggerMiddleware 错误日志中间件，panic 时返回统一的500响应
func ErrorLoggerMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		Error("HTTP请求发生panic",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", c.GetString(ContextRequestIDKey)),
			zap.String("error", fmt.Sprint(recovered)),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Internal server error",
		})
	})
}

// RequestLogger 请求日志记录器
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := WithFields(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"ip":         c.ClientIP(),
			"status":     status,
			"latency":    latency.String(),
			"request_id": c.GetString(ContextRequestIDKey),
			"user_agent": c.Request.UserAgent(),
		})

		// 根据状态码选择日志级别
		switch {
		case status >= 500:
			logger.Error("HTTP请求错误", zap.String("errors", c.Errors.String()))
		case status >= 400:
			logger.Warn("HTTP请求警告")
		default:
			logger.Info("HTTP请求成功")
		}
	}
}
