package response

import (
	"errors"
	"net/http"

	"chat-server/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Success bool        `json:"success"`         // 是否成功
	Message string      `json:"message"`         // 响应消息
	Data    interface{} `json:"data,omitempty"`  // 响应数据
	Error   string      `json:"error,omitempty"` // 错误详情（仅在调试模式显示）
}

// publicMessager 自带客户端描述的错误
type publicMessager interface {
	PublicMessage() string
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Created 201 响应
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, Response{
		Success: false,
		Message: message,
	})
}

// ErrorWithDetails 带错误详情的错误响应
func ErrorWithDetails(c *gin.Context, status int, message string, err error) {
	resp := Response{
		Success: false,
		Message: message,
	}

	// 在调试模式下显示错误详情
	if gin.Mode() == gin.DebugMode && err != nil {
		resp.Error = err.Error()
	}

	c.JSON(status, resp)
}

// Fail 按错误类别输出响应，存储错误返回500
func Fail(c *gin.Context, err error) {
	fail(c, err, http.StatusInternalServerError)
}

// FailClient 同 Fail，但存储错误按400返回（账号相关接口沿用该约定）
func FailClient(c *gin.Context, err error) {
	fail(c, err, http.StatusBadRequest)
}

func fail(c *gin.Context, err error, storeStatus int) {
	_ = c.Error(err)

	status := StatusOf(err, storeStatus)
	message := apperr.MessageOf(err, http.StatusText(status))
	var pm publicMessager
	if errors.As(err, &pm) {
		message = pm.PublicMessage()
	}
	ErrorWithDetails(c, status, message, err)
}

// StatusOf 错误类别到HTTP状态码
func StatusOf(err error, storeStatus int) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindConflict:
		return http.StatusBadRequest
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return storeStatus
	}
}

// BadRequest 400错误
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}
