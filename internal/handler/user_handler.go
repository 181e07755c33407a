package handler

import (
	"context"
	"strconv"

	"chat-server/internal/model"
	"chat-server/pkg/jwt"
	"chat-server/pkg/response"

	"github.com/gin-gonic/gin"
)

// UserReader 用户查询用例
type UserReader interface {
	List(ctx context.Context, callerID uint) ([]model.User, error)
	Get(ctx context.Context, id uint) (*model.User, error)
	OnlineIDs(ctx context.Context) ([]uint, error)
}

type UserHandler struct {
	service UserReader
}

func NewUserHandler(s UserReader) *UserHandler {
	return &UserHandler{service: s}
}

// List 除自己以外的所有用户
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.service.List(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		response.FailClient(c, err)
		return
	}
	response.Success(c, users)
}

// Profile 当前登录用户
func (h *UserHandler) Profile(c *gin.Context) {
	h.respondUser(c, jwt.GetUserID(c))
}

// GetByID 按ID获取用户
func (h *UserHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	h.respondUser(c, id)
}

func (h *UserHandler) respondUser(c *gin.Context, id uint) {
	user, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.FailClient(c, err)
		return
	}
	response.Success(c, user)
}

// Online 当前在线用户ID
func (h *UserHandler) Online(c *gin.Context) {
	ids, err := h.service.OnlineIDs(c.Request.Context())
	if err != nil {
		response.FailClient(c, err)
		return
	}
	response.Success(c, ids)
}

// parseID 解析路径中的正整数ID，失败时直接写400
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "Invalid user ID")
		return 0, false
	}
	return uint(id), true
}
