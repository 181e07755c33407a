package handler

import (
	"context"
	"net/http"

	"chat-server/internal/model"
	"chat-server/internal/service"
	"chat-server/pkg/jwt"
	"chat-server/pkg/response"

	"github.com/gin-gonic/gin"
)

// Authenticator 账号相关用例
type Authenticator interface {
	Signup(ctx context.Context, in service.SignupInput) (*model.User, error)
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// AuthHandler 注册、登录、找回密码
// 账号接口上的存储错误按400返回
type AuthHandler struct {
	service      Authenticator
	secureCookie bool
}

func NewAuthHandler(s Authenticator, secureCookie bool) *AuthHandler {
	return &AuthHandler{service: s, secureCookie: secureCookie}
}

// UserInfo 登录响应中的用户信息
type UserInfo struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

// Signup 用户注册
func (h *AuthHandler) Signup(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.service.Signup(c.Request.Context(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.FailClient(c, err)
		return
	}

	response.Created(c,
		"User created. Verification email will be sent shortly. Please verify your email to activate your account.",
		UserInfo{ID: user.ID, Username: user.Username, Email: user.Email},
	)
}

// VerifyEmail 验证邮箱
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	if err := h.service.VerifyEmail(c.Request.Context(), c.Query("token")); err != nil {
		response.FailClient(c, err)
		return
	}
	response.SuccessWithMessage(c, "Email verified successfully.", nil)
}

// Login 用户登录，令牌同时写入响应体和HttpOnly cookie
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	res, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.FailClient(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(jwt.TokenCookieName, res.Token, int(jwt.TokenTTL.Seconds()), "/", "", h.secureCookie, true)

	response.SuccessWithMessage(c, "Login successful", LoginResponse{
		Token: res.Token,
		User:  UserInfo{ID: res.User.ID, Username: res.User.Username, Email: res.User.Email},
	})
}

// Logout 清除令牌cookie，令牌本身在过期前仍然有效
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(jwt.TokenCookieName, "", -1, "/", "", h.secureCookie, true)
	response.SuccessWithMessage(c, "Logged out", nil)
}

// ForgotPassword 申请重置密码，邮箱是否存在返回完全相同的结果
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.service.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		response.FailClient(c, err)
		return
	}
	response.SuccessWithMessage(c, "If that email is registered, a password reset link has been sent.", nil)
}

// ResetPassword 使用重置令牌设置新密码
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		response.FailClient(c, err)
		return
	}
	response.SuccessWithMessage(c, "Password has been reset successfully.", nil)
}
