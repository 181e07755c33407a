package service

import (
	"context"
	"strings"
	"time"

	"chat-server/config"
	"chat-server/internal/model"
	"chat-server/pkg/apperr"
	"chat-server/pkg/jwt"
	"chat-server/pkg/logger"
	"chat-server/pkg/mailer"

	"go.uber.org/zap"
)

const (
	defaultVerificationTTL = 24 * time.Hour
	defaultResetTTL        = time.Hour
	minPasswordLength      = 6
	notifyTimeout          = 30 * time.Second
)

// 对外提示文案
const (
	msgInvalidCredentials = "Invalid email or password"
	msgNotVerified        = "Email not verified. Please verify your email before logging in."
	msgLocked             = "Too many failed login attempts. Please try again later."
)

// SignupInput 注册参数
type SignupInput struct {
	Username string
	Email    string
	Password string
}

// LoginResult 登录结果
type LoginResult struct {
	Token string
	User  *model.User
}

// AuthService 注册、验证邮箱、登录、找回密码
type AuthService struct {
	users           UserStore
	hasher          PasswordHasher
	tokens          TokenIssuer
	sender          mailer.Sender
	lockout         LoginLimiter
	verificationTTL time.Duration
	resetTTL        time.Duration
	now             func() time.Time
}

// NewAuthService 创建AuthService实例，lockout 可为 nil
func NewAuthService(users UserStore, hasher PasswordHasher, tokens TokenIssuer, sender mailer.Sender, lockout LoginLimiter, cfg config.AuthConfig) *AuthService {
	s := &AuthService{
		users:           users,
		hasher:          hasher,
		tokens:          tokens,
		sender:          sender,
		lockout:         lockout,
		verificationTTL: cfg.VerificationTTL,
		resetTTL:        cfg.ResetTTL,
		now:             time.Now,
	}
	if s.verificationTTL <= 0 {
		s.verificationTTL = defaultVerificationTTL
	}
	if s.resetTTL <= 0 {
		s.resetTTL = defaultResetTTL
	}
	if s.lockout == nil {
		s.lockout = noLockout{}
	}
	return s
}

// noLockout 未启用登录锁定
type noLockout struct{}

func (noLockout) IsLocked(context.Context, string) (bool, error) { return false, nil }

func (noLockout) RecordFailure(context.Context, string, time.Time) (int64, error) { return 0, nil }

func (noLockout) Clear(context.Context, string) error { return nil }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup 注册：创建未验证用户并异步发送验证邮件
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return nil, apperr.Validation("Username, email and password are required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperr.Validation("Invalid email address")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.Validation("Password must be at least 6 characters")
	}

	exists, err := s.users.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("User already exists")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Store("Internal server error", err)
	}

	raw, tokenHash, err := newOneTimeToken()
	if err != nil {
		return nil, apperr.Store("Internal server error", err)
	}
	expires := s.now().Add(s.verificationTTL)

	user := &model.User{
		Username:                 username,
		Email:                    email,
		PasswordHash:             hash,
		VerificationToken:        &tokenHash,
		VerificationTokenExpires: &expires,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.Info("用户注册成功", zap.Uint("user_id", user.ID), zap.String("email", email))
	s.notify("verification", func(ctx context.Context) error {
		return s.sender.SendVerification(ctx, mailer.Recipient{Email: user.Email, Username: user.Username}, raw)
	})
	return user, nil
}

// VerifyEmail 使用邮箱验证令牌，未知或过期的令牌不会修改任何数据
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Validation("Verification token is required")
	}
	user, err := s.users.ConsumeVerificationToken(ctx, hashToken(token), s.now())
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.Validation("Invalid or expired verification token")
		}
		return err
	}
	logger.Info("邮箱验证成功", zap.Uint("user_id", user.ID))
	return nil
}

// Login 登录：校验密码与验证状态，签发24小时有效的访问令牌
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required")
	}

	if locked, err := s.lockout.IsLocked(ctx, email); err != nil {
		logger.Warn("查询登录锁定状态失败", zap.String("email", email), zap.Error(err))
	} else if locked {
		return nil, apperr.Auth(msgLocked, nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Validation(msgInvalidCredentials)
		}
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		if _, err := s.lockout.RecordFailure(ctx, email, s.now()); err != nil {
			logger.Warn("记录登录失败次数失败", zap.String("email", email), zap.Error(err))
		}
		return nil, apperr.Validation(msgInvalidCredentials)
	}

	if !user.IsVerified {
		s.resendVerification(ctx, user)
		return nil, apperr.Validation(msgNotVerified)
	}

	if err := s.lockout.Clear(ctx, email); err != nil {
		logger.Warn("清除登录失败计数失败", zap.String("email", email), zap.Error(err))
	}

	token, err := s.tokens.Issue(jwt.Identity{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, apperr.Store("Internal server error", err)
	}
	return &LoginResult{Token: token, User: user}, nil
}

// resendVerification 为未验证用户重新生成验证令牌并发送邮件，失败只记日志
// 库中只有摘要，无法重发旧令牌，所以每次都生成新的
func (s *AuthService) resendVerification(ctx context.Context, user *model.User) {
	raw, tokenHash, err := newOneTimeToken()
	if err != nil {
		logger.Error("生成验证令牌失败", zap.Error(err))
		return
	}
	if err := s.users.SetVerificationToken(ctx, user.ID, tokenHash, s.now().Add(s.verificationTTL)); err != nil {
		logger.Error("保存验证令牌失败", zap.Uint("user_id", user.ID), zap.Error(err))
		return
	}
	s.notify("verification", func(ctx context.Context) error {
		return s.sender.SendVerification(ctx, mailer.Recipient{Email: user.Email, Username: user.Username}, raw)
	})
}

// ForgotPassword 生成重置令牌并异步发送邮件
// 邮箱不存在时同样返回 nil，调用方看到的结果完全一致
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperr.Validation("Email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			logger.Info("找回密码：邮箱未注册", zap.String("email", email))
			return nil
		}
		return err
	}

	raw, tokenHash, err := newOneTimeToken()
	if err != nil {
		return apperr.Store("Internal server error", err)
	}
	if err := s.users.SetResetToken(ctx, user.ID, tokenHash, s.now().Add(s.resetTTL)); err != nil {
		return err
	}

	s.notify("password_reset", func(ctx context.Context) error {
		return s.sender.SendPasswordReset(ctx, mailer.Recipient{Email: user.Email, Username: user.Username}, raw)
	})
	return nil
}

// ResetPassword 使用重置令牌设置新密码
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return apperr.Validation("Token and new password are required")
	}
	if len(newPassword) < minPasswordLength {
		return apperr.Validation("Password must be at least 6 characters")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperr.Store("Internal server error", err)
	}
	if err := s.users.ConsumeResetToken(ctx, hashToken(token), s.now(), hash); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.Validation("Invalid or expired reset token")
		}
		return err
	}
	return nil
}

// notify 异步发送通知，不阻塞也不影响调用方
func (s *AuthService) notify(kind string, send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			logger.Error("发送通知邮件失败", zap.String("kind", kind), zap.Error(err))
		}
	}()
}
