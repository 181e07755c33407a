package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"chat-server/config"
	"chat-server/pkg/apperr"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// TokenTTL 令牌固定有效期，过期后只能重新登录，没有刷新机制
const TokenTTL = 24 * time.Hour

// AuthReason 认证失败原因
type AuthReason int

const (
	// ReasonMissing 未携带令牌
	ReasonMissing AuthReason = iota + 1
	// ReasonInvalid 签名或格式错误
	ReasonInvalid
	// ReasonExpired 已过期
	ReasonExpired
)

func (r AuthReason) String() string {
	switch r {
	case ReasonMissing:
		return "missing"
	case ReasonInvalid:
		return "invalid"
	case ReasonExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// AuthError 令牌校验失败
type AuthError struct {
	Reason AuthReason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %v", e.Reason, e.Err)
	}
	return "auth " + e.Reason.String()
}

func (e *AuthError) Unwrap() error { return e.Err }

// ErrorKind 归入 apperr 的认证类别
func (e *AuthError) ErrorKind() apperr.Kind { return apperr.KindAuth }

// IsReason 判断错误是否为指定原因的认证错误
func IsReason(err error, reason AuthReason) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Reason == reason
}

// Identity 令牌中携带的身份信息
type Identity struct {
	UserID uint
	Email  string
}

// CustomClaims 自定义声明载荷，用户ID存放在 Subject
type CustomClaims struct {
	Email string `json:"email"`
	jwtv5.RegisteredClaims
}

// JWTService 提供 JWT 生成与校验能力（HS256）
type JWTService struct {
	secretKey []byte
	issuer    string
	now       func() time.Time
}

// NewJWTService 创建 JWT 服务
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secretKey: []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		now:       time.Now,
	}
}

// WithClock 替换时钟，测试过期逻辑时使用
func (s *JWTService) WithClock(now func() time.Time) *JWTService {
	cp := *s
	cp.now = now
	return &cp
}

// Issue 签发访问令牌
func (s *JWTService) Issue(id Identity) (string, error) {
	if id.UserID == 0 {
		return "", errors.New("user id is required")
	}

	now := s.now()
	claims := &CustomClaims{
		Email: id.Email,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   strconv.FormatUint(uint64(id.UserID), 10),
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(TokenTTL)),
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token failed: %w", err)
	}
	return signed, nil
}

// Verify 校验令牌并取出身份，失败时返回 *AuthError
func (s *JWTService) Verify(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, &AuthError{Reason: ReasonMissing}
	}

	claims := &CustomClaims{}
	parsed, err := jwtv5.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwtv5.Token) (interface{}, error) {
			if token.Method != jwtv5.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secretKey, nil
		},
		jwtv5.WithIssuer(s.issuer),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return Identity{}, &AuthError{Reason: ReasonExpired, Err: err}
		}
		return Identity{}, &AuthError{Reason: ReasonInvalid, Err: err}
	}
	if !parsed.Valid {
		return Identity{}, &AuthError{Reason: ReasonInvalid}
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return Identity{}, &AuthError{Reason: ReasonInvalid, Err: errors.New("bad subject")}
	}
	return Identity{UserID: uint(userID), Email: claims.Email}, nil
}

// PublicMessage 返回给客户端的描述
func (e *AuthError) PublicMessage() string {
	switch e.Reason {
	case ReasonMissing:
		return "No token provided"
	case ReasonExpired:
		return "Token expired"
	default:
		return "Invalid token"
	}
}
