// Package apperr 定义服务内部统一的错误类别。
//
// 每个错误只属于一个类别，HTTP 层据此决定状态码，实时通道据此决定是否记录日志。
package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind int

const (
	// KindUnknown 未归类的错误，按存储错误处理
	KindUnknown Kind = iota
	// KindValidation 输入缺失或不合法
	KindValidation
	// KindAuth 认证失败
	KindAuth
	// KindNotFound 资源不存在
	KindNotFound
	// KindConflict 唯一约束冲突（邮箱/用户名重复）
	KindConflict
	// KindStore 后端存储故障
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error 带类别的错误，Message 可以直接返回给客户端
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is 同类别的 *Error 视为相等，便于 errors.Is(err, apperr.ErrNotFound)
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
	}
	return false
}

// 仅用于 errors.Is 比较的哨兵
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrStore      = &Error{Kind: KindStore}
)

// Validation 输入错误
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Auth 认证错误
func Auth(message string, err error) *Error {
	return &Error{Kind: KindAuth, Message: message, Err: err}
}

// NotFound 资源不存在
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict 唯一约束冲突
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Store 存储错误，Message 为面向客户端的描述，err 为底层原因
func Store(message string, err error) *Error {
	return &Error{Kind: KindStore, Message: message, Err: err}
}

// kinded 其他包的错误类型可以通过实现该接口声明自己的类别
type kinded interface {
	ErrorKind() Kind
}

// KindOf 返回错误链中第一个可识别的类别
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return KindUnknown
}

// MessageOf 返回可以展示给客户端的描述
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
