// Package errs 定义请求处理流水线的错误分类
// 每类错误对应一个 HTTP 状态码，handler 层统一映射
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误类别
type Kind string

const (
	KindValidation         Kind = "validation"
	KindAuth               Kind = "auth"
	KindNotFound           Kind = "not_found"
	KindInsufficientCredit Kind = "insufficient_credit"
	KindProvider           Kind = "provider"
	KindPersistence        Kind = "persistence"
)

// Error 分类错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按类别匹配，errors.Is(err, errs.ErrNotFound) 成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// HTTPStatus 返回对应的 HTTP 状态码
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindInsufficientCredit:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// 类别哨兵，用于 errors.Is
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrAuth               = &Error{Kind: KindAuth}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInsufficientCredit = &Error{Kind: KindInsufficientCredit}
	ErrProvider           = &Error{Kind: KindProvider}
	ErrPersistence        = &Error{Kind: KindPersistence}
)

// Validation 请求格式或归属校验失败
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Auth 缺少或无效的会话
func Auth(msg string) error {
	return &Error{Kind: KindAuth, Message: msg}
}

// NotFound 资源不存在
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InsufficientCredit 余额不足
func InsufficientCredit(balance float64) error {
	return &Error{Kind: KindInsufficientCredit, Message: fmt.Sprintf("insufficient credit: balance %.4f", balance)}
}

// Provider 模型提供商调用失败
func Provider(err error) error {
	return &Error{Kind: KindProvider, Message: "provider error", Err: err}
}

// Persistence 持久化失败
func Persistence(op string, err error) error {
	return &Error{Kind: KindPersistence, Message: op, Err: err}
}

// StatusOf 返回任意错误的 HTTP 状态码
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// KindOf 返回错误类别，非分类错误返回空串
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound 是否为 NotFound 错误
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation 是否为校验错误
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
