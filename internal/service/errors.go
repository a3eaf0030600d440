package service

import (
	"errors"
	"fmt"
)

// Kind 订单子系统的错误分类，路由层据此映射 HTTP 状态码。
type Kind int

const (
	KindServer Kind = iota
	KindValidation
	KindNotFound
	KindInvalidState
	KindInsufficientStock
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindInsufficientStock:
		return "insufficient_stock"
	default:
		return "server"
	}
}

// Error 带分类的业务错误。Message 面向调用方，Err 保留底层原因用于日志。
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

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func notFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func invalidState(format string, args ...any) *Error {
	return newError(KindInvalidState, format, args...)
}

func insufficientStock(format string, args ...any) *Error {
	return newError(KindInsufficientStock, format, args...)
}

func serverError(message string, err error) *Error {
	return &Error{Kind: KindServer, Message: message, Err: err}
}

// KindOf 返回 err 链上第一个 *Error 的分类；非业务错误一律视为 KindServer。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServer
}

// PublicMessage 返回可以直接回给客户端的提示，非业务错误不暴露细节。
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}
