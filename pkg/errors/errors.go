// Package errors 定义业务错误分类，Handler 据此映射 HTTP 状态码。
package errors

import (
	stderrors "errors"
	"net/http"
)

// Kind 业务错误类别
type Kind int

const (
	KindInvalid         Kind = iota + 1 // 参数缺失或不合法
	KindUnauthenticated                 // 未认证或凭证失效
	KindForbidden                       // 资源存在但无权操作
	KindNotFound                        // 资源不存在
	KindTooLarge                        // 上传文件超过大小上限
)

// HTTPStatus 类别对应的 HTTP 状态码
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalid:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Error 带业务码的错误，Service 层以包级变量形式声明
type Error struct {
	Kind    Kind
	Code    int
	Message string
}

// New 创建业务错误
func New(kind Kind, code int, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string { return e.Message }

// Is 业务码相同即视为同一错误，便于以不同提示语复用同一哨兵
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithMessage 复制错误并替换提示语
func (e *Error) WithMessage(message string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: message}
}

// As 从错误链中提取业务错误
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind 判断错误链中是否存在指定类别的业务错误
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
