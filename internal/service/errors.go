package service

import (
	"errors"
	"fmt"
)

// Kind 错误类别，API 层据此选择 HTTP 状态码
type Kind int

const (
	KindInternal Kind = iota
	// KindUnauthorized 缺失或无效的凭证
	KindUnauthorized
	// KindForbidden 凭证有效但越权（项目不匹配、跨项目冲突）
	KindForbidden
	KindValidation
	KindNotFound
	KindConflict
)

const (
	CodeMissingToken       = "MISSING_TOKEN"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeMissingCredentials = "MISSING_CREDENTIALS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeProjectKeyMismatch = "PROJECT_KEY_MISMATCH"
	CodeForbidden          = "FORBIDDEN"
	CodeInvalidStatus      = "INVALID_STATUS"
	CodeBadRequest         = "BAD_REQUEST"
	CodeNodeNotFound       = "NODE_NOT_FOUND"
	CodeTaskNotFound       = "TASK_NOT_FOUND"
	CodeNodeExists         = "NODE_EXISTS"
	CodeTaskConflict       = "TASK_CONFLICT"
	CodeInternal           = "INTERNAL_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
)

// Error 业务错误，携带错误类别与对外错误码
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewUnauthorizedError(code, message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: message}
}

func NewForbiddenError(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

func NewValidationError(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func NewNotFoundError(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func NewConflictError(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func NewInternalError(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "internal error", Err: err}
}

// AsError 把任意错误归一为 *Error，未分类的错误视为内部错误
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewInternalError(err)
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
