package task

import (
	"errors"
	"fmt"
)

// ErrorCode 任务错误码
type ErrorCode string

const (
	// 提交阶段同步返回
	ErrCodeClientParam    ErrorCode = "CLIENT_PARAM_ERROR"
	ErrCodeQueueSaturated ErrorCode = "QUEUE_SATURATED"
	ErrCodeEngineShutdown ErrorCode = "ENGINE_SHUTDOWN"

	// 执行阶段写入任务结果
	ErrCodeModeTransitionTimeout ErrorCode = "MODE_TRANSITION_TIMEOUT"
	ErrCodeCommandTimeout        ErrorCode = "COMMAND_TIMEOUT"
	ErrCodeSessionLost           ErrorCode = "SESSION_LOST"
	ErrCodeDeviceReported        ErrorCode = "DEVICE_REPORTED_ERROR"
	ErrCodeCancelled             ErrorCode = "TASK_CANCELLED"
	ErrCodeConnectionFailed      ErrorCode = "CONNECTION_FAILED"
)

// Error 任务错误
type Error struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error 实现error接口
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Unwrap
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 同错误码即视为相同错误，便于 errors.Is(err, ErrQueueSaturated)
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Cause == nil
}

// WithDetail 添加错误详情
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewError 创建任务错误
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorWithCause 创建带原因的任务错误
func NewErrorWithCause(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// 用于 errors.Is 比较的哨兵错误
var (
	ErrClientParam           = &Error{Code: ErrCodeClientParam}
	ErrQueueSaturated        = &Error{Code: ErrCodeQueueSaturated}
	ErrEngineShutdown        = &Error{Code: ErrCodeEngineShutdown}
	ErrModeTransitionTimeout = &Error{Code: ErrCodeModeTransitionTimeout}
	ErrCommandTimeout        = &Error{Code: ErrCodeCommandTimeout}
	ErrSessionLost           = &Error{Code: ErrCodeSessionLost}
	ErrDeviceReported        = &Error{Code: ErrCodeDeviceReported}
	ErrCancelled             = &Error{Code: ErrCodeCancelled}
	ErrConnectionFailed      = &Error{Code: ErrCodeConnectionFailed}
)

// ClientParamError 参数错误
func ClientParamError(format string, args ...interface{}) *Error {
	return NewError(ErrCodeClientParam, fmt.Sprintf(format, args...))
}

// QueueSaturatedError 队列已满
func QueueSaturatedError(capacity int) *Error {
	return NewError(ErrCodeQueueSaturated, "task queue is full").WithDetail("capacity", capacity)
}

// EngineShutdownError 引擎已停止接收任务
func EngineShutdownError() *Error {
	return NewError(ErrCodeEngineShutdown, "engine is shutting down")
}

// ModeTransitionTimeoutError 模式切换后未匹配到目标提示符
func ModeTransitionTimeoutError(from, to, command string, cause error) *Error {
	return NewErrorWithCause(ErrCodeModeTransitionTimeout,
		fmt.Sprintf("switch mode %s -> %s by %q timed out", from, to, command), cause)
}

// CommandTimeoutError 命令执行超时
func CommandTimeoutError(command string, cause error) *Error {
	return NewErrorWithCause(ErrCodeCommandTimeout, fmt.Sprintf("command %q timed out", command), cause)
}

// SessionLostError 会话中断
func SessionLostError(cause error) *Error {
	return NewErrorWithCause(ErrCodeSessionLost, "session lost", cause)
}

// DeviceReportedError 设备返回错误信息
func DeviceReportedError(text string) *Error {
	return NewError(ErrCodeDeviceReported, text)
}

// ConnectionFailedError 建立会话失败
func ConnectionFailedError(cause error) *Error {
	return NewErrorWithCause(ErrCodeConnectionFailed, "acquire session failed", cause)
}

// IsErrorCode 检查错误是否为指定错误码
func IsErrorCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetError 从错误链中提取任务错误
func GetError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf 错误码，非任务错误返回空串
func CodeOf(err error) ErrorCode {
	if e, ok := GetError(err); ok {
		return e.Code
	}
	return ""
}
