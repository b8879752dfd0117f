package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/netdriver/netdriver/internal/task"
)

// CodeOK 成功
const CodeOK = "OK"

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// CommandResult 单个命令项的执行结果
type CommandResult struct {
	Command     string  `json:"command"`
	Mode        string  `json:"mode"`
	Ret         string  `json:"ret"`
	RetCode     string  `json:"ret_code"`
	DeviceError string  `json:"device_error,omitempty"`
	ErrMsg      string  `json:"err_msg,omitempty"`
	QueueTime   float64 `json:"queue_time"`
	ExecTime    float64 `json:"exec_time"`
}

// CmdResponse 命令执行响应
type CmdResponse struct {
	Code      string          `json:"code"`
	Msg       string          `json:"msg"`
	Time      float64         `json:"time"`
	RequestID string          `json:"request_id"`
	Output    string          `json:"output"`
	ErrMsg    string          `json:"err_msg"`
	Result    []CommandResult `json:"result"`
}

// ArchiveInfo 配置快照归档位置
type ArchiveInfo struct {
	URI      string `json:"uri"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// PullResponse 配置拉取响应
type PullResponse struct {
	Code      string       `json:"code"`
	Msg       string       `json:"msg"`
	Time      float64      `json:"time"`
	RequestID string       `json:"request_id"`
	Type      string       `json:"type"`
	Output    string       `json:"output"`
	ErrMsg    string       `json:"err_msg"`
	Archive   *ArchiveInfo `json:"archive,omitempty"`
}

// httpStatus 任务错误码到 HTTP 状态码
func httpStatus(err error) int {
	switch task.CodeOf(err) {
	case task.ErrCodeClientParam:
		return http.StatusBadRequest
	case task.ErrCodeQueueSaturated:
		return http.StatusTooManyRequests
	case task.ErrCodeEngineShutdown:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// abortWithError 同步错误（参数错误、队列满、引擎停止）直接返回
func abortWithError(c *gin.Context, err error) {
	code := string(task.CodeOf(err))
	msg := err.Error()
	if te, ok := task.GetError(err); ok {
		msg = te.Message
	}
	if code == "" {
		code = "INTERNAL_ERROR"
	}
	c.JSON(httpStatus(err), ErrorResponse{Code: code, Msg: msg})
}

// badRequest 请求体无法解析
func badRequest(c *gin.Context, err error) {
	var te *task.Error
	if !errors.As(err, &te) {
		err = task.ClientParamError("invalid request body: %v", err)
	}
	abortWithError(c, err)
}
