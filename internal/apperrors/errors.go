package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// AppError 应用错误类型
// 用于统一管理业务错误，包含错误码和错误消息
type AppError struct {
	Code    int    // 错误码
	Message string // 用户可见的错误消息
	Err     error  // 原始错误（可选，用于调试）
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError 创建新错误
func NewError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装原始错误
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Is 判断是否为指定错误
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// GetCode 获取错误码，如果不是 AppError 返回默认错误码
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeServerRejected
}

// GetMessage 获取错误消息
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "请求失败"
}

// IsTransient 判断是否为瞬时错误（网络/超时类）
// 瞬时错误不向用户弹出提示，由后续的推送消息修正本地状态
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code == CodeNetwork {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// ============== 错误码定义 ==============

const (
	CodeSuccess = 0

	// 校验相关 20000-20999
	CodeInvalidChannelNumber = 20001
	CodeChannelExists        = 20002
	CodeRoomCompleted        = 20003
	CodeNoChannelsFound      = 20004
	CodeRequestInFlight      = 20005
	CodeNoChannelSelected    = 20006
	CodeNoNewChannels        = 20007
	CodeChannelNotFound      = 20008
	CodeRoomNotLoaded        = 20009

	// 网络/服务器相关 30000-30999
	CodeNotConnected     = 30001
	CodeNetwork          = 30002
	CodeServerRejected   = 30003
	CodeMalformedPayload = 30004
)

// ============== 预定义错误 ==============

// 校验相关
var (
	ErrInvalidChannelNumber = NewError(CodeInvalidChannelNumber, "频道编号无效")
	ErrChannelExists        = NewError(CodeChannelExists, "频道已存在")
	ErrRoomCompleted        = NewError(CodeRoomCompleted, "讨伐已完成，无法修改")
	ErrNoChannelsFound      = NewError(CodeNoChannelsFound, "未识别到有效的频道编号")
	ErrRequestInFlight      = NewError(CodeRequestInFlight, "请求处理中，请稍候")
	ErrNoChannelSelected    = NewError(CodeNoChannelSelected, "请先选择频道")
	ErrNoNewChannels        = NewError(CodeNoNewChannels, "所有频道编号均已存在")
	ErrChannelNotFound      = NewError(CodeChannelNotFound, "频道不存在")
	ErrRoomNotLoaded        = NewError(CodeRoomNotLoaded, "房间尚未加载")
)

// 网络/服务器相关
var (
	ErrNotConnected     = NewError(CodeNotConnected, "尚未连接到推送服务")
	ErrNetwork          = NewError(CodeNetwork, "网络请求失败")
	ErrMalformedPayload = NewError(CodeMalformedPayload, "推送消息格式错误")
)

// ServerError 根据服务器返回的消息构造拒绝错误
func ServerError(message string) *AppError {
	if message == "" {
		message = "服务器拒绝了请求"
	}
	return NewError(CodeServerRejected, message)
}
