package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// AppError 应用级错误结构
// Status 为 0 时由错误码推导 HTTP 状态码
type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误
func WrapError(code, message string, err error) error {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewError 创建新错误
func NewError(code, message string) error {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Upstream 创建携带上游状态码的错误，message 原样透传给调用方
func Upstream(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &AppError{
		Code:    ErrCodeUpstream,
		Message: message,
		Status:  status,
	}
}

// 错误码常量
const (
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeUpstream            = "UPSTREAM_ERROR"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeTimeout             = "TIMEOUT"
	ErrCodeReadmeNotFound      = "README_NOT_FOUND"
	ErrCodeReadmeForbidden     = "README_FORBIDDEN"
	ErrCodeReadmeEmpty         = "README_EMPTY"
	ErrCodeNotConfigured       = "NOT_CONFIGURED"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

var codeStatus = map[string]int{
	ErrCodeInvalidInput:        http.StatusBadRequest,
	ErrCodeUpstream:            http.StatusBadGateway,
	ErrCodeUpstreamUnavailable: http.StatusBadGateway,
	ErrCodeTimeout:             http.StatusGatewayTimeout,
	ErrCodeReadmeNotFound:      http.StatusNotFound,
	ErrCodeReadmeForbidden:     http.StatusForbidden,
	ErrCodeReadmeEmpty:         http.StatusUnprocessableEntity,
	ErrCodeNotConfigured:       http.StatusServiceUnavailable,
	ErrCodeRateLimited:         http.StatusTooManyRequests,
	ErrCodeInternal:            http.StatusInternalServerError,
}

// CodeOf 取出错误链上的错误码，超时类错误统一归为 TIMEOUT
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout
	}
	return ErrCodeInternal
}

// HTTPStatus 把任意错误映射为 HTTP 状态码
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= 400 && appErr.Status < 600 {
			return appErr.Status
		}
		if s, ok := codeStatus[appErr.Code]; ok {
			return s
		}
	}
	if s, ok := codeStatus[CodeOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// PublicMessage 返回可以直接展示给调用方的错误文本
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	return "Internal server error"
}
