package model

import (
	"errors"
	"fmt"
)

// ErrorCode 分析错误类别
type ErrorCode string

const (
	ErrInvalidInput           ErrorCode = "INVALID_INPUT"
	ErrSegmentation           ErrorCode = "SEGMENTATION_ERROR"
	ErrClimateDataUnavailable ErrorCode = "CLIMATE_DATA_UNAVAILABLE"
	ErrGeometryInconsistency  ErrorCode = "GEOMETRY_INCONSISTENCY"
	ErrRendererUnavailable    ErrorCode = "RENDERER_UNAVAILABLE"
	ErrQueueFull              ErrorCode = "QUEUE_FULL"
)

// AnalysisError 携带类别的分析错误，Detail 面向调用方说明具体字段或原因
type AnalysisError struct {
	Code    ErrorCode
	Message string
	Detail  string
	Cause   error
}

func (e *AnalysisError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// NewInvalidInput 输入校验失败，不可恢复
func NewInvalidInput(detail string) *AnalysisError {
	return &AnalysisError{
		Code:    ErrInvalidInput,
		Message: "invalid input",
		Detail:  detail,
	}
}

// NewSegmentationError 分割模型失败
func NewSegmentationError(detail string, cause error) *AnalysisError {
	return &AnalysisError{
		Code:    ErrSegmentation,
		Message: "segmentation failed",
		Detail:  detail,
		Cause:   cause,
	}
}

// NewClimateDataUnavailable 气候数据查询失败
func NewClimateDataUnavailable(detail string, cause error) *AnalysisError {
	return &AnalysisError{
		Code:    ErrClimateDataUnavailable,
		Message: "climate data unavailable",
		Detail:  detail,
		Cause:   cause,
	}
}

// NewGeometryInconsistency 面积约束被破坏，可恢复
func NewGeometryInconsistency(detail string) *AnalysisError {
	return &AnalysisError{
		Code:    ErrGeometryInconsistency,
		Message: "geometry inconsistency",
		Detail:  detail,
	}
}

// NewRendererUnavailable 外部渲染服务不可用
func NewRendererUnavailable(cause error) *AnalysisError {
	return &AnalysisError{
		Code:    ErrRendererUnavailable,
		Message: "renderer unavailable",
		Cause:   cause,
	}
}

// NewQueueFull 处理队列已满
func NewQueueFull() *AnalysisError {
	return &AnalysisError{
		Code:    ErrQueueFull,
		Message: "analysis queue is full",
	}
}

// CodeOf 提取错误类别，非 AnalysisError 返回空串
func CodeOf(err error) ErrorCode {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsCode 判断错误链中是否存在指定类别
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
