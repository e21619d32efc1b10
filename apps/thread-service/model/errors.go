package model

import "errors"

// 业务错误分类，handler 层通过 errors.Is 映射为HTTP状态码
var (
	// ErrNotFound 目标资源不存在（或已删除且不可操作）
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden 操作者无权执行该操作
	ErrForbidden = errors.New("operation forbidden")
	// ErrConflict 目标状态不允许该操作
	ErrConflict = errors.New("operation conflicts with current state")
	// ErrTimeout 操作超出时间上限，可安全重试
	ErrTimeout = errors.New("operation timed out")
	// ErrValidation 请求参数校验失败
	ErrValidation = errors.New("validation failed")
)
