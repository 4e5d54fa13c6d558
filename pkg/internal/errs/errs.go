// Package errs 定义资产生命周期与导入流水线的错误分类.
// 服务层返回这些类型，HTTP 层用 errors.As 映射到状态码：
//   - ClientError       → 400（不变量或业务规则被拒绝）
//   - NotFoundError     → 404
//   - ConflictError     → 409（名称唯一性冲突）
//   - ForbiddenError    → 403（存在但无权访问）
//   - StorageRelocationError → 导入失败，向作业侧报告
//   - ConversionError   → 仅记录在条目上，从不向调用方传播
package errs

import "fmt"

// ClientError 调用方违反生命周期不变量或业务规则.
type ClientError struct {
	Message string
}

func (e *ClientError) Error() string { return e.Message }

// Clientf 构造 ClientError.
func Clientf(format string, args ...any) *ClientError {
	return &ClientError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError 引用的记录不存在.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %s not found", e.Resource, e.ID)
}

// NotFound 构造 NotFoundError.
func NotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError 名称唯一性冲突.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// Conflictf 构造 ConflictError.
func Conflictf(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ForbiddenError 记录存在但调用方无权访问或操作.
// get-by-id 命中不可见记录时返回本错误而不是 NotFound.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

// Forbiddenf 构造 ForbiddenError.
func Forbiddenf(format string, args ...any) *ForbiddenError {
	return &ForbiddenError{Message: fmt.Sprintf(format, args...)}
}

// StorageRelocationError 暂存目录搬迁到永久存储失败.
// 导入处理器捕获后执行补偿删除，再把本错误作为导入失败上报.
type StorageRelocationError struct {
	From string
	To   string
	Err  error
}

func (e *StorageRelocationError) Error() string {
	return fmt.Sprintf("cannot move %s to final destination %s: %v", e.From, e.To, e.Err)
}

func (e *StorageRelocationError) Unwrap() error { return e.Err }

// ConversionError 转换器或 I/O 在条目转换期间失败.
// 只落在条目的 importError 字段上，不会中断兄弟条目.
type ConversionError struct {
	Input string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s: %v", e.Input, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }
