// Error types for RxGo
// 错误类型定义：空序列、超时、panic恢复、组合错误与HTTP状态错误
package rxgo

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

var (
	// ErrEmptySequence First/Last在源没有任何值就完成时发出的错误
	ErrEmptySequence = errors.New("rxgo: sequence contains no elements")

	// ErrTimeout 所有超时错误都满足errors.Is(err, ErrTimeout)
	ErrTimeout = errors.New("rxgo: timeout")
)

// PanicError 用户函数或生产者中被恢复的panic
type PanicError struct {
	Value interface{}
	Stack []byte
}

// NewPanicError 创建panic错误并记录当前调用栈
func NewPanicError(value interface{}) *PanicError {
	return &PanicError{Value: value, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("rxgo: recovered panic: %v", e.Value)
}

// Unwrap panic值本身是error时返回它
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// TimeoutError 超时错误
type TimeoutError struct {
	Duration time.Duration
}

// NewTimeoutError 创建超时错误
func NewTimeoutError(d time.Duration) *TimeoutError {
	return &TimeoutError{Duration: d}
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("rxgo: no notification within %v", e.Duration)
}

// Is 使errors.Is(err, ErrTimeout)成立
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// CompositeError 组合错误，用于包含多个错误
type CompositeError struct {
	errs []error
}

// NewCompositeError 创建组合错误
func NewCompositeError(errs []error) *CompositeError {
	return &CompositeError{errs: errs}
}

func (e *CompositeError) Error() string {
	if len(e.errs) == 0 {
		return "composite error with no errors"
	}

	parts := make([]string, len(e.errs))
	for i, err := range e.errs {
		parts[i] = err.Error()
	}
	return "composite error: " + strings.Join(parts, ", ")
}

// Errors 获取所有错误
func (e *CompositeError) Errors() []error {
	return e.errs
}

// Unwrap 支持errors.Is/As遍历所有内部错误
func (e *CompositeError) Unwrap() []error {
	return e.errs
}

// HTTPStatusError HTTP源收到非2xx响应
type HTTPStatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("rxgo: %s %s: unexpected status %s", e.Method, e.URL, e.Status)
}
