// Package rxgo provides reactive programming primitives for Go
// 基于Go泛型的推送式响应流引擎：冷Observable、热Subject、可注入调度器与可组合操作符
package rxgo

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ============================================================================
// 核心类型定义
// ============================================================================

// Kind 通知类型
type Kind int

const (
	// KindNext 普通值
	KindNext Kind = iota
	// KindError 错误终止
	KindError
	// KindComplete 正常完成
	KindComplete
)

// String 返回通知类型名称
func (k Kind) String() string {
	switch k {
	case KindNext:
		return "next"
	case KindError:
		return "error"
	case KindComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Item 表示流中的一个通知：值、错误或完成
type Item[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

// NextItem 创建包含值的通知
func NextItem[T any](value T) Item[T] {
	return Item[T]{Kind: KindNext, Value: value}
}

// ErrorItem 创建错误通知
func ErrorItem[T any](err error) Item[T] {
	return Item[T]{Kind: KindError, Err: err}
}

// CompleteItem 创建完成通知
func CompleteItem[T any]() Item[T] {
	return Item[T]{Kind: KindComplete}
}

// IsError 检查是否为错误通知
func (item Item[T]) IsError() bool {
	return item.Kind == KindError
}

// IsComplete 检查是否为完成通知
func (item Item[T]) IsComplete() bool {
	return item.Kind == KindComplete
}

// IsTerminal 检查是否为终止通知
func (item Item[T]) IsTerminal() bool {
	return item.Kind != KindNext
}

// Accept 把通知投递给观察者
func (item Item[T]) Accept(observer Observer[T]) {
	switch item.Kind {
	case KindNext:
		observer.OnNext(item.Value)
	case KindError:
		observer.OnError(item.Err)
	case KindComplete:
		observer.OnComplete()
	}
}

// ============================================================================
// 函数类型定义
// ============================================================================

// OnNext 处理下一个值的函数
type OnNext[T any] func(value T)

// OnError 处理错误的函数
type OnError func(err error)

// OnComplete 处理完成的函数
type OnComplete func()

// Predicate 谓词函数，用于过滤
type Predicate[T any] func(value T) bool

// Transformer 转换函数，返回的错误会作为操作符错误向下游传播
type Transformer[T, R any] func(value T) (R, error)

// Reducer 归约函数，用于聚合
type Reducer[A, T any] func(accumulator A, value T) A

// Teardown 生产者返回的清理函数，可以为nil
type Teardown func()

// ============================================================================
// 观察者
// ============================================================================

// Observer 观察者接口。每个订阅最多收到一次终止通知（OnError或OnComplete），
// 终止之后的调用被忽略。
type Observer[T any] interface {
	OnNext(value T)
	OnError(err error)
	OnComplete()
}

// funcObserver 由可选回调组成的观察者
type funcObserver[T any] struct {
	onNext     OnNext[T]
	onError    OnError
	onComplete OnComplete
}

// NewObserver 使用回调函数创建观察者，任意回调都可以为nil。
// 没有错误回调的观察者收到错误时会记录一条"unhandled error"日志，
// 需要处理错误的调用方应当显式提供onError或在链路上组合CatchError。
func NewObserver[T any](onNext OnNext[T], onError OnError, onComplete OnComplete) Observer[T] {
	return &funcObserver[T]{onNext: onNext, onError: onError, onComplete: onComplete}
}

func (o *funcObserver[T]) OnNext(value T) {
	if o.onNext != nil {
		o.onNext(value)
	}
}

func (o *funcObserver[T]) OnError(err error) {
	if o.onError != nil {
		o.onError(err)
		return
	}
	Logger().Error("unhandled error", "error", err)
}

func (o *funcObserver[T]) OnComplete() {
	if o.onComplete != nil {
		o.onComplete()
	}
}

// ============================================================================
// 生命周期管理
// ============================================================================

// Disposable 可释放资源的接口
type Disposable interface {
	// Dispose 释放资源，重复调用无副作用
	Dispose()
	// IsDisposed 检查是否已释放
	IsDisposed() bool
}

// Subscription 订阅接口，管理一次Subscribe调用的生命周期及其子资源
type Subscription interface {
	Disposable
	// Unsubscribe 取消订阅，等同于Dispose
	Unsubscribe()
	// IsUnsubscribed 检查是否已取消订阅
	IsUnsubscribed() bool
	// Add 注册子资源，已释放时立即释放该资源
	Add(disposable Disposable)
	// Remove 移除子资源但不释放它
	Remove(disposable Disposable)
}

// baseDisposable 基础可释放资源实现
type baseDisposable struct {
	disposed int32
	action   func()
}

// NewBaseDisposable 创建只执行一次action的可释放资源
func NewBaseDisposable(action func()) Disposable {
	return &baseDisposable{action: action}
}

// Dispose 释放资源
func (d *baseDisposable) Dispose() {
	if atomic.CompareAndSwapInt32(&d.disposed, 0, 1) {
		if d.action != nil {
			d.action()
		}
	}
}

// IsDisposed 检查是否已释放
func (d *baseDisposable) IsDisposed() bool {
	return atomic.LoadInt32(&d.disposed) == 1
}

// disposedDisposable 已释放的空资源
var disposedDisposable = func() Disposable {
	d := &baseDisposable{}
	d.Dispose()
	return d
}()

// CompositeDisposable 组合式资源管理器，也是订阅树中的一个节点。
// 释放时按注册顺序深度优先释放所有子资源，每个子资源只释放一次；
// 单个子资源的清理panic不会阻止其余兄弟资源的释放。
type CompositeDisposable struct {
	mu        sync.Mutex
	disposed  bool
	resources []Disposable
}

// NewCompositeDisposable 创建组合式资源管理器
func NewCompositeDisposable(resources ...Disposable) *CompositeDisposable {
	cd := &CompositeDisposable{}
	for _, r := range resources {
		cd.Add(r)
	}
	return cd
}

// Add 添加可释放资源
func (cd *CompositeDisposable) Add(disposable Disposable) {
	if disposable == nil || disposable == Disposable(cd) {
		return
	}

	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		disposable.Dispose()
		return
	}
	cd.resources = append(cd.resources, disposable)
	cd.mu.Unlock()
}

// AddFunc 添加一个清理函数
func (cd *CompositeDisposable) AddFunc(action func()) {
	cd.Add(NewBaseDisposable(action))
}

// Remove 移除资源但不释放
func (cd *CompositeDisposable) Remove(disposable Disposable) {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	for i, r := range cd.resources {
		if r == disposable {
			cd.resources = append(cd.resources[:i], cd.resources[i+1:]...)
			return
		}
	}
}

// Len 返回当前持有的子资源数量
func (cd *CompositeDisposable) Len() int {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return len(cd.resources)
}

// Dispose 释放所有资源
func (cd *CompositeDisposable) Dispose() {
	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		return
	}
	cd.disposed = true
	resources := cd.resources
	cd.resources = nil
	cd.mu.Unlock()

	var errs []error
	for _, resource := range resources {
		if err := SafeExecute(resource.Dispose); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		Logger().Error("teardown panicked", "error", NewCompositeError(errs))
	}
}

// IsDisposed 检查是否已释放
func (cd *CompositeDisposable) IsDisposed() bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.disposed
}

// Unsubscribe 取消订阅
func (cd *CompositeDisposable) Unsubscribe() {
	cd.Dispose()
}

// IsUnsubscribed 检查是否已取消订阅
func (cd *CompositeDisposable) IsUnsubscribed() bool {
	return cd.IsDisposed()
}

// ============================================================================
// 工具函数
// ============================================================================

// SafeExecute 安全执行函数，把panic转换为*PanicError
func SafeExecute(action func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPanicError(r)
		}
	}()

	action()
	return nil
}

var defaultLogger atomic.Pointer[slog.Logger]

// SetLogger 设置库内部使用的日志记录器，nil恢复为slog.Default()
func SetLogger(l *slog.Logger) {
	defaultLogger.Store(l)
}

// Logger 库内部使用的日志记录器，供扩展包共享同一配置
func Logger() *slog.Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// ============================================================================
// 配置选项
// ============================================================================

// Option 配置选项接口
type Option interface {
	Apply(config *Config)
}

// Config 配置结构
type Config struct {
	Scheduler  Scheduler
	BufferSize int
	Context    context.Context
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Scheduler:  DefaultScheduler,
		BufferSize: 16,
		Context:    context.Background(),
	}
}

type optionFunc func(config *Config)

func (f optionFunc) Apply(config *Config) {
	f(config)
}

// WithScheduler 指定时间相关操作使用的调度器
func WithScheduler(scheduler Scheduler) Option {
	return optionFunc(func(config *Config) {
		if scheduler != nil {
			config.Scheduler = scheduler
		}
	})
}

// WithBufferSize 指定channel桥接的缓冲区大小
func WithBufferSize(size int) Option {
	return optionFunc(func(config *Config) {
		if size >= 0 {
			config.BufferSize = size
		}
	})
}

// WithContext 指定上下文，上下文结束时订阅被释放
func WithContext(ctx context.Context) Option {
	return optionFunc(func(config *Config) {
		if ctx != nil {
			config.Context = ctx
		}
	})
}

func newConfig(options []Option) *Config {
	config := DefaultConfig()
	for _, opt := range options {
		if opt != nil {
			opt.Apply(config)
		}
	}
	return config
}
