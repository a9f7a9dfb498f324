// Observable implementation for RxGo
// Observable核心实现：生产者契约、订阅协议与安全订阅者
package rxgo

import (
	"context"
	"sync"
	"sync/atomic"
)

// ============================================================================
// Observable 核心实现
// ============================================================================

// Subscriber 生产者看到的订阅者：一个观察者加上挂载子资源的能力
type Subscriber[T any] interface {
	Observer[T]
	// Add 把子资源挂到本次订阅上，订阅释放时一并释放
	Add(disposable Disposable)
	// IsUnsubscribed 下游是否已经取消订阅或已终止
	IsUnsubscribed() bool
}

// Producer 生产者函数，每次订阅都会重新调用
type Producer[T any] func(subscriber Subscriber[T]) Teardown

// Observable 描述"给定一个观察者如何产生T流"的不可变值。
// 在被订阅之前不持有任何状态，每次Subscribe都会创建独立的生产者实例。
// 零值Observable永远不发射任何通知。
type Observable[T any] struct {
	producer Producer[T]
}

// Create 从生产者函数创建冷Observable
func Create[T any](producer Producer[T]) Observable[T] {
	return Observable[T]{producer: producer}
}

// Subscribe 订阅观察者。
// 释放返回的Subscription会执行生产者的Teardown（只执行一次），并丢弃之后的所有投递。
// 生产者在Subscribe期间同步抛出的panic会在释放订阅后重新抛给调用方。
func (o Observable[T]) Subscribe(observer Observer[T]) Subscription {
	if observer == nil {
		observer = NewObserver[T](nil, nil, nil)
	}
	s := newSubscriber(observer)
	o.subscribeWith(s)
	return s
}

// SubscribeWithCallbacks 使用回调函数订阅，任意回调都可以为nil
func (o Observable[T]) SubscribeWithCallbacks(onNext OnNext[T], onError OnError, onComplete OnComplete) Subscription {
	return o.Subscribe(NewObserver(onNext, onError, onComplete))
}

// TrySubscribe 与Subscribe相同，但把订阅期间的panic作为错误返回
func (o Observable[T]) TrySubscribe(observer Observer[T]) (sub Subscription, err error) {
	defer func() {
		if r := recover(); r != nil {
			sub = NewCompositeDisposable()
			sub.Dispose()
			err = NewPanicError(r)
		}
	}()

	return o.Subscribe(observer), nil
}

// SubscribeContext 订阅观察者，ctx结束时自动释放订阅
func (o Observable[T]) SubscribeContext(ctx context.Context, observer Observer[T]) Subscription {
	sub := o.Subscribe(observer)
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, sub.Dispose)
		sub.Add(NewBaseDisposable(func() { stop() }))
	}
	return sub
}

func (o Observable[T]) subscribeWith(s *subscriber[T]) {
	if o.producer == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.Dispose()
			panic(r)
		}
	}()

	if teardown := o.producer(s); teardown != nil {
		s.AddFunc(teardown)
	}
}

// ============================================================================
// 安全订阅者
// ============================================================================

// subscriber 保证终止语义的订阅者：最多一次终止通知，终止或释放后丢弃所有投递，
// 终止后自动释放自身及其子资源
type subscriber[T any] struct {
	*CompositeDisposable
	destination Observer[T]
	stopped     int32
}

func newSubscriber[T any](destination Observer[T]) *subscriber[T] {
	return &subscriber[T]{
		CompositeDisposable: NewCompositeDisposable(),
		destination:         destination,
	}
}

func (s *subscriber[T]) OnNext(value T) {
	if atomic.LoadInt32(&s.stopped) == 1 || s.IsDisposed() {
		return
	}
	s.destination.OnNext(value)
}

func (s *subscriber[T]) OnError(err error) {
	if !atomic.CompareAndSwapInt32(&s.stopped, 0, 1) || s.IsDisposed() {
		return
	}
	defer s.Dispose()
	s.destination.OnError(err)
}

func (s *subscriber[T]) OnComplete() {
	if !atomic.CompareAndSwapInt32(&s.stopped, 0, 1) || s.IsDisposed() {
		return
	}
	defer s.Dispose()
	s.destination.OnComplete()
}

// IsUnsubscribed 已终止或已释放
func (s *subscriber[T]) IsUnsubscribed() bool {
	return atomic.LoadInt32(&s.stopped) == 1 || s.IsDisposed()
}

// subscribeInner 订阅source，子订阅在生产者运行之前就挂到parent上，
// 这样同步发射期间的释放也能向上游传播
func subscribeInner[T any](parent interface{ Add(Disposable) }, source Observable[T], observer Observer[T]) *subscriber[T] {
	child := newSubscriber(observer)
	parent.Add(child)
	source.subscribeWith(child)
	return child
}

// operate 基于上游订阅构造操作符
func operate[T, R any](init func(source Observable[T], destination Subscriber[R])) OperatorFunc[T, R] {
	return func(source Observable[T]) Observable[R] {
		return Create(func(destination Subscriber[R]) Teardown {
			init(source, destination)
			return nil
		})
	}
}

// forward 把值转换后的观察者：错误与完成原样下传
func forward[T, R any](destination Subscriber[R], onNext func(T)) Observer[T] {
	return NewObserver(onNext, destination.OnError, destination.OnComplete)
}

// ============================================================================
// 串行化
// ============================================================================

// serializedSubscriber 串行化下游投递：多个goroutine或重入调用时，
// 先到者负责按顺序排空队列，保证下游回调不会并发执行
type serializedSubscriber[T any] struct {
	Subscriber[T]
	mu       sync.Mutex
	emitting bool
	done     bool
	queue    []Item[T]
}

func serialize[T any](destination Subscriber[T]) *serializedSubscriber[T] {
	return &serializedSubscriber[T]{Subscriber: destination}
}

func (s *serializedSubscriber[T]) OnNext(value T) {
	s.emit(NextItem(value))
}

func (s *serializedSubscriber[T]) OnError(err error) {
	s.emit(ErrorItem[T](err))
}

func (s *serializedSubscriber[T]) OnComplete() {
	s.emit(CompleteItem[T]())
}

func (s *serializedSubscriber[T]) emit(item Item[T]) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	if item.IsTerminal() {
		s.done = true
	}
	s.queue = append(s.queue, item)
	if s.emitting {
		s.mu.Unlock()
		return
	}
	s.emitting = true

	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.emitting = false
			s.queue = nil
			s.mu.Unlock()
			panic(r)
		}
	}()

	for len(s.queue) > 0 {
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()
		for _, it := range batch {
			it.Accept(s.Subscriber)
		}
		s.mu.Lock()
	}
	s.emitting = false
	s.mu.Unlock()
}

// ============================================================================
// 用户函数安全调用
// ============================================================================

func callTransformer[T, R any](transformer Transformer[T, R], value T) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPanicError(r)
		}
	}()
	return transformer(value)
}

func callPredicate[T any](predicate Predicate[T], value T) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPanicError(r)
		}
	}()
	return predicate(value), nil
}

func callReducer[A, T any](reducer Reducer[A, T], acc A, value T) (result A, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPanicError(r)
		}
	}()
	return reducer(acc, value), nil
}

func callProject[T, R any](project func(T) Observable[R], value T) (result Observable[R], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPanicError(r)
		}
	}()
	return project(value), nil
}
