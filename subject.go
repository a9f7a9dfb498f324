// Subject implementations for RxGo
// Subject系统：Subject、BehaviorSubject、ReplaySubject、AsyncSubject
package rxgo

import (
	"sync"
	"sync/atomic"
)

// ============================================================================
// 公共实现
// ============================================================================

type subjectState int

const (
	subjectActive subjectState = iota
	subjectCompleted
	subjectErrored
	subjectDisposed
)

// bufferPolicy 决定Subject缓存什么、何时释放。所有方法在持锁时调用。
type bufferPolicy[T any] interface {
	// record 记录一个新值，返回是否立即转发给当前订阅者
	record(value T) bool
	// replay 新订阅者在实时值之前收到的值
	replay(state subjectState) []T
	// flush 完成时先于完成信号发给当前订阅者的值
	flush() []T
}

// subjectObserver 订阅者列表中的一项。投递经过队列串行化：
// 重放期间或另一个goroutine正在投递时新通知先入队，由当前投递者按顺序排空。
// 收到终止通知后丢弃之后的一切；释放后即使仍在某次发射的快照里也不会再收到通知。
type subjectObserver[T any] struct {
	observer Observer[T]
	closed   int32

	mu       sync.Mutex
	emitting bool
	stopped  bool
	queue    []Item[T]
}

func (so *subjectObserver[T]) isClosed() bool {
	return atomic.LoadInt32(&so.closed) == 1
}

func (so *subjectObserver[T]) close() {
	atomic.StoreInt32(&so.closed, 1)
}

// deliver 投递一个通知。当前没有投递者时由调用方排空队列
func (so *subjectObserver[T]) deliver(item Item[T]) {
	so.mu.Lock()
	if so.stopped {
		so.mu.Unlock()
		return
	}
	if item.IsTerminal() {
		so.stopped = true
	}
	so.queue = append(so.queue, item)
	if so.emitting {
		so.mu.Unlock()
		return
	}
	so.emitting = true
	so.drainLocked()
}

// release 结束重放阶段，排空重放期间积压的实时通知
func (so *subjectObserver[T]) release() {
	so.mu.Lock()
	so.drainLocked()
}

// drainLocked 持锁进入，释放锁后返回
func (so *subjectObserver[T]) drainLocked() {
	defer func() {
		if r := recover(); r != nil {
			so.mu.Lock()
			so.emitting = false
			so.queue = nil
			so.mu.Unlock()
			panic(r)
		}
	}()

	for len(so.queue) > 0 {
		batch := so.queue
		so.queue = nil
		so.mu.Unlock()
		for _, item := range batch {
			if so.isClosed() {
				break
			}
			item.Accept(so.observer)
		}
		so.mu.Lock()
	}
	so.emitting = false
	so.mu.Unlock()
}

// subjectBase 多播核心：订阅者按插入顺序保存，发射前先对列表做快照
type subjectBase[T any] struct {
	mu        sync.Mutex
	observers []*subjectObserver[T]
	state     subjectState
	err       error
	policy    bufferPolicy[T]
}

func newSubjectBase[T any](policy bufferPolicy[T]) *subjectBase[T] {
	return &subjectBase[T]{policy: policy}
}

// OnNext 向当前所有订阅者发送值，终止后忽略
func (s *subjectBase[T]) OnNext(value T) {
	s.mu.Lock()
	if s.state != subjectActive {
		s.mu.Unlock()
		return
	}
	if !s.policy.record(value) {
		s.mu.Unlock()
		return
	}
	observers := make([]*subjectObserver[T], len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	item := NextItem(value)
	for _, so := range observers {
		so.deliver(item)
	}
}

// OnError 终止Subject并向当前订阅者发送错误，然后清空订阅者列表
func (s *subjectBase[T]) OnError(err error) {
	s.mu.Lock()
	if s.state != subjectActive {
		s.mu.Unlock()
		return
	}
	s.state = subjectErrored
	s.err = err
	observers := s.observers
	s.observers = nil
	s.mu.Unlock()

	item := ErrorItem[T](err)
	for _, so := range observers {
		so.deliver(item)
	}
}

// OnComplete 终止Subject并向当前订阅者发送完成信号，然后清空订阅者列表
func (s *subjectBase[T]) OnComplete() {
	s.mu.Lock()
	if s.state != subjectActive {
		s.mu.Unlock()
		return
	}
	s.state = subjectCompleted
	values := s.policy.flush()
	observers := s.observers
	s.observers = nil
	s.mu.Unlock()

	for _, so := range observers {
		for _, v := range values {
			so.deliver(NextItem(v))
		}
		so.deliver(CompleteItem[T]())
	}
}

// Subscribe 订阅观察者。新订阅者先同步收到缓存值；
// 已终止时在缓存值之后立即收到保存的终止通知。
func (s *subjectBase[T]) Subscribe(observer Observer[T]) Subscription {
	if observer == nil {
		observer = NewObserver[T](nil, nil, nil)
	}

	s.mu.Lock()
	state, err := s.state, s.err
	if state == subjectDisposed {
		s.mu.Unlock()
		return closedSubscription()
	}
	replay := s.policy.replay(state)
	// 重放结束前实时通知只入队，保证缓存值先于之后的任何发射
	so := &subjectObserver[T]{observer: observer, emitting: true}
	if state == subjectActive {
		s.observers = append(s.observers, so)
	}
	s.mu.Unlock()

	subscription := NewCompositeDisposable()
	subscription.AddFunc(func() {
		so.close()
		s.remove(so)
	})

	for _, v := range replay {
		if so.isClosed() {
			break
		}
		observer.OnNext(v)
	}

	switch state {
	case subjectCompleted:
		so.deliver(CompleteItem[T]())
	case subjectErrored:
		so.deliver(ErrorItem[T](err))
	}
	so.release()

	if state != subjectActive {
		subscription.Dispose()
	}
	return subscription
}

// SubscribeWithCallbacks 使用回调函数订阅
func (s *subjectBase[T]) SubscribeWithCallbacks(onNext OnNext[T], onError OnError, onComplete OnComplete) Subscription {
	return s.Subscribe(NewObserver(onNext, onError, onComplete))
}

// AsObservable 以Observable形式暴露Subject，订阅它就是订阅Subject（热语义）
func (s *subjectBase[T]) AsObservable() Observable[T] {
	return Create(func(subscriber Subscriber[T]) Teardown {
		sub := s.Subscribe(subscriber)
		return sub.Dispose
	})
}

// HasObservers 检查是否有观察者
func (s *subjectBase[T]) HasObservers() bool {
	return s.ObserverCount() > 0
}

// ObserverCount 获取观察者数量
func (s *subjectBase[T]) ObserverCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

// IsTerminated 是否已经完成或出错
func (s *subjectBase[T]) IsTerminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == subjectCompleted || s.state == subjectErrored
}

// Dispose 不发送任何通知地丢弃所有订阅者，之后的调用全部忽略
func (s *subjectBase[T]) Dispose() {
	s.mu.Lock()
	observers := s.observers
	s.observers = nil
	s.state = subjectDisposed
	s.mu.Unlock()

	for _, so := range observers {
		so.close()
	}
}

// IsDisposed 检查是否已释放
func (s *subjectBase[T]) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == subjectDisposed
}

func (s *subjectBase[T]) remove(target *subjectObserver[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, so := range s.observers {
		if so == target {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

func closedSubscription() Subscription {
	sub := NewCompositeDisposable()
	sub.Dispose()
	return sub
}

// ============================================================================
// Subject - 发布主题
// ============================================================================

// Subject 热多播主题，只向当前订阅者发送新值
type Subject[T any] struct {
	*subjectBase[T]
}

type publishPolicy[T any] struct{}

func (publishPolicy[T]) record(T) bool           { return true }
func (publishPolicy[T]) replay(subjectState) []T { return nil }
func (publishPolicy[T]) flush() []T              { return nil }

// NewSubject 创建新的主题
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{subjectBase: newSubjectBase[T](publishPolicy[T]{})}
}

// ============================================================================
// BehaviorSubject - 行为主题
// ============================================================================

// BehaviorSubject 保存当前值，新订阅者会先同步收到当前值
type BehaviorSubject[T any] struct {
	*subjectBase[T]
	policy *behaviorPolicy[T]
}

type behaviorPolicy[T any] struct {
	current T
}

func (p *behaviorPolicy[T]) record(value T) bool {
	p.current = value
	return true
}

func (p *behaviorPolicy[T]) replay(subjectState) []T { return []T{p.current} }
func (p *behaviorPolicy[T]) flush() []T              { return nil }

// NewBehaviorSubject 使用初始值创建行为主题
func NewBehaviorSubject[T any](initialValue T) *BehaviorSubject[T] {
	policy := &behaviorPolicy[T]{current: initialValue}
	return &BehaviorSubject[T]{subjectBase: newSubjectBase[T](policy), policy: policy}
}

// Value 获取当前值
func (bs *BehaviorSubject[T]) Value() T {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.policy.current
}

// ============================================================================
// ReplaySubject - 重放主题
// ============================================================================

// ReplaySubject 缓存最近的bufferSize个值，新订阅者先按发射顺序收到缓存值
type ReplaySubject[T any] struct {
	*subjectBase[T]
	policy *replayPolicy[T]
}

type replayPolicy[T any] struct {
	bufferSize int
	buffer     []T
}

func (p *replayPolicy[T]) record(value T) bool {
	p.buffer = append(p.buffer, value)
	if p.bufferSize > 0 && len(p.buffer) > p.bufferSize {
		p.buffer = append(p.buffer[:0:0], p.buffer[len(p.buffer)-p.bufferSize:]...)
	}
	return true
}

func (p *replayPolicy[T]) replay(subjectState) []T {
	values := make([]T, len(p.buffer))
	copy(values, p.buffer)
	return values
}

func (p *replayPolicy[T]) flush() []T { return nil }

// NewReplaySubject 创建重放主题，bufferSize<=0表示不限数量
func NewReplaySubject[T any](bufferSize int) *ReplaySubject[T] {
	policy := &replayPolicy[T]{bufferSize: bufferSize}
	return &ReplaySubject[T]{subjectBase: newSubjectBase[T](policy), policy: policy}
}

// BufferedValues 获取所有缓存的值
func (rs *ReplaySubject[T]) BufferedValues() []T {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.policy.replay(rs.state)
}

// ============================================================================
// AsyncSubject - 异步主题
// ============================================================================

// AsyncSubject 只记录最后一个值，完成前不发送任何值；
// 完成时把最后一个值（如果有）和完成信号发给所有订阅者
type AsyncSubject[T any] struct {
	*subjectBase[T]
}

type asyncPolicy[T any] struct {
	last     T
	hasValue bool
}

func (p *asyncPolicy[T]) record(value T) bool {
	p.last = value
	p.hasValue = true
	return false
}

func (p *asyncPolicy[T]) replay(state subjectState) []T {
	if state == subjectCompleted && p.hasValue {
		return []T{p.last}
	}
	return nil
}

func (p *asyncPolicy[T]) flush() []T {
	if p.hasValue {
		return []T{p.last}
	}
	return nil
}

// NewAsyncSubject 创建异步主题
func NewAsyncSubject[T any]() *AsyncSubject[T] {
	return &AsyncSubject[T]{subjectBase: newSubjectBase[T](&asyncPolicy[T]{})}
}
