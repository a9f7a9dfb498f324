// Connectable implementation for RxGo
// 多播：Connectable、Publish、Multicast、Share与ShareReplay
package rxgo

import (
	"sync"
	"sync/atomic"
)

// ============================================================================
// Connectable 实现
// ============================================================================

// SubjectLike 可以作为多播中介的主题
type SubjectLike[T any] interface {
	Observer[T]
	Subscribe(observer Observer[T]) Subscription
	IsTerminated() bool
}

// Connectable 通过一个主题把源的单个订阅分享给多个订阅者。
// 订阅Connectable只是订阅主题，Connect之后才订阅源。
type Connectable[T any] struct {
	source          Observable[T]
	factory         func() SubjectLike[T]
	resetOnComplete bool

	mu         sync.Mutex
	subject    SubjectLike[T]
	connection Disposable
	completed  bool
	refCount   int
}

func newConnectable[T any](source Observable[T], factory func() SubjectLike[T], resetOnComplete bool) *Connectable[T] {
	return &Connectable[T]{source: source, factory: factory, resetOnComplete: resetOnComplete}
}

// Multicast 使用factory创建的主题多播source。
// 源终止之后再次Connect会用新主题重新订阅源。
func Multicast[T any](source Observable[T], factory func() SubjectLike[T]) *Connectable[T] {
	return newConnectable(source, factory, true)
}

// Publish 使用Subject多播source
func Publish[T any](source Observable[T]) *Connectable[T] {
	return Multicast(source, func() SubjectLike[T] { return NewSubject[T]() })
}

// prepareLocked 必要时创建新主题：首次使用、或未连接且上一轮已经出错或（允许重置时）已经完成
func (c *Connectable[T]) prepareLocked() {
	if c.subject == nil {
		c.subject = c.factory()
		c.completed = false
		return
	}
	if c.connection != nil || !c.subject.IsTerminated() {
		return
	}
	if c.completed && !c.resetOnComplete {
		return
	}
	c.subject = c.factory()
	c.completed = false
}

// Subscribe 订阅当前主题
func (c *Connectable[T]) Subscribe(observer Observer[T]) Subscription {
	c.mu.Lock()
	c.prepareLocked()
	subject := c.subject
	c.mu.Unlock()
	return subject.Subscribe(observer)
}

// AsObservable 以Observable形式暴露，每次订阅都订阅当前主题
func (c *Connectable[T]) AsObservable() Observable[T] {
	return Create(func(subscriber Subscriber[T]) Teardown {
		return c.Subscribe(subscriber).Dispose
	})
}

// Connect 订阅源并开始向主题转发。已连接时返回现有连接；
// 源已完成且不允许重置时什么也不做。
func (c *Connectable[T]) Connect() Disposable {
	c.mu.Lock()
	if c.connection != nil {
		connection := c.connection
		c.mu.Unlock()
		return connection
	}
	c.prepareLocked()
	subject := c.subject
	if subject.IsTerminated() {
		c.mu.Unlock()
		return disposedDisposable
	}

	var (
		conn   *subscriber[T]
		handle Disposable
	)
	release := func(completed bool) {
		c.mu.Lock()
		if c.connection == handle {
			c.connection = nil
			c.completed = completed
		}
		c.mu.Unlock()
	}
	conn = newSubscriber[T](NewObserver(
		subject.OnNext,
		func(err error) {
			release(false)
			subject.OnError(err)
		},
		func() {
			release(true)
			subject.OnComplete()
		},
	))
	handle = NewBaseDisposable(func() {
		c.mu.Lock()
		if c.connection == handle {
			c.connection = nil
		}
		c.mu.Unlock()
		conn.Dispose()
	})
	c.connection = handle
	c.mu.Unlock()

	c.source.subscribeWith(conn)
	return handle
}

// IsConnected 检查是否已连接到源
func (c *Connectable[T]) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connection != nil
}

// RefCount 第一个订阅者到来时连接，订阅者数量回到零时断开，
// 下次连接使用新的主题
func (c *Connectable[T]) RefCount() Observable[T] {
	return Create(func(subscriber Subscriber[T]) Teardown {
		c.mu.Lock()
		c.refCount++
		c.prepareLocked()
		subject := c.subject
		c.mu.Unlock()

		sub := subject.Subscribe(subscriber)
		if !sub.IsDisposed() {
			c.Connect()
		}

		return func() {
			sub.Dispose()

			c.mu.Lock()
			c.refCount--
			var connection Disposable
			if c.refCount == 0 {
				connection = c.connection
				c.connection = nil
				if connection != nil {
					c.subject = nil
				}
			}
			c.mu.Unlock()

			if connection != nil {
				connection.Dispose()
			}
		}
	})
}

// AutoConnect 订阅者数量达到count时自动连接，之后不再断开。
// count<=0按1处理。
func (c *Connectable[T]) AutoConnect(count int) Observable[T] {
	if count <= 0 {
		count = 1
	}
	var subscribers int32

	return Create(func(subscriber Subscriber[T]) Teardown {
		sub := c.Subscribe(subscriber)
		if atomic.AddInt32(&subscribers, 1) >= int32(count) && !sub.IsDisposed() {
			c.Connect()
		}
		return sub.Dispose
	})
}

// ============================================================================
// Share / ShareReplay
// ============================================================================

// Share 等价于Publish(source).RefCount()
func Share[T any]() OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Publish(source).RefCount()
	}
}

// ShareReplayConfig shareReplay配置
type ShareReplayConfig struct {
	// BufferSize 重放给新订阅者的值的数量，<=0表示全部
	BufferSize int
	// RefCount 为true时订阅者数量回到零时断开源并丢弃缓存，
	// 为false时第一次订阅后一直保持连接
	RefCount bool
}

// ShareReplay 多个订阅者共享源的单个订阅，并向新订阅者重放最近的值。
// 源出错后下一个订阅者会重新订阅源；源完成后新订阅者收到缓存值和完成信号。
func ShareReplay[T any](config ShareReplayConfig) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		connectable := newConnectable(source, func() SubjectLike[T] {
			return NewReplaySubject[T](config.BufferSize)
		}, false)
		if config.RefCount {
			return connectable.RefCount()
		}
		return connectable.AutoConnect(1)
	}
}
