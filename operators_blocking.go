// Blocking operators for RxGo
// 阻塞桥接：在普通Go代码中等待Observable的结果
package rxgo

import (
	"context"
	"sync"
)

// ============================================================================
// 阻塞操作符
// ============================================================================

// BlockingSubscribe 订阅并阻塞到流终止或ctx结束，返回流的错误或ctx的错误。
// 返回前订阅已经被释放。
func (o Observable[T]) BlockingSubscribe(ctx context.Context, observer Observer[T]) error {
	if observer == nil {
		observer = NewObserver[T](nil, func(error) {}, nil)
	}

	done := make(chan error, 1)
	sub := o.Subscribe(NewObserver(
		observer.OnNext,
		func(err error) {
			observer.OnError(err)
			done <- err
		},
		func() {
			observer.OnComplete()
			done <- nil
		},
	))
	defer sub.Dispose()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BlockingFirst 阻塞获取第一个值，源为空时返回ErrEmptySequence
func (o Observable[T]) BlockingFirst(ctx context.Context) (T, error) {
	return single(ctx, Pipe1(o, First[T]()))
}

// BlockingLast 阻塞获取最后一个值，源为空时返回ErrEmptySequence
func (o Observable[T]) BlockingLast(ctx context.Context) (T, error) {
	return single(ctx, Pipe1(o, Last[T]()))
}

func single[T any](ctx context.Context, source Observable[T]) (T, error) {
	values, err := Collect(ctx, source)
	if err != nil {
		var zero T
		return zero, err
	}
	if len(values) == 0 {
		var zero T
		return zero, ErrEmptySequence
	}
	return values[0], nil
}

// Collect 阻塞收集所有值直到源完成。出错或ctx结束时返回已收集的值和错误。
func Collect[T any](ctx context.Context, source Observable[T]) ([]T, error) {
	var (
		mu     sync.Mutex
		values []T
	)

	err := source.BlockingSubscribe(ctx, NewObserver(
		func(value T) {
			mu.Lock()
			values = append(values, value)
			mu.Unlock()
		},
		func(error) {},
		nil,
	))

	mu.Lock()
	defer mu.Unlock()
	result := make([]T, len(values))
	copy(result, values)
	return result, err
}

// ToChannel 在新的goroutine中订阅，把通知依次写入channel，终止后关闭channel。
// ctx结束时释放订阅并关闭channel。缓冲区大小由WithBufferSize指定。
func (o Observable[T]) ToChannel(ctx context.Context, options ...Option) <-chan Item[T] {
	config := newConfig(options)
	ch := make(chan Item[T], config.BufferSize)

	var (
		mu     sync.Mutex
		closed bool
	)

	closeOnce := func() {
		if !closed {
			closed = true
			close(ch)
		}
	}

	send := func(item Item[T]) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- item:
		case <-ctx.Done():
			closeOnce()
			return
		}
		if item.IsTerminal() {
			closeOnce()
		}
	}

	go func() {
		sub := o.SubscribeContext(ctx, NewObserver(
			func(value T) { send(NextItem(value)) },
			func(err error) { send(ErrorItem[T](err)) },
			func() { send(CompleteItem[T]()) },
		))
		stop := context.AfterFunc(ctx, func() {
			sub.Dispose()
			mu.Lock()
			closeOnce()
			mu.Unlock()
		})
		sub.Add(NewBaseDisposable(func() { stop() }))
	}()

	return ch
}
