// Error handling operators for RxGo
// 错误处理操作符：CatchError、Retry、OnErrorReturn、OnErrorResumeNext
package rxgo

import (
	"sync"
)

// ============================================================================
// 错误处理操作符
// ============================================================================

// CatchError 拦截上游错误，调用handler得到替代Observable并订阅它，
// 原始错误不会自动重新抛出。handler的panic作为新的错误向下游传递。
func CatchError[T any](handler func(err error) Observable[T]) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		subscribeInner(destination, source, NewObserver(
			destination.OnNext,
			func(err error) {
				var replacement Observable[T]
				if perr := SafeExecute(func() { replacement = handler(err) }); perr != nil {
					destination.OnError(perr)
					return
				}
				subscribeInner(destination, replacement, Observer[T](destination))
			},
			destination.OnComplete,
		))
	})
}

// OnErrorReturn 出错时发射value然后完成
func OnErrorReturn[T any](value T) OperatorFunc[T, T] {
	return CatchError(func(error) Observable[T] {
		return Of(value)
	})
}

// OnErrorResumeNext 出错时切换到next
func OnErrorResumeNext[T any](next Observable[T]) OperatorFunc[T, T] {
	return CatchError(func(error) Observable[T] {
		return next
	})
}

// Retry 出错时重新订阅上游，最多额外重试count次，每次都从头开始发射。
// 重试耗尽后最后一次的错误传递到下游。count<0表示无限重试。
func Retry[T any](count int) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		current := &serialDisposable{}
		destination.Add(current)

		var (
			mu       sync.Mutex
			attempts int
			pending  int
			running  bool
		)

		var resubscribe func()
		onError := func(err error) {
			mu.Lock()
			if count >= 0 && attempts >= count {
				mu.Unlock()
				destination.OnError(err)
				return
			}
			attempts++
			mu.Unlock()
			resubscribe()
		}

		// 同步失败的源在同一个调用栈上循环重订阅，不会递归加深
		resubscribe = func() {
			mu.Lock()
			pending++
			if running {
				mu.Unlock()
				return
			}
			running = true
			mu.Unlock()

			for {
				mu.Lock()
				if pending == 0 || destination.IsUnsubscribed() {
					running = false
					mu.Unlock()
					return
				}
				pending--
				mu.Unlock()

				child := newSubscriber[T](NewObserver(destination.OnNext, onError, destination.OnComplete))
				current.Set(child)
				source.subscribeWith(child)
			}
		}

		resubscribe()
	})
}
