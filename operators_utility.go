// Utility operators for RxGo
// 工具操作符：StartWith、DefaultIfEmpty、IgnoreElements、ObserveOn、SubscribeOn
package rxgo

import (
	"sync"
)

// ============================================================================
// 工具操作符
// ============================================================================

// StartWith 订阅上游之前先同步发射values
func StartWith[T any](values ...T) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Concat(FromSlice(values), source)
	}
}

// DefaultIfEmpty 源没有发射任何值就完成时发射value
func DefaultIfEmpty[T any](value T) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		empty := true
		subscribeInner(destination, source, NewObserver(
			func(v T) {
				empty = false
				destination.OnNext(v)
			},
			destination.OnError,
			func() {
				if empty {
					destination.OnNext(value)
				}
				destination.OnComplete()
			},
		))
	})
}

// IgnoreElements 丢弃所有值，只转发终止通知
func IgnoreElements[T any]() OperatorFunc[T, T] {
	return Filter(func(T) bool { return false })
}

// ObserveOn 在scheduler上按原顺序投递下游通知
func ObserveOn[T any](scheduler Scheduler) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		tasks := NewCompositeDisposable()
		destination.Add(tasks)

		var (
			mu        sync.Mutex
			queue     []Item[T]
			scheduled bool
		)

		drain := func() {
			for {
				mu.Lock()
				if len(queue) == 0 {
					scheduled = false
					mu.Unlock()
					return
				}
				batch := queue
				queue = nil
				mu.Unlock()

				for _, item := range batch {
					item.Accept(destination)
				}
			}
		}

		enqueue := func(item Item[T]) {
			mu.Lock()
			queue = append(queue, item)
			if scheduled {
				mu.Unlock()
				return
			}
			scheduled = true
			mu.Unlock()
			scheduleTracked(tasks, scheduler, 0, drain)
		}

		subscribeInner(destination, source, NewObserver(
			func(value T) { enqueue(NextItem(value)) },
			func(err error) { enqueue(ErrorItem[T](err)) },
			func() { enqueue(CompleteItem[T]()) },
		))
	})
}

// SubscribeOn 在scheduler上订阅上游
func SubscribeOn[T any](scheduler Scheduler) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		tasks := NewCompositeDisposable()
		destination.Add(tasks)
		scheduleTracked(tasks, scheduler, 0, func() {
			subscribeInner(destination, source, Observer[T](destination))
		})
	})
}
