// Advanced operators for RxGo
// 高级操作符：MergeMap、SwitchMap、ConcatMap、ExhaustMap等扁平化操作符
package rxgo

import (
	"sync"
)

// ============================================================================
// 扁平化操作符
// ============================================================================

// subscribeTracked 订阅内部Observable，子订阅挂在group上，完成时从group中移除。
// 内部订阅期间的panic转换为错误交给onError。
func subscribeTracked[R any](group *CompositeDisposable, source Observable[R], onNext func(R), onError func(error), onComplete func()) *subscriber[R] {
	var child *subscriber[R]
	child = newSubscriber[R](NewObserver[R](onNext, onError, func() {
		group.Remove(child)
		onComplete()
	}))
	group.Add(child)
	if err := SafeExecute(func() { source.subscribeWith(child) }); err != nil {
		onError(err)
	}
	return child
}

// MergeMap 把每个值映射为内部Observable并同时订阅所有内部流，交错转发它们的值。
// 外部源完成且所有内部流完成后才完成；任何错误立即终止整条链并释放其余内部订阅。
func MergeMap[T, R any](project func(T) Observable[R]) OperatorFunc[T, R] {
	return MergeMapWithConcurrency(project, 0)
}

// FlatMap 是MergeMap的别名
func FlatMap[T, R any](project func(T) Observable[R]) OperatorFunc[T, R] {
	return MergeMapWithConcurrency(project, 0)
}

// MergeMapWithConcurrency 最多同时订阅concurrency个内部流，多出的外部值按到达顺序排队。
// concurrency<=0表示不限制。
func MergeMapWithConcurrency[T, R any](project func(T) Observable[R], concurrency int) OperatorFunc[T, R] {
	return operate(func(source Observable[T], destination Subscriber[R]) {
		out := serialize(destination)
		inners := NewCompositeDisposable()
		destination.Add(inners)

		var (
			mu        sync.Mutex
			active    int
			buffer    []T
			ready     []T
			draining  bool
			outerDone bool
		)

		var subscribeProject func(value T)

		// 同步完成的内部流在同一个调用栈上循环启动排队的值，不会递归加深
		innerDone := func() {
			mu.Lock()
			if len(buffer) == 0 {
				active--
				done := outerDone && active == 0
				mu.Unlock()
				if done {
					out.OnComplete()
				}
				return
			}
			ready = append(ready, buffer[0])
			buffer = buffer[1:]
			if draining {
				mu.Unlock()
				return
			}
			draining = true
			for len(ready) > 0 && !destination.IsUnsubscribed() {
				next := ready[0]
				ready = ready[1:]
				mu.Unlock()
				subscribeProject(next)
				mu.Lock()
			}
			draining = false
			mu.Unlock()
		}

		subscribeProject = func(value T) {
			inner, err := callProject(project, value)
			if err != nil {
				out.OnError(err)
				return
			}
			subscribeTracked(inners, inner, out.OnNext, out.OnError, innerDone)
		}

		subscribeInner(destination, source, NewObserver(
			func(value T) {
				mu.Lock()
				if concurrency > 0 && active >= concurrency {
					buffer = append(buffer, value)
					mu.Unlock()
					return
				}
				active++
				mu.Unlock()
				subscribeProject(value)
			},
			out.OnError,
			func() {
				mu.Lock()
				outerDone = true
				done := active == 0 && len(buffer) == 0
				mu.Unlock()
				if done {
					out.OnComplete()
				}
			},
		))
	})
}

// ConcatMap 排队外部值，严格按到达顺序一次只订阅一个内部流，
// 当前内部流完成后才开始下一个
func ConcatMap[T, R any](project func(T) Observable[R]) OperatorFunc[T, R] {
	return MergeMapWithConcurrency(project, 1)
}

// SwitchMap 每个新的外部值到达时先释放上一个仍活跃的内部订阅，再订阅新的内部流。
// 外部源完成且当前内部流完成时完成。
func SwitchMap[T, R any](project func(T) Observable[R]) OperatorFunc[T, R] {
	return operate(func(source Observable[T], destination Subscriber[R]) {
		out := serialize(destination)
		inners := NewCompositeDisposable()
		destination.Add(inners)

		var (
			mu          sync.Mutex
			current     *subscriber[R]
			index       int
			innerActive bool
			outerDone   bool
		)

		subscribeInner(destination, source, NewObserver(
			func(value T) {
				inner, err := callProject(project, value)
				if err != nil {
					out.OnError(err)
					return
				}

				mu.Lock()
				previous := current
				current = nil
				index++
				id := index
				innerActive = true
				mu.Unlock()

				if previous != nil {
					inners.Remove(previous)
					previous.Dispose()
				}

				isCurrent := func() bool {
					mu.Lock()
					defer mu.Unlock()
					return id == index
				}

				child := subscribeTracked(inners, inner,
					func(v R) {
						if isCurrent() {
							out.OnNext(v)
						}
					},
					out.OnError,
					func() {
						mu.Lock()
						if id == index {
							innerActive = false
						}
						done := outerDone && !innerActive
						mu.Unlock()
						if done {
							out.OnComplete()
						}
					},
				)

				mu.Lock()
				if id == index && !child.IsUnsubscribed() {
					current = child
				}
				mu.Unlock()
			},
			out.OnError,
			func() {
				mu.Lock()
				outerDone = true
				done := !innerActive
				mu.Unlock()
				if done {
					out.OnComplete()
				}
			},
		))
	})
}

// ExhaustMap 已有内部流活跃时丢弃（不排队）新到达的外部值；
// 活跃的内部流完成后接受下一个到达的外部值
func ExhaustMap[T, R any](project func(T) Observable[R]) OperatorFunc[T, R] {
	return operate(func(source Observable[T], destination Subscriber[R]) {
		out := serialize(destination)
		inners := NewCompositeDisposable()
		destination.Add(inners)

		var (
			mu        sync.Mutex
			active    bool
			outerDone bool
		)

		subscribeInner(destination, source, NewObserver(
			func(value T) {
				mu.Lock()
				if active {
					mu.Unlock()
					return
				}
				active = true
				mu.Unlock()

				inner, err := callProject(project, value)
				if err != nil {
					out.OnError(err)
					return
				}
				subscribeTracked(inners, inner, out.OnNext, out.OnError, func() {
					mu.Lock()
					active = false
					done := outerDone
					mu.Unlock()
					if done {
						out.OnComplete()
					}
				})
			},
			out.OnError,
			func() {
				mu.Lock()
				outerDone = true
				done := !active
				mu.Unlock()
				if done {
					out.OnComplete()
				}
			},
		))
	})
}
