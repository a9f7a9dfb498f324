// Combination operators for RxGo
// 组合操作符：CombineLatest、Merge、Concat、Zip
package rxgo

import (
	"sync"
)

// ============================================================================
// 组合操作符
// ============================================================================

func identity[T any](source Observable[T]) Observable[T] {
	return source
}

// Merge 同时订阅所有源并按发生顺序转发所有值，所有源完成后才完成；
// 任何源出错立即终止
func Merge[T any](sources ...Observable[T]) Observable[T] {
	return Pipe1(FromSlice(sources), MergeMap(identity[T]))
}

// MergeWith 把others与上游合并
func MergeWith[T any](others ...Observable[T]) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Merge(append([]Observable[T]{source}, others...)...)
	}
}

// Concat 按参数顺序依次订阅，前一个完成后才开始下一个；任何阶段的错误终止整条链
func Concat[T any](sources ...Observable[T]) Observable[T] {
	return Pipe1(FromSlice(sources), ConcatMap(identity[T]))
}

// ConcatWith 在上游完成之后依次接上others
func ConcatWith[T any](others ...Observable[T]) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Concat(append([]Observable[T]{source}, others...)...)
	}
}

// CombineLatest 订阅所有源，所有源都至少发射过一次之后，任一源发射时都发射
// 各源最新值组成的切片。所有源完成时完成；某个源没有发射任何值就完成时，
// 不可能再有组合结果，立即完成。任何源出错立即终止。
func CombineLatest[T any](sources ...Observable[T]) Observable[[]T] {
	return Create(func(destination Subscriber[[]T]) Teardown {
		n := len(sources)
		if n == 0 {
			destination.OnComplete()
			return nil
		}

		out := serialize(destination)
		var (
			mu        sync.Mutex
			values    = make([]T, n)
			has       = make([]bool, n)
			ready     int
			completed int
		)

		for i, source := range sources {
			i := i
			subscribeInner(destination, source, NewObserver(
				func(value T) {
					mu.Lock()
					values[i] = value
					if !has[i] {
						has[i] = true
						ready++
					}
					var snapshot []T
					if ready == n {
						snapshot = make([]T, n)
						copy(snapshot, values)
					}
					mu.Unlock()
					if snapshot != nil {
						out.OnNext(snapshot)
					}
				},
				out.OnError,
				func() {
					mu.Lock()
					completed++
					done := completed == n || !has[i]
					mu.Unlock()
					if done {
						out.OnComplete()
					}
				},
			))
			if destination.IsUnsubscribed() {
				break
			}
		}
		return nil
	})
}

// CombineLatest2 组合两个不同类型的源，combiner的panic作为错误传递
func CombineLatest2[A, B, R any](first Observable[A], second Observable[B], combiner func(A, B) R) Observable[R] {
	return Create(func(destination Subscriber[R]) Teardown {
		out := serialize(destination)
		var (
			mu        sync.Mutex
			a         A
			b         B
			hasA      bool
			hasB      bool
			completed int
		)

		emit := func() {
			if !hasA || !hasB {
				mu.Unlock()
				return
			}
			va, vb := a, b
			mu.Unlock()

			var result R
			if err := SafeExecute(func() { result = combiner(va, vb) }); err != nil {
				out.OnError(err)
				return
			}
			out.OnNext(result)
		}

		complete := func(had bool) {
			mu.Lock()
			completed++
			done := completed == 2 || !had
			mu.Unlock()
			if done {
				out.OnComplete()
			}
		}

		subscribeInner(destination, first, NewObserver(
			func(value A) {
				mu.Lock()
				a, hasA = value, true
				emit()
			},
			out.OnError,
			func() {
				mu.Lock()
				had := hasA
				mu.Unlock()
				complete(had)
			},
		))
		if destination.IsUnsubscribed() {
			return nil
		}
		subscribeInner(destination, second, NewObserver(
			func(value B) {
				mu.Lock()
				b, hasB = value, true
				emit()
			},
			out.OnError,
			func() {
				mu.Lock()
				had := hasB
				mu.Unlock()
				complete(had)
			},
		))
		return nil
	})
}

// Zip 按索引配对各源的第n个值，所有源都产生了第n个值时发射一个切片。
// 某个已完成的源没有剩余缓存值时完成。
func Zip[T any](sources ...Observable[T]) Observable[[]T] {
	return Create(func(destination Subscriber[[]T]) Teardown {
		n := len(sources)
		if n == 0 {
			destination.OnComplete()
			return nil
		}

		out := serialize(destination)
		var (
			mu     sync.Mutex
			queues = make([][]T, n)
			done   = make([]bool, n)
		)

		exhausted := func() bool {
			for j := range queues {
				if done[j] && len(queues[j]) == 0 {
					return true
				}
			}
			return false
		}

		for i, source := range sources {
			i := i
			subscribeInner(destination, source, NewObserver(
				func(value T) {
					mu.Lock()
					queues[i] = append(queues[i], value)
					for _, q := range queues {
						if len(q) == 0 {
							mu.Unlock()
							return
						}
					}
					tuple := make([]T, n)
					for j := range queues {
						tuple[j] = queues[j][0]
						queues[j] = queues[j][1:]
					}
					finished := exhausted()
					mu.Unlock()

					out.OnNext(tuple)
					if finished {
						out.OnComplete()
					}
				},
				out.OnError,
				func() {
					mu.Lock()
					done[i] = true
					finished := len(queues[i]) == 0
					mu.Unlock()
					if finished {
						out.OnComplete()
					}
				},
			))
			if destination.IsUnsubscribed() {
				break
			}
		}
		return nil
	})
}

// Zip2 按索引配对两个不同类型的源，用zipper合成结果
func Zip2[A, B, R any](first Observable[A], second Observable[B], zipper func(A, B) R) Observable[R] {
	return Create(func(destination Subscriber[R]) Teardown {
		out := serialize(destination)
		var (
			mu    sync.Mutex
			as    []A
			bs    []B
			doneA bool
			doneB bool
		)

		tryEmit := func() {
			if len(as) == 0 || len(bs) == 0 {
				mu.Unlock()
				return
			}
			va, vb := as[0], bs[0]
			as, bs = as[1:], bs[1:]
			finished := (doneA && len(as) == 0) || (doneB && len(bs) == 0)
			mu.Unlock()

			var result R
			if err := SafeExecute(func() { result = zipper(va, vb) }); err != nil {
				out.OnError(err)
				return
			}
			out.OnNext(result)
			if finished {
				out.OnComplete()
			}
		}

		subscribeInner(destination, first, NewObserver(
			func(value A) {
				mu.Lock()
				as = append(as, value)
				tryEmit()
			},
			out.OnError,
			func() {
				mu.Lock()
				doneA = true
				finished := len(as) == 0
				mu.Unlock()
				if finished {
					out.OnComplete()
				}
			},
		))
		if destination.IsUnsubscribed() {
			return nil
		}
		subscribeInner(destination, second, NewObserver(
			func(value B) {
				mu.Lock()
				bs = append(bs, value)
				tryEmit()
			},
			out.OnError,
			func() {
				mu.Lock()
				doneB = true
				finished := len(bs) == 0
				mu.Unlock()
				if finished {
					out.OnComplete()
				}
			},
		))
		return nil
	})
}
