// Filtering operators for RxGo
// 过滤操作符：Filter、DistinctUntilChanged、Take、TakeWhile、TakeUntil、Skip、First、Last
package rxgo

// ============================================================================
// 过滤操作符
// ============================================================================

// Filter 只转发满足谓词的值
func Filter[T any](predicate Predicate[T]) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		subscribeInner(destination, source, forward(destination, func(value T) {
			ok, err := callPredicate(predicate, value)
			if err != nil {
				destination.OnError(err)
				return
			}
			if ok {
				destination.OnNext(value)
			}
		}))
	})
}

// DistinctUntilChanged 只有与上一个转发的值不相等时才转发，第一个值总是通过
func DistinctUntilChanged[T comparable]() OperatorFunc[T, T] {
	return DistinctUntilChangedFunc(func(previous, current T) bool {
		return previous == current
	})
}

// DistinctUntilChangedFunc 使用自定义相等函数的DistinctUntilChanged
func DistinctUntilChangedFunc[T any](equals func(previous, current T) bool) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		var (
			last    T
			hasLast bool
		)
		subscribeInner(destination, source, forward(destination, func(value T) {
			if hasLast {
				var same bool
				if err := SafeExecute(func() { same = equals(last, value) }); err != nil {
					destination.OnError(err)
					return
				}
				if same {
					return
				}
			}
			last, hasLast = value, true
			destination.OnNext(value)
		}))
	})
}

// Take 转发前count个值后合成完成信号并释放上游
func Take[T any](count int) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		if count <= 0 {
			destination.OnComplete()
			return
		}

		taken := 0
		subscribeInner(destination, source, forward(destination, func(value T) {
			if taken >= count {
				return
			}
			taken++
			destination.OnNext(value)
			if taken == count {
				destination.OnComplete()
			}
		}))
	})
}

// TakeWhile 谓词成立时转发，第一次不成立时完成（不转发该值）并释放上游
func TakeWhile[T any](predicate Predicate[T]) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		subscribeInner(destination, source, forward(destination, func(value T) {
			ok, err := callPredicate(predicate, value)
			if err != nil {
				destination.OnError(err)
				return
			}
			if !ok {
				destination.OnComplete()
				return
			}
			destination.OnNext(value)
		}))
	})
}

// TakeUntil 转发直到notifier发射第一个值或完成，然后完成并释放上游与notifier订阅。
// notifier的错误会传递到下游。
func TakeUntil[T, N any](notifier Observable[N]) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		out := serialize(destination)
		subscribeInner(destination, notifier, NewObserver(
			func(N) { out.OnComplete() },
			out.OnError,
			out.OnComplete,
		))
		if destination.IsUnsubscribed() {
			return
		}
		subscribeInner(destination, source, Observer[T](out))
	})
}

// Skip 丢弃前count个值，转发其余的值
func Skip[T any](count int) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		skipped := 0
		subscribeInner(destination, source, forward(destination, func(value T) {
			if skipped < count {
				skipped++
				return
			}
			destination.OnNext(value)
		}))
	})
}

// SkipWhile 谓词成立时丢弃，之后转发所有值
func SkipWhile[T any](predicate Predicate[T]) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		skipping := true
		subscribeInner(destination, source, forward(destination, func(value T) {
			if skipping {
				ok, err := callPredicate(predicate, value)
				if err != nil {
					destination.OnError(err)
					return
				}
				if ok {
					return
				}
				skipping = false
			}
			destination.OnNext(value)
		}))
	})
}

// First 发射第一个值后立即完成；源没有值就完成时发出ErrEmptySequence
func First[T any]() OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		subscribeInner(destination, source, NewObserver(
			func(value T) {
				destination.OnNext(value)
				destination.OnComplete()
			},
			destination.OnError,
			func() { destination.OnError(ErrEmptySequence) },
		))
	})
}

// Last 缓存最近的值，源完成时发射；没有任何值时发出ErrEmptySequence
func Last[T any]() OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		var (
			last    T
			hasLast bool
		)
		subscribeInner(destination, source, NewObserver(
			func(value T) { last, hasLast = value, true },
			destination.OnError,
			func() {
				if !hasLast {
					destination.OnError(ErrEmptySequence)
					return
				}
				destination.OnNext(last)
				destination.OnComplete()
			},
		))
	})
}
