// Side effect operators for RxGo
// 副作用操作符：Tap、DoOnNext、DoOnError、DoOnComplete、DoOnSubscribe、Finalize
package rxgo

// ============================================================================
// 副作用操作符
// ============================================================================

// Tap 在每个通知转发之前执行对应的回调，回调可以为nil。
// onNext的panic会把流转为错误终止。
func Tap[T any](onNext OnNext[T], onError OnError, onComplete OnComplete) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		subscribeInner(destination, source, NewObserver(
			func(value T) {
				if onNext != nil {
					if err := SafeExecute(func() { onNext(value) }); err != nil {
						destination.OnError(err)
						return
					}
				}
				destination.OnNext(value)
			},
			func(err error) {
				if onError != nil {
					if perr := SafeExecute(func() { onError(err) }); perr != nil {
						err = NewCompositeError([]error{err, perr})
					}
				}
				destination.OnError(err)
			},
			func() {
				if onComplete != nil {
					if err := SafeExecute(func() { onComplete() }); err != nil {
						destination.OnError(err)
						return
					}
				}
				destination.OnComplete()
			},
		))
	})
}

// DoOnNext 每个值转发前执行action
func DoOnNext[T any](action OnNext[T]) OperatorFunc[T, T] {
	return Tap(action, nil, nil)
}

// DoOnError 错误转发前执行action
func DoOnError[T any](action OnError) OperatorFunc[T, T] {
	return Tap[T](nil, action, nil)
}

// DoOnComplete 完成转发前执行action
func DoOnComplete[T any](action OnComplete) OperatorFunc[T, T] {
	return Tap[T](nil, nil, action)
}

// DoOnSubscribe 每次订阅上游之前执行action
func DoOnSubscribe[T any](action func()) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		if err := SafeExecute(action); err != nil {
			destination.OnError(err)
			return
		}
		subscribeInner(destination, source, Observer[T](destination))
	})
}

// Finalize 订阅因完成、错误或释放而结束时执行action，只执行一次
func Finalize[T any](action func()) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		destination.Add(NewBaseDisposable(action))
		subscribeInner(destination, source, Observer[T](destination))
	})
}
