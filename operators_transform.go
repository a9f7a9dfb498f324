// Transformation operators for RxGo
// 转换操作符：Map、Scan、Reduce
package rxgo

// ============================================================================
// 转换操作符
// ============================================================================

// Map 对每个值应用transformer，保持数量与顺序。
// transformer返回的错误或panic会终止流并向下游发出错误。
func Map[T, R any](transformer Transformer[T, R]) OperatorFunc[T, R] {
	return operate(func(source Observable[T], destination Subscriber[R]) {
		subscribeInner(destination, source, forward(destination, func(value T) {
			result, err := callTransformer(transformer, value)
			if err != nil {
				destination.OnError(err)
				return
			}
			destination.OnNext(result)
		}))
	})
}

// MapValue 对每个值应用不会失败的映射函数
func MapValue[T, R any](mapper func(T) R) OperatorFunc[T, R] {
	return Map(func(value T) (R, error) {
		return mapper(value), nil
	})
}

// Scan 用累加器折叠，从第一个输入开始发射每个中间结果。
// 第一个值直接作为初始累加值，不额外发射种子。
func Scan[T any](accumulator Reducer[T, T]) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		var (
			acc    T
			hasAcc bool
		)
		subscribeInner(destination, source, forward(destination, func(value T) {
			if !hasAcc {
				acc, hasAcc = value, true
				destination.OnNext(acc)
				return
			}
			next, err := callReducer(accumulator, acc, value)
			if err != nil {
				destination.OnError(err)
				return
			}
			acc = next
			destination.OnNext(acc)
		}))
	})
}

// ScanWithSeed 从seed开始折叠，发射每个中间结果（不发射seed本身）
func ScanWithSeed[T, A any](accumulator Reducer[A, T], seed A) OperatorFunc[T, A] {
	return operate(func(source Observable[T], destination Subscriber[A]) {
		acc := seed
		subscribeInner(destination, source, forward(destination, func(value T) {
			next, err := callReducer(accumulator, acc, value)
			if err != nil {
				destination.OnError(err)
				return
			}
			acc = next
			destination.OnNext(acc)
		}))
	})
}

// Reduce 与ScanWithSeed折叠方式相同，但只在源完成时发射最终累加值。
// 源永不完成时不发射任何值；源出错时只传递错误。
func Reduce[T, A any](accumulator Reducer[A, T], seed A) OperatorFunc[T, A] {
	return operate(func(source Observable[T], destination Subscriber[A]) {
		acc := seed
		subscribeInner(destination, source, NewObserver(
			func(value T) {
				next, err := callReducer(accumulator, acc, value)
				if err != nil {
					destination.OnError(err)
					return
				}
				acc = next
			},
			destination.OnError,
			func() {
				destination.OnNext(acc)
				destination.OnComplete()
			},
		))
	})
}
