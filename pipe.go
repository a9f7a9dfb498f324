// Pipeline composition for RxGo
// 管道组合：从左到右串联操作符，得到一个派生Observable
package rxgo

// OperatorFunc 操作符：把一个Observable转换为另一个Observable的纯函数
type OperatorFunc[T, R any] func(source Observable[T]) Observable[R]

// Pipe 串联一组不改变元素类型的操作符
func (o Observable[T]) Pipe(operators ...OperatorFunc[T, T]) Observable[T] {
	result := o
	for _, op := range operators {
		if op != nil {
			result = op(result)
		}
	}
	return result
}

// Compose 把两个操作符合成一个，Compose(f, g)(src) == g(f(src))
func Compose[A, B, C any](first OperatorFunc[A, B], second OperatorFunc[B, C]) OperatorFunc[A, C] {
	return func(source Observable[A]) Observable[C] {
		return second(first(source))
	}
}

// Pipe1 应用一个操作符
func Pipe1[A, B any](source Observable[A], op1 OperatorFunc[A, B]) Observable[B] {
	return op1(source)
}

// Pipe2 依次应用两个操作符
func Pipe2[A, B, C any](source Observable[A], op1 OperatorFunc[A, B], op2 OperatorFunc[B, C]) Observable[C] {
	return op2(op1(source))
}

// Pipe3 依次应用三个操作符
func Pipe3[A, B, C, D any](source Observable[A], op1 OperatorFunc[A, B], op2 OperatorFunc[B, C], op3 OperatorFunc[C, D]) Observable[D] {
	return op3(op2(op1(source)))
}

// Pipe4 依次应用四个操作符
func Pipe4[A, B, C, D, E any](source Observable[A], op1 OperatorFunc[A, B], op2 OperatorFunc[B, C], op3 OperatorFunc[C, D], op4 OperatorFunc[D, E]) Observable[E] {
	return op4(op3(op2(op1(source))))
}

// Pipe5 依次应用五个操作符
func Pipe5[A, B, C, D, E, F any](source Observable[A], op1 OperatorFunc[A, B], op2 OperatorFunc[B, C], op3 OperatorFunc[C, D], op4 OperatorFunc[D, E], op5 OperatorFunc[E, F]) Observable[F] {
	return op5(op4(op3(op2(op1(source)))))
}

// Pipe6 依次应用六个操作符
func Pipe6[A, B, C, D, E, F, G any](source Observable[A], op1 OperatorFunc[A, B], op2 OperatorFunc[B, C], op3 OperatorFunc[C, D], op4 OperatorFunc[D, E], op5 OperatorFunc[E, F], op6 OperatorFunc[F, G]) Observable[G] {
	return op6(op5(op4(op3(op2(op1(source))))))
}
