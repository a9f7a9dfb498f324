// Aggregation operators for RxGo
// 聚合操作符：Count、ToSlice、Every、Some、Find、ElementAt、Min、Max、Sum
package rxgo

import (
	"cmp"
	"fmt"
)

// ============================================================================
// 聚合操作符
// ============================================================================

// Number 可以求和的数值类型
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Count 源完成时发射值的数量
func Count[T any]() OperatorFunc[T, int] {
	return Reduce(func(count int, _ T) int { return count + 1 }, 0)
}

// ToSlice 源完成时把所有值作为一个切片发射，源没有值时发射空切片
func ToSlice[T any]() OperatorFunc[T, []T] {
	return Reduce(func(values []T, value T) []T { return append(values, value) }, []T{})
}

// Every 源完成时发射true；任何值不满足谓词时立即发射false并完成
func Every[T any](predicate Predicate[T]) OperatorFunc[T, bool] {
	return operate(func(source Observable[T], destination Subscriber[bool]) {
		subscribeInner(destination, source, NewObserver(
			func(value T) {
				ok, err := callPredicate(predicate, value)
				if err != nil {
					destination.OnError(err)
					return
				}
				if !ok {
					destination.OnNext(false)
					destination.OnComplete()
				}
			},
			destination.OnError,
			func() {
				destination.OnNext(true)
				destination.OnComplete()
			},
		))
	})
}

// Some 任何值满足谓词时立即发射true并完成；源完成时仍未满足则发射false
func Some[T any](predicate Predicate[T]) OperatorFunc[T, bool] {
	return operate(func(source Observable[T], destination Subscriber[bool]) {
		subscribeInner(destination, source, NewObserver(
			func(value T) {
				ok, err := callPredicate(predicate, value)
				if err != nil {
					destination.OnError(err)
					return
				}
				if ok {
					destination.OnNext(true)
					destination.OnComplete()
				}
			},
			destination.OnError,
			func() {
				destination.OnNext(false)
				destination.OnComplete()
			},
		))
	})
}

// Find 发射第一个满足谓词的值并立即完成；源完成时没有匹配则只完成
func Find[T any](predicate Predicate[T]) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		subscribeInner(destination, source, forward(destination, func(value T) {
			ok, err := callPredicate(predicate, value)
			if err != nil {
				destination.OnError(err)
				return
			}
			if ok {
				destination.OnNext(value)
				destination.OnComplete()
			}
		}))
	})
}

// ElementAt 发射索引为index的值并完成；源提前完成时发出错误
func ElementAt[T any](index int) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		if index < 0 {
			destination.OnError(fmt.Errorf("rxgo: element index %d out of range", index))
			return
		}
		seen := 0
		subscribeInner(destination, source, NewObserver(
			func(value T) {
				if seen == index {
					destination.OnNext(value)
					destination.OnComplete()
					return
				}
				seen++
			},
			destination.OnError,
			func() {
				destination.OnError(fmt.Errorf("rxgo: element index %d out of range: %w", index, ErrEmptySequence))
			},
		))
	})
}

// Min 源完成时发射最小值；没有值时发出ErrEmptySequence
func Min[T cmp.Ordered]() OperatorFunc[T, T] {
	return extremum(func(candidate, current T) bool { return candidate < current })
}

// Max 源完成时发射最大值；没有值时发出ErrEmptySequence
func Max[T cmp.Ordered]() OperatorFunc[T, T] {
	return extremum(func(candidate, current T) bool { return candidate > current })
}

func extremum[T any](better func(candidate, current T) bool) OperatorFunc[T, T] {
	return operate(func(source Observable[T], destination Subscriber[T]) {
		var (
			best    T
			hasBest bool
		)
		subscribeInner(destination, source, NewObserver(
			func(value T) {
				if !hasBest || better(value, best) {
					best, hasBest = value, true
				}
			},
			destination.OnError,
			func() {
				if !hasBest {
					destination.OnError(ErrEmptySequence)
					return
				}
				destination.OnNext(best)
				destination.OnComplete()
			},
		))
	})
}

// Sum 源完成时发射所有值的和，没有值时发射0
func Sum[T Number]() OperatorFunc[T, T] {
	return Reduce(func(sum T, value T) T { return sum + value }, T(0))
}
