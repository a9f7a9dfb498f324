// Factory functions for RxGo
// 工厂函数：从值、切片、channel、错误与时间创建Observable
package rxgo

import (
	"context"
	"time"
)

// ============================================================================
// 基础工厂函数
// ============================================================================

// Of 同步发射给定的值然后完成
func Of[T any](values ...T) Observable[T] {
	return FromSlice(values)
}

// Just 是Of的别名
func Just[T any](values ...T) Observable[T] {
	return FromSlice(values)
}

// FromSlice 从切片创建Observable，下游取消后立即停止发射
func FromSlice[T any](slice []T) Observable[T] {
	return Create(func(subscriber Subscriber[T]) Teardown {
		for _, value := range slice {
			if subscriber.IsUnsubscribed() {
				return nil
			}
			subscriber.OnNext(value)
		}
		subscriber.OnComplete()
		return nil
	})
}

// Range 发射从start开始的count个整数
func Range(start, count int) Observable[int] {
	return Create(func(subscriber Subscriber[int]) Teardown {
		for i := 0; i < count; i++ {
			if subscriber.IsUnsubscribed() {
				return nil
			}
			subscriber.OnNext(start + i)
		}
		subscriber.OnComplete()
		return nil
	})
}

// Empty 创建一个立即完成的Observable
func Empty[T any]() Observable[T] {
	return Create(func(subscriber Subscriber[T]) Teardown {
		subscriber.OnComplete()
		return nil
	})
}

// Never 创建一个永不发射任何通知的Observable
func Never[T any]() Observable[T] {
	return Create(func(subscriber Subscriber[T]) Teardown {
		return nil
	})
}

// Throw 创建一个立即发出错误的Observable
func Throw[T any](err error) Observable[T] {
	return Create(func(subscriber Subscriber[T]) Teardown {
		subscriber.OnError(err)
		return nil
	})
}

// ThrowError 每次订阅时调用factory构造错误并立即发出
func ThrowError[T any](factory func() error) Observable[T] {
	return Create(func(subscriber Subscriber[T]) Teardown {
		var err error
		if perr := SafeExecute(func() { err = factory() }); perr != nil {
			err = perr
		}
		subscriber.OnError(err)
		return nil
	})
}

// Defer 每次订阅时调用factory创建新的Observable
func Defer[T any](factory func() Observable[T]) Observable[T] {
	return Create(func(subscriber Subscriber[T]) Teardown {
		var source Observable[T]
		if err := SafeExecute(func() { source = factory() }); err != nil {
			subscriber.OnError(err)
			return nil
		}
		subscribeInner(subscriber, source, Observer[T](subscriber))
		return nil
	})
}

// ============================================================================
// 从数据源创建
// ============================================================================

// FromChannel 从Go channel创建Observable，channel关闭时完成。
// 多个订阅者会竞争同一个channel中的值。
func FromChannel[T any](ch <-chan T, options ...Option) Observable[T] {
	config := newConfig(options)
	return Create(func(subscriber Subscriber[T]) Teardown {
		ctx, cancel := context.WithCancel(config.Context)

		go func() {
			defer cancel()

			for {
				select {
				case <-ctx.Done():
					return
				case value, ok := <-ch:
					if !ok {
						subscriber.OnComplete()
						return
					}
					subscriber.OnNext(value)
				}
			}
		}()

		return Teardown(cancel)
	})
}

// FromItemChannel 从Item channel创建Observable，按通知类型投递
func FromItemChannel[T any](ch <-chan Item[T], options ...Option) Observable[T] {
	config := newConfig(options)
	return Create(func(subscriber Subscriber[T]) Teardown {
		ctx, cancel := context.WithCancel(config.Context)

		go func() {
			defer cancel()

			for {
				select {
				case <-ctx.Done():
					return
				case item, ok := <-ch:
					if !ok {
						subscriber.OnComplete()
						return
					}
					item.Accept(subscriber)
					if item.IsTerminal() {
						return
					}
				}
			}
		}()

		return Teardown(cancel)
	})
}

// ============================================================================
// 时间相关工厂函数
// ============================================================================

// Interval 每隔period发射一个从0开始递增的整数，永不完成
func Interval(period time.Duration, options ...Option) Observable[int] {
	config := newConfig(options)
	return Create(func(subscriber Subscriber[int]) Teardown {
		periodic := SchedulePeriodic(config.Scheduler, period, func(tick int) {
			subscriber.OnNext(tick)
		})
		return periodic.Dispose
	})
}

// Timer 在delay之后发射单个0然后完成
func Timer(delay time.Duration, options ...Option) Observable[int] {
	config := newConfig(options)
	return Create(func(subscriber Subscriber[int]) Teardown {
		task := config.Scheduler.ScheduleWithDelay(func() {
			subscriber.OnNext(0)
			subscriber.OnComplete()
		}, delay)
		return task.Dispose
	})
}
