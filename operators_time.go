// Time-based operators for RxGo
// 时间相关操作符：DebounceTime、ThrottleTime、Delay、Timeout。
// 所有计时都通过Config中的调度器完成，可以用TestScheduler在虚拟时间中测试。
package rxgo

import (
	"sync"
	"time"
)

// ============================================================================
// 计时辅助
// ============================================================================

// serialDisposable 只持有一个资源，设置新资源时释放旧资源
type serialDisposable struct {
	mu       sync.Mutex
	current  Disposable
	disposed bool
}

func (s *serialDisposable) Set(d Disposable) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		d.Dispose()
		return
	}
	previous := s.current
	s.current = d
	s.mu.Unlock()

	if previous != nil {
		previous.Dispose()
	}
}

func (s *serialDisposable) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	current := s.current
	s.current = nil
	s.mu.Unlock()

	if current != nil {
		current.Dispose()
	}
}

func (s *serialDisposable) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// taskRef 登记在group中的延迟任务
type taskRef struct {
	mu       sync.Mutex
	task     Disposable
	disposed bool
}

func (r *taskRef) set(task Disposable) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		task.Dispose()
		return
	}
	r.task = task
	r.mu.Unlock()
}

func (r *taskRef) Dispose() {
	r.mu.Lock()
	r.disposed = true
	task := r.task
	r.task = nil
	r.mu.Unlock()

	if task != nil {
		task.Dispose()
	}
}

func (r *taskRef) IsDisposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

// scheduleTracked 延迟执行action，任务在执行前登记在group中，执行时移除
func scheduleTracked(group *CompositeDisposable, scheduler Scheduler, delay time.Duration, action func()) {
	ref := &taskRef{}
	group.Add(ref)
	ref.set(scheduler.ScheduleWithDelay(func() {
		group.Remove(ref)
		action()
	}, delay))
}

// ============================================================================
// 时间操作符
// ============================================================================

// DebounceTime 每个值都会重启一个duration计时器，只有duration内没有新值到达时
// 才转发最近的值。源完成时立即转发挂起的值然后完成。
func DebounceTime[T any](duration time.Duration, options ...Option) OperatorFunc[T, T] {
	config := newConfig(options)
	return operate(func(source Observable[T], destination Subscriber[T]) {
		out := serialize(destination)
		timer := &serialDisposable{}
		destination.Add(timer)

		var (
			mu         sync.Mutex
			pending    T
			hasPending bool
			generation int
		)

		takePending := func() (T, bool) {
			var zero T
			value, ok := pending, hasPending
			pending, hasPending = zero, false
			return value, ok
		}

		subscribeInner(destination, source, NewObserver(
			func(value T) {
				mu.Lock()
				pending, hasPending = value, true
				generation++
				id := generation
				mu.Unlock()

				timer.Set(config.Scheduler.ScheduleWithDelay(func() {
					mu.Lock()
					if id != generation {
						mu.Unlock()
						return
					}
					v, ok := takePending()
					mu.Unlock()
					if ok {
						out.OnNext(v)
					}
				}, duration))
			},
			func(err error) {
				mu.Lock()
				generation++
				takePending()
				mu.Unlock()
				timer.Dispose()
				out.OnError(err)
			},
			func() {
				mu.Lock()
				generation++
				v, ok := takePending()
				mu.Unlock()
				timer.Dispose()
				if ok {
					out.OnNext(v)
				}
				out.OnComplete()
			},
		))
	})
}

// ThrottleTime 立即转发第一个到达的值，然后在duration内丢弃后续所有值；
// duration结束后下一个到达的值开始新的周期
func ThrottleTime[T any](duration time.Duration, options ...Option) OperatorFunc[T, T] {
	config := newConfig(options)
	return operate(func(source Observable[T], destination Subscriber[T]) {
		window := &serialDisposable{}
		destination.Add(window)

		var (
			mu        sync.Mutex
			throttled bool
		)

		subscribeInner(destination, source, forward(destination, func(value T) {
			mu.Lock()
			if throttled {
				mu.Unlock()
				return
			}
			throttled = true
			mu.Unlock()

			window.Set(config.Scheduler.ScheduleWithDelay(func() {
				mu.Lock()
				throttled = false
				mu.Unlock()
			}, duration))
			destination.OnNext(value)
		}))
	})
}

// Delay 把每个值和完成信号推迟duration后重新发射，保持顺序；错误立即传递
func Delay[T any](duration time.Duration, options ...Option) OperatorFunc[T, T] {
	config := newConfig(options)
	return operate(func(source Observable[T], destination Subscriber[T]) {
		out := serialize(destination)
		timers := NewCompositeDisposable()
		destination.Add(timers)

		var (
			mu    sync.Mutex
			queue []Item[T]
		)

		emitHead := func() {
			mu.Lock()
			if len(queue) == 0 {
				mu.Unlock()
				return
			}
			item := queue[0]
			queue = queue[1:]
			mu.Unlock()
			item.Accept(out)
		}

		enqueue := func(item Item[T]) {
			mu.Lock()
			queue = append(queue, item)
			mu.Unlock()
			scheduleTracked(timers, config.Scheduler, duration, emitHead)
		}

		subscribeInner(destination, source, NewObserver(
			func(value T) { enqueue(NextItem(value)) },
			func(err error) {
				mu.Lock()
				queue = nil
				mu.Unlock()
				timers.Dispose()
				out.OnError(err)
			},
			func() { enqueue(CompleteItem[T]()) },
		))
	})
}

// Timeout 订阅后或上一个值之后duration内没有新通知时，发出*TimeoutError
func Timeout[T any](duration time.Duration, options ...Option) OperatorFunc[T, T] {
	config := newConfig(options)
	return operate(func(source Observable[T], destination Subscriber[T]) {
		out := serialize(destination)
		timer := &serialDisposable{}
		destination.Add(timer)

		var (
			mu         sync.Mutex
			generation int
		)

		arm := func() {
			mu.Lock()
			generation++
			id := generation
			mu.Unlock()

			timer.Set(config.Scheduler.ScheduleWithDelay(func() {
				mu.Lock()
				stale := id != generation
				mu.Unlock()
				if !stale {
					out.OnError(NewTimeoutError(duration))
				}
			}, duration))
		}

		disarm := func() {
			mu.Lock()
			generation++
			mu.Unlock()
		}

		arm()
		subscribeInner(destination, source, NewObserver(
			func(value T) {
				disarm()
				out.OnNext(value)
				if !destination.IsUnsubscribed() {
					arm()
				}
			},
			func(err error) {
				disarm()
				timer.Dispose()
				out.OnError(err)
			},
			func() {
				disarm()
				timer.Dispose()
				out.OnComplete()
			},
		))
	})
}
