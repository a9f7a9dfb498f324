// Subject tests for RxGo
// 验证所有Subject类型的多播、缓存与终止行为
package rxgo

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// Subject
// ============================================================================

func TestSubject(t *testing.T) {
	t.Run("只向当前订阅者发送新值", func(t *testing.T) {
		subject := NewSubject[int]()
		early, late := newRecorder[int](), newRecorder[int]()

		subject.Subscribe(early)
		subject.OnNext(1)
		subject.Subscribe(late)
		subject.OnNext(2)
		subject.OnComplete()

		assert.Equal(t, []int{1, 2}, early.Values())
		assert.Equal(t, []int{2}, late.Values())
		assert.True(t, early.Completed())
		assert.True(t, late.Completed())
	})

	t.Run("终止后清空订阅者并忽略新值", func(t *testing.T) {
		subject := NewSubject[int]()
		rec := newRecorder[int]()
		subject.Subscribe(rec)
		subject.OnComplete()
		subject.OnNext(1)
		subject.OnError(errors.New("late"))

		assert.False(t, subject.HasObservers())
		assert.True(t, subject.IsTerminated())
		assert.Empty(t, rec.Values())
		assert.Equal(t, 1, rec.Terminations())
	})

	t.Run("终止后订阅立即收到保存的终止通知", func(t *testing.T) {
		boom := errors.New("boom")
		subject := NewSubject[int]()
		subject.OnError(boom)

		rec := newRecorder[int]()
		sub := subject.Subscribe(rec)
		assert.ErrorIs(t, rec.Err(), boom)
		assert.True(t, sub.IsDisposed())
	})

	t.Run("发射过程中完成后其余观察者不再收到该值", func(t *testing.T) {
		subject := NewSubject[int]()
		var events []string

		subject.SubscribeWithCallbacks(func(int) { subject.OnComplete() }, nil, nil)
		subject.Subscribe(NewObserver(
			func(v int) { events = append(events, "next") },
			func(error) { events = append(events, "error") },
			func() { events = append(events, "complete") },
		))

		subject.OnNext(1)
		subject.OnNext(2)
		assert.Equal(t, []string{"complete"}, events)
	})

	t.Run("发射过程中出错后其余观察者不再收到该值", func(t *testing.T) {
		boom := errors.New("boom")
		subject := NewSubject[int]()
		rec := newRecorder[int]()

		subject.SubscribeWithCallbacks(func(int) { subject.OnError(boom) }, nil, nil)
		subject.Subscribe(rec)

		subject.OnNext(1)
		assert.Empty(t, rec.Values())
		assert.ErrorIs(t, rec.Err(), boom)
		assert.Equal(t, 1, rec.Terminations())
	})

	t.Run("发射过程中取消订阅", func(t *testing.T) {
		subject := NewSubject[int]()
		var second Subscription
		var firstValues, secondValues []int

		subject.SubscribeWithCallbacks(func(v int) {
			firstValues = append(firstValues, v)
			second.Dispose()
		}, nil, nil)
		second = subject.SubscribeWithCallbacks(func(v int) {
			secondValues = append(secondValues, v)
		}, nil, nil)

		subject.OnNext(1)
		subject.OnNext(2)

		assert.Equal(t, []int{1, 2}, firstValues)
		assert.Empty(t, secondValues)
		assert.Equal(t, 1, subject.ObserverCount())
	})

	t.Run("发射过程中订阅的新观察者从下一个值开始接收", func(t *testing.T) {
		subject := NewSubject[int]()
		late := newRecorder[int]()
		once := sync.Once{}
		subject.SubscribeWithCallbacks(func(int) {
			once.Do(func() { subject.Subscribe(late) })
		}, nil, nil)

		subject.OnNext(1)
		subject.OnNext(2)
		assert.Equal(t, []int{2}, late.Values())
	})

	t.Run("并发订阅与发射", func(t *testing.T) {
		subject := NewSubject[int]()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				sub := subject.Subscribe(newRecorder[int]())
				sub.Dispose()
			}()
			go func(v int) {
				defer wg.Done()
				subject.OnNext(v)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 0, subject.ObserverCount())
	})

	t.Run("Dispose丢弃订阅者", func(t *testing.T) {
		subject := NewSubject[int]()
		rec := newRecorder[int]()
		subject.Subscribe(rec)
		subject.Dispose()
		subject.OnNext(1)

		assert.True(t, subject.IsDisposed())
		assert.Empty(t, rec.Values())
		assert.Equal(t, 0, rec.Terminations())
	})

	t.Run("可以作为观察者订阅Observable", func(t *testing.T) {
		subject := NewSubject[int]()
		rec := newRecorder[int]()
		subject.Subscribe(rec)

		Of(1, 2, 3).Subscribe(subject)
		assert.Equal(t, []int{1, 2, 3}, rec.Values())
		assert.True(t, rec.Completed())
	})
}

// ============================================================================
// BehaviorSubject
// ============================================================================

func TestBehaviorSubject(t *testing.T) {
	t.Run("新订阅者先收到当前值", func(t *testing.T) {
		subject := NewBehaviorSubject("initial")
		first := newRecorder[string]()
		subject.Subscribe(first)

		subject.OnNext("a")
		second := newRecorder[string]()
		subject.Subscribe(second)
		subject.OnNext("b")

		assert.Equal(t, []string{"initial", "a", "b"}, first.Values())
		assert.Equal(t, []string{"a", "b"}, second.Values())
		assert.Equal(t, "b", subject.Value())
	})

	t.Run("当前值先于其他goroutine的并发发射", func(t *testing.T) {
		subject := NewBehaviorSubject("initial")
		var (
			mu     sync.Mutex
			values []string
		)

		subject.SubscribeWithCallbacks(func(v string) {
			mu.Lock()
			values = append(values, v)
			mu.Unlock()
			if v != "initial" {
				return
			}
			done := make(chan struct{})
			go func() {
				defer close(done)
				subject.OnNext("live")
			}()
			<-done
		}, nil, nil)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"initial", "live"}, values)
	})

	t.Run("终止后先发送当前值再发送终止通知", func(t *testing.T) {
		subject := NewBehaviorSubject(1)
		subject.OnNext(2)
		subject.OnComplete()

		rec := newRecorder[int]()
		subject.Subscribe(rec)
		assert.Equal(t, []int{2}, rec.Values())
		assert.True(t, rec.Completed())
	})
}

// ============================================================================
// ReplaySubject
// ============================================================================

func TestReplaySubject(t *testing.T) {
	t.Run("重放最近的n个值", func(t *testing.T) {
		subject := NewReplaySubject[string](2)
		subject.OnNext("First")
		subject.OnNext("Second")
		subject.OnNext("Third")
		subject.OnNext("Fourth")

		rec := newRecorder[string]()
		subject.Subscribe(rec)
		subject.OnNext("Fifth")

		assert.Equal(t, []string{"Third", "Fourth", "Fifth"}, rec.Values())
		assert.Equal(t, []string{"Fourth", "Fifth"}, subject.BufferedValues())
	})

	t.Run("不限数量", func(t *testing.T) {
		subject := NewReplaySubject[int](0)
		for i := 0; i < 5; i++ {
			subject.OnNext(i)
		}
		rec := newRecorder[int]()
		subject.Subscribe(rec)
		assert.Equal(t, []int{0, 1, 2, 3, 4}, rec.Values())
	})

	t.Run("终止后重放缓存再发送终止通知", func(t *testing.T) {
		boom := errors.New("boom")
		subject := NewReplaySubject[int](3)
		subject.OnNext(1)
		subject.OnNext(2)
		subject.OnError(boom)

		rec := newRecorder[int]()
		subject.Subscribe(rec)
		assert.Equal(t, []int{1, 2}, rec.Values())
		assert.ErrorIs(t, rec.Err(), boom)
	})

	t.Run("重放过程中取消订阅", func(t *testing.T) {
		subject := NewReplaySubject[int](0)
		subject.OnNext(1)
		subject.OnNext(2)
		subject.OnNext(3)

		var got []int
		var sub Subscription
		sub = subject.AsObservable().Pipe(Take[int](2)).SubscribeWithCallbacks(func(v int) {
			got = append(got, v)
		}, nil, nil)

		assert.Equal(t, []int{1, 2}, got)
		assert.True(t, sub.IsDisposed())
		assert.False(t, subject.HasObservers())
	})
}

// ============================================================================
// AsyncSubject
// ============================================================================

func TestAsyncSubject(t *testing.T) {
	t.Run("完成时只发送最后一个值", func(t *testing.T) {
		subject := NewAsyncSubject[string]()
		early := newRecorder[string]()
		subject.Subscribe(early)

		subject.OnNext("First")
		subject.OnNext("Second")
		subject.OnNext("Third")
		assert.Empty(t, early.Values())

		subject.OnComplete()
		late := newRecorder[string]()
		subject.Subscribe(late)

		assert.Equal(t, []string{"Third"}, early.Values())
		assert.True(t, early.Completed())
		assert.Equal(t, []string{"Third"}, late.Values())
		assert.True(t, late.Completed())
	})

	t.Run("没有值时只完成", func(t *testing.T) {
		subject := NewAsyncSubject[int]()
		rec := newRecorder[int]()
		subject.Subscribe(rec)
		subject.OnComplete()

		assert.Empty(t, rec.Values())
		assert.True(t, rec.Completed())
	})

	t.Run("出错时只发送错误", func(t *testing.T) {
		boom := errors.New("boom")
		subject := NewAsyncSubject[int]()
		subject.OnNext(1)
		subject.OnError(boom)

		rec := newRecorder[int]()
		subject.Subscribe(rec)
		assert.Empty(t, rec.Values())
		assert.ErrorIs(t, rec.Err(), boom)
	})
}
