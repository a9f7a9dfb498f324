// Flattening operator tests for RxGo
// 扁平化操作符测试，计时部分使用虚拟时间
package rxgo

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// tagged 每period发射tag加序号
func tagged(ts *TestScheduler, tag string, period time.Duration) Observable[string] {
	return Pipe1(Interval(period, WithScheduler(ts)), MapValue(func(i int) string {
		return fmt.Sprintf("%s%d", tag, i)
	}))
}

// after 在delay之后发射value然后完成
func after[T any](ts *TestScheduler, delay time.Duration, value T) Observable[T] {
	return Pipe1(Timer(delay, WithScheduler(ts)), MapValue(func(int) T { return value }))
}

func TestMergeMap(t *testing.T) {
	t.Run("同步内部流", func(t *testing.T) {
		rec := newRecorder[int]()
		Pipe1(Of(1, 2, 3), MergeMap(func(v int) Observable[int] {
			return Of(v, v*10)
		})).Subscribe(rec)

		assert.Equal(t, []int{1, 10, 2, 20, 3, 30}, rec.Values())
		assert.True(t, rec.Completed())
	})

	t.Run("内部流按发生时间交错", func(t *testing.T) {
		ts := NewTestScheduler()
		rec := newRecorder[string]()
		Pipe1(Of("a", "b"), MergeMap(func(tag string) Observable[string] {
			return Pipe1(tagged(ts, tag, 10*time.Millisecond), Take[string](2))
		})).Subscribe(rec)

		ts.AdvanceTimeBy(15 * time.Millisecond)
		assert.Equal(t, []string{"a0", "b0"}, rec.Values())
		assert.False(t, rec.Completed())

		ts.AdvanceTimeBy(10 * time.Millisecond)
		assert.Equal(t, []string{"a0", "b0", "a1", "b1"}, rec.Values())
		assert.True(t, rec.Completed())
	})

	t.Run("外部完成后等待所有内部流完成", func(t *testing.T) {
		ts := NewTestScheduler()
		rec := newRecorder[int]()
		Pipe1(Of(30, 10), MergeMap(func(ms int) Observable[int] {
			return after(ts, time.Duration(ms)*time.Millisecond, ms)
		})).Subscribe(rec)

		ts.AdvanceTimeBy(20 * time.Millisecond)
		assert.Equal(t, []int{10}, rec.Values())
		assert.False(t, rec.Completed())

		ts.AdvanceTimeBy(20 * time.Millisecond)
		assert.Equal(t, []int{10, 30}, rec.Values())
		assert.True(t, rec.Completed())
	})

	t.Run("内部错误释放其余内部订阅", func(t *testing.T) {
		boom := errors.New("boom")
		first := NewSubject[int]()
		second := NewSubject[int]()
		inners := map[int]*Subject[int]{1: first, 2: second}

		rec := newRecorder[int]()
		Pipe1(Of(1, 2), MergeMap(func(k int) Observable[int] {
			return inners[k].AsObservable()
		})).Subscribe(rec)

		first.OnNext(1)
		second.OnError(boom)
		first.OnNext(2)

		assert.Equal(t, []int{1}, rec.Values())
		assert.ErrorIs(t, rec.Err(), boom)
		assert.False(t, first.HasObservers())
	})

	t.Run("project panic作为错误传递", func(t *testing.T) {
		rec := newRecorder[int]()
		Pipe1(Of(1), MergeMap(func(int) Observable[int] { panic("no inner") })).Subscribe(rec)

		var panicErr *PanicError
		assert.ErrorAs(t, rec.Err(), &panicErr)
	})
}

func TestMergeMapWithConcurrency(t *testing.T) {
	ts := NewTestScheduler()
	rec := newRecorder[int]()
	Pipe1(Of(30, 10, 10), MergeMapWithConcurrency(func(ms int) Observable[int] {
		return after(ts, time.Duration(ms)*time.Millisecond, ms)
	}, 2)).Subscribe(rec)

	// 第三个值要等第二个内部流在10ms完成后才订阅，在20ms发射
	ts.AdvanceTimeBy(10 * time.Millisecond)
	assert.Equal(t, []int{10}, rec.Values())

	ts.AdvanceTimeBy(10 * time.Millisecond)
	assert.Equal(t, []int{10, 10}, rec.Values())

	ts.AdvanceTimeBy(10 * time.Millisecond)
	assert.Equal(t, []int{10, 10, 30}, rec.Values())
	assert.True(t, rec.Completed())
}

func TestConcatMap(t *testing.T) {
	ts := NewTestScheduler()
	rec := newRecorder[int]()
	Pipe1(Of(30, 10, 20), ConcatMap(func(ms int) Observable[int] {
		return after(ts, time.Duration(ms)*time.Millisecond, ms)
	})).Subscribe(rec)

	ts.AdvanceTimeBy(30 * time.Millisecond)
	assert.Equal(t, []int{30}, rec.Values())

	ts.AdvanceTimeBy(10 * time.Millisecond)
	assert.Equal(t, []int{30, 10}, rec.Values())

	ts.AdvanceTimeBy(20 * time.Millisecond)
	assert.Equal(t, []int{30, 10, 20}, rec.Values())
	assert.True(t, rec.Completed())
}

func TestSwitchMap(t *testing.T) {
	t.Run("新外部值到达时取消上一个内部流", func(t *testing.T) {
		ts := NewTestScheduler()
		outer := NewSubject[string]()
		rec := newRecorder[string]()
		Pipe1(outer.AsObservable(), SwitchMap(func(tag string) Observable[string] {
			return tagged(ts, tag, 10*time.Millisecond)
		})).Subscribe(rec)

		outer.OnNext("A")
		ts.AdvanceTimeBy(25 * time.Millisecond)
		outer.OnNext("B")
		ts.AdvanceTimeBy(25 * time.Millisecond)

		assert.Equal(t, []string{"A0", "A1", "B0", "B1"}, rec.Values())
		assert.Equal(t, 1, ts.Pending())
	})

	t.Run("外部与当前内部都完成后完成", func(t *testing.T) {
		ts := NewTestScheduler()
		outer := NewSubject[int]()
		rec := newRecorder[int]()
		Pipe1(outer.AsObservable(), SwitchMap(func(v int) Observable[int] {
			return after(ts, 10*time.Millisecond, v)
		})).Subscribe(rec)

		outer.OnNext(1)
		outer.OnNext(2)
		outer.OnComplete()
		assert.False(t, rec.Completed())

		ts.AdvanceTimeBy(10 * time.Millisecond)
		assert.Equal(t, []int{2}, rec.Values())
		assert.True(t, rec.Completed())
	})
}

func TestExhaustMap(t *testing.T) {
	ts := NewTestScheduler()
	outer := NewSubject[string]()
	rec := newRecorder[string]()
	Pipe1(outer.AsObservable(), ExhaustMap(func(tag string) Observable[string] {
		return after(ts, 20*time.Millisecond, tag)
	})).Subscribe(rec)

	outer.OnNext("A")
	ts.AdvanceTimeBy(5 * time.Millisecond)
	outer.OnNext("B")
	ts.AdvanceTimeBy(20 * time.Millisecond)
	outer.OnNext("C")
	outer.OnComplete()
	ts.AdvanceTimeBy(20 * time.Millisecond)

	assert.Equal(t, []string{"A", "C"}, rec.Values())
	assert.True(t, rec.Completed())
}
