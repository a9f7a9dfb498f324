// Filtering operator tests for RxGo
// 过滤操作符测试
package rxgo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter(t *testing.T) {
	rec := newRecorder[int]()
	Range(1, 10).Pipe(Filter(func(v int) bool { return v%2 == 0 })).Subscribe(rec)

	assert.Equal(t, []int{2, 4, 6, 8, 10}, rec.Values())
	assert.True(t, rec.Completed())
}

func TestDistinctUntilChanged(t *testing.T) {
	t.Run("去除连续重复值", func(t *testing.T) {
		rec := newRecorder[int]()
		Of(1, 1, 2, 2, 3, 3, 3, 4, 4, 5).Pipe(DistinctUntilChanged[int]()).Subscribe(rec)

		assert.Equal(t, []int{1, 2, 3, 4, 5}, rec.Values())
	})

	t.Run("不连续的重复值保留", func(t *testing.T) {
		rec := newRecorder[int]()
		Of(1, 2, 1, 1, 2).Pipe(DistinctUntilChanged[int]()).Subscribe(rec)

		assert.Equal(t, []int{1, 2, 1, 2}, rec.Values())
	})

	t.Run("自定义相等函数", func(t *testing.T) {
		type user struct {
			ID   int
			Name string
		}
		rec := newRecorder[user]()
		Of(user{1, "a"}, user{1, "b"}, user{2, "c"}).
			Pipe(DistinctUntilChangedFunc(func(prev, cur user) bool { return prev.ID == cur.ID })).
			Subscribe(rec)

		assert.Equal(t, []user{{1, "a"}, {2, "c"}}, rec.Values())
	})
}

func TestTake(t *testing.T) {
	t.Run("转发前n个值后完成并释放上游", func(t *testing.T) {
		tornDown := false
		source := Create(func(s Subscriber[int]) Teardown {
			for i := 0; !s.IsUnsubscribed(); i++ {
				s.OnNext(i)
			}
			return func() { tornDown = true }
		})

		rec := newRecorder[int]()
		source.Pipe(Take[int](3)).Subscribe(rec)

		assert.Equal(t, []int{0, 1, 2}, rec.Values())
		assert.True(t, rec.Completed())
		assert.True(t, tornDown)
	})

	t.Run("n为0时立即完成", func(t *testing.T) {
		rec := newRecorder[int]()
		Never[int]().Pipe(Take[int](0)).Subscribe(rec)
		assert.True(t, rec.Completed())
	})
}

func TestTakeWhile(t *testing.T) {
	rec := newRecorder[int]()
	Of(1, 2, 3, 10, 4).Pipe(TakeWhile(func(v int) bool { return v < 5 })).Subscribe(rec)

	assert.Equal(t, []int{1, 2, 3}, rec.Values())
	assert.True(t, rec.Completed())
}

func TestTakeUntil(t *testing.T) {
	t.Run("通知者发射时完成", func(t *testing.T) {
		source := NewSubject[int]()
		notifier := NewSubject[string]()

		rec := newRecorder[int]()
		source.AsObservable().Pipe(TakeUntil[int](notifier.AsObservable())).Subscribe(rec)

		source.OnNext(1)
		source.OnNext(2)
		notifier.OnNext("stop")
		source.OnNext(3)

		assert.Equal(t, []int{1, 2}, rec.Values())
		assert.True(t, rec.Completed())
		assert.False(t, source.HasObservers())
		assert.False(t, notifier.HasObservers())
	})

	t.Run("通知者完成时也完成", func(t *testing.T) {
		notifier := NewSubject[struct{}]()
		rec := newRecorder[int]()
		Never[int]().Pipe(TakeUntil[int](notifier.AsObservable())).Subscribe(rec)

		notifier.OnComplete()
		assert.True(t, rec.Completed())
	})

	t.Run("通知者错误向下游传递", func(t *testing.T) {
		boom := errors.New("boom")
		rec := newRecorder[int]()
		Never[int]().Pipe(TakeUntil[int](Throw[int](boom))).Subscribe(rec)

		assert.ErrorIs(t, rec.Err(), boom)
	})
}

func TestSkip(t *testing.T) {
	rec := newRecorder[int]()
	Range(1, 8).Pipe(Skip[int](3)).Subscribe(rec)

	assert.Equal(t, []int{4, 5, 6, 7, 8}, rec.Values())
}

func TestSkipWhile(t *testing.T) {
	rec := newRecorder[int]()
	Of(1, 2, 5, 1, 6).Pipe(SkipWhile(func(v int) bool { return v < 3 })).Subscribe(rec)

	assert.Equal(t, []int{5, 1, 6}, rec.Values())
}

func TestFirstLast(t *testing.T) {
	t.Run("First发射第一个值并立即完成", func(t *testing.T) {
		rec := newRecorder[int]()
		Range(5, 100).Pipe(First[int]()).Subscribe(rec)

		assert.Equal(t, []int{5}, rec.Values())
		assert.True(t, rec.Completed())
	})

	t.Run("Last在完成时发射最后一个值", func(t *testing.T) {
		rec := newRecorder[int]()
		Range(5, 3).Pipe(Last[int]()).Subscribe(rec)

		assert.Equal(t, []int{7}, rec.Values())
	})

	t.Run("空源出错", func(t *testing.T) {
		first, last := newRecorder[int](), newRecorder[int]()
		Empty[int]().Pipe(First[int]()).Subscribe(first)
		Empty[int]().Pipe(Last[int]()).Subscribe(last)

		assert.ErrorIs(t, first.Err(), ErrEmptySequence)
		assert.ErrorIs(t, last.Err(), ErrEmptySequence)
	})
}
