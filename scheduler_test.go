// Scheduler tests for RxGo
// 调度器测试：虚拟时间、蹦床、线程池与周期任务
package rxgo

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TestScheduler
// ============================================================================

func TestTestScheduler(t *testing.T) {
	t.Run("按到期时间和调度顺序执行", func(t *testing.T) {
		ts := NewTestScheduler()
		var order []string
		ts.ScheduleWithDelay(func() { order = append(order, "b@20") }, 20*ms)
		ts.ScheduleWithDelay(func() { order = append(order, "a@10") }, 10*ms)
		ts.ScheduleWithDelay(func() { order = append(order, "c@20") }, 20*ms)
		ts.Schedule(func() { order = append(order, "now") })

		ts.AdvanceTimeBy(15 * ms)
		assert.Equal(t, []string{"now", "a@10"}, order)
		assert.Equal(t, 15*ms, ts.Clock())

		ts.AdvanceTimeBy(5 * ms)
		assert.Equal(t, []string{"now", "a@10", "b@20", "c@20"}, order)
	})

	t.Run("任务执行时时钟等于到期时间", func(t *testing.T) {
		ts := NewTestScheduler()
		var seen time.Duration
		ts.ScheduleWithDelay(func() { seen = ts.Clock() }, 30*ms)
		ts.AdvanceTimeTo(time.Second)

		assert.Equal(t, 30*ms, seen)
		assert.Equal(t, time.Second, ts.Clock())
		assert.Equal(t, time.Unix(1, 0).UTC(), ts.Now())
	})

	t.Run("推进期间新调度的到期任务也被执行", func(t *testing.T) {
		ts := NewTestScheduler()
		ran := false
		ts.ScheduleWithDelay(func() {
			ts.ScheduleWithDelay(func() { ran = true }, 5*ms)
		}, 10*ms)

		ts.AdvanceTimeBy(15 * ms)
		assert.True(t, ran)
	})

	t.Run("取消的任务不执行", func(t *testing.T) {
		ts := NewTestScheduler()
		ran := false
		task := ts.ScheduleWithDelay(func() { ran = true }, 10*ms)
		assert.Equal(t, 1, ts.Pending())

		task.Dispose()
		task.Dispose()
		assert.Equal(t, 0, ts.Pending())

		ts.AdvanceTimeBy(time.Second)
		assert.False(t, ran)
	})

	t.Run("Flush执行全部任务", func(t *testing.T) {
		ts := NewTestScheduler()
		count := 0
		for i := 1; i <= 3; i++ {
			ts.ScheduleWithDelay(func() { count++ }, time.Duration(i)*time.Hour)
		}
		ts.Flush()

		assert.Equal(t, 3, count)
		assert.Equal(t, 3*time.Hour, ts.Clock())
	})

	t.Run("上下文结束后任务不执行", func(t *testing.T) {
		ts := NewTestScheduler()
		ctx, cancel := context.WithCancel(context.Background())
		ran := false
		ts.ScheduleWithContext(ctx, func() { ran = true })
		cancel()
		ts.AdvanceTimeBy(0)
		assert.False(t, ran)
	})
}

// ============================================================================
// 其他调度器
// ============================================================================

func TestImmediateScheduler(t *testing.T) {
	ran := false
	task := ImmediateScheduler.Schedule(func() { ran = true })
	assert.True(t, ran)
	assert.True(t, task.IsDisposed())
}

func TestCurrentThreadScheduler(t *testing.T) {
	scheduler := NewCurrentThreadScheduler()
	var order []string

	scheduler.Schedule(func() {
		order = append(order, "outer start")
		scheduler.Schedule(func() { order = append(order, "inner") })
		order = append(order, "outer end")
	})

	assert.Equal(t, []string{"outer start", "outer end", "inner"}, order)
}

func TestNewThreadScheduler(t *testing.T) {
	done := make(chan struct{})
	NewThreadScheduler.Schedule(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}

	cancelled := NewThreadScheduler.ScheduleWithDelay(func() { t.Error("cancelled task ran") }, 20*time.Millisecond)
	cancelled.Dispose()
	time.Sleep(40 * time.Millisecond)
}

func TestThreadPoolScheduler(t *testing.T) {
	pool := NewThreadPoolScheduler(4)
	defer pool.Dispose()

	var (
		wg    sync.WaitGroup
		count int32
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		pool.Schedule(func() {
			defer wg.Done()
			atomic.AddInt32(&count, 1)
		})
	}
	wg.Wait()
	assert.Equal(t, int32(100), atomic.LoadInt32(&count))

	t.Run("panic不会终止worker", func(t *testing.T) {
		captureLogs(t)
		pool.Schedule(func() { panic("boom") })

		done := make(chan struct{})
		pool.Schedule(func() { close(done) })
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("pool stopped after panic")
		}
	})

	t.Run("释放后不再接收任务", func(t *testing.T) {
		local := NewThreadPoolScheduler(1)
		local.Dispose()
		assert.True(t, local.IsDisposed())
		assert.True(t, local.Schedule(func() {}).IsDisposed())
	})
}

func TestSchedulePeriodic(t *testing.T) {
	ts := NewTestScheduler()
	var ticks []int
	periodic := SchedulePeriodic(ts, 10*ms, func(tick int) { ticks = append(ticks, tick) })

	ts.AdvanceTimeBy(35 * ms)
	assert.Equal(t, []int{0, 1, 2}, ticks)

	periodic.Dispose()
	ts.AdvanceTimeBy(100 * ms)
	assert.Equal(t, []int{0, 1, 2}, ticks)
	assert.Equal(t, 0, ts.Pending())
}

// ============================================================================
// 监控调度器
// ============================================================================

func TestMonitoredScheduler(t *testing.T) {
	logs := captureLogs(t)
	registry := prometheus.NewRegistry()
	metrics := NewSchedulerMetrics("test")
	require.NoError(t, metrics.Register(registry))

	ts := NewTestScheduler()
	scheduler := NewMonitoredScheduler(ts, metrics)
	scheduler.ScheduleWithDelay(func() {}, 10*ms)
	scheduler.ScheduleWithDelay(func() { panic("task failed") }, 20*ms)
	scheduler.Schedule(func() {})

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.TasksScheduled))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.TasksCompleted))

	ts.AdvanceTimeBy(time.Second)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.TasksCompleted))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.TasksFailed))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.TaskLatency))
	assert.Contains(t, logs.String(), "scheduled task panicked")

	t.Run("重复注册复用已有收集器", func(t *testing.T) {
		again := NewSchedulerMetrics("test")
		require.NoError(t, again.Register(registry))
		assert.Same(t, metrics.TasksScheduled, again.TasksScheduled)
	})

	t.Run("驱动Interval", func(t *testing.T) {
		rec := newRecorder[int]()
		Interval(10*ms, WithScheduler(scheduler)).Pipe(Take[int](3)).Subscribe(rec)
		ts.AdvanceTimeBy(50 * ms)

		assert.Equal(t, []int{0, 1, 2}, rec.Values())
		assert.True(t, rec.Completed())
	})
}
