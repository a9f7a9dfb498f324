// Scheduler implementations for RxGo
// 调度器系统：所有延时与定时工作都通过可注入的调度器执行，测试时可使用虚拟时间
package rxgo

import (
	"container/heap"
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ============================================================================
// 调度器接口
// ============================================================================

// Scheduler 调度器接口，控制任务执行时机和方式。
// 返回的Disposable在任务执行前释放会取消该任务。
type Scheduler interface {
	// Now 调度器的当前时间
	Now() time.Time
	// Schedule 调度一个任务
	Schedule(action func()) Disposable
	// ScheduleWithDelay 延迟调度一个任务
	ScheduleWithDelay(action func(), delay time.Duration) Disposable
	// ScheduleWithContext 带上下文的调度，上下文结束后任务不再执行
	ScheduleWithContext(ctx context.Context, action func()) Disposable
}

// cancellableTask 可取消的任务，取消与执行互斥
type cancellableTask struct {
	mu        sync.Mutex
	cancelled bool
	action    func()
}

func (t *cancellableTask) run() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	t.action()
}

func (t *cancellableTask) cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
}

// afterFunc 基于真实时间的延迟任务
func afterFunc(delay time.Duration, action func()) Disposable {
	task := &cancellableTask{action: action}
	timer := time.AfterFunc(delay, task.run)
	return NewBaseDisposable(func() {
		task.cancel()
		timer.Stop()
	})
}

func scheduleWithContext(s Scheduler, ctx context.Context, action func()) Disposable {
	return s.Schedule(func() {
		if ctx.Err() != nil {
			return
		}
		action()
	})
}

// ============================================================================
// 立即调度器 - Immediate Scheduler
// ============================================================================

// immediateScheduler 立即在当前goroutine中执行任务
type immediateScheduler struct{}

// NewImmediateScheduler 创建立即调度器
func NewImmediateScheduler() Scheduler {
	return &immediateScheduler{}
}

func (s *immediateScheduler) Now() time.Time {
	return time.Now()
}

// Schedule 立即执行任务
func (s *immediateScheduler) Schedule(action func()) Disposable {
	action()
	return disposedDisposable
}

// ScheduleWithDelay 延迟执行任务
func (s *immediateScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	if delay <= 0 {
		return s.Schedule(action)
	}
	return afterFunc(delay, action)
}

// ScheduleWithContext 带上下文执行任务
func (s *immediateScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

// ============================================================================
// 当前线程调度器 - Current Thread Scheduler
// ============================================================================

// currentThreadScheduler 蹦床调度器：第一个调度的调用方在自己的goroutine上
// 按顺序排空队列，排空期间再调度的任务追加到队尾
type currentThreadScheduler struct {
	mu         sync.Mutex
	queue      []*cancellableTask
	processing bool
}

// NewCurrentThreadScheduler 创建当前线程调度器
func NewCurrentThreadScheduler() Scheduler {
	return &currentThreadScheduler{}
}

func (s *currentThreadScheduler) Now() time.Time {
	return time.Now()
}

// Schedule 在当前线程中调度任务
func (s *currentThreadScheduler) Schedule(action func()) Disposable {
	task := &cancellableTask{action: action}

	s.mu.Lock()
	s.queue = append(s.queue, task)
	if s.processing {
		s.mu.Unlock()
		return NewBaseDisposable(task.cancel)
	}
	s.processing = true
	s.mu.Unlock()

	s.processQueue()
	return NewBaseDisposable(task.cancel)
}

// ScheduleWithDelay 延迟调度任务
func (s *currentThreadScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	if delay <= 0 {
		return s.Schedule(action)
	}
	return afterFunc(delay, func() { s.Schedule(action) })
}

// ScheduleWithContext 带上下文调度任务
func (s *currentThreadScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

// processQueue 处理队列中的任务
func (s *currentThreadScheduler) processQueue() {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.processing = false
			s.mu.Unlock()
			panic(r)
		}
	}()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.processing = false
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		task.run()
	}
}

// ============================================================================
// 新线程调度器 - New Thread Scheduler
// ============================================================================

// newThreadScheduler 为每个任务创建新的goroutine，延迟任务使用真实定时器
type newThreadScheduler struct{}

// NewNewThreadScheduler 创建新线程调度器
func NewNewThreadScheduler() Scheduler {
	return &newThreadScheduler{}
}

func (s *newThreadScheduler) Now() time.Time {
	return time.Now()
}

// Schedule 在新goroutine中执行任务
func (s *newThreadScheduler) Schedule(action func()) Disposable {
	task := &cancellableTask{action: action}
	go task.run()
	return NewBaseDisposable(task.cancel)
}

// ScheduleWithDelay 延迟在新goroutine中执行任务
func (s *newThreadScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	if delay <= 0 {
		return s.Schedule(action)
	}
	return afterFunc(delay, action)
}

// ScheduleWithContext 带上下文在新goroutine中执行任务
func (s *newThreadScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

// ============================================================================
// 线程池调度器 - Thread Pool Scheduler
// ============================================================================

// ThreadPoolScheduler 使用固定数量的goroutine执行任务
type ThreadPoolScheduler struct {
	workers   int
	taskQueue chan *cancellableTask
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	disposed  int32
}

// NewThreadPoolScheduler 创建线程池调度器，workers<=0时使用CPU核数
func NewThreadPoolScheduler(workers int) *ThreadPoolScheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &ThreadPoolScheduler{
		workers:   workers,
		taskQueue: make(chan *cancellableTask, workers*2),
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

func (s *ThreadPoolScheduler) Now() time.Time {
	return time.Now()
}

// Schedule 在线程池中执行任务，队列满时阻塞调用方
func (s *ThreadPoolScheduler) Schedule(action func()) Disposable {
	if atomic.LoadInt32(&s.disposed) == 1 {
		return disposedDisposable
	}

	task := &cancellableTask{action: action}
	select {
	case s.taskQueue <- task:
		return NewBaseDisposable(task.cancel)
	case <-s.ctx.Done():
		return disposedDisposable
	}
}

// ScheduleWithDelay 延迟在线程池中执行任务
func (s *ThreadPoolScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	if delay <= 0 {
		return s.Schedule(action)
	}

	var inner atomic.Value
	timer := afterFunc(delay, func() {
		inner.Store(s.Schedule(action))
	})
	return NewBaseDisposable(func() {
		timer.Dispose()
		if d, ok := inner.Load().(Disposable); ok {
			d.Dispose()
		}
	})
}

// ScheduleWithContext 带上下文在线程池中执行任务
func (s *ThreadPoolScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

func (s *ThreadPoolScheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case task := <-s.taskQueue:
			if err := SafeExecute(task.run); err != nil {
				Logger().Error("scheduled task panicked", "scheduler", "thread_pool", "error", err)
			}
		}
	}
}

// Dispose 停止所有worker，队列中未执行的任务被丢弃
func (s *ThreadPoolScheduler) Dispose() {
	if atomic.CompareAndSwapInt32(&s.disposed, 0, 1) {
		s.cancel()
		s.wg.Wait()
	}
}

// IsDisposed 检查线程池是否已释放
func (s *ThreadPoolScheduler) IsDisposed() bool {
	return atomic.LoadInt32(&s.disposed) == 1
}

// ============================================================================
// 测试调度器 - Test Scheduler
// ============================================================================

// TestScheduler 虚拟时间调度器：时间只在AdvanceTimeBy/AdvanceTimeTo/Flush时前进，
// 任务按(到期时间, 调度顺序)全序执行
type TestScheduler struct {
	mu    sync.Mutex
	epoch time.Time
	clock time.Duration
	seq   uint64
	queue taskHeap
	live  int
}

// scheduledAction 调度的动作
type scheduledAction struct {
	due       time.Duration
	seq       uint64
	action    func()
	cancelled bool
}

type taskHeap []*scheduledAction

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].due == h[j].due {
		return h[i].seq < h[j].seq
	}
	return h[i].due < h[j].due
}
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x interface{}) { *h = append(*h, x.(*scheduledAction)) }
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// NewTestScheduler 创建测试调度器
func NewTestScheduler() *TestScheduler {
	return &TestScheduler{epoch: time.Unix(0, 0).UTC()}
}

// Now 虚拟当前时间
func (s *TestScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch.Add(s.clock)
}

// Clock 自创建以来经过的虚拟时间
func (s *TestScheduler) Clock() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// Pending 尚未执行也未取消的任务数量
func (s *TestScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Schedule 在当前虚拟时刻调度任务，下一次推进时间时执行
func (s *TestScheduler) Schedule(action func()) Disposable {
	return s.ScheduleWithDelay(action, 0)
}

// ScheduleWithDelay 延迟调度任务
func (s *TestScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	s.seq++
	task := &scheduledAction{due: s.clock + delay, seq: s.seq, action: action}
	heap.Push(&s.queue, task)
	s.live++
	s.mu.Unlock()

	return NewBaseDisposable(func() {
		s.mu.Lock()
		if !task.cancelled {
			task.cancelled = true
			task.action = nil
			s.live--
		}
		s.mu.Unlock()
	})
}

// ScheduleWithContext 带上下文调度任务
func (s *TestScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

// AdvanceTimeBy 推进虚拟时间
func (s *TestScheduler) AdvanceTimeBy(d time.Duration) {
	s.mu.Lock()
	target := s.clock + d
	s.mu.Unlock()
	s.AdvanceTimeTo(target)
}

// AdvanceTimeTo 推进虚拟时间到指定时刻，依次执行到期任务；
// 任务执行期间新调度且到期的任务也会在本次推进中执行
func (s *TestScheduler) AdvanceTimeTo(target time.Duration) {
	for {
		s.mu.Lock()
		task := s.popDueLocked(target)
		if task == nil {
			if target > s.clock {
				s.clock = target
			}
			s.mu.Unlock()
			return
		}
		s.clock = task.due
		action := task.action
		s.mu.Unlock()

		action()
	}
}

// Flush 执行所有待执行任务，直到队列为空。存在周期任务时不要调用。
func (s *TestScheduler) Flush() {
	for {
		s.mu.Lock()
		task := s.popDueLocked(-1)
		if task == nil {
			s.mu.Unlock()
			return
		}
		if task.due > s.clock {
			s.clock = task.due
		}
		action := task.action
		s.mu.Unlock()

		action()
	}
}

// popDueLocked 弹出下一个未取消且到期的任务，limit<0表示不限时间
func (s *TestScheduler) popDueLocked(limit time.Duration) *scheduledAction {
	for s.queue.Len() > 0 {
		next := s.queue[0]
		if next.cancelled {
			heap.Pop(&s.queue)
			continue
		}
		if limit >= 0 && next.due > limit {
			return nil
		}
		heap.Pop(&s.queue)
		next.cancelled = true
		s.live--
		return next
	}
	return nil
}

// ============================================================================
// 默认调度器
// ============================================================================

var (
	// DefaultScheduler 时间相关操作的默认调度器
	DefaultScheduler Scheduler = NewNewThreadScheduler()

	// ImmediateScheduler 立即调度器实例
	ImmediateScheduler Scheduler = NewImmediateScheduler()

	// CurrentThreadScheduler 当前线程调度器实例
	CurrentThreadScheduler Scheduler = NewCurrentThreadScheduler()

	// NewThreadScheduler 新线程调度器实例
	NewThreadScheduler Scheduler = NewNewThreadScheduler()
)

// ============================================================================
// 调度器辅助函数
// ============================================================================

// SchedulePeriodic 以固定周期重复执行任务，tick从0开始递增
func SchedulePeriodic(scheduler Scheduler, period time.Duration, action func(tick int)) Disposable {
	var (
		mu      sync.Mutex
		current Disposable
		stopped bool
		tick    int
	)

	var next func()
	next = func() {
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		n := tick
		tick++
		mu.Unlock()

		action(n)

		d := scheduler.ScheduleWithDelay(next, period)
		mu.Lock()
		if stopped {
			mu.Unlock()
			d.Dispose()
			return
		}
		current = d
		mu.Unlock()
	}

	first := scheduler.ScheduleWithDelay(next, period)
	mu.Lock()
	if current == nil {
		current = first
	}
	mu.Unlock()

	return NewBaseDisposable(func() {
		mu.Lock()
		stopped = true
		d := current
		mu.Unlock()
		if d != nil {
			d.Dispose()
		}
	})
}
