// Scheduler monitoring for RxGo
// 调度器性能监控：以Prometheus指标记录任务调度、完成、失败与排队延迟
package rxgo

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetrics 调度器性能指标
type SchedulerMetrics struct {
	TasksScheduled prometheus.Counter
	TasksCompleted prometheus.Counter
	TasksFailed    prometheus.Counter
	TaskLatency    prometheus.Histogram
}

// NewSchedulerMetrics 创建调度器指标，name作为scheduler常量标签
func NewSchedulerMetrics(name string) *SchedulerMetrics {
	labels := prometheus.Labels{"scheduler": name}
	return &SchedulerMetrics{
		TasksScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rxgo",
			Subsystem:   "scheduler",
			Name:        "tasks_scheduled_total",
			Help:        "Total number of tasks handed to the scheduler",
			ConstLabels: labels,
		}),
		TasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rxgo",
			Subsystem:   "scheduler",
			Name:        "tasks_completed_total",
			Help:        "Total number of tasks that ran to completion",
			ConstLabels: labels,
		}),
		TasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rxgo",
			Subsystem:   "scheduler",
			Name:        "tasks_failed_total",
			Help:        "Total number of tasks that panicked",
			ConstLabels: labels,
		}),
		TaskLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "rxgo",
			Subsystem:   "scheduler",
			Name:        "task_latency_seconds",
			Help:        "Delay between the requested run time and the actual run time of a task",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}),
	}
}

// Register 把所有指标注册到registerer，重复注册时复用已注册的收集器
func (m *SchedulerMetrics) Register(registerer prometheus.Registerer) error {
	if registerer == nil {
		return nil
	}

	var err error
	m.TasksScheduled, err = registerCounter(registerer, m.TasksScheduled)
	if err != nil {
		return err
	}
	m.TasksCompleted, err = registerCounter(registerer, m.TasksCompleted)
	if err != nil {
		return err
	}
	m.TasksFailed, err = registerCounter(registerer, m.TasksFailed)
	if err != nil {
		return err
	}
	if err := registerer.Register(m.TaskLatency); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
		m.TaskLatency = are.ExistingCollector.(prometheus.Histogram)
	}
	return nil
}

func registerCounter(registerer prometheus.Registerer, c prometheus.Counter) (prometheus.Counter, error) {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(prometheus.Counter), nil
		}
		return nil, err
	}
	return c, nil
}

// monitoredScheduler 带监控的调度器包装器
type monitoredScheduler struct {
	scheduler Scheduler
	metrics   *SchedulerMetrics
}

// NewMonitoredScheduler 创建带监控的调度器。
// 任务panic会被记录为失败并写入日志，不会终止调度器所在的goroutine。
func NewMonitoredScheduler(scheduler Scheduler, metrics *SchedulerMetrics) Scheduler {
	return &monitoredScheduler{scheduler: scheduler, metrics: metrics}
}

func (s *monitoredScheduler) Now() time.Time {
	return s.scheduler.Now()
}

// Schedule 调度任务并记录指标
func (s *monitoredScheduler) Schedule(action func()) Disposable {
	return s.scheduler.Schedule(s.wrap(action, s.scheduler.Now()))
}

// ScheduleWithDelay 延迟调度任务并记录指标
func (s *monitoredScheduler) ScheduleWithDelay(action func(), delay time.Duration) Disposable {
	return s.scheduler.ScheduleWithDelay(s.wrap(action, s.scheduler.Now().Add(delay)), delay)
}

// ScheduleWithContext 带上下文调度任务并记录指标
func (s *monitoredScheduler) ScheduleWithContext(ctx context.Context, action func()) Disposable {
	return scheduleWithContext(s, ctx, action)
}

func (s *monitoredScheduler) wrap(action func(), due time.Time) func() {
	s.metrics.TasksScheduled.Inc()
	return func() {
		if lag := s.scheduler.Now().Sub(due); lag > 0 {
			s.metrics.TaskLatency.Observe(lag.Seconds())
		} else {
			s.metrics.TaskLatency.Observe(0)
		}
		if err := SafeExecute(action); err != nil {
			s.metrics.TasksFailed.Inc()
			Logger().Error("scheduled task panicked", "error", err)
			return
		}
		s.metrics.TasksCompleted.Inc()
	}
}
