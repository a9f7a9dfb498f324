package demo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/xinjiayu/rxgo/v2"
	"github.com/xinjiayu/rxgo/v2/expr"
)

// Env 示例运行环境
type Env struct {
	Config    Config
	Sink      Sink
	Scheduler rxgo.Scheduler
	Client    *http.Client
}

func (e Env) record(category, format string, args ...any) {
	e.Sink.Record(category, fmt.Sprintf(format, args...), e.Scheduler.Now())
}

func (e Env) on() rxgo.Option {
	return rxgo.WithScheduler(e.Scheduler)
}

// Example 一个可运行的示例
type Example struct {
	Name        string
	Description string
	run         func(ctx context.Context, env Env) error
}

// Examples 所有示例，按运行顺序排列
func Examples() []Example {
	return []Example{
		{"observable", "producer emits two values then an async value", observableExample},
		{"observer", "subscribe with a full observer", observerExample},
		{"subject", "multicast to two observers", subjectExample},
		{"behavior", "late subscriber receives the current value", behaviorExample},
		{"replay", "late subscriber receives the last two values", replayExample},
		{"async", "only the last value is delivered on completion", asyncExample},
		{"throwError", "lazily built error with a timestamp", throwErrorExample},
		{"of", "emit a whole array as one value", ofExample},
		{"map", "double each number and format it", mapExample},
		{"timer", "emit once after a delay", timerExample},
		{"combineLatest", "combine letters and numbers emitted over time", combineLatestExample},
		{"filter", "keep values matching the CEL filter", filterExample},
		{"interval", "count ticks and stop after take values", intervalExample},
		{"takeUntil", "count ticks until a timer fires", takeUntilExample},
		{"delay", "shift every value by the delay", delayExample},
		{"users", "fetch users over HTTP", usersExample},
	}
}

// Lookup 按名称查找示例
func Lookup(name string) (Example, bool) {
	for _, example := range Examples() {
		if example.Name == name {
			return example, true
		}
	}
	return Example{}, false
}

// Run 依次运行names对应的示例。names为空时使用配置中的列表，配置也为空时运行全部示例。
// 每个示例受配置的超时约束，失败不会中断后续示例。
func Run(ctx context.Context, env Env, names []string) error {
	if len(names) == 0 {
		names = env.Config.Examples
	}
	if len(names) == 0 {
		for _, example := range Examples() {
			names = append(names, example.Name)
		}
	}

	selected := make([]Example, 0, len(names))
	for _, name := range names {
		example, ok := Lookup(name)
		if !ok {
			return fmt.Errorf("demo: unknown example %q", name)
		}
		selected = append(selected, example)
	}

	var errs []error
	for _, example := range selected {
		env.record("example", "=== %s: %s", example.Name, example.Description)

		runCtx, cancel := context.WithTimeout(ctx, env.Config.Timeout)
		err := example.run(runCtx, env)
		cancel()
		if err != nil {
			env.record("error", "%s failed: %v", example.Name, err)
			errs = append(errs, fmt.Errorf("example %s: %w", example.Name, err))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

// ============================================================================
// 辅助函数
// ============================================================================

// printer 把通知写入日志汇的观察者
func printer[T any](env Env, label string) rxgo.Observer[T] {
	return rxgo.NewObserver(
		func(value T) {
			if label == "" {
				env.record("next", "%v", value)
				return
			}
			env.record("next", "%s %v", label, value)
		},
		func(err error) { env.record("error", "Error: %v", err) },
		func() { env.record("complete", "Completed") },
	)
}

// after 在delay之后发射value
func after[T any](env Env, delay time.Duration, value T) rxgo.Observable[T] {
	return rxgo.Pipe1(rxgo.Timer(delay, env.on()), rxgo.MapValue(func(int) T { return value }))
}

// asyncSource 同步发射first，延迟后发射last并完成
func asyncSource(env Env, first []string, last string) rxgo.Observable[string] {
	return rxgo.Create(func(subscriber rxgo.Subscriber[string]) rxgo.Teardown {
		for _, value := range first {
			subscriber.OnNext(value)
		}
		task := env.Scheduler.ScheduleWithDelay(func() {
			subscriber.OnNext(last)
			subscriber.OnComplete()
		}, env.Config.Delay)
		return task.Dispose
	})
}

// ============================================================================
// 示例
// ============================================================================

func observableExample(ctx context.Context, env Env) error {
	source := asyncSource(env, []string{"Data 1", "Data 2"}, "Async Data")
	return source.BlockingSubscribe(ctx, printer[string](env, "Received:"))
}

func observerExample(ctx context.Context, env Env) error {
	source := asyncSource(env, []string{"First value", "Second value"}, "Async value")
	observer := rxgo.NewObserver(
		func(value string) { env.record("next", "Received: %s", value) },
		func(err error) { env.record("error", "Error: %v", err) },
		func() { env.record("complete", "Completed") },
	)
	return source.BlockingSubscribe(ctx, observer)
}

func subjectExample(ctx context.Context, env Env) error {
	subject := rxgo.NewSubject[string]()
	subject.Subscribe(printer[string](env, "Observer 1:"))
	subject.Subscribe(printer[string](env, "Observer 2:"))

	env.Scheduler.ScheduleWithDelay(func() {
		subject.OnNext("Timer")
		subject.OnComplete()
	}, env.Config.Delay)

	subject.OnNext("Hello")
	subject.OnNext("World")

	_, err := rxgo.Collect(ctx, subject.AsObservable())
	return err
}

func behaviorExample(_ context.Context, env Env) error {
	subject := rxgo.NewBehaviorSubject("Initial")
	subject.Subscribe(printer[string](env, "Subscriber 1:"))

	subject.OnNext("Hello")
	subject.OnNext("World")

	subject.Subscribe(printer[string](env, "Subscriber 2:"))
	env.record("value", "current value: %s", subject.Value())
	subject.OnComplete()
	return nil
}

func replayExample(_ context.Context, env Env) error {
	subject := rxgo.NewReplaySubject[string](2)
	subject.Subscribe(printer[string](env, "Subscriber 1:"))

	subject.OnNext("First")
	subject.OnNext("Second")
	subject.OnNext("Third")
	subject.OnNext("Fourth")

	subject.Subscribe(printer[string](env, "Subscriber 2:"))
	subject.OnComplete()
	return nil
}

func asyncExample(_ context.Context, env Env) error {
	subject := rxgo.NewAsyncSubject[string]()
	subject.Subscribe(printer[string](env, "Subscriber 1:"))

	subject.OnNext("First")
	subject.OnNext("Second")
	subject.OnNext("Third")

	subject.Subscribe(printer[string](env, "Subscriber 2:"))

	subject.OnNext("Fourth")
	subject.OnComplete()
	return nil
}

// timestampedError 带创建时间的错误
type timestampedError struct {
	Timestamp time.Time
	Message   string
}

func (e *timestampedError) Error() string {
	return e.Message
}

func throwErrorExample(ctx context.Context, env Env) error {
	source := rxgo.ThrowError[string](func() error {
		return &timestampedError{Timestamp: env.Scheduler.Now(), Message: "This is an error"}
	})

	err := source.BlockingSubscribe(ctx, rxgo.NewObserver[string](nil, func(err error) {
		var tsErr *timestampedError
		if errors.As(err, &tsErr) {
			env.record("error", "%d %s", tsErr.Timestamp.UnixMilli(), tsErr.Message)
		}
	}, nil))

	var tsErr *timestampedError
	if errors.As(err, &tsErr) {
		return nil
	}
	return err
}

func ofExample(ctx context.Context, env Env) error {
	return rxgo.Of([]int{1, 2, 3, 4, 5}).BlockingSubscribe(ctx, printer[[]int](env, ""))
}

func mapExample(ctx context.Context, env Env) error {
	source := rxgo.Pipe2(
		rxgo.Of(1, 2, 3),
		rxgo.MapValue(func(n int) int { return n * 2 }),
		rxgo.MapValue(func(n int) string { return fmt.Sprintf("Result: %d", n) }),
	)
	return source.BlockingSubscribe(ctx, printer[string](env, ""))
}

func timerExample(ctx context.Context, env Env) error {
	source := rxgo.Pipe1(rxgo.Timer(env.Config.Delay, env.on()), rxgo.MapValue(func(int) string {
		return fmt.Sprintf("%v have passed!", env.Config.Delay)
	}))
	return source.BlockingSubscribe(ctx, printer[string](env, ""))
}

func combineLatestExample(ctx context.Context, env Env) error {
	d := env.Config.Delay
	letters := rxgo.Concat(rxgo.Of("A"), after(env, 2*d, "B"), after(env, 2*d, "C"))
	numbers := rxgo.Concat(rxgo.Of(1), after(env, d, 2), after(env, 2*d, 3))

	combined := rxgo.CombineLatest2(letters, numbers, func(letter string, number int) string {
		return fmt.Sprintf("[%s, %d]", letter, number)
	})
	return combined.BlockingSubscribe(ctx, printer[string](env, ""))
}

func filterExample(ctx context.Context, env Env) error {
	even := rxgo.Pipe1(rxgo.Range(1, 5), expr.Filter[int](env.Config.Filter))
	return even.BlockingSubscribe(ctx, printer[int](env, ""))
}

func intervalExample(ctx context.Context, env Env) error {
	counter := rxgo.Interval(env.Config.Interval, env.on()).Pipe(rxgo.Take[int](env.Config.Take))
	return counter.BlockingSubscribe(ctx, printer[int](env, ""))
}

func takeUntilExample(ctx context.Context, env Env) error {
	period := env.Config.Interval
	stop := rxgo.Timer(period*time.Duration(env.Config.Take)+period/2, env.on())
	counter := rxgo.Interval(period, env.on()).Pipe(rxgo.TakeUntil[int](stop))
	return counter.BlockingSubscribe(ctx, printer[int](env, ""))
}

func delayExample(ctx context.Context, env Env) error {
	delayed := rxgo.Of("First", "Second", "Third").Pipe(rxgo.Delay[string](env.Config.Delay, env.on()))
	return delayed.BlockingSubscribe(ctx, printer[string](env, "el:"))
}

// User 用户接口返回的用户
type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func usersExample(ctx context.Context, env Env) error {
	if env.Config.UsersURL == "" {
		env.record("skip", "users_url not configured")
		return nil
	}

	users := rxgo.Pipe1(
		rxgo.GetJSON[[]User](env.Client, env.Config.UsersURL),
		rxgo.MergeMap(rxgo.FromSlice[User]),
	)
	return users.BlockingSubscribe(ctx, rxgo.NewObserver(
		func(u User) { env.record("next", "%d %s <%s>", u.ID, u.Name, u.Email) },
		func(err error) { env.record("error", "Error: %v", err) },
		func() { env.record("complete", "Completed") },
	))
}
