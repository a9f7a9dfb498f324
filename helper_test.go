// Test helpers for RxGo
// 测试辅助：记录通知的观察者
package rxgo

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
)

// recorder 记录收到的所有通知
type recorder[T any] struct {
	mu          sync.Mutex
	values      []T
	errs        []error
	completions int
	done        chan struct{}
	once        sync.Once
}

func newRecorder[T any]() *recorder[T] {
	return &recorder[T]{done: make(chan struct{})}
}

func (r *recorder[T]) OnNext(value T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, value)
}

func (r *recorder[T]) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.once.Do(func() { close(r.done) })
}

func (r *recorder[T]) OnComplete() {
	r.mu.Lock()
	r.completions++
	r.mu.Unlock()
	r.once.Do(func() { close(r.done) })
}

func (r *recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	values := make([]T, len(r.values))
	copy(values, r.values)
	return values
}

func (r *recorder[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[0]
}

func (r *recorder[T]) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completions > 0
}

// Terminations 收到的终止通知总数
func (r *recorder[T]) Terminations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completions + len(r.errs)
}

// Done 收到第一个终止通知时关闭
func (r *recorder[T]) Done() <-chan struct{} {
	return r.done
}

// captureLogs 把库日志写入缓冲区，测试结束时恢复
func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	SetLogger(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { SetLogger(nil) })
	return buf
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
