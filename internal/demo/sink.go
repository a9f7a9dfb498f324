package demo

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Sink 接收示例输出的日志汇
type Sink interface {
	Record(category, message string, ts time.Time)
}

// SlogSink 把每条记录写入slog，所有记录携带同一个运行ID
type SlogSink struct {
	logger *slog.Logger
	runID  string
}

// NewSlogSink 创建带新运行ID的日志汇
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger, runID: uuid.NewString()}
}

// RunID 本次运行的ID
func (s *SlogSink) RunID() string {
	return s.runID
}

// Record 写入一条记录，error分类使用Error级别
func (s *SlogSink) Record(category, message string, ts time.Time) {
	level := slog.LevelInfo
	if category == "error" {
		level = slog.LevelError
	}
	s.logger.Log(context.Background(), level, message,
		"run_id", s.runID,
		"category", category,
		"ts", ts.Format(time.RFC3339Nano),
	)
}
