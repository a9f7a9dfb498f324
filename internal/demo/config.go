// Demo configuration for RxGo
// 演示程序配置：从YAML文件加载日志、示例选择与时间参数
package demo

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 演示程序配置
type Config struct {
	Log      LogConfig     `yaml:"log"`
	Examples []string      `yaml:"examples"`
	UsersURL string        `yaml:"users_url"`
	Delay    time.Duration `yaml:"delay"`
	Interval time.Duration `yaml:"interval"`
	Take     int           `yaml:"take"`
	Filter   string        `yaml:"filter"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Log:      LogConfig{Level: "info", Format: "text"},
		UsersURL: "https://jsonplaceholder.typicode.com/users",
		Delay:    time.Second,
		Interval: 200 * time.Millisecond,
		Take:     5,
		Filter:   "v % 2 == 0",
		Timeout:  30 * time.Second,
	}
}

// LoadConfig 读取path处的YAML配置并以默认值补全，path为空时返回默认配置
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("demo: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("demo: parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate 检查配置取值
func (c Config) Validate() error {
	if c.Delay < 0 || c.Interval <= 0 {
		return fmt.Errorf("demo: delay must be >= 0 and interval > 0")
	}
	if c.Take <= 0 {
		return fmt.Errorf("demo: take must be positive, got %d", c.Take)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("demo: unknown log format %q", c.Log.Format)
	}
	return nil
}

// NewLogger 按日志配置创建写入w的slog记录器
func NewLogger(cfg LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("demo: log level: %w", err)
	}
	return level, nil
}
