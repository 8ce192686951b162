package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	levelVar slog.LevelVar

	mu   sync.RWMutex
	base = newLogger(os.Stdout)
)

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

func newLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar}))
}

// SetOutput 替换全局日志输出（main 用它把日志同时写到 stdout 与文件）。
func SetOutput(w io.Writer) {
	l := newLogger(w)
	mu.Lock()
	base = l
	mu.Unlock()
}

// SetLevel 设置全局日志级别；未知级别回落到 info。
func SetLevel(level string) {
	lv, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		lv = slog.LevelInfo
	}
	levelVar.Set(lv)
}

// Enabled 报告给定级别当前是否会输出，便于跳过昂贵的格式化。
func Enabled(level slog.Level) bool {
	return level >= levelVar.Level()
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func emit(l *slog.Logger, level slog.Level, format string, v []any) {
	if !l.Enabled(context.Background(), level) {
		return
	}
	l.Log(context.Background(), level, fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...any) { emit(current(), slog.LevelDebug, format, v) }
func Infof(format string, v ...any)  { emit(current(), slog.LevelInfo, format, v) }
func Warnf(format string, v ...any)  { emit(current(), slog.LevelWarn, format, v) }
func Errorf(format string, v ...any) { emit(current(), slog.LevelError, format, v) }

// Component 是带固定 component 属性的日志入口，供各子系统使用。
type Component struct {
	name string
}

// Named 返回一个以 component=name 标注的日志入口。
func Named(name string) Component {
	return Component{name: strings.TrimSpace(name)}
}

func (c Component) log() *slog.Logger {
	l := current()
	if c.name == "" {
		return l
	}
	return l.With(slog.String("component", c.name))
}

func (c Component) Debugf(format string, v ...any) { emit(c.log(), slog.LevelDebug, format, v) }
func (c Component) Infof(format string, v ...any)  { emit(c.log(), slog.LevelInfo, format, v) }
func (c Component) Warnf(format string, v ...any)  { emit(c.log(), slog.LevelWarn, format, v) }
func (c Component) Errorf(format string, v ...any) { emit(c.log(), slog.LevelError, format, v) }
