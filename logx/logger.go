package logx

import (
	"context"
	"log/slog"
	"time"
)

// Logger 对外暴露给业务 / 组件使用的接口
type Logger interface {
	Debug(ctx context.Context, tag string, msg any, kv ...any)
	Info(ctx context.Context, tag string, msg any, kv ...any)
	Warn(ctx context.Context, tag string, msg any, kv ...any)
	Error(ctx context.Context, tag string, msg any, kv ...any)
	// Close 刷完队列中的日志并关闭文件，之后的日志直接写 stderr
	Close() error
}

type loggerImpl struct {
	slog *slog.Logger
	h    *handler
}

func (l *loggerImpl) Debug(ctx context.Context, tag string, msg any, kv ...any) {
	l.log(ctx, slog.LevelDebug, tag, msg, kv...)
}

func (l *loggerImpl) Info(ctx context.Context, tag string, msg any, kv ...any) {
	l.log(ctx, slog.LevelInfo, tag, msg, kv...)
}

func (l *loggerImpl) Warn(ctx context.Context, tag string, msg any, kv ...any) {
	l.log(ctx, slog.LevelWarn, tag, msg, kv...)
}

func (l *loggerImpl) Error(ctx context.Context, tag string, msg any, kv ...any) {
	l.log(ctx, slog.LevelError, tag, msg, kv...)
}

func (l *loggerImpl) Close() error {
	if l == nil || l.h == nil {
		return nil
	}
	return l.h.Close()
}

// log 必须被 Info/Debug... 或包级快捷函数直接调用，getCaller 依赖固定的栈深度
func (l *loggerImpl) log(ctx context.Context, level slog.Level, tag string, msg any, kv ...any) {
	if l == nil || l.slog == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.slog.Enabled(ctx, level) {
		return
	}

	attrs := encodeLog(ctx, tag, msg, kv...)
	rec := slog.NewRecord(time.Now(), level, "", 0)
	rec.AddAttrs(attrs...)

	// 直接用 handler 处理（自定义 handler 支持异步、切分）
	_ = l.slog.Handler().Handle(ctx, rec)
}

// -------------------- 全局默认 logger --------------------

var defaultLogger *loggerImpl

// Init 根据 Config 初始化全局 logger（在 main 里调用一次）
func Init(cfg Config) error {
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defaultLogger = l
	return nil
}

// New 创建一个独立的 Logger 实例
func New(cfg Config) (Logger, error) {
	l, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func newLogger(cfg Config) (*loggerImpl, error) {
	h, err := newHandler(cfg)
	if err != nil {
		return nil, err
	}
	return &loggerImpl{slog: slog.New(h), h: h}, nil
}

// L 返回全局 logger，未 Init 时为 nil
func L() Logger {
	if defaultLogger == nil {
		return nil
	}
	return defaultLogger
}

// Close 关闭全局 logger
func Close() error {
	return defaultLogger.Close()
}

// 方便业务直接调用的快捷函数

func Debug(ctx context.Context, tag string, msg any, kv ...any) {
	defaultLogger.log(ctx, slog.LevelDebug, tag, msg, kv...)
}

func Info(ctx context.Context, tag string, msg any, kv ...any) {
	defaultLogger.log(ctx, slog.LevelInfo, tag, msg, kv...)
}

func Warn(ctx context.Context, tag string, msg any, kv ...any) {
	defaultLogger.log(ctx, slog.LevelWarn, tag, msg, kv...)
}

func Error(ctx context.Context, tag string, msg any, kv ...any) {
	defaultLogger.log(ctx, slog.LevelError, tag, msg, kv...)
}
