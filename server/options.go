package server

import (
	"io"
	"os"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Version 写入 service.version
const Version = "1.0.0"

type options struct {
	console       io.Writer
	tracerOptions []sdktrace.TracerProviderOption
}

type Option func(*options)

// WithConsole 结果行 / 汇总的控制台输出，默认 stdout
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithTracerOptions 追加 TracerProvider 选项（如 IDGenerator、SpanProcessor）
func WithTracerOptions(opts ...sdktrace.TracerProviderOption) Option {
	return func(o *options) { o.tracerOptions = append(o.tracerOptions, opts...) }
}

func buildOptions(opts []Option) options {
	o := options{console: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
