package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/imattdu/tracecheck/config"
	"github.com/imattdu/tracecheck/errorx"
	"github.com/imattdu/tracecheck/logx"
	"github.com/imattdu/tracecheck/shutdown"
	"github.com/imattdu/tracecheck/tracex"
)

// InitTracing 按配置创建全局 TracerProvider，OTel 内部错误打到 logx
func InitTracing(ctx context.Context, cfg config.TracingConfig, version string, logger logx.Logger, extra ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logger.Warn(context.Background(), logx.TagTracing, err)
	}))

	tp, err := tracex.NewProvider(ctx, tracex.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Exporter:       cfg.Exporter,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
		PrettyPrint:    cfg.PrettyPrint,
		SampleRatio:    cfg.SampleRatio,
		Global:         true,
	}, extra...)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.ErrTracerInit, errorx.WithService(errorx.ServiceTracing))
	}
	logger.Info(ctx, logx.TagTracing, "tracing initialized", "exporter", cfg.Exporter)
	return tp, nil
}

// httpShutdownHook 停止接收新连接，等待进行中的请求结束
func httpShutdownHook(srv *http.Server, cfg config.ServerConfig) shutdown.Hook {
	return shutdown.Hook{Name: "http", Fn: func(ctx context.Context, _ shutdown.Reason) error {
		if cfg.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.ShutdownTimeout)
			defer cancel()
		}
		return srv.Shutdown(ctx)
	}}
}

// tracingShutdownHook 刷出未导出的 span
func tracingShutdownHook(tp *sdktrace.TracerProvider) shutdown.Hook {
	return shutdown.Hook{Name: "tracing", Fn: func(ctx context.Context, _ shutdown.Reason) error {
		return tp.Shutdown(ctx)
	}}
}

// serve 在 ln 上提供服务，直到 coord 触发退出（或 ctx 结束）并执行完所有 hook
func serve(ctx context.Context, ln net.Listener, srv *http.Server, coord *shutdown.Coordinator, logger logx.Logger) (shutdown.Reason, error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve %s: %w", ln.Addr(), err)
		}
		return nil
	})

	var reason shutdown.Reason
	g.Go(func() error {
		r, err := coord.Wait(gctx)
		reason = r
		logger.Info(context.Background(), logx.TagShutdown, "shutdown complete", logx.Reason, r.String())
		return err
	})

	err := g.Wait()
	return reason, err
}
