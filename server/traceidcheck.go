package server

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/imattdu/tracecheck/config"
	"github.com/imattdu/tracecheck/handler"
	"github.com/imattdu/tracecheck/logx"
	"github.com/imattdu/tracecheck/shutdown"
	"github.com/imattdu/tracecheck/tracker"
)

// TraceIDCheck 普通 net/http server：每个请求一个新 trace，重复 trace id 时退出
type TraceIDCheck struct {
	cfg    *config.Config
	logger logx.Logger

	tp      *sdktrace.TracerProvider
	tracker *tracker.Tracker
	coord   *shutdown.Coordinator
	file    *tracker.FileSink
	results tracker.MultiSink
	srv     *http.Server
}

func NewTraceIDCheck(ctx context.Context, cfg *config.Config, logger logx.Logger, opts ...Option) (*TraceIDCheck, error) {
	o := buildOptions(opts)

	tp, err := InitTracing(ctx, cfg.Tracing, Version, logger, o.tracerOptions...)
	if err != nil {
		return nil, err
	}

	file, err := tracker.OpenFileSink(cfg.Tracker.ResultsFile)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	s := &TraceIDCheck{
		cfg:     cfg,
		logger:  logger,
		tp:      tp,
		tracker: tracker.New(),
		file:    file,
		results: tracker.MultiSink{tracker.NewWriterSink(o.console), file},
	}

	s.srv = &http.Server{
		Addr: cfg.Server.Addr,
	}
	s.coord = shutdown.New(
		httpShutdownHook(s.srv, cfg.Server),
		shutdown.Hook{Name: "summary", Fn: s.reportSummary},
		tracingShutdownHook(tp),
		shutdown.Hook{Name: "results", Fn: func(context.Context, shutdown.Reason) error { return s.file.Close() }},
	)

	check := handler.NewTraceCheck(s.tracker, s.coord, s.results, logger, cfg.Tracker.FailOnDuplicate)
	// 公共入口：忽略请求头里的 traceparent，每个请求都是新的 root span
	s.srv.Handler = otelhttp.NewHandler(check, "incoming-request",
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithPublicEndpointFn(func(*http.Request) bool { return true }),
	)
	return s, nil
}

// Tracker 只读访问，供测试和调用方查看汇总
func (s *TraceIDCheck) Tracker() *tracker.Tracker {
	return s.tracker
}

// Coordinator 外部也可以主动触发退出
func (s *TraceIDCheck) Coordinator() *shutdown.Coordinator {
	return s.coord
}

// ListenAndRun 监听 cfg.Server.Addr 并运行，直到退出流程完成
func (s *TraceIDCheck) ListenAndRun(ctx context.Context) (shutdown.Reason, error) {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		s.abort(ctx)
		return shutdown.ReasonNone, fmt.Errorf("listen %s: %w", s.cfg.Server.Addr, err)
	}
	return s.Run(ctx, ln)
}

func (s *TraceIDCheck) Run(ctx context.Context, ln net.Listener) (shutdown.Reason, error) {
	if err := tracker.Printf(s.results, "Server listening on %s", ln.Addr()); err != nil {
		s.logger.Warn(ctx, logx.TagStartup, err)
	}
	s.logger.Info(ctx, logx.TagStartup, "server listening", logx.URL, ln.Addr().String())
	return serve(ctx, ln, s.srv, s.coord, s.logger)
}

func (s *TraceIDCheck) reportSummary(ctx context.Context, reason shutdown.Reason) error {
	sum := s.tracker.Summarize()
	s.logger.Info(ctx, logx.TagSummary, map[string]any{
		"total_requests":   sum.TotalRequests,
		"unique_trace_ids": sum.UniqueTraceIDs,
		"duplicate_found":  sum.DuplicateFound,
		logx.Reason:        reason.String(),
	})
	return tracker.Report(s.results, sum)
}

// abort 启动失败时释放资源，不输出汇总
func (s *TraceIDCheck) abort(ctx context.Context) {
	if err := s.tp.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, logx.TagShutdown, err)
	}
	if err := s.file.Close(); err != nil {
		s.logger.Warn(ctx, logx.TagShutdown, err)
	}
}
