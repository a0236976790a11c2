package server

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/imattdu/tracecheck/config"
	"github.com/imattdu/tracecheck/handler"
	"github.com/imattdu/tracecheck/httpclient"
	"github.com/imattdu/tracecheck/logx"
	"github.com/imattdu/tracecheck/middleware"
	"github.com/imattdu/tracecheck/shutdown"
	"github.com/imattdu/tracecheck/tracex"
)

const tracerName = "simple-api"

// retryableStatus 下游限流或网关类错误才重试
var retryableStatus = []int{
	http.StatusTooManyRequests,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// SimpleAPI gin server：延续上游 trace，调用一次下游并把 trace 传下去
type SimpleAPI struct {
	cfg    *config.Config
	logger logx.Logger

	tp     *sdktrace.TracerProvider
	client *httpclient.Client
	coord  *shutdown.Coordinator
	srv    *http.Server
}

func NewSimpleAPI(ctx context.Context, cfg *config.Config, logger logx.Logger, opts ...Option) (*SimpleAPI, error) {
	o := buildOptions(opts)

	tp, err := InitTracing(ctx, cfg.Tracing, Version, logger, o.tracerOptions...)
	if err != nil {
		return nil, err
	}

	client, err := httpclient.New(
		httpclient.WithDefaultTimeout(cfg.Downstream.Timeout),
		httpclient.WithRetry(cfg.Downstream.MaxAttempts, httpclient.RetryOnStatus(retryableStatus...), nil),
		httpclient.WithBizErrorDecoder(handler.DownstreamStatusDecoder),
		httpclient.WithStatsHook(logStats(logger)),
		httpclient.WithBeforeHooks(setTraceIDHeader),
		httpclient.WithTracing(tp, nil),
	)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	s := &SimpleAPI{
		cfg:    cfg,
		logger: logger,
		tp:     tp,
		client: client,
	}
	s.srv = &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: s.router(),
	}
	s.coord = shutdown.New(
		httpShutdownHook(s.srv, cfg.Server),
		tracingShutdownHook(tp),
	)
	return s, nil
}

func (s *SimpleAPI) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.TraceMiddleware(s.tp.Tracer(tracerName, trace.WithInstrumentationVersion(Version))))
	r.Use(middleware.AccessMiddleware(s.logger))

	r.GET("/", handler.Hello(s.client, s.cfg.Downstream.URL, s.logger))
	return r
}

func (s *SimpleAPI) Coordinator() *shutdown.Coordinator {
	return s.coord
}

// ListenAndRun 监听 cfg.Server.Addr 并运行，直到收到信号
func (s *SimpleAPI) ListenAndRun(ctx context.Context) (shutdown.Reason, error) {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		if serr := s.tp.Shutdown(ctx); serr != nil {
			s.logger.Warn(ctx, logx.TagShutdown, serr)
		}
		return shutdown.ReasonNone, fmt.Errorf("listen %s: %w", s.cfg.Server.Addr, err)
	}
	return s.Run(ctx, ln)
}

func (s *SimpleAPI) Run(ctx context.Context, ln net.Listener) (shutdown.Reason, error) {
	s.logger.Info(ctx, logx.TagStartup, "server listening", logx.URL, ln.Addr().String())
	return serve(ctx, ln, s.srv, s.coord, s.logger)
}

// setTraceIDHeader 方便下游直接按 X-Trace-Id 查日志
func setTraceIDHeader(ctx context.Context, req *http.Request) {
	if id := tracex.TraceIDFromContext(ctx); id != "" {
		req.Header.Set(tracex.HeaderTraceID, id)
	}
}

// logStats 下游调用结果打日志
func logStats(logger logx.Logger) httpclient.StatsHook {
	return func(ctx context.Context, stats *httpclient.CallStats) {
		fields := map[string]any{
			logx.Method:      stats.Method,
			logx.URL:         stats.URL,
			logx.Status:      stats.Status,
			logx.Attempts:    stats.Attempts,
			logx.MaxAttempts: stats.MaxAttempts,
			logx.Cost:        stats.Cost.Milliseconds(),
		}
		if stats.Failed() {
			fields[logx.Err] = stats.Err
			logger.Warn(ctx, logx.TagHttpFailure, fields)
			return
		}
		logger.Info(ctx, logx.TagHttpSuccess, fields)
	}
}
