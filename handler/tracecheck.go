package handler

import (
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/imattdu/tracecheck/errorx"
	"github.com/imattdu/tracecheck/logx"
	"github.com/imattdu/tracecheck/shutdown"
	"github.com/imattdu/tracecheck/tracex"
	"github.com/imattdu/tracecheck/tracker"
)

const (
	bodyOK           = "OK"
	bodyDuplicate    = "Duplicate Trace ID Detected"
	bodyMissingTrace = "Missing Trace ID"
	bodyShuttingDown = "Server Shutting Down"
	attrTraceOutcome = "trace.outcome"
)

// TraceCheck 每个请求取当前 span 的 trace id 交给 Tracker 判重。
// span 由外层 otelhttp.NewHandler 创建，处理期间一直是打开状态。
type TraceCheck struct {
	mu      sync.Mutex
	tracker *tracker.Tracker
	coord   *shutdown.Coordinator
	results tracker.Sink
	logger  logx.Logger

	// false 时重复 id 只记录，不退出
	failOnDuplicate bool
}

func NewTraceCheck(tr *tracker.Tracker, coord *shutdown.Coordinator, results tracker.Sink, logger logx.Logger, failOnDuplicate bool) *TraceCheck {
	return &TraceCheck{
		tracker:         tr,
		coord:           coord,
		results:         results,
		logger:          logger,
		failOnDuplicate: failOnDuplicate,
	}
}

func (h *TraceCheck) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	traceID := tracex.TraceIDFromContext(ctx)
	spanID := tracex.SpanIDFromContext(ctx)
	span := trace.SpanFromContext(ctx)

	outcome, admitted, err := h.admit(traceID)
	if !admitted {
		rejectErr := errorx.NewBiz(errorx.ErrShuttingDown,
			errorx.WithService(errorx.ServiceTracker),
			errorx.WithField(logx.Reason, h.coord.Reason().String()),
		)
		h.logger.Warn(ctx, logx.TagTraceCheck, rejectErr)
		http.Error(w, bodyShuttingDown, errorx.HTTPStatus(rejectErr))
		return
	}
	if err != nil {
		h.logger.Warn(ctx, logx.TagTraceCheck, err)
		http.Error(w, bodyMissingTrace, errorx.HTTPStatus(err))
		return
	}
	span.SetAttributes(attribute.String(attrTraceOutcome, outcome.String()))

	if outcome == tracker.Duplicate {
		dupErr := errorx.NewBiz(errorx.ErrDuplicateTraceID,
			errorx.WithService(errorx.ServiceTracker),
			errorx.WithField(logx.TraceID, traceID),
		)
		span.SetStatus(codes.Error, dupErr.Code.Message)

		if h.failOnDuplicate {
			h.writeResult(r, "Duplicate traceId detected: %s. Exiting...", traceID)
			h.logger.Error(ctx, logx.TagDuplicateID, dupErr)
			http.Error(w, bodyDuplicate, errorx.HTTPStatus(dupErr))
			return
		}
		h.writeResult(r, "Duplicate traceId detected: %s", traceID)
		h.logger.Warn(ctx, logx.TagDuplicateID, dupErr)
	}

	h.writeResult(r, "Incoming request traceId: %s, spanId: %s", traceID, spanID)
	h.logger.Info(ctx, logx.TagTraceCheck, "incoming request", "outcome", outcome.String())

	_, _ = w.Write([]byte(bodyOK))
}

// admit 检查退出状态、记录 trace id、重复时触发退出，三步在同一把锁里：
// 重复 id 触发退出之后，其他请求不会再被计数。
// 信号触发不经过这把锁，信号到达前已通过检查的请求照常计数，
// 汇总在 http server 关闭之后才执行，结果仍然一致
func (h *TraceCheck) admit(traceID string) (tracker.Outcome, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.coord.ShuttingDown() {
		return 0, false, nil
	}
	outcome, err := h.tracker.Record(traceID)
	if err == nil && outcome == tracker.Duplicate && h.failOnDuplicate {
		h.coord.Trigger(shutdown.ReasonDuplicate)
	}
	return outcome, true, err
}

// writeResult 结果文件写失败只记日志，不影响响应
func (h *TraceCheck) writeResult(r *http.Request, format string, args ...any) {
	if h.results == nil {
		return
	}
	if err := tracker.Printf(h.results, format, args...); err != nil {
		h.logger.Warn(r.Context(), logx.TagTraceCheck, err)
	}
}
