package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/imattdu/tracecheck/cctx"
	"github.com/imattdu/tracecheck/tracex"
)

// SpanIncomingRequest server 端 span 名
const SpanIncomingRequest = "incoming-request"

// TraceMiddleware 从请求头提取上游 trace，创建 incoming-request span 写入 ctx，
// 响应结束后记录状态码并结束 span
func TraceMiddleware(tracer trace.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := tracex.ExtractFromHeader(c.Request.Context(), c.Request.Header)
		ctx, span := tracex.StartSpan(ctx, tracer, SpanIncomingRequest,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.target", c.Request.URL.Path),
			),
		)
		var spanErr error
		defer func() { tracex.EndSpan(span, spanErr) }()

		ctx = cctx.With(ctx, "route", c.FullPath())
		c.Request = c.Request.WithContext(ctx)
		if id := tracex.TraceIDFromContext(ctx); id != "" {
			c.Header(tracex.HeaderTraceID, id)
		}

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		last := c.Errors.Last()
		switch {
		case status >= http.StatusInternalServerError && last != nil:
			spanErr = last.Err
		case status >= http.StatusInternalServerError:
			spanErr = errors.New(http.StatusText(status))
		case last != nil:
			// 非 5xx 只记录异常，状态保持 Unset
			span.RecordError(last.Err)
		}
	}
}
