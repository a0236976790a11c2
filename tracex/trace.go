package tracex

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan 在当前 ctx 上创建一个新的 span：
//   - ctx 中已有 span（本地或远端）则沿用 TraceID，并作为 parent
//   - 否则生成新的 TraceID，当前 span 为 root span
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return tracer.Start(ctx, name, opts...)
}

// EndSpan 结束 span；err 非空时记录异常并把状态置为 Error
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
