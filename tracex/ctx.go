package tracex

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// SpanFromContext 取当前 ctx 中的 span 信息；没有有效 span 时返回 nil
func SpanFromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return &Span{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
		Sampled: sc.IsSampled(),
		Remote:  sc.IsRemote(),
	}
}

// TraceIDFromContext 直接取 TraceID（没有则返回空串）
func TraceIDFromContext(ctx context.Context) string {
	if s := SpanFromContext(ctx); s != nil {
		return s.TraceID
	}
	return ""
}

// SpanIDFromContext 直接取 SpanID（没有则返回空串）
func SpanIDFromContext(ctx context.Context) string {
	if s := SpanFromContext(ctx); s != nil {
		return s.SpanID
	}
	return ""
}
