package tracex

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// HeaderTraceID 响应头里回写 trace id，方便调用方排查
const HeaderTraceID = "X-Trace-Id"

// -------------------- HTTP 头提取 --------------------
// 注入由 otelhttp.Transport 完成
// 具体格式由全局 TextMapPropagator 决定（默认 W3C traceparent + baggage）

// ExtractFromHeader 从 HTTP 头解析上游 span，返回携带远端 span 的 ctx
func ExtractFromHeader(ctx context.Context, h http.Header) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if h == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(h))
}
