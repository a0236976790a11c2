package tracex

// Span 是 OTel span 的只读快照，供日志 / 业务使用，不持有 span 本身
type Span struct {
	TraceID string `json:"trace_id"`
	SpanID  string `json:"span_id"`
	Sampled bool   `json:"sampled"`
	Remote  bool   `json:"remote,omitempty"`
}
