package logx

const (
	TagUndef       = "undef"
	TagRequestIn   = "request_in"
	TagRequestOut  = "request_out"
	TagHttpSuccess = "http_success"
	TagHttpFailure = "http_failure"

	TagStartup     = "startup"
	TagTraceCheck  = "trace_check"
	TagDuplicateID = "duplicate_trace_id"
	TagSummary     = "summary"
	TagShutdown    = "shutdown"
	TagTracing     = "tracing"

	Cost = "cost"
	Msg  = "msg"
	Err  = "err"

	Remote   = "remote"
	Method   = "method"
	URL      = "url"
	Path     = "path"
	Query    = "query"
	Status   = "status"
	Body     = "body"
	Response = "response"

	TraceID = "trace_id"
	SpanID  = "span_id"
	Reason  = "reason"

	Attempts    = "attempts"
	MaxAttempts = "max_attempts"
)
