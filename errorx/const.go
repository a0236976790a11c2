package errorx

// CodeEntry 表示一个错误码 + 默认文案。
// 只在这里集中定义，业务用变量名，不直接写裸 code。
type CodeEntry struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	// 返回给客户端的 HTTP 状态码，0 表示 500
	HTTPStatus int `json:"-"`
}

// -------------------- 服务枚举 --------------------

var (
	ServiceDefault    = CodeEntry{Code: 1, Message: "unknown"}
	ServiceTracker    = CodeEntry{Code: 10, Message: "tracker"}
	ServiceTracing    = CodeEntry{Code: 11, Message: "tracing"}
	ServiceDownstream = CodeEntry{Code: 91, Message: "downstream"}
)

// -------------------- 错误类别（系统 / 业务） --------------------

var (
	ErrTypeSys = CodeEntry{Code: 4, Message: "系统错误"}
	ErrTypeBiz = CodeEntry{Code: 5, Message: "业务错误"}
)

// -------------------- 通用错误 --------------------

var (
	ErrDefault = CodeEntry{Code: 1000, Message: "未知错误"}
)

// -------------------- trace 相关 --------------------

var (
	ErrTraceIDEmpty     = CodeEntry{Code: 2001, Message: "empty trace id", HTTPStatus: 400}
	ErrDuplicateTraceID = CodeEntry{Code: 2002, Message: "duplicate trace id", HTTPStatus: 500}
	ErrShuttingDown     = CodeEntry{Code: 2003, Message: "server is shutting down", HTTPStatus: 503}
	ErrDownstream       = CodeEntry{Code: 3001, Message: "downstream call failed", HTTPStatus: 500}
	ErrTracerInit       = CodeEntry{Code: 3002, Message: "tracer init failed"}
)
