package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imattdu/tracecheck/logx"
)

// maxLoggedBody 超过部分不进日志
const maxLoggedBody = 4 << 10

// bodyRecorder 透传响应，同时留一份前 maxLoggedBody 字节
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	if room := maxLoggedBody - w.buf.Len(); room > 0 {
		w.buf.Write(b[:min(room, len(b))])
	}
	return w.ResponseWriter.Write(b)
}

// AccessMiddleware request_in / request_out 各一条访问日志。
// 放在 TraceMiddleware 之后，日志里才有 trace_id
func AccessMiddleware(logger logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		fields := map[string]any{
			logx.Remote: c.ClientIP(),
			logx.Method: c.Request.Method,
			logx.Path:   c.Request.URL.Path,
			logx.Query:  c.Request.URL.RawQuery,
		}

		raw, err := c.GetRawData()
		if err != nil {
			fields[logx.Err] = err.Error()
			logger.Warn(ctx, logx.TagRequestIn, fields)
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}
		// 读过的 body 放回去给 handler
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		logger.Info(ctx, logx.TagRequestIn, fields)

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		start := time.Now()
		c.Next()

		out := map[string]any{
			logx.Method:   c.Request.Method,
			logx.Path:     c.Request.URL.Path,
			logx.Status:   rec.Status(),
			logx.Response: rec.buf.String(),
			logx.Cost:     time.Since(start).Milliseconds(),
		}
		if len(raw) > 0 {
			out[logx.Body] = requestBody(raw)
		}
		if last := c.Errors.Last(); last != nil {
			out[logx.Err] = last.Error()
		}
		if rec.Status() >= http.StatusInternalServerError {
			logger.Warn(ctx, logx.TagRequestOut, out)
			return
		}
		logger.Info(ctx, logx.TagRequestOut, out)
	}
}

// requestBody JSON 原样展开，其他按字符串截断
func requestBody(raw []byte) any {
	var v any
	if json.Unmarshal(raw, &v) == nil {
		return v
	}
	if len(raw) > maxLoggedBody {
		raw = raw[:maxLoggedBody]
	}
	return string(raw)
}
