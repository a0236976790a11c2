package httpclient

import (
	"context"
	"net/http"
	"time"
)

// CallAttempt 一次 RoundTrip 的结果
type CallAttempt struct {
	Attempt   int           `json:"attempt"`
	Status    int           `json:"status"`
	Err       string        `json:"err,omitempty"`
	Cost      time.Duration `json:"cost"`
	WillRetry bool          `json:"will_retry"`
}

// CallStats 一次 Do 调用（含所有重试）的汇总，交给 StatsHook
type CallStats struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Path   string `json:"path"`
	Query  string `json:"query"`

	// JSON body 不超过 maxLoggedBody 时原样保留
	Body     string `json:"body,omitempty"`
	BodySize int    `json:"body_size,omitempty"`

	MaxAttempts int           `json:"max_attempts"`
	Attempts    int           `json:"attempts"`
	AttemptsLog []CallAttempt `json:"attempts_log,omitempty"`

	Status int           `json:"status"`
	Err    string        `json:"err,omitempty"`
	Cost   time.Duration `json:"cost"`
}

// Failed 网络错误或非 2xx
func (s *CallStats) Failed() bool {
	return s.Err != "" || s.Status < 200 || s.Status >= 300
}

// BizErrorDecoder 读完 body 后按状态码 / 内容判断是否算失败，返回 nil 表示成功
type BizErrorDecoder func(statusCode int, body []byte) error

type StatsHook func(ctx context.Context, stats *CallStats)

const maxLoggedBody = 1024

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
