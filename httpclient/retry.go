package httpclient

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// RetryDecider 根据本次尝试的结果判断是否再试一次
type RetryDecider func(resp *http.Response, err error) bool

// BackoffFunc attempt 从 0 开始，返回下一次尝试前的等待时间
type BackoffFunc func(attempt int) time.Duration

const (
	backoffBase = 100 * time.Millisecond
	backoffMax  = 2 * time.Second
)

// defaultRetryDecider 网络错误、429、5xx 重试；调用方取消或超时不重试
func defaultRetryDecider(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if resp == nil {
		return false
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
}

// RetryOnStatus 只对给定状态码和网络错误重试
func RetryOnStatus(codes ...int) RetryDecider {
	set := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return func(resp *http.Response, err error) bool {
		if err != nil {
			return defaultRetryDecider(nil, err)
		}
		if resp == nil {
			return false
		}
		_, ok := set[resp.StatusCode]
		return ok
	}
}

// defaultBackoff 100ms 起翻倍，封顶 2s
func defaultBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return backoffMax
	}
	return min(backoffBase<<attempt, backoffMax)
}
