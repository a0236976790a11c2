package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// Do 发起一次调用，按配置重试，结束后回调 StatsHook。
// respBody 决定响应体的去向：
//   - nil       ：resp.Body 交给调用方关闭
//   - io.Writer ：复制到 writer
//   - *[]byte   ：原始字节
//   - 其他      ：JSON 反序列化
func (c *Client) Do(ctx context.Context, reqCfg *Request, respBody any) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := c.withTimeout(ctx, reqCfg.Timeout)
	handedOff := false
	defer func() {
		if !handedOff {
			cancel()
		}
	}()

	u, err := c.buildURL(reqCfg.Path, reqCfg.Query)
	if err != nil {
		return nil, err
	}

	body, err := newRequestBody(reqCfg.Body)
	if err != nil {
		return nil, err
	}
	headers := reqCfg.Headers.Clone()
	if body.json {
		if headers == nil {
			headers = make(http.Header)
		}
		if headers.Get("Content-Type") == "" {
			headers.Set("Content-Type", "application/json")
		}
	}

	stats := &CallStats{
		Method:      reqCfg.Method,
		URL:         u,
		Query:       reqCfg.Query.Encode(),
		MaxAttempts: c.attemptsFor(body),
		BodySize:    len(body.raw),
	}
	if body.raw != nil && len(body.raw) <= maxLoggedBody {
		stats.Body = string(body.raw)
	}

	begin := time.Now()
	resp, err := c.send(ctx, reqCfg.Method, u, headers, body, stats)
	stats.Cost = time.Since(begin)
	stats.Attempts = len(stats.AttemptsLog)
	stats.Status = statusOf(resp)
	stats.Err = errString(err)
	if c.statsHook != nil {
		c.statsHook(ctx, stats)
	}

	if resp == nil {
		return nil, err
	}
	if respBody == nil {
		handedOff = true
		resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}
	return resp, c.decode(resp, respBody)
}

// send 重试循环；返回最后一次尝试的结果
func (c *Client) send(ctx context.Context, method, u string, headers http.Header, body requestBody, stats *CallStats) (*http.Response, error) {
	var (
		resp *http.Response
		err  error
	)
	for attempt := 0; attempt < stats.MaxAttempts; attempt++ {
		req, rerr := http.NewRequestWithContext(ctx, method, u, body.open())
		if rerr != nil {
			return nil, rerr
		}
		for k, vs := range headers {
			req.Header[k] = append([]string(nil), vs...)
		}
		if stats.Path == "" {
			stats.Path = req.URL.Path
		}
		for _, h := range c.before {
			h(ctx, req)
		}

		start := time.Now()
		resp, err = c.hc.Do(req)
		retry := attempt < stats.MaxAttempts-1 && c.retryDecider(resp, err)
		stats.AttemptsLog = append(stats.AttemptsLog, CallAttempt{
			Attempt:   attempt + 1,
			Status:    statusOf(resp),
			Err:       errString(err),
			Cost:      time.Since(start),
			WillRetry: retry,
		})
		if !retry {
			return resp, err
		}

		// 读完再关，连接可以复用
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}
		if werr := sleepCtx(ctx, c.backoff(attempt)); werr != nil {
			return nil, werr
		}
	}
	return resp, err
}

func (c *Client) decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if w, ok := out.(io.Writer); ok {
		_, err := io.Copy(w, resp.Body)
		return err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if c.bizErrDecoder != nil {
		if berr := c.bizErrDecoder(resp.StatusCode, data); berr != nil {
			return berr
		}
	}
	if p, ok := out.(*[]byte); ok {
		*p = data
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *Client) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// attemptsFor io.Reader body 无法重放，只发一次
func (c *Client) attemptsFor(body requestBody) int {
	if body.reader != nil {
		return 1
	}
	return c.retryMaxAttempts
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// requestBody JSON body 预先编码，重试时重新包一个 reader
type requestBody struct {
	raw    []byte
	reader io.Reader
	json   bool
}

func newRequestBody(v any) (requestBody, error) {
	switch b := v.(type) {
	case nil:
		return requestBody{}, nil
	case io.Reader:
		return requestBody{reader: b}, nil
	default:
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(b); err != nil {
			return requestBody{}, err
		}
		return requestBody{raw: buf.Bytes(), json: true}, nil
	}
}

func (b requestBody) open() io.Reader {
	if b.raw != nil {
		return bytes.NewReader(b.raw)
	}
	return b.reader
}

// -------- 便捷方法 --------

func (c *Client) GetJSON(ctx context.Context, path string, out any) (*http.Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path}, out)
}

// cancelBody Close 时一并释放超时 ctx
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
