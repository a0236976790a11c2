package httpclient

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request 单次调用的参数
type Request struct {
	Method  string
	Path    string // 完整 URL，或拼在 BaseURL 后面的相对路径
	Query   url.Values
	Headers http.Header
	Body    any // nil / io.Reader / 其余按 JSON 编码

	// 非 0 时覆盖 Config.DefaultTimeout
	Timeout time.Duration
}

// buildURL path 带 scheme+host 时忽略 baseURL，否则拼到 baseURL 后面；q 追加到已有 query
func (c *Client) buildURL(path string, q url.Values) (string, error) {
	pu, err := url.Parse(path)
	if err != nil {
		return "", err
	}

	u := pu
	if !pu.IsAbs() || pu.Host == "" {
		if c.baseURL != nil {
			cp := *c.baseURL
			cp.Path = joinPath(c.baseURL.Path, pu.Path)
			u = &cp
		}
	}

	if len(q) > 0 || pu.RawQuery != "" {
		u.RawQuery = mergeQuery(pu.Query(), q).Encode()
	}
	return u.String(), nil
}

func mergeQuery(dst, src url.Values) url.Values {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
	return dst
}

func joinPath(base, p string) string {
	switch {
	case base == "" || base == "/":
		return p
	case p == "":
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(p, "/")
}
