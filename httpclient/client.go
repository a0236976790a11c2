package httpclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// BeforeFunc 每次尝试发送前调用，可改写请求头
type BeforeFunc func(ctx context.Context, req *http.Request)

// Config Client 初始化参数，New 之后不再变化
type Config struct {
	BaseURL string

	// Request.Timeout 为 0 时使用，覆盖全部重试
	DefaultTimeout time.Duration

	Transport TransportConfig

	RetryMaxAttempts int
	RetryDecider     RetryDecider
	RetryBackoff     BackoffFunc

	BizErrDecoder BizErrorDecoder
	Before        []BeforeFunc
	StatsHook     StatsHook

	// TracerProvider 为空时不创建 client span
	TracerProvider trace.TracerProvider
	// 为空时用全局 propagator
	Propagator propagation.TextMapPropagator
	SpanName   string
}

// TransportConfig 连接池与连接级超时
type TransportConfig struct {
	DialTimeout           time.Duration
	DialKeepAlive         time.Duration
	TLSHandshakeTimeout   time.Duration
	ExpectContinueTimeout time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	// 每次 Read/Write 的 deadline
	ReadWriteTimeout time.Duration
}

func defaultConfig() Config {
	return Config{
		DefaultTimeout: 5 * time.Second,
		Transport: TransportConfig{
			DialTimeout:           3 * time.Second,
			DialKeepAlive:         60 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			ReadWriteTimeout:      5 * time.Second,
		},
		RetryMaxAttempts: 1,
		SpanName:         "outgoing-request",
	}
}

type Option func(*Config)

func WithBaseURL(s string) Option {
	return func(c *Config) { c.BaseURL = s }
}

func WithDefaultTimeout(t time.Duration) Option {
	return func(c *Config) { c.DefaultTimeout = t }
}

func WithBeforeHooks(h ...BeforeFunc) Option {
	return func(c *Config) { c.Before = append(c.Before, h...) }
}

// WithRetry max 为总尝试次数；decider / backoff 为空时用默认策略
func WithRetry(max int, decider RetryDecider, backoff BackoffFunc) Option {
	return func(c *Config) {
		c.RetryMaxAttempts = max
		c.RetryDecider = decider
		c.RetryBackoff = backoff
	}
}

func WithBizErrorDecoder(dec BizErrorDecoder) Option {
	return func(c *Config) { c.BizErrDecoder = dec }
}

func WithStatsHook(h StatsHook) Option {
	return func(c *Config) { c.StatsHook = h }
}

// WithTracing 每次尝试一个 client span，trace 上下文注入请求头
func WithTracing(tp trace.TracerProvider, p propagation.TextMapPropagator) Option {
	return func(c *Config) {
		c.TracerProvider = tp
		c.Propagator = p
	}
}

// Client 并发安全
type Client struct {
	hc      *http.Client
	baseURL *url.URL
	before  []BeforeFunc

	defaultTimeout   time.Duration
	retryMaxAttempts int
	retryDecider     RetryDecider
	backoff          BackoffFunc
	bizErrDecoder    BizErrorDecoder
	statsHook        StatsHook
}

func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Client{
		hc:               &http.Client{Transport: wrapTracing(buildTransport(cfg.Transport), &cfg)},
		before:           append([]BeforeFunc(nil), cfg.Before...),
		defaultTimeout:   cfg.DefaultTimeout,
		retryMaxAttempts: max(cfg.RetryMaxAttempts, 1),
		retryDecider:     cfg.RetryDecider,
		backoff:          cfg.RetryBackoff,
		bizErrDecoder:    cfg.BizErrDecoder,
		statsHook:        cfg.StatsHook,
	}
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		c.baseURL = u
	}
	if c.retryDecider == nil {
		c.retryDecider = defaultRetryDecider
	}
	if c.backoff == nil {
		c.backoff = defaultBackoff
	}
	return c, nil
}
