package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/imattdu/tracecheck/config"
	"github.com/imattdu/tracecheck/logx"
	"github.com/imattdu/tracecheck/shutdown"
	"github.com/imattdu/tracecheck/tracex"
)

// fixedIDs 按顺序返回给定的 trace id
type fixedIDs struct {
	mu    sync.Mutex
	ids   []trace.TraceID
	next  int
	spans uint64
}

func newFixedIDs(labels ...byte) *fixedIDs {
	g := &fixedIDs{}
	for _, l := range labels {
		var id trace.TraceID
		for i := range id {
			id[i] = l
		}
		g.ids = append(g.ids, id)
	}
	return g
}

func (g *fixedIDs) NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.ids[g.next%len(g.ids)]
	g.next++
	return id, g.spanID()
}

func (g *fixedIDs) NewSpanID(ctx context.Context, _ trace.TraceID) trace.SpanID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.spanID()
}

func (g *fixedIDs) spanID() trace.SpanID {
	g.spans++
	var sid trace.SpanID
	sid[7] = byte(g.spans)
	sid[6] = byte(g.spans >> 8)
	return sid
}

func testConfig(t *testing.T, service string) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Addr: "127.0.0.1:0", ShutdownTimeout: 2 * time.Second},
		Tracing: config.TracingConfig{
			ServiceName: service,
			Exporter:    tracex.ExporterNone,
			SampleRatio: 1,
		},
		Tracker: config.TrackerConfig{
			ResultsFile:     filepath.Join(t.TempDir(), "trace-results.log"),
			FailOnDuplicate: true,
		},
		Downstream: config.DownstreamConfig{Timeout: 2 * time.Second, MaxAttempts: 1},
	}
}

func testLogger(t *testing.T) logx.Logger {
	t.Helper()
	logger, err := logx.New(logx.Config{AppName: "server", LogDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

type runResult struct {
	reason shutdown.Reason
	err    error
}

func start(t *testing.T, ctx context.Context, run func(context.Context, net.Listener) (shutdown.Reason, error)) (string, <-chan runResult) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan runResult, 1)
	go func() {
		r, err := run(ctx, ln)
		done <- runResult{reason: r, err: err}
	}()
	return "http://" + ln.Addr().String(), done
}

func wait(t *testing.T, done <-chan runResult) runResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
		return runResult{}
	}
}

var plainClient = &http.Client{
	Transport: &http.Transport{DisableKeepAlives: true},
	Timeout:   2 * time.Second,
}

func get(t *testing.T, url string, header http.Header) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, vs := range header {
		req.Header[k] = vs
	}
	resp, err := plainClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestTraceIDCheckExitsOnDuplicate(t *testing.T) {
	cfg := testConfig(t, "traceidcheck")
	console := &bytes.Buffer{}
	s, err := NewTraceIDCheck(context.Background(), cfg, testLogger(t),
		WithConsole(console),
		WithTracerOptions(sdktrace.WithIDGenerator(newFixedIDs('A', 'B', 'A'))),
	)
	require.NoError(t, err)

	url, done := start(t, context.Background(), s.Run)

	var codes []int
	for i := 0; i < 3; i++ {
		code, _ := get(t, url, nil)
		codes = append(codes, code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusInternalServerError}, codes)

	res := wait(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, shutdown.ReasonDuplicate, res.reason)
	assert.Equal(t, 1, res.reason.ExitCode())

	data, err := os.ReadFile(cfg.Tracker.ResultsFile)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "Server listening on ")
	assert.Equal(t, 2, strings.Count(content, "Incoming request traceId: "))
	assert.Contains(t, content, "Duplicate traceId detected: "+strings.Repeat("41", 16)+". Exiting...")
	assert.Equal(t, 1, strings.Count(content, "--- Summary of Run ---"))
	assert.Contains(t, content, "Total requests processed: 3")
	assert.Contains(t, content, "Duplicate trace IDs encountered: Yes")

	// 控制台和结果文件内容一致
	assert.Equal(t, content, console.String())
}

func TestTraceIDCheckStopsOnSignal(t *testing.T) {
	cfg := testConfig(t, "traceidcheck")
	s, err := NewTraceIDCheck(context.Background(), cfg, testLogger(t),
		WithConsole(io.Discard),
		WithTracerOptions(sdktrace.WithIDGenerator(newFixedIDs('A', 'B'))),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	url, done := start(t, ctx, s.Run)

	for i := 0; i < 2; i++ {
		code, body := get(t, url, nil)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "OK", body)
	}
	cancel()

	res := wait(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, shutdown.ReasonSignal, res.reason)
	assert.Equal(t, 0, res.reason.ExitCode())

	data, err := os.ReadFile(cfg.Tracker.ResultsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Total requests processed: 2")
	assert.Contains(t, string(data), "Duplicate trace IDs encountered: No")
}

func TestTraceIDCheckSignalRacesDuplicate(t *testing.T) {
	cfg := testConfig(t, "traceidcheck")
	s, err := NewTraceIDCheck(context.Background(), cfg, testLogger(t),
		WithConsole(io.Discard),
		WithTracerOptions(sdktrace.WithIDGenerator(newFixedIDs('A'))),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	url, done := start(t, ctx, s.Run)

	code, _ := get(t, url, nil)
	require.Equal(t, http.StatusOK, code)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// 可能被 shutdown 打断，结果不重要
		req, _ := http.NewRequest(http.MethodGet, url, nil)
		if resp, err := plainClient.Do(req); err == nil {
			_ = resp.Body.Close()
		}
	}()
	cancel()
	wg.Wait()

	res := wait(t, done)
	require.NoError(t, res.err)
	assert.Contains(t, []shutdown.Reason{shutdown.ReasonSignal, shutdown.ReasonDuplicate}, res.reason)

	data, err := os.ReadFile(cfg.Tracker.ResultsFile)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "--- Summary of Run ---"))
}

func TestTraceIDCheckBadResultsFile(t *testing.T) {
	cfg := testConfig(t, "traceidcheck")
	cfg.Tracker.ResultsFile = filepath.Join(t.TempDir(), "missing", "trace-results.log")

	_, err := NewTraceIDCheck(context.Background(), cfg, testLogger(t))
	assert.Error(t, err)
}

func TestInitTracingUnsupportedExporter(t *testing.T) {
	cfg := testConfig(t, "traceidcheck")
	cfg.Tracing.Exporter = "zipkin"

	_, err := InitTracing(context.Background(), cfg.Tracing, Version, testLogger(t))
	require.Error(t, err)
}

func TestSimpleAPIPropagatesAndStops(t *testing.T) {
	headers := make(chan http.Header, 1)
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"timezone":"Etc/UTC"}`)
	}))
	defer downstream.Close()

	cfg := testConfig(t, "simpleapi")
	cfg.Downstream.URL = downstream.URL

	s, err := NewSimpleAPI(context.Background(), cfg, testLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	url, done := start(t, ctx, s.Run)

	h := http.Header{}
	h.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	code, body := get(t, url, h)
	require.Equal(t, http.StatusOK, code)

	var out struct {
		Message    string          `json:"message"`
		Downstream json.RawMessage `json:"downstream"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, "Hello, world!", out.Message)
	assert.JSONEq(t, `{"timezone":"Etc/UTC"}`, string(out.Downstream))
	got := <-headers
	assert.Contains(t, got.Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", got.Get(tracex.HeaderTraceID))

	cancel()
	res := wait(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, shutdown.ReasonSignal, res.reason)
}

func TestSimpleAPIDownstreamDown(t *testing.T) {
	downstream := httptest.NewServer(http.NotFoundHandler())
	cfg := testConfig(t, "simpleapi")
	cfg.Downstream.URL = downstream.URL
	downstream.Close()

	s, err := NewSimpleAPI(context.Background(), cfg, testLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	url, done := start(t, ctx, s.Run)

	code, body := get(t, url, nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.JSONEq(t, `{"error":"Failed to fetch downstream data"}`, body)

	cancel()
	require.NoError(t, wait(t, done).err)
}

func TestSimpleAPIDownstreamRetries(t *testing.T) {
	tests := []struct {
		name        string
		maxAttempts int
		failFirst   int
		failStatus  int
		wantCode    int
		wantCalls   int32
	}{
		{name: "503 retried until ok", maxAttempts: 2, failFirst: 1, failStatus: http.StatusServiceUnavailable, wantCode: http.StatusOK, wantCalls: 2},
		{name: "single attempt does not retry", maxAttempts: 1, failFirst: 1, failStatus: http.StatusServiceUnavailable, wantCode: http.StatusInternalServerError, wantCalls: 1},
		{name: "500 not retried", maxAttempts: 3, failFirst: 1, failStatus: http.StatusInternalServerError, wantCode: http.StatusInternalServerError, wantCalls: 1},
		{name: "attempts exhausted", maxAttempts: 2, failFirst: 5, failStatus: http.StatusTooManyRequests, wantCode: http.StatusInternalServerError, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if int(calls.Add(1)) <= tt.failFirst {
					w.WriteHeader(tt.failStatus)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"timezone":"Etc/UTC"}`)
			}))
			defer downstream.Close()

			cfg := testConfig(t, "simpleapi")
			cfg.Downstream.URL = downstream.URL
			cfg.Downstream.MaxAttempts = tt.maxAttempts

			s, err := NewSimpleAPI(context.Background(), cfg, testLogger(t))
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			url, done := start(t, ctx, s.Run)

			code, _ := get(t, url, nil)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantCalls, calls.Load())

			cancel()
			require.NoError(t, wait(t, done).err)
		})
	}
}

func TestTraceIDCheckReplayedTraceparentStartsNewTrace(t *testing.T) {
	cfg := testConfig(t, "traceidcheck")
	s, err := NewTraceIDCheck(context.Background(), cfg, testLogger(t), WithConsole(io.Discard))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	url, done := start(t, ctx, s.Run)

	// 同一个 traceparent 重放多次也不会被判成重复
	h := http.Header{}
	h.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	for i := 0; i < 3; i++ {
		code, _ := get(t, url, h)
		assert.Equal(t, http.StatusOK, code)
	}
	cancel()

	res := wait(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, shutdown.ReasonSignal, res.reason)
	assert.Equal(t, 3, s.Tracker().Summarize().UniqueTraceIDs)

	data, err := os.ReadFile(cfg.Tracker.ResultsFile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "4bf92f3577b34da6a3ce929d0e0e4736")
}
