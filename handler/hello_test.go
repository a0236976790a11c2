package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/imattdu/tracecheck/errorx"
	"github.com/imattdu/tracecheck/httpclient"
	"github.com/imattdu/tracecheck/logx"
	"github.com/imattdu/tracecheck/middleware"
)

const incomingTraceparent = "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"

func setupHelloRouter(t *testing.T, downstreamURL string) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	logger, err := logx.New(logx.Config{AppName: "simpleapi", LogDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })

	cli, err := httpclient.New(
		httpclient.WithTracing(tp, nil),
		httpclient.WithBizErrorDecoder(DownstreamStatusDecoder),
	)
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.TraceMiddleware(tp.Tracer("simple-api")))
	r.GET("/", Hello(cli, downstreamURL, logger))
	return r, sr
}

var _ JSONGetter = (*httpclient.Client)(nil)

func TestHelloPropagatesTrace(t *testing.T) {
	var downstreamTraceparent string
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downstreamTraceparent = r.Header.Get("traceparent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"timezone":"Etc/UTC","unixtime":1700000000}`)
	}))
	defer downstream.Close()

	router, sr := setupHelloRouter(t, downstream.URL)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", incomingTraceparent)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Message    string          `json:"message"`
		Downstream json.RawMessage `json:"downstream"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Hello, world!", body.Message)
	assert.JSONEq(t, `{"timezone":"Etc/UTC","unixtime":1700000000}`, string(body.Downstream))

	assert.Contains(t, downstreamTraceparent, "0af7651916cd43dd8448eb211c80319c")

	ended := sr.Ended()
	require.Len(t, ended, 2)
	outgoing, incoming := ended[0], ended[1]
	assert.Equal(t, "outgoing-request", outgoing.Name())
	assert.Equal(t, middleware.SpanIncomingRequest, incoming.Name())
	assert.Equal(t, incoming.SpanContext().SpanID(), outgoing.Parent().SpanID())
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", outgoing.SpanContext().TraceID().String())
}

func TestHelloDownstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "downstream 5xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = io.WriteString(w, "maintenance")
			},
		},
		{
			name: "downstream returns invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, "<html>")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			downstream := httptest.NewServer(tt.handler)
			defer downstream.Close()

			router, _ := setupHelloRouter(t, downstream.URL)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.JSONEq(t, `{"error":"Failed to fetch downstream data"}`, w.Body.String())
		})
	}
}

type stubGetter struct{ err error }

func (s stubGetter) GetJSON(context.Context, string, any) (*http.Response, error) {
	return nil, s.err
}

func TestHelloRecordsGinError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, err := logx.New(logx.Config{AppName: "simpleapi", LogDir: t.TempDir()})
	require.NoError(t, err)
	defer logger.Close()

	var ginErr error
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Next()
		ginErr = c.Errors.Last()
	})
	r.GET("/", Hello(stubGetter{err: errors.New("dial tcp: refused")}, "http://downstream", logger))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Error(t, ginErr)
	assert.True(t, errorx.HasCode(ginErr, errorx.ErrDownstream))
	assert.Equal(t, errorx.ServiceDownstream, errorx.ServiceOf(ginErr))
}

func TestDownstreamStatusDecoder(t *testing.T) {
	assert.NoError(t, DownstreamStatusDecoder(http.StatusOK, nil))
	err := DownstreamStatusDecoder(http.StatusNotFound, []byte("unknown timezone"))
	require.Error(t, err)
	e, ok := errorx.From(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, e.Fields[logx.Status])
	assert.Equal(t, "unknown timezone", e.Message)
}
