package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imattdu/tracecheck/errorx"
	"github.com/imattdu/tracecheck/logx"
)

// JSONGetter 下游调用，*httpclient.Client 满足该接口
type JSONGetter interface {
	GetJSON(ctx context.Context, path string, out any) (*http.Response, error)
}

// Hello 调一次下游，把下游 JSON 原样带回
func Hello(client JSONGetter, downstreamURL string, logger logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var downstream json.RawMessage
		if _, err := client.GetJSON(ctx, downstreamURL, &downstream); err != nil {
			e := errorx.Wrap(err, errorx.ErrDownstream,
				errorx.WithService(errorx.ServiceDownstream),
				errorx.WithField(logx.URL, downstreamURL),
			)
			logger.Error(ctx, logx.TagHttpFailure, e)
			_ = c.Error(e)
			c.JSON(errorx.HTTPStatus(e), gin.H{"error": "Failed to fetch downstream data"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":    "Hello, world!",
			"downstream": downstream,
		})
	}
}

// DownstreamStatusDecoder 非 2xx 视为下游失败
func DownstreamStatusDecoder(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	msg := string(body)
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return errorx.NewSys(errorx.ErrDownstream,
		errorx.WithService(errorx.ServiceDownstream),
		errorx.WithField(logx.Status, statusCode),
		errorx.WithMessage(msg),
	)
}
