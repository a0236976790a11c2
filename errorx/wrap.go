package errorx

import (
	"errors"
	"net/http"
)

// From 取错误链上第一个 *Error
func From(err error) (*Error, bool) {
	var e *Error
	if err != nil && errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func HasCode(err error, code CodeEntry) bool {
	e, ok := From(err)
	return ok && e.Code.Code == code.Code
}

func IsBiz(err error) bool {
	e, ok := From(err)
	return ok && e.Type.Code == ErrTypeBiz.Code
}

func IsSys(err error) bool {
	e, ok := From(err)
	return ok && e.Type.Code == ErrTypeSys.Code
}

// ServiceOf 非 *Error 返回 ServiceDefault
func ServiceOf(err error) CodeEntry {
	if e, ok := From(err); ok {
		return e.Service
	}
	return ServiceDefault
}

// HTTPStatus 错误对应的响应状态码；nil 为 200，未配置的为 500
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if e, ok := From(err); ok && e.Code.HTTPStatus != 0 {
		return e.Code.HTTPStatus
	}
	return http.StatusInternalServerError
}
