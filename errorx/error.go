package errorx

import (
	"fmt"
	"maps"
)

// Error 带错误码的错误：code 决定身份（errors.Is 按 code 比较），
// Type / Service 用于日志分类，Fields 会被 logx 展开成日志字段
type Error struct {
	Code    CodeEntry      `json:"code"`
	Type    CodeEntry      `json:"type"`    // ErrTypeSys / ErrTypeBiz
	Service CodeEntry      `json:"service"` // tracker / tracing / downstream
	Message string         `json:"message"` // 非空时覆盖 Code.Message
	Cause   error          `json:"-"`
	Fields  map[string]any `json:"fields,omitempty"`
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("code=%d msg=%s cause=%v", e.Code.Code, e.msg(), e.Cause)
	}
	return fmt.Sprintf("code=%d msg=%s", e.Code.Code, e.msg())
}

func (e *Error) msg() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is 按 code 比较：errors.Is(err, errorx.New(errorx.ErrDuplicateTraceID))
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code.Code == t.Code.Code
}

// clone 浅拷贝，Fields 单独复制一份
func (e *Error) clone() *Error {
	cp := *e
	cp.Fields = maps.Clone(e.Fields)
	return &cp
}

// -------------------- Option --------------------

type Option func(*Error)

func WithMessage(msg string) Option {
	return func(e *Error) { e.Message = msg }
}

func WithCause(err error) Option {
	return func(e *Error) { e.Cause = err }
}

func WithType(t CodeEntry) Option {
	return func(e *Error) { e.Type = t }
}

func WithService(s CodeEntry) Option {
	return func(e *Error) { e.Service = s }
}

func WithField(k string, v any) Option {
	return func(e *Error) {
		if e.Fields == nil {
			e.Fields = make(map[string]any, 1)
		}
		e.Fields[k] = v
	}
}

// -------------------- 构造 --------------------

// New 默认系统错误
func New(code CodeEntry, opts ...Option) *Error {
	e := &Error{Code: code, Type: ErrTypeSys, Service: ServiceDefault}
	return e.apply(opts)
}

func Newf(code CodeEntry, format string, args ...any) *Error {
	return New(code, WithMessage(fmt.Sprintf(format, args...)))
}

func NewBiz(code CodeEntry, opts ...Option) *Error {
	return New(code, append([]Option{WithType(ErrTypeBiz)}, opts...)...)
}

func NewSys(code CodeEntry, opts ...Option) *Error {
	return New(code, opts...)
}

// Wrap err 链上已有 *Error 时保留它的 code，复制后再应用 opts（包级哨兵不会被改）；
// 否则用 code 新建一个，err 作为 Cause
func Wrap(err error, code CodeEntry, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	if e, ok := From(err); ok {
		return e.clone().apply(opts)
	}
	return New(code, append([]Option{WithCause(err)}, opts...)...)
}

func (e *Error) apply(opts []Option) *Error {
	for _, opt := range opts {
		opt(e)
	}
	return e
}
