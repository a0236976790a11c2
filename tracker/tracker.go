// Package tracker 记录服务见过的 trace id，逐个请求判断是新 id 还是重复 id。
//
// Tracker 只给出结论（Outcome），不负责退出进程；
// 重复 id 怎么处理由调用方决定（traceidcheck 交给 shutdown.Coordinator）。
package tracker

import (
	"sync"

	"github.com/imattdu/tracecheck/errorx"
)

// Outcome 单个请求的判定结果
type Outcome int

const (
	Unique Outcome = iota + 1
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case Unique:
		return "unique"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// ErrEmptyTraceID 请求没有 trace id 时由 Record 返回
var ErrEmptyTraceID = errorx.NewBiz(errorx.ErrTraceIDEmpty, errorx.WithService(errorx.ServiceTracker))

// Summary 计数器快照
type Summary struct {
	TotalRequests  uint64 `json:"total_requests"`
	UniqueTraceIDs int    `json:"unique_trace_ids"`
	DuplicateFound bool   `json:"duplicate_found"`
}

// Tracker 并发安全：net/http 每个请求一个 goroutine，
// "是否见过" 的判断和写入必须在同一把锁里完成
type Tracker struct {
	mu             sync.Mutex
	seen           map[string]struct{}
	totalRequests  uint64
	duplicateFound bool
}

func New() *Tracker {
	return &Tracker{seen: make(map[string]struct{})}
}

// Record 记录一次请求。seen 只增不减，duplicateFound 置 true 后不再复位
func (t *Tracker) Record(traceID string) (Outcome, error) {
	if traceID == "" {
		return 0, ErrEmptyTraceID
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalRequests++
	if _, ok := t.seen[traceID]; ok {
		t.duplicateFound = true
		return Duplicate, nil
	}
	t.seen[traceID] = struct{}{}
	return Unique, nil
}

// Summarize 只读，不修改状态，可重复调用
func (t *Tracker) Summarize() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Summary{
		TotalRequests:  t.totalRequests,
		UniqueTraceIDs: len(t.seen),
		DuplicateFound: t.duplicateFound,
	}
}
