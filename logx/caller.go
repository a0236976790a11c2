package logx

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// callerSkip 0:runtime.Callers 1:getCaller 2:encodeLog 3:log 4:Info/Debug/... 5:调用方
const callerSkip = 5

type caller struct {
	file     string
	line     int
	funcName string
}

func getCaller() caller {
	var pcs [1]uintptr
	if runtime.Callers(callerSkip, pcs[:]) == 0 {
		return caller{funcName: "unknown"}
	}
	frame, _ := runtime.CallersFrames(pcs[:]).Next()
	c := caller{
		file:     trimFilePath(frame.File),
		line:     frame.Line,
		funcName: "unknown",
	}
	if frame.Function != "" {
		c.funcName = trimFuncName(frame.Function)
	}
	return c
}

// moduleRoot 编译时源码所在模块根目录（含 go.mod），找不到时为空
var moduleRoot = sync.OnceValue(func() string {
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	for dir := filepath.Dir(self); ; {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
})

// /path/to/tracecheck/handler/tracecheck.go -> handler/tracecheck.go，模块外只留文件名
func trimFilePath(fullPath string) string {
	if fullPath == "" {
		return ""
	}
	if root := moduleRoot(); root != "" {
		if rel, err := filepath.Rel(root, fullPath); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return filepath.Base(fullPath)
}

// github.com/imattdu/tracecheck/handler.(*TraceCheck).ServeHTTP -> (*TraceCheck).ServeHTTP
func trimFuncName(name string) string {
	name = name[strings.LastIndex(name, "/")+1:]
	if _, after, ok := strings.Cut(name, "."); ok && after != "" {
		return after
	}
	return name
}
