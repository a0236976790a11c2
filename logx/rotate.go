package logx

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// rotator 持有当前日志文件，按小时或按大小切分，
// {AppName}.log 软链始终指向最新文件。调用方负责加锁
type rotator struct {
	dir        string
	app        string
	mode       RotateMode
	maxBytes   int64
	maxBackups int

	file *os.File
	size int64
	hour time.Time
}

func newRotator(cfg Config) *rotator {
	return &rotator{
		dir:        cfg.LogDir,
		app:        cfg.AppName,
		mode:       cfg.Rotate,
		maxBytes:   int64(cfg.MaxFileSizeMB) << 20,
		maxBackups: cfg.MaxBackups,
	}
}

func (r *rotator) write(now time.Time, line []byte) error {
	if r.due(now) {
		if err := r.open(now); err != nil {
			return err
		}
	}
	n, err := r.file.Write(line)
	r.size += int64(n)
	return err
}

func (r *rotator) due(now time.Time) bool {
	switch {
	case r.file == nil:
		return true
	case r.mode == RotateSize:
		return r.maxBytes > 0 && r.size >= r.maxBytes
	default:
		return !now.Truncate(time.Hour).Equal(r.hour)
	}
}

func (r *rotator) open(now time.Time) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	name := r.filename(now)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if r.file != nil {
		_ = r.file.Close()
	}
	r.file = f
	r.hour = now.Truncate(time.Hour)
	r.size = 0
	if info, err := f.Stat(); err == nil {
		r.size = info.Size()
	}

	link := filepath.Join(r.dir, r.app+".log")
	_ = os.Remove(link)
	_ = os.Symlink(filepath.Base(name), link)

	if r.maxBackups > 0 {
		r.prune()
	}
	return nil
}

// filename 按小时：app-2006010215.log；按大小：精确到毫秒避免同一秒内重名
func (r *rotator) filename(now time.Time) string {
	layout := "2006010215"
	if r.mode == RotateSize {
		layout = "20060102150405.000"
	}
	return filepath.Join(r.dir, fmt.Sprintf("%s-%s.log", r.app, now.Format(layout)))
}

// prune 只保留最近修改的 maxBackups 个文件
func (r *rotator) prune() {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return
	}
	type logFile struct {
		path string
		mod  time.Time
	}
	var files []logFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, r.app+"-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{path: filepath.Join(r.dir, name), mod: info.ModTime()})
	}
	if len(files) <= r.maxBackups {
		return
	}
	// 新的在前；修改时间相同按文件名（时间戳）排
	slices.SortFunc(files, func(a, b logFile) int {
		if c := b.mod.Compare(a.mod); c != 0 {
			return c
		}
		return strings.Compare(b.path, a.path)
	})
	for _, f := range files[r.maxBackups:] {
		_ = os.Remove(f.path)
	}
}

func (r *rotator) close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
