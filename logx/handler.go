package logx

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"sync"
	"time"
)

// entry 已编码好的一行日志
type entry struct {
	at    time.Time
	level slog.Level
	line  []byte
}

// handler 在调用方 goroutine 里编码，后台 goroutine 写文件 / 控制台。
// 队列满时丢弃，业务不会被日志阻塞
type handler struct {
	cfg Config

	mu  sync.Mutex // 保护 out
	out *rotator

	// Handle 持读锁投递，Close 持写锁关闭队列
	qmu     sync.RWMutex
	closed  bool
	entries chan entry
	done    chan struct{}
}

func newHandler(cfg Config) (*handler, error) {
	if cfg.AppName == "" {
		cfg.AppName = "app"
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "."
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10000
	}
	if cfg.Console == nil {
		cfg.Console = os.Stdout
	}

	h := &handler{
		cfg:     cfg,
		out:     newRotator(cfg),
		entries: make(chan entry, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	// 启动时就把文件建好，目录不可写直接报错
	if err := h.out.open(time.Now()); err != nil {
		return nil, err
	}
	go h.writeLoop()
	return h, nil
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.Level
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	line, err := encodeRecord(r)
	if err != nil {
		return err
	}

	h.qmu.RLock()
	defer h.qmu.RUnlock()
	// Close 之后的日志直接打 stderr
	if h.closed {
		_, err := os.Stderr.Write(line)
		return err
	}
	select {
	case h.entries <- entry{at: r.Time, level: r.Level, line: line}:
	default:
		log.Println("logx: queue full, drop log")
	}
	return nil
}

// 字段全部由 encodeLog 给出，不支持 With / Group
func (h *handler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *handler) WithGroup(string) slog.Handler      { return h }

// Close 写完队列里剩下的日志再关闭文件，可重复调用
func (h *handler) Close() error {
	h.qmu.Lock()
	if h.closed {
		h.qmu.Unlock()
		return nil
	}
	h.closed = true
	close(h.entries)
	h.qmu.Unlock()

	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.out.close()
}

func (h *handler) writeLoop() {
	defer close(h.done)
	for e := range h.entries {
		h.mu.Lock()
		err := h.out.write(e.at, e.line)
		h.mu.Unlock()
		if err != nil {
			log.Println("logx: write failed:", err)
		}

		if h.cfg.ConsoleEnabled {
			line := e.line
			if h.cfg.ConsoleColored {
				line = append([]byte(levelPrefix(e.level)), line...)
			}
			_, _ = h.cfg.Console.Write(line)
		}
	}
}

// encodeRecord 一条 Record 编成一行 JSON（带换行）
func encodeRecord(r slog.Record) ([]byte, error) {
	data := make(map[string]any, r.NumAttrs()+2)
	data["ts"] = r.Time.Format(time.RFC3339Nano)
	data["level"] = r.Level.String()
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})

	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func levelPrefix(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "\033[31m[ERROR]\033[0m "
	case l >= slog.LevelWarn:
		return "\033[33m[WARN ]\033[0m "
	case l >= slog.LevelInfo:
		return "\033[32m[INFO ]\033[0m "
	default:
		return "\033[36m[DEBUG]\033[0m "
	}
}
