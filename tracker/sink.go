package tracker

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Sink 接收纯文本行（控制台、结果文件）
type Sink interface {
	WriteLine(line string) error
}

// WriterSink 每行追加换行写入 w
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, line+"\n")
	return err
}

// FileSink 以追加方式写文件，不会截断已有内容
type FileSink struct {
	WriterSink
	f *os.File
}

func OpenFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results file %s: %w", path, err)
	}
	return &FileSink{WriterSink: WriterSink{w: f}, f: f}, nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// MultiSink 把每行写到所有 sink，单个 sink 失败不影响其它 sink，错误合并返回
type MultiSink []Sink

func (m MultiSink) WriteLine(line string) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.WriteLine(line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Printf 格式化后写一行
func Printf(sink Sink, format string, args ...any) error {
	return sink.WriteLine(fmt.Sprintf(format, args...))
}
