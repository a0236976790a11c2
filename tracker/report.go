package tracker

import (
	"errors"
	"fmt"
)

const (
	summaryHeader    = "--- Summary of Run ---"
	summaryDelimiter = "----------------------"
)

// FormatSummary 生成退出时输出的汇总块（纯计算，无 I/O）
func FormatSummary(s Summary) []string {
	dup := "No"
	if s.DuplicateFound {
		dup = "Yes"
	}
	return []string{
		summaryHeader,
		fmt.Sprintf("Total requests processed: %d", s.TotalRequests),
		fmt.Sprintf("Duplicate trace IDs encountered: %s", dup),
		summaryDelimiter,
	}
}

// Report 把汇总写入 sink，前面的行写失败也会继续写后面的行
func Report(sink Sink, s Summary) error {
	var errs []error
	for _, line := range FormatSummary(s) {
		if err := sink.WriteLine(line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
