package interfaces

import "time"

type EodSummarizer interface {
	SummarizeDay(t time.Time) (csvPath string, err error)
	SummarizeToday() (csvPath string, err error)
	// ShouldRunNow reports whether the previous day has a journal but no summary yet
	ShouldRunNow() (shouldRun bool, day time.Time)
}
