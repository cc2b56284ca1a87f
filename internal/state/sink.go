package state

import (
	"log/slog"
	"sync/atomic"
)

// ErrorSink receives non-fatal storage failures.
type ErrorSink interface {
	ReportStorageError(err error)
}

// LogSink logs storage failures and counts them.
type LogSink struct {
	log      *slog.Logger
	failures atomic.Int64
}

// NewLogSink creates a LogSink writing to log.
func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

// ReportStorageError logs err as a warning.
func (s *LogSink) ReportStorageError(err error) {
	n := s.failures.Add(1)
	s.log.Warn("Storage write failed, in-memory state stays authoritative",
		"error", err, "failures", n)
}

// Failures returns the number of failures reported so far.
func (s *LogSink) Failures() int64 {
	return s.failures.Load()
}
