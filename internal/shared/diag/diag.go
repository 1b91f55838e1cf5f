// Package diag provides the run-scoped diagnostics sink handed to the
// extractor, index builder and resolver in place of a process-wide logger.
package diag

import (
	"context"
	"log/slog"
	"sync"
)

type Severity string

const (
	SeverityDebug   Severity = "debug"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is a non-fatal observation made while analysing a file.
type Diagnostic struct {
	Path     string
	Severity Severity
	Message  string
	Err      error
}

// Sink forwards diagnostics to a logger and retains warnings and errors for
// the run result. A nil *Sink discards everything.
type Sink struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries []Diagnostic
}

func NewSink(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sink{logger: logger}
}

func (s *Sink) Debug(msg string, args ...any) {
	if s == nil {
		return
	}
	s.logger.Debug(msg, args...)
}

func (s *Sink) Warn(path, msg string, err error) {
	s.record(Diagnostic{Path: path, Severity: SeverityWarning, Message: msg, Err: err})
}

func (s *Sink) Error(path, msg string, err error) {
	s.record(Diagnostic{Path: path, Severity: SeverityError, Message: msg, Err: err})
}

func (s *Sink) record(d Diagnostic) {
	if s == nil {
		return
	}
	level := slog.LevelWarn
	if d.Severity == SeverityError {
		level = slog.LevelError
	}
	attrs := []any{"path", d.Path}
	if d.Err != nil {
		attrs = append(attrs, "error", d.Err)
	}
	s.logger.Log(context.Background(), level, d.Message, attrs...)

	s.mu.Lock()
	s.entries = append(s.entries, d)
	s.mu.Unlock()
}

// Entries returns a copy of the retained diagnostics in arrival order.
func (s *Sink) Entries() []Diagnostic {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Diagnostic, len(s.entries))
	copy(out, s.entries)
	return out
}
