// Package observability holds the logging and tracing hooks the engine
// reports through. Both default to no-ops.
package observability

import (
	"context"
	"sync"
	"time"
)

// Field names used across packages.
const (
	FieldOperation = "op"
	FieldPath      = "path"
	FieldPages     = "pages"
	FieldObjects   = "objects"
	FieldDuration  = "duration_ms"
)

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field is a key/value pair attached to a log line or span.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field      { return Field{key, value} }
func Int(key string, value int) Field     { return Field{key, value} }
func Int64(key string, value int64) Field { return Field{key, value} }
func Bool(key string, value bool) Field   { return Field{key, value} }

// Error records err by its message. A nil error is written as "<nil>".
func Error(key string, err error) Field {
	if err == nil {
		return Field{key, "<nil>"}
	}
	return Field{key, err.Error()}
}

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

type Span interface {
	SetTag(key string, value any)
	SetError(err error)
	Finish()
}

// NopTracer returns a tracer whose spans discard everything.
func NopTracer() Tracer { return nopTracer{} }

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

type nopSpan struct{}

func (nopSpan) SetTag(string, any) {}
func (nopSpan) SetError(error)     {}
func (nopSpan) Finish()            {}

// LogTracer returns a tracer that writes one debug line per finished span,
// carrying its tags and elapsed milliseconds. Failed spans log at warn.
func LogTracer(l Logger) Tracer { return logTracer{log: OrNop(l)} }

type logTracer struct{ log Logger }

func (t logTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &logSpan{log: t.log, name: name, start: time.Now()}
}

type logSpan struct {
	log   Logger
	name  string
	start time.Time

	mu   sync.Mutex
	tags []Field
	err  error
	done bool
}

func (s *logSpan) SetTag(key string, value any) {
	s.mu.Lock()
	s.tags = append(s.tags, Field{key, value})
	s.mu.Unlock()
}

func (s *logSpan) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Finish logs the span. Calls after the first are ignored.
func (s *logSpan) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	fields := append(s.tags, Int64(FieldDuration, time.Since(s.start).Milliseconds()))
	if s.err != nil {
		s.log.Warn(s.name+" failed", append(fields, Error("error", s.err))...)
		return
	}
	s.log.Debug(s.name+" finished", fields...)
}
