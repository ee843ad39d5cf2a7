package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestSlogLoggerWritesFields(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewSlogLogger(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	l.With(String(FieldOperation, "split")).Warn("page skipped", Int("page", 9), Error("err", errors.New("out of range")))
	out := buf.String()
	for _, want := range []string{"page skipped", "op=split", "page=9", `err="out of range"`, "level=WARN"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestSlogLoggerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewSlogLogger(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug output should be filtered, got %q", buf.String())
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(NopLogger); !ok {
		t.Fatalf("expected NopLogger for nil")
	}
}

type recorder struct {
	NopLogger
	lines []string
	last  []Field
}

func (r *recorder) Debug(msg string, fields ...Field) {
	r.lines = append(r.lines, "debug "+msg)
	r.last = fields
}

func (r *recorder) Warn(msg string, fields ...Field) {
	r.lines = append(r.lines, "warn "+msg)
	r.last = fields
}

func TestLogTracer(t *testing.T) {
	rec := &recorder{}
	tracer := LogTracer(rec)

	_, span := tracer.StartSpan(context.Background(), "merge")
	span.SetTag(FieldPages, 4)
	span.Finish()
	span.Finish()
	if len(rec.lines) != 1 || rec.lines[0] != "debug merge finished" {
		t.Fatalf("lines %v", rec.lines)
	}
	if rec.last[0].Key != FieldPages || rec.last[1].Key != FieldDuration {
		t.Fatalf("fields %+v", rec.last)
	}

	_, span = tracer.StartSpan(context.Background(), "split")
	span.SetError(errors.New("boom"))
	span.Finish()
	if rec.lines[1] != "warn split failed" || rec.last[len(rec.last)-1].Value != "boom" {
		t.Fatalf("lines %v fields %+v", rec.lines, rec.last)
	}
}
