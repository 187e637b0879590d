package logutil

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelTrace)

	logger.Log(context.TODO(), LevelTrace, "lattice built", "nodes", 3)

	out := buf.String()
	if !strings.Contains(out, "level=TRACE") {
		t.Errorf("output %q does not render the TRACE level", out)
	}
	if !strings.Contains(out, "logutil_test.go") || strings.Contains(out, "/logutil_test.go") {
		t.Errorf("output %q does not trim source to its base name", out)
	}
	if !strings.Contains(out, "nodes=3") {
		t.Errorf("output %q is missing attrs", out)
	}
}

func TestNewLoggerLevelGate(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	if logger.Enabled(context.TODO(), LevelTrace) {
		t.Fatal("trace enabled on an info-level logger")
	}

	logger.Log(context.TODO(), LevelTrace, "dropped")
	if buf.Len() != 0 {
		t.Errorf("trace record written below level: %q", buf.String())
	}
}

func TestTraceUsesDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(NewLogger(&buf, LevelTrace))
	t.Cleanup(func() { slog.SetDefault(prev) })

	Trace("tokenized", "count", 2)
	if !strings.Contains(buf.String(), "tokenized") {
		t.Errorf("Trace() wrote nothing: %q", buf.String())
	}
}
