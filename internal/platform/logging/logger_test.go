package logging

import (
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zapcore"
)

type captureSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *captureSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func (s *captureSink) Sync() error { return nil }

var _ zapcore.WriteSyncer = (*captureSink)(nil)

func TestWithSink_WritesLinesAtOrAboveLevel(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	logger := NewNop().WithSink(sink, LevelInfo)

	logger.Debug("hidden")
	logger.Info("cycle completed", "created", 3)
	logger.Error("cycle failed", "error", errString("boom"))

	if len(sink.lines) != 2 {
		t.Fatalf("unexpected sink line count: got=%d lines=%v", len(sink.lines), sink.lines)
	}
	if !strings.Contains(sink.lines[0], "cycle completed") || !strings.Contains(sink.lines[0], "created") {
		t.Fatalf("unexpected first line: %q", sink.lines[0])
	}
	if !strings.Contains(sink.lines[1], "ERROR") || !strings.Contains(sink.lines[1], "boom") {
		t.Fatalf("unexpected second line: %q", sink.lines[1])
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"error":   LevelError,
		"verbose": LevelInfo,
		"":        LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q)=%v want=%v", raw, got, want)
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }
