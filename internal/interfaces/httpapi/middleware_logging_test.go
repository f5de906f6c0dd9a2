package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/riskibarqy/oddsline/internal/platform/logging"
)

type lineSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *lineSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func (s *lineSink) Sync() error { return nil }

func TestRequestLogging_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		level  string
	}{
		{name: "ok", path: "/v1/admin/stats", status: http.StatusOK, level: "INFO"},
		{name: "client error", path: "/v1/admin/stats", status: http.StatusNotFound, level: "WARN"},
		{name: "server error", path: "/v1/admin/stats", status: http.StatusInternalServerError, level: "ERROR"},
		{name: "probe", path: "/healthz", status: http.StatusOK, level: "DEBUG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &lineSink{}
			logger := logging.NewNop().WithSink(sink, logging.LevelDebug)
			h := RequestLogging(logger, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}))

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			if len(sink.lines) != 1 {
				t.Fatalf("expected one log line, got %v", sink.lines)
			}
			line := sink.lines[0]
			if !strings.Contains(line, tt.level) || !strings.Contains(line, "http request") {
				t.Fatalf("expected %s request line, got %q", tt.level, line)
			}
			if !strings.Contains(line, `"bytes": 4`) {
				t.Fatalf("expected byte count in %q", line)
			}
		})
	}
}
