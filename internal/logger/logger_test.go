// internal/logger/logger_test.go
package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{" warn ", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"verbose", defaultZapLevel},
		{"", defaultZapLevel},
	}
	for _, tc := range cases {
		if got := toZapLevel(tc.in); got != tc.want {
			t.Fatalf("toZapLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newLoggerTo(InfoLevel, FormatJSON, &buf).Named("link").With("host", "192.168.1.11")
	log.Debugw("hidden")
	log.Infow("ws_open", "attempt", 2)
	_ = log.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("want one line (debug filtered), got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if entry["msg"] != "ws_open" || entry["logger"] != "link" || entry["host"] != "192.168.1.11" {
		t.Fatalf("entry = %v", entry)
	}
	if entry["attempt"] != float64(2) {
		t.Fatalf("attempt = %v", entry["attempt"])
	}
}

func TestLogger_ConsoleFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newLoggerTo(DebugLevel, FormatConsole, &buf)
	log.Warnw("http_poll_failed", "failures", 3)
	_ = log.Sync()

	out := buf.String()
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "http_poll_failed") || !strings.Contains(out, `"failures": 3`) {
		t.Fatalf("console output = %q", out)
	}
}

func TestNop(t *testing.T) {
	t.Parallel()
	Nop().Errorw("discarded", "k", "v")
}
