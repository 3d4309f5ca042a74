package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  LogLevel
	}{
		{name: "debug lower", input: "debug", want: LevelDebug},
		{name: "info upper", input: "INFO", want: LevelInfo},
		{name: "warn mixed", input: "WaRn", want: LevelWarn},
		{name: "error", input: "error", want: LevelError},
		{name: "fatal", input: "fatal", want: LevelFatal},
		{name: "trim spaces", input: "  debug  ", want: LevelDebug},
		{name: "unknown fallback", input: "verbose", want: LevelInfo},
		{name: "empty fallback", input: "", want: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Fatalf("ParseLevel(%q)=%v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFileLogger_RespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	fl, err := NewFileLogger(path, LevelWarn)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	fl.Info("hidden %d", 1)
	fl.Warn("visible %s", "warning")
	if err := fl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "hidden 1") {
		t.Fatalf("info line should be filtered: %s", data)
	}
	if !strings.Contains(string(data), "visible warning") {
		t.Fatalf("warn line missing: %s", data)
	}
}

func TestFileLogger_ReportsCallerSite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caller.log")
	fl, err := NewFileLogger(path, LevelDebug)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	fl.Error("where %s", "am I")
	if err := fl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `logger_level_test.go:`) {
		t.Fatalf("caller should point at the call site: %s", data)
	}
	if strings.Contains(string(data), `logger.go:`) {
		t.Fatalf("caller points inside the logger: %s", data)
	}
}
