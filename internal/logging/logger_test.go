package logging

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   LogLevel
	}{
		{
			name:   "default config",
			config: Config{Level: LogLevelNormal, Format: "text"},
			want:   LogLevelNormal,
		},
		{
			name:   "verbose json config",
			config: Config{Level: LogLevelVerbose, Format: "json"},
			want:   LogLevelVerbose,
		},
		{
			name:   "quiet config",
			config: Config{Level: LogLevelQuiet, Format: "text"},
			want:   LogLevelQuiet,
		},
		{
			name:   "empty level falls back to normal",
			config: Config{Format: "text"},
			want:   LogLevelNormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.config.Output = &buf

			logger, err := NewLogger(tt.config)
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}

			if logger.GetLevel() != tt.want {
				t.Errorf("NewLogger() level = %v, want %v", logger.GetLevel(), tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"quiet", LogLevelQuiet},
		{"VERBOSE", LogLevelVerbose},
		{" debug ", LogLevelDebug},
		{"normal", LogLevelNormal},
		{"", LogLevelNormal},
		{"chatty", LogLevelNormal},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelVerbose, Output: &buf, Format: "text"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.WithFields(map[string]interface{}{
		"schedule_id": "s1",
		"records":     42,
	}).Info("schedule done")

	output := buf.String()
	for _, want := range []string{"schedule_id=s1", "records=42", "schedule done"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got: %s", want, output)
		}
	}
}

func TestLoggerWithContextRunID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelVerbose, Output: &buf, Format: "text"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	ctx := ContextWithRunID(context.Background(), "run-123")
	logger.WithContext(ctx).Info("tagged")

	if !strings.Contains(buf.String(), "run_id=run-123") {
		t.Errorf("expected run_id=run-123, got: %s", buf.String())
	}
	if got := RunIDFromContext(ctx); got != "run-123" {
		t.Errorf("RunIDFromContext() = %q", got)
	}
	if got := RunIDFromContext(context.Background()); got != "" {
		t.Errorf("RunIDFromContext(empty) = %q", got)
	}
}

func TestLogStoreConnection(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelVerbose, Output: &buf, Format: "text"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.LogStoreConnection("localhost", "crm", true, 100*time.Millisecond, nil)
	output := buf.String()
	if !strings.Contains(output, "Store connection established") {
		t.Errorf("Expected success message, got: %s", output)
	}
	if !strings.Contains(output, "host=localhost") {
		t.Errorf("Expected host=localhost, got: %s", output)
	}

	buf.Reset()

	logger.LogStoreConnection("localhost", "crm", false, 5*time.Second, errors.New("connection timeout"))
	output = buf.String()
	if !strings.Contains(output, "Store connection failed") {
		t.Errorf("Expected failure message, got: %s", output)
	}
	if !strings.Contains(output, "connection timeout") {
		t.Errorf("Expected error message, got: %s", output)
	}
}

func TestLogTableExtraction(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelVerbose, Output: &buf, Format: "text"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.LogTableExtraction(context.Background(), "leads", 2500, 3, time.Second, nil)
	if !strings.Contains(buf.String(), "Table extracted") || !strings.Contains(buf.String(), "rows=2500") {
		t.Errorf("unexpected output: %s", buf.String())
	}

	buf.Reset()
	logger.LogTableExtraction(context.Background(), "leads", 1000, 2, time.Second, errors.New("boom"))
	if !strings.Contains(buf.String(), "Table extraction truncated") {
		t.Errorf("expected truncation warning, got: %s", buf.String())
	}
}

func TestLogArtifactUpload(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelNormal, Output: &buf, Format: "json"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.LogArtifactUpload(context.Background(), "owner/file.json", 512, "", time.Millisecond, errors.New("denied"))
	output := buf.String()
	if !strings.Contains(output, `"path":"owner/file.json"`) {
		t.Errorf("expected json path field, got: %s", output)
	}
	if !strings.Contains(output, "Artifact upload failed") {
		t.Errorf("expected failure message, got: %s", output)
	}

	buf.Reset()
	logger.LogArtifactUpload(context.Background(), "owner/file.json", 512, "abc123", time.Millisecond, nil)
	if !strings.Contains(buf.String(), `"checksum":"abc123"`) || !strings.Contains(buf.String(), "Artifact uploaded") {
		t.Errorf("expected checksum on success, got: %s", buf.String())
	}
}

func TestSetLevel(t *testing.T) {
	logger := NewDefaultLogger()

	logger.SetLevel(LogLevelVerbose)
	if logger.GetLevel() != LogLevelVerbose {
		t.Errorf("SetLevel() failed, got %v, want %v", logger.GetLevel(), LogLevelVerbose)
	}

	logger.SetLevel(LogLevelQuiet)
	if logger.GetLevel() != LogLevelQuiet {
		t.Errorf("SetLevel() failed, got %v, want %v", logger.GetLevel(), LogLevelQuiet)
	}
}

func TestIsLevelEnabled(t *testing.T) {
	tests := []struct {
		name        string
		loggerLevel LogLevel
		testLevel   LogLevel
		want        bool
	}{
		{"quiet logger, error level", LogLevelQuiet, LogLevelQuiet, true},
		{"quiet logger, normal level", LogLevelQuiet, LogLevelNormal, false},
		{"normal logger, normal level", LogLevelNormal, LogLevelNormal, true},
		{"normal logger, verbose level", LogLevelNormal, LogLevelVerbose, false},
		{"verbose logger, debug level", LogLevelVerbose, LogLevelDebug, false},
		{"debug logger, debug level", LogLevelDebug, LogLevelDebug, true},
		{"unknown level", LogLevelDebug, LogLevel("loud"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewLogger(Config{Level: tt.loggerLevel, Output: &buf})
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}

			if got := logger.IsLevelEnabled(tt.testLevel); got != tt.want {
				t.Errorf("IsLevelEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogOperationStart(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelVerbose, Output: &buf, Format: "text"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	finish := logger.LogOperationStart(context.Background(), "retention", map[string]interface{}{"cap": 30})

	output := buf.String()
	if !strings.Contains(output, "Operation started") || !strings.Contains(output, "cap=30") {
		t.Errorf("unexpected start output: %s", output)
	}

	buf.Reset()
	finish(nil)
	if !strings.Contains(buf.String(), "success=true") {
		t.Errorf("expected success=true, got: %s", buf.String())
	}

	buf.Reset()
	finish(errors.New("listing failed"))
	if !strings.Contains(buf.String(), "Operation failed") {
		t.Errorf("expected failure message, got: %s", buf.String())
	}
}

func TestLogFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "engine.log")

	logger, err := NewLogger(Config{Level: LogLevelNormal, Output: &buf, LogFile: path})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("to both")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if !strings.Contains(buf.String(), "to both") {
		t.Errorf("expected output in buffer, got: %s", buf.String())
	}
}

func TestRedactDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"mysql://backup:secret@db:3306/crm", "mysql://backup:***@db:3306/crm"},
		{"backup:secret@tcp(db:3306)/crm", "backup:***@tcp(db:3306)/crm"},
		{"mysql://backup@db:3306/crm", "mysql://backup@db:3306/crm"},
		{"no credentials here", "no credentials here"},
	}

	for _, tt := range tests {
		if got := RedactDSN(tt.in); got != tt.want {
			t.Errorf("RedactDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
