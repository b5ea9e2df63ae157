package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/justapithecus/pngdoctor/types"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_PassFields(t *testing.T) {
	var buf bytes.Buffer
	meta := &types.PassMeta{PassID: "pass-1", Source: "a.png"}
	l := newLoggerWithWriter(meta, &buf, zapcore.DebugLevel)

	l.Info("validation finished", map[string]any{"chunks": 3})

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	entry := lines[0]
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
	if entry["message"] != "validation finished" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["pass_id"] != "pass-1" {
		t.Errorf("pass_id = %v, want pass-1", entry["pass_id"])
	}
	if entry["source"] != "a.png" {
		t.Errorf("source = %v, want a.png", entry["source"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
	fields, _ := entry["fields"].(map[string]any)
	if fields["chunks"] != float64(3) {
		t.Errorf("fields.chunks = %v, want 3", fields["chunks"])
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(nil, &buf, zapcore.WarnLevel)

	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Warn("shown", nil)
	l.Error("shown", nil)

	if got := len(decodeLines(t, &buf)); got != 2 {
		t.Errorf("expected 2 lines at warn level, got %d", got)
	}
}

func TestLogger_ForPass(t *testing.T) {
	var buf bytes.Buffer
	root := newLoggerWithWriter(nil, &buf, zapcore.DebugLevel)
	child := root.ForPass(&types.PassMeta{PassID: "p2", Source: "b.png"})

	child.Warn("violation", map[string]any{"category": "duplicate_chunk"})

	lines := decodeLines(t, &buf)
	if lines[0]["pass_id"] != "p2" {
		t.Errorf("pass_id = %v, want p2", lines[0]["pass_id"])
	}
	if root.ForPass(nil) != root {
		t.Error("ForPass(nil) should return the same logger")
	}
}

func TestLogger_WithOutput(t *testing.T) {
	var first, second bytes.Buffer
	l := newLoggerWithWriter(nil, &first, zapcore.DebugLevel).WithOutput(&second)
	l.Info("moved", nil)
	if first.Len() != 0 {
		t.Error("original writer should be unused")
	}
	if second.Len() == 0 {
		t.Error("new writer should receive output")
	}
}

func TestSugaredLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(nil, &buf, zapcore.DebugLevel)
	l.Sugar().With("file", "c.png").Infof("read %d chunks", 4)

	lines := decodeLines(t, &buf)
	if lines[0]["message"] != "read 4 chunks" {
		t.Errorf("message = %v", lines[0]["message"])
	}
	if lines[0]["file"] != "c.png" {
		t.Errorf("file = %v", lines[0]["file"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"", zapcore.InfoLevel, false},
		{"WARN", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("nothing", nil)
	l.Sugar().Infof("nothing %d", 1)
}
