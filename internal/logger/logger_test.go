package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json")
	l.Info().Str("ip", "10.0.0.1").Msg("Server registered")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["message"] != "Server registered" || entry["ip"] != "10.0.0.1" || entry["level"] != "info" {
		t.Fatalf("entry = %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Fatal("entry has no timestamp")
	}
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "console")
	l.Warn().Msg("Journal queue full")

	out := buf.String()
	if !strings.Contains(out, "Journal queue full") || !strings.Contains(out, "WRN") {
		t.Fatalf("output = %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("colors written to a buffer: %q", out)
	}
}

func TestOpenOutput(t *testing.T) {
	if openOutput("stdout") != os.Stdout {
		t.Fatal("stdout not resolved")
	}
	if openOutput("") != os.Stderr || openOutput("stderr") != os.Stderr {
		t.Fatal("stderr not resolved")
	}

	path := filepath.Join(t.TempDir(), "beacon.log")
	w := openOutput(path)
	f, ok := w.(*os.File)
	if !ok || f == os.Stderr {
		t.Fatalf("openOutput(%q) = %T, want file", path, w)
	}
	_ = f.Close()

	if openOutput(filepath.Join(t.TempDir(), "missing", "beacon.log")) != os.Stderr {
		t.Fatal("unopenable path did not fall back to stderr")
	}
}
