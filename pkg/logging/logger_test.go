// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func TestLevel_String(t *testing.T) {
	cases := map[Level]string{
		LevelDebug: "DEBUG",
		LevelInfo:  "INFO",
		LevelWarn:  "WARN",
		LevelError: "ERROR",
		Level(99):  "UNKNOWN",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	cases := map[Level]slog.Level{
		LevelDebug: slog.LevelDebug,
		LevelInfo:  slog.LevelInfo,
		LevelWarn:  slog.LevelWarn,
		LevelError: slog.LevelError,
	}
	for level, want := range cases {
		if got := level.toSlogLevel(); got != want {
			t.Errorf("%v.toSlogLevel() = %v, want %v", level, got, want)
		}
	}
}

func TestNew_DefaultConfig(t *testing.T) {
	logger := New(Config{})
	defer logger.Close()
	if logger == nil || logger.slog == nil {
		t.Fatal("New(Config{}) did not return a usable logger")
	}
}

func TestNew_WithService(t *testing.T) {
	logger := New(Config{Service: "orchestrator", Quiet: true})
	defer logger.Close()
	if logger.config.Service != "orchestrator" {
		t.Errorf("Service = %q, want orchestrator", logger.config.Service)
	}
}

func TestNew_QuietModeStillLogs(t *testing.T) {
	logger := New(Config{Quiet: true})
	defer logger.Close()
	if logger.slog == nil {
		t.Error("logger.slog is nil in quiet mode; want a stderr fallback handler")
	}
}

func TestNew_WithLogDir(t *testing.T) {
	tmpDir := t.TempDir()
	logger := New(Config{LogDir: tmpDir, Service: "runner", Quiet: true})
	defer logger.Close()

	if logger.file == nil {
		t.Fatal("logger.file is nil when LogDir is set")
	}
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "runner_") {
		t.Errorf("log files = %v, want one runner_<date>.log", entries)
	}
}

func TestNew_FileHandlerIsAlwaysJSON(t *testing.T) {
	tmpDir := t.TempDir()
	logger := New(Config{LogDir: tmpDir, Service: "svc", Quiet: true, JSON: false})
	logger.Info("hello", "k", "v")
	logger.Close()

	entries, _ := os.ReadDir(tmpDir)
	data, err := os.ReadFile(tmpDir + "/" + entries[0].Name())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("file output is not JSON even with Config.JSON=false: %v\n%s", err, data)
	}
	if record["msg"] != "hello" || record["k"] != "v" {
		t.Errorf("record = %+v, want msg=hello k=v", record)
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	defer logger.Close()
	if logger.config.Level != LevelInfo || logger.config.Service != "scanforge" {
		t.Errorf("Default() config = %+v, want Level=Info Service=scanforge", logger.config)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	base := &Logger{slog: slog.New(slog.NewJSONHandler(&buf, nil))}
	child := base.With("request_id", "r1")
	child.Info("processing")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if record["request_id"] != "r1" {
		t.Errorf("record = %+v, want request_id=r1", record)
	}
}

func TestLogger_WithScan(t *testing.T) {
	var buf bytes.Buffer
	base := &Logger{slog: slog.New(slog.NewJSONHandler(&buf, nil))}
	base.WithScan("scan-1", "fast").Info("scan started")

	var record map[string]any
	json.Unmarshal(buf.Bytes(), &record)
	if record["scan_id"] != "scan-1" || record["profile"] != "fast" {
		t.Errorf("record = %+v, want scan_id=scan-1 profile=fast", record)
	}
}

func TestLogger_WithJob(t *testing.T) {
	var buf bytes.Buffer
	base := &Logger{slog: slog.New(slog.NewJSONHandler(&buf, nil))}
	base.WithJob("semgrep", "/repo", 2).Warn("retrying job")

	var record map[string]any
	json.Unmarshal(buf.Bytes(), &record)
	if record["tool"] != "semgrep" || record["target"] != "/repo" || record["attempt"] != float64(2) {
		t.Errorf("record = %+v, want tool=semgrep target=/repo attempt=2", record)
	}
}

func TestLogger_WithTool_MissingVersionIsExplicit(t *testing.T) {
	var buf bytes.Buffer
	base := &Logger{slog: slog.New(slog.NewJSONHandler(&buf, nil))}
	base.WithTool("trivy", "").Info("parsed output")

	var record map[string]any
	json.Unmarshal(buf.Bytes(), &record)
	if record["tool_version"] != "unknown" {
		t.Errorf("tool_version = %v, want the literal string \"unknown\" (never empty)", record["tool_version"])
	}
}

func TestLogger_Slog(t *testing.T) {
	logger := New(Config{Quiet: true})
	defer logger.Close()
	if logger.Slog() == nil {
		t.Error("Slog() returned nil")
	}
}

func TestLogger_Close_NoFile(t *testing.T) {
	logger := New(Config{Quiet: true})
	if err := logger.Close(); err != nil {
		t.Errorf("Close() with no file = %v, want nil", err)
	}
}

func TestLogger_Close_WithFile(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Quiet: true})
	if err := logger.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}

func TestMultiHandler_Enabled(t *testing.T) {
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	if h.Enabled(nil, slog.LevelDebug) {
		t.Error("Enabled(Debug) = true, want false when every handler requires Error")
	}
	if !h.Enabled(nil, slog.LevelError) {
		t.Error("Enabled(Error) = false, want true")
	}
}

func TestMultiHandler_FansOutToBothDestinations(t *testing.T) {
	var stderr, file bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&stderr, nil),
		slog.NewJSONHandler(&file, nil),
	}}
	logger := slog.New(h)
	logger.Info("dual write")

	if stderr.Len() == 0 || file.Len() == 0 {
		t.Errorf("expected both destinations written: stderr=%d bytes, file=%d bytes", stderr.Len(), file.Len())
	}
}

func TestMultiHandler_WithAttrs(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&buf1, nil),
		slog.NewJSONHandler(&buf2, nil),
	}}
	tagged := h.WithAttrs([]slog.Attr{slog.String("service", "enrich")})
	slog.New(tagged).Info("tagged")

	for _, buf := range []*bytes.Buffer{&buf1, &buf2} {
		var record map[string]any
		json.Unmarshal(buf.Bytes(), &record)
		if record["service"] != "enrich" {
			t.Errorf("record = %+v, want service=enrich on every fanned-out handler", record)
		}
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	cases := map[string]string{
		"/var/log/scanforge": "/var/log/scanforge",
		"relative/path":      "relative/path",
		"~/.scanforge/logs":  home + "/.scanforge/logs",
	}
	for in, want := range cases {
		if got := expandPath(in); got != want {
			t.Errorf("expandPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestScanAttrs(t *testing.T) {
	attrs := ScanAttrs("scan-1", "fast")
	if len(attrs) != 4 || attrs[1] != "scan-1" || attrs[3] != "fast" {
		t.Errorf("ScanAttrs() = %v, want [scan_id scan-1 profile fast]", attrs)
	}
}

func TestJobAttrs(t *testing.T) {
	attrs := JobAttrs("gitleaks", "repo", 1)
	if len(attrs) != 6 || attrs[5] != 1 {
		t.Errorf("JobAttrs() = %v, want attempt=1 as the final element", attrs)
	}
}

func TestToolOutcomeAttrs(t *testing.T) {
	attrs := ToolOutcomeAttrs("trivy", "Timeout", 1500*time.Millisecond)
	if len(attrs) != 6 || attrs[3] != "Timeout" || attrs[5] != int64(1500) {
		t.Errorf("ToolOutcomeAttrs() = %v, want outcome=Timeout duration_ms=1500", attrs)
	}
}
