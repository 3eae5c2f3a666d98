package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerBasic(t *testing.T) {
	var buf bytes.Buffer
	l, closeFn := New(WithWriter(&buf))
	defer func() {
		if err := closeFn(); err != nil {
			t.Errorf("failed to close logger: %v", err)
		}
	}()

	ctx := context.Background()
	l.Info(ctx, "test message", String("k", "v"), Uint64("block", 7560016))

	out := buf.String()
	if !strings.Contains(out, "test message") {
		t.Fatalf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "k=v") || !strings.Contains(out, "block=7560016") {
		t.Errorf("expected fields in output, got %q", out)
	}
	if !strings.Contains(out, "source=") {
		t.Errorf("expected caller source in output, got %q", out)
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(WithWriter(&buf), WithLevel(slog.LevelWarn))

	ctx := context.Background()
	l.Debug(ctx, "debug-line")
	l.Info(ctx, "info-line")
	l.Warn(ctx, "warn-line", Error(errors.New("boom")))

	out := buf.String()
	if strings.Contains(out, "debug-line") || strings.Contains(out, "info-line") {
		t.Errorf("expected lower levels to be filtered, got %q", out)
	}
	if !strings.Contains(out, "warn-line") || !strings.Contains(out, "error=boom") {
		t.Errorf("expected warn line with error, got %q", out)
	}
}

func TestLoggerNamed(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(WithWriter(&buf))

	named := l.Named("collector")
	if named == nil {
		t.Fatal("named logger is nil")
	}
	named.Info(context.Background(), "test message")

	if !strings.Contains(buf.String(), "component=collector") {
		t.Errorf("expected component attribute, got %q", buf.String())
	}
}

func TestLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airdrop.log")
	var buf bytes.Buffer
	l, closeFn := New(WithWriter(&buf), WithFile(path))

	l.Info(context.Background(), "to both sinks")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), "to both sinks") {
		t.Errorf("expected file to contain record, got %q", string(b))
	}
	if !strings.Contains(buf.String(), "to both sinks") {
		t.Errorf("expected writer to contain record, got %q", buf.String())
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error(context.Background(), "discarded")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q): unexpected error %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}
