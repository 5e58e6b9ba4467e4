package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chojs23/runme/internal/cmdline"
	"github.com/chojs23/runme/internal/domain"
)

func hostLine(t *testing.T, text string) domain.CommandLine {
	t.Helper()
	lines := cmdline.Split([]string{text})
	if len(lines) != 1 {
		t.Fatalf("Split(%q) produced %d lines", text, len(lines))
	}
	return lines[0]
}

func prepareHost(t *testing.T, cfg Config) (*Host, Handle) {
	t.Helper()
	if cfg.WorkDir == "" {
		cfg.WorkDir = t.TempDir()
	}
	h := NewHost(cfg, nil)
	handle, err := h.Prepare(context.Background())
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	return h, handle
}

func TestHost_RunLine(t *testing.T) {
	h, handle := prepareHost(t, DefaultConfig())

	tests := []struct {
		line       string
		wantExit   int
		wantStdout string
		wantStderr string
	}{
		{line: `echo "hello"`, wantExit: 0, wantStdout: "hello\n"},
		{line: "false", wantExit: 1},
		{line: `sh -c "exit 3"`, wantExit: 3},
		{line: `sh -c "echo oops >&2"`, wantExit: 0, wantStderr: "oops\n"},
		{line: "echo a | wc -l", wantExit: 0, wantStdout: "a | wc -l\n"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			res, err := h.RunLine(context.Background(), handle, hostLine(t, tt.line))
			if err != nil {
				t.Fatalf("RunLine() error = %v", err)
			}
			if res.ExitCode != tt.wantExit {
				t.Errorf("ExitCode = %d, want %d", res.ExitCode, tt.wantExit)
			}
			if res.Stdout != tt.wantStdout {
				t.Errorf("Stdout = %q, want %q", res.Stdout, tt.wantStdout)
			}
			if res.Stderr != tt.wantStderr {
				t.Errorf("Stderr = %q, want %q", res.Stderr, tt.wantStderr)
			}
			if res.Command != tt.line {
				t.Errorf("Command = %q, want %q", res.Command, tt.line)
			}
		})
	}
}

func TestHost_WorkDir(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.WorkDir = dir
	h, handle := prepareHost(t, cfg)

	res, err := h.RunLine(context.Background(), handle, hostLine(t, "pwd"))
	if err != nil {
		t.Fatal(err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(res.Stdout))
	if got != want {
		t.Errorf("pwd = %q, want %q", got, want)
	}
}

func TestHost_CommandNotFound(t *testing.T) {
	h, handle := prepareHost(t, DefaultConfig())

	_, err := h.RunLine(context.Background(), handle, hostLine(t, "runme-no-such-binary --version"))
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("RunLine() error = %v, want ErrBinaryNotFound", err)
	}
	if !IsSandboxError(err) {
		t.Errorf("error %v should be a sandbox error", err)
	}
	if !strings.Contains(err.Error(), "runme-no-such-binary") {
		t.Errorf("error %q should name the missing binary", err)
	}
}

func TestHost_PermissionDenied(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "script.sh"), []byte("#!/bin/sh\necho hi\n"), 0644)

	cfg := DefaultConfig()
	cfg.WorkDir = dir
	h, handle := prepareHost(t, cfg)

	_, err := h.RunLine(context.Background(), handle, hostLine(t, "./script.sh"))
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("RunLine() error = %v, want ErrPermissionDenied", err)
	}
	if !IsSandboxError(err) {
		t.Errorf("error %v should be a sandbox error", err)
	}
}

func TestHost_Timeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 100 * time.Millisecond
	h, handle := prepareHost(t, cfg)

	start := time.Now()
	res, err := h.RunLine(context.Background(), handle, hostLine(t, "sleep 5"))
	if err != nil {
		t.Fatalf("RunLine() error = %v", err)
	}
	if !res.TimedOut {
		t.Error("TimedOut should be true")
	}
	if res.ExitCode != domain.NoExitCode {
		t.Errorf("ExitCode = %d, want %d", res.ExitCode, domain.NoExitCode)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout took %s, process was not killed", elapsed)
	}
}

func TestHost_Interrupted(t *testing.T) {
	h, handle := prepareHost(t, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	res, err := h.RunLine(ctx, handle, hostLine(t, "sleep 5"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunLine() error = %v, want context.Canceled", err)
	}
	if res.Error != "interrupted" {
		t.Errorf("Error = %q, want interrupted", res.Error)
	}
}

func TestHost_LexErrorNotExecuted(t *testing.T) {
	h, handle := prepareHost(t, DefaultConfig())

	res, err := h.RunLine(context.Background(), handle, hostLine(t, `echo "unterminated`))
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != domain.NoExitCode || res.Error == "" {
		t.Errorf("result = %+v, want lex failure", res)
	}
	if res.Stdout != "" {
		t.Errorf("Stdout = %q, line should not have run", res.Stdout)
	}
}

func TestHost_NotPrepared(t *testing.T) {
	h := NewHost(DefaultConfig(), nil)
	_, err := h.RunLine(context.Background(), nil, hostLine(t, "true"))
	if !errors.Is(err, ErrNotPrepared) {
		t.Errorf("RunLine() error = %v, want ErrNotPrepared", err)
	}
}

func TestHost_PrepareMissingDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkDir = filepath.Join(t.TempDir(), "missing")
	_, err := NewHost(cfg, nil).Prepare(context.Background())
	if !IsSandboxError(err) {
		t.Errorf("Prepare() error = %v, want sandbox error", err)
	}
}
