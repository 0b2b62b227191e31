package cmdrun_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"upscaler/internal/cmdrun"
	"upscaler/internal/services"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRunForwardsOutputWhenNotQuiet(t *testing.T) {
	script := writeScript(t, `echo "out:$1"; echo "warn" >&2`)
	var stdout, stderr bytes.Buffer
	runner := &cmdrun.Runner{Stdout: &stdout, Stderr: &stderr}

	if err := runner.Run(context.Background(), cmdrun.Command{Name: script, Args: []string{"a b"}}, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stdout.String() != "out:a b\n" {
		t.Fatalf("unexpected stdout %q", stdout.String())
	}
	if stderr.String() != "warn\n" {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestRunQuietDiscardsOutput(t *testing.T) {
	script := writeScript(t, `echo "noise"; echo "progress" >&2`)
	var stdout, stderr bytes.Buffer
	runner := &cmdrun.Runner{Stdout: &stdout, Stderr: &stderr}

	if err := runner.Run(context.Background(), cmdrun.Command{Name: script}, true); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stdout.Len() != 0 || stderr.Len() != 0 {
		t.Fatalf("quiet run leaked output: stdout=%q stderr=%q", stdout.String(), stderr.String())
	}
}

func TestRunFailureReturnsExecutionError(t *testing.T) {
	script := writeScript(t, `echo "model not found" >&2; exit 3`)
	runner := &cmdrun.Runner{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}

	err := runner.Run(context.Background(), cmdrun.Command{Name: script, Args: []string{"-n", "missing"}}, true)
	var execErr *cmdrun.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %T %v", err, err)
	}
	if execErr.ExitCode != 3 {
		t.Fatalf("unexpected exit code %d", execErr.ExitCode)
	}
	if !strings.Contains(execErr.Stderr, "model not found") {
		t.Fatalf("stderr not captured: %q", execErr.Stderr)
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatal("expected error to match ErrExternalTool")
	}
	if !strings.Contains(err.Error(), "-n missing") {
		t.Fatalf("error should include command line: %v", err)
	}
}

func TestRunSpawnFailure(t *testing.T) {
	runner := cmdrun.New()
	err := runner.Run(context.Background(), cmdrun.Command{Name: filepath.Join(t.TempDir(), "absent")}, true)
	var execErr *cmdrun.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if execErr.ExitCode != -1 {
		t.Fatalf("spawn failure should report -1, got %d", execErr.ExitCode)
	}
}

func TestRunSignalDeathReportsMinusOne(t *testing.T) {
	script := writeScript(t, `kill -TERM $$`)
	err := cmdrun.New().Run(context.Background(), cmdrun.Command{Name: script}, true)
	var execErr *cmdrun.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if execErr.ExitCode != -1 {
		t.Fatalf("signal death should report -1, got %d", execErr.ExitCode)
	}
	if execErr.Signal != syscall.SIGTERM || !cmdrun.Interrupted(err) {
		t.Fatalf("expected SIGTERM death to count as interrupted, got signal %v", execErr.Signal)
	}
}

func TestInterruptedIgnoresOrdinaryFailures(t *testing.T) {
	err := cmdrun.New().Run(context.Background(), cmdrun.Command{Name: writeScript(t, "exit 2")}, true)
	if err == nil || cmdrun.Interrupted(err) {
		t.Fatalf("exit status 2 is not an interrupt: %v", err)
	}
	if cmdrun.Interrupted(errors.New("plain")) {
		t.Fatal("non-execution errors are not interrupts")
	}
}

func TestCaptureStripsTrailingNewlines(t *testing.T) {
	script := writeScript(t, `printf '24/1\r\n'`)
	out, err := cmdrun.New().Capture(context.Background(), cmdrun.Command{Name: script})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if out != "24/1" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestTail(t *testing.T) {
	got := cmdrun.Tail("a\n\nb\nc\n\n", 2)
	if got != "b\nc" {
		t.Fatalf("unexpected tail %q", got)
	}
	if cmdrun.Tail("   ", 3) != "" {
		t.Fatal("expected empty tail")
	}
}

func TestCommandString(t *testing.T) {
	cmd := cmdrun.Command{Name: "ffmpeg", Args: []string{"-i", "my clip.mp4", ""}}
	if got := cmd.String(); got != `ffmpeg -i "my clip.mp4" ""` {
		t.Fatalf("unexpected rendering %q", got)
	}
}
