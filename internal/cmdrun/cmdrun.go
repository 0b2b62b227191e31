package cmdrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"upscaler/internal/services"
)

const stderrTailLines = 20

// Command is an executable plus its arguments. Args never pass through a shell.
type Command struct {
	Name string
	Args []string
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quoteArg(c.Name))
	for _, arg := range c.Args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

func quoteArg(arg string) string {
	if arg == "" {
		return `""`
	}
	if strings.ContainsAny(arg, " \t\"'") {
		return fmt.Sprintf("%q", arg)
	}
	return arg
}

// ExecutionError reports a failed external command.
type ExecutionError struct {
	// ExitCode is the process exit status, or -1 when the process never
	// started or was killed by a signal.
	ExitCode int
	// Signal is the signal that killed the process, or 0.
	Signal  syscall.Signal
	Command Command
	Stderr  string
	Err     error
}

func (e *ExecutionError) Error() string {
	var b strings.Builder
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, "command failed with exit code %d: %s", e.ExitCode, e.Command)
	} else if e.Err != nil {
		fmt.Fprintf(&b, "command failed (%v): %s", e.Err, e.Command)
	} else {
		fmt.Fprintf(&b, "command failed: %s", e.Command)
	}
	if tail := Tail(e.Stderr, stderrTailLines); tail != "" {
		b.WriteString(": ")
		b.WriteString(tail)
	}
	return b.String()
}

// Unwrap exposes the underlying exec error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, services.ErrExternalTool) match execution failures.
func (e *ExecutionError) Is(target error) bool {
	return target == services.ErrExternalTool
}

// Interrupted reports whether err comes from a command killed by SIGINT or
// SIGTERM, the signals a terminal or service manager sends to the whole
// process group.
func Interrupted(err error) bool {
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		return false
	}
	return execErr.Signal == syscall.SIGINT || execErr.Signal == syscall.SIGTERM
}

// Runner executes commands. The zero value writes to the process stdout/stderr.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// New returns a Runner bound to the process standard streams.
func New() *Runner {
	return &Runner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes cmd and waits for it to finish. When quiet is false stdout is
// forwarded and stderr is tee'd; stderr is captured either way.
func (r *Runner) Run(ctx context.Context, cmd Command, quiet bool) error {
	if strings.TrimSpace(cmd.Name) == "" {
		return &ExecutionError{ExitCode: -1, Command: cmd, Err: errors.New("empty command name")}
	}
	proc := exec.CommandContext(ctx, cmd.Name, cmd.Args...)

	var stderrBuf bytes.Buffer
	if quiet {
		proc.Stdout = io.Discard
		proc.Stderr = &stderrBuf
	} else {
		proc.Stdout = r.stdout()
		proc.Stderr = io.MultiWriter(&stderrBuf, r.stderr())
	}

	if err := proc.Run(); err != nil {
		return newExecutionError(cmd, stderrBuf.String(), err)
	}
	return nil
}

// Capture executes cmd and returns its stdout with trailing newlines removed.
func (r *Runner) Capture(ctx context.Context, cmd Command) (string, error) {
	if strings.TrimSpace(cmd.Name) == "" {
		return "", &ExecutionError{ExitCode: -1, Command: cmd, Err: errors.New("empty command name")}
	}
	proc := exec.CommandContext(ctx, cmd.Name, cmd.Args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	proc.Stdout = &stdoutBuf
	proc.Stderr = &stderrBuf

	if err := proc.Run(); err != nil {
		return "", newExecutionError(cmd, stderrBuf.String(), err)
	}
	return strings.TrimRight(stdoutBuf.String(), "\r\n"), nil
}

func (r *Runner) stdout() io.Writer {
	if r == nil || r.Stdout == nil {
		return os.Stdout
	}
	return r.Stdout
}

func (r *Runner) stderr() io.Writer {
	if r == nil || r.Stderr == nil {
		return os.Stderr
	}
	return r.Stderr
}

func newExecutionError(cmd Command, stderr string, err error) *ExecutionError {
	code := -1
	var sig syscall.Signal
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// ExitCode is -1 for signal deaths.
		code = exitErr.ExitCode()
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			sig = status.Signal()
		}
	}
	return &ExecutionError{
		ExitCode: code,
		Signal:   sig,
		Command:  cmd,
		Stderr:   stderr,
		Err:      err,
	}
}

// Tail returns the last n non-empty lines of output, trimmed.
func Tail(output string, n int) string {
	output = strings.TrimSpace(output)
	if output == "" || n <= 0 {
		return ""
	}
	lines := strings.Split(output, "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		line := strings.TrimRight(lines[i], "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, "\n")
}
