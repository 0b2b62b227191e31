// Package interrupt tears the active workspace down when the process is
// interrupted and exits with the signal number.
//
// The handler releases the workspace through the shared handle, cancels the
// run context so running external tools are killed, and exits.
package interrupt

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/sys/unix"

	"upscaler/internal/logging"
	"upscaler/internal/workspace"
)

// Options configures Install.
type Options struct {
	Handle *workspace.Handle
	Logger *slog.Logger
	// Out receives the operator notice; defaults to stderr.
	Out io.Writer
	// Signals replaces OS signal delivery when set.
	Signals <-chan os.Signal
	// Cancel, when set, is called after the workspace is released.
	Cancel func()
	// Exit replaces os.Exit when set.
	Exit func(code int)
}

// Handler is an installed interrupt handler.
type Handler struct {
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	notify  chan os.Signal
}

// Install starts listening for SIGINT and SIGTERM.
func Install(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Out == nil {
		opts.Out = os.Stderr
	}
	if opts.Exit == nil {
		opts.Exit = os.Exit
	}

	h := &Handler{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	h.running.Store(true)

	signals := opts.Signals
	if signals == nil {
		h.notify = make(chan os.Signal, 1)
		signal.Notify(h.notify, unix.SIGINT, unix.SIGTERM)
		signals = h.notify
	}

	go h.wait(signals, opts)
	return h
}

// Running reports false once an interrupt has been received.
func (h *Handler) Running() bool {
	return h.running.Load()
}

// Stop unregisters the handler. It does not wait for an in-progress teardown.
func (h *Handler) Stop() {
	h.once.Do(func() {
		if h.notify != nil {
			signal.Stop(h.notify)
		}
		close(h.stop)
	})
}

// Done is closed when the handler goroutine exits.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

func (h *Handler) wait(signals <-chan os.Signal, opts Options) {
	defer close(h.done)
	select {
	case <-h.stop:
		return
	case sig := <-signals:
		h.handle(sig, opts)
	}
}

func (h *Handler) handle(sig os.Signal, opts Options) {
	h.running.Store(false)

	var decision workspace.Decision
	if opts.Handle != nil {
		// The process is about to exit; a failed removal is not reported.
		decision, _ = opts.Handle.Release()
	}
	if opts.Cancel != nil {
		opts.Cancel()
	}

	opts.Logger.Warn("interrupted",
		logging.String("signal", signalName(sig)),
		logging.String("workspace", decision.Path),
		logging.Bool("workspace_preserved", decision.Preserved),
		logging.String(logging.FieldEventType, "interrupted"),
		logging.String(logging.FieldErrorHint, "rerun the command to start over"),
		logging.String(logging.FieldImpact, "run aborted"),
	)

	notice := fmt.Sprintf("Interrupted by %s.", signalName(sig))
	switch {
	case decision.Preserved:
		notice += " Workspace kept at " + decision.Path
	case decision.Removed:
		notice += " Workspace removed."
	}
	fmt.Fprintln(opts.Out, text.FgYellow.Sprint(notice))

	opts.Exit(ExitCode(sig))
}

// ExitCode maps a signal to the process exit status: its signal number.
func ExitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return int(s)
	}
	return 1
}

func signalName(sig os.Signal) string {
	if s, ok := sig.(syscall.Signal); ok {
		if name := unix.SignalName(s); name != "" {
			return name
		}
	}
	return sig.String()
}
