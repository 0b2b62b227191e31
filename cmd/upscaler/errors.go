package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"

	"upscaler/internal/cmdrun"
	"upscaler/internal/services"
)

const stderrTailLines = 20

// errInterrupted is returned once the interrupt handler has taken over. The
// handler already printed the notice.
var errInterrupted = errors.New("interrupted")

// reportError prints the single red ERROR line and, for failed external
// tools, the tail of their stderr.
func reportError(out io.Writer, err error) {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, errInterrupted) {
		return
	}
	label := "ERROR"
	if kind := services.Kind(err); kind != "" && kind != "error" {
		label = fmt.Sprintf("ERROR (%s)", kind)
	}
	fmt.Fprintln(out, text.FgRed.Sprintf("%s: %v", label, firstLine(err.Error())))

	var execErr *cmdrun.ExecutionError
	if errors.As(err, &execErr) {
		if tail := cmdrun.Tail(execErr.Stderr, stderrTailLines); tail != "" {
			fmt.Fprintln(out, text.Faint.Sprintf("%s stderr:", execErr.Command.Name))
			fmt.Fprintln(out, tail)
		}
	}
}

func firstLine(msg string) string {
	line, _, _ := strings.Cut(msg, "\n")
	return line
}
