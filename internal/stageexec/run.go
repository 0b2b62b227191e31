package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"upscaler/internal/cmdrun"
	"upscaler/internal/logging"
	"upscaler/internal/services"
	"upscaler/internal/stages"
)

// Runner is the command contract used by the execution helper.
type Runner interface {
	Run(ctx context.Context, cmd cmdrun.Command, quiet bool) error
}

// Capturer runs a command and returns its stdout.
type Capturer interface {
	Capture(ctx context.Context, cmd cmdrun.Command) (string, error)
}

// Options controls stage execution.
type Options struct {
	Logger *slog.Logger
	Runner Runner
	Stage  stages.Stage
	// Step and Steps place the stage in the run ("2/5"); zero hides the position.
	Step  int
	Steps int
	// OnStart runs just before the command starts. OnFinish always runs after
	// it returns, before Run logs the outcome, and receives the command error.
	OnStart  func()
	OnFinish func(err error)
}

// Run executes a stage with start/complete/failure logging.
func Run(ctx context.Context, opts Options) error {
	if opts.Runner == nil {
		return fmt.Errorf("command runner unavailable: %s", opts.Stage.Label)
	}
	if strings.TrimSpace(opts.Stage.Command.Name) == "" {
		return services.Wrap(services.ErrConfiguration, opts.Stage.Label, "run", "stage has no command", nil)
	}

	stageCtx := logging.WithStage(ctx, opts.Stage.Label)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("stage_label", Label(opts.Stage.Label)),
		logging.String("command", opts.Stage.Command.String()),
	}
	if opts.Steps > 0 {
		attrs = append(attrs, logging.String("step", fmt.Sprintf("%d/%d", opts.Step, opts.Steps)))
	}
	stageLogger.Info("stage started", logging.Args(attrs...)...)

	if opts.OnStart != nil {
		opts.OnStart()
	}
	started := time.Now()
	err := opts.Runner.Run(stageCtx, opts.Stage.Command, opts.Stage.Quiet)
	if opts.OnFinish != nil {
		opts.OnFinish(err)
	}
	elapsed := time.Since(started)

	if err != nil {
		if ctx.Err() != nil || cmdrun.Interrupted(err) {
			// The interrupt handler owns the operator notice and the exit.
			stageLogger.Info("stage interrupted",
				logging.String(logging.FieldEventType, "stage_interrupted"),
				logging.Duration("elapsed", elapsed.Round(time.Millisecond)),
			)
			return err
		}
		return handleFailure(stageLogger, opts.Stage, elapsed, err)
	}

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", elapsed.Round(time.Millisecond)),
	)
	return nil
}

// Capture executes a probe-style stage through capturer with the same
// logging as Run and returns the command's stdout.
func Capture(ctx context.Context, opts Options, capturer Capturer) (string, error) {
	if capturer == nil {
		return "", fmt.Errorf("command runner unavailable: %s", opts.Stage.Label)
	}
	var output string
	opts.Runner = runnerFunc(func(ctx context.Context, cmd cmdrun.Command, _ bool) error {
		out, err := capturer.Capture(ctx, cmd)
		output = out
		return err
	})
	if err := Run(ctx, opts); err != nil {
		return "", err
	}
	return output, nil
}

type runnerFunc func(ctx context.Context, cmd cmdrun.Command, quiet bool) error

func (f runnerFunc) Run(ctx context.Context, cmd cmdrun.Command, quiet bool) error {
	return f(ctx, cmd, quiet)
}

// handleFailure logs the failure and returns stageErr unmodified so callers
// can still reach *cmdrun.ExecutionError with errors.As.
func handleFailure(logger *slog.Logger, stage stages.Stage, elapsed time.Duration, stageErr error) error {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.Duration("elapsed", elapsed.Round(time.Millisecond)),
		logging.String(logging.FieldErrorHint, hintFor(stage, stageErr)),
		logging.Error(stageErr),
	}
	var execErr *cmdrun.ExecutionError
	if errors.As(stageErr, &execErr) {
		attrs = append(attrs, logging.Int("exit_code", execErr.ExitCode))
	}
	logging.ErrorWithContext(logger, "stage failed", "stage_failure", attrs...)
	return stageErr
}

func hintFor(stage stages.Stage, err error) string {
	var execErr *cmdrun.ExecutionError
	if errors.As(err, &execErr) && execErr.ExitCode == -1 && execErr.Signal == 0 && execErr.Stderr == "" {
		return fmt.Sprintf("verify %s is installed and executable (run 'upscaler check')", stage.Command.Name)
	}
	switch stage.Label {
	case stages.LabelUpscale, stages.LabelInterpolate:
		return "check the model name and GPU/Vulkan availability; a smaller --tile lowers memory use"
	case stages.LabelExtract, stages.LabelProbe:
		return "confirm the input is a readable media file"
	default:
		return fmt.Sprintf("see the %s stderr tail printed with the error", stage.Command.Name)
	}
}

var titleCaser = cases.Title(language.English)

// Label renders a stage name for operators ("upscale" -> "Upscale").
func Label(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if name == "" {
		return ""
	}
	return titleCaser.String(name)
}
