package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"upscaler/internal/cmdrun"
	"upscaler/internal/config"
	"upscaler/internal/deps"
	"upscaler/internal/interrupt"
	"upscaler/internal/logging"
	"upscaler/internal/pipeline"
	"upscaler/internal/preflight"
	"upscaler/internal/services"
	"upscaler/internal/stages"
	"upscaler/internal/workspace"
)

// runFlags holds the root command's per-run flags. Values only override the
// config file when the flag was set on the command line.
type runFlags struct {
	input     string
	output    string
	fps       string
	scale     int
	profile   string
	frames    int
	keepTemp  bool
	rife      bool
	tile      int
	model     string
	rifeModel string
	bitrate   string
	progress  string
}

func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.input, "input", "i", "", "Input video or image (required)")
	fs.StringVarP(&f.output, "output", "o", "", "Output file (default video-upscaled.mp4, .mov for the professional profile; <name>-upscaled.png for images)")
	fs.StringVar(&f.fps, "fps", "60", "Target frame rate (e.g. 60, 59.94, 60000/1001)")
	fs.IntVarP(&f.scale, "scale", "s", 4, "Upscale factor (1-4)")
	fs.StringVar(&f.profile, "profile", "default", "Encode profile: default (H.264), efficient (H.265), professional (ProRes)")
	fs.IntVar(&f.frames, "frames", 0, "Only process the first N frames (0 = all)")
	fs.BoolVar(&f.keepTemp, "keep-temp", false, "Keep the temp_upscale_* workspace after the run")
	fs.BoolVar(&f.rife, "rife", false, "Interpolate with rife-ncnn-vulkan instead of minterpolate")
	fs.IntVar(&f.tile, "tile", 256, "Real-ESRGAN tile size (0 = auto)")
	fs.StringVar(&f.model, "model", "realesrgan-x4plus", "Real-ESRGAN model name")
	fs.StringVar(&f.rifeModel, "rife-model", "rife-v4.6", "RIFE model directory name")
	fs.StringVar(&f.bitrate, "bitrate", "", "Video bitrate override (e.g. 20M)")
	fs.StringVar(&f.progress, "progress", "auto", "Progress display: auto, bar, log")
}

// apply copies changed flags onto cfg and revalidates it.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := func(name string) bool { return cmd.Flags().Changed(name) }
	if changed("fps") {
		cfg.Encode.TargetFPS = strings.TrimSpace(f.fps)
	}
	if changed("scale") {
		cfg.Upscale.Scale = f.scale
	}
	if changed("profile") {
		cfg.Encode.Profile = strings.ToLower(strings.TrimSpace(f.profile))
	}
	if changed("keep-temp") {
		cfg.Workspace.Keep = f.keepTemp
	}
	if changed("rife") {
		cfg.Interpolate.Enabled = f.rife
	}
	if changed("tile") {
		cfg.Upscale.TileSize = f.tile
	}
	if changed("model") {
		cfg.Upscale.Model = strings.TrimSpace(f.model)
	}
	if changed("rife-model") {
		cfg.Interpolate.Model = strings.TrimSpace(f.rifeModel)
	}
	if changed("bitrate") {
		cfg.Encode.Bitrate = strings.TrimSpace(f.bitrate)
	}
	if changed("progress") {
		cfg.Progress.Style = strings.ToLower(strings.TrimSpace(f.progress))
	}
	return cfg.Validate()
}

// request builds the per-run request. Without -o, still images are written
// as <name>-upscaled.png in the working directory, matching the PNG frames
// the upscaler emits; videos are left for Resolve to name after the profile.
func (f *runFlags) request(cmd *cobra.Command) config.Request {
	output := f.output
	if !cmd.Flags().Changed("output") {
		output = ""
		if !stages.IsVideo(f.input) {
			base := filepath.Base(f.input)
			output = strings.TrimSuffix(base, filepath.Ext(base)) + "-upscaled.png"
		}
	}
	return config.Request{Input: f.input, Output: output, FrameLimit: f.frames}
}

func runUpscale(cmd *cobra.Command, ctx *commandContext, flags runFlags) error {
	loaded, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	cfg := *loaded
	if err := flags.apply(cmd, &cfg); err != nil {
		return err
	}

	pcfg, err := config.Resolve(&cfg, flags.request(cmd))
	if err != nil {
		return err
	}

	logger, err := ctx.logger(cmd, &cfg)
	if err != nil {
		return err
	}

	if failed := preflight.Failed(preflight.RunAll(cmd.Context(), &cfg, pcfg.Output)); len(failed) > 0 {
		details := make([]string, 0, len(failed))
		for _, result := range failed {
			details = append(details, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
		return services.Wrap(services.ErrConfiguration, "preflight", "directories", strings.Join(details, "; "), nil)
	}

	if missing := deps.Missing(preflight.CheckBinaries(&cfg)); len(missing) > 0 {
		details := make([]string, 0, len(missing))
		for _, status := range missing {
			details = append(details, fmt.Sprintf("%s: %s", status.Name, status.Detail))
		}
		return services.Wrap(services.ErrConfiguration, "preflight", "dependencies",
			strings.Join(details, "; ")+" (run 'upscaler check' for details)", nil)
	}

	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	handle := workspace.NewHandle(logging.NewComponentLogger(logger, "workspace"))
	handler := interrupt.Install(interrupt.Options{
		Handle:  handle,
		Logger:  logger,
		Out:     cmd.ErrOrStderr(),
		Signals: ctx.interrupts.signals,
		Cancel:  cancel,
		Exit:    ctx.interrupts.exit,
	})
	defer handler.Stop()

	result, err := pipeline.New(pcfg,
		pipeline.WithLogger(logger),
		pipeline.WithHandle(handle),
	).Run(runCtx)
	if err != nil {
		if !handler.Running() || cmdrun.Interrupted(err) {
			return awaitInterrupt(handler, err)
		}
		if result.Preserved {
			fmt.Fprintf(cmd.ErrOrStderr(), "Workspace kept at %s\n", result.Workspace)
		}
		return err
	}

	reportSuccess(cmd.OutOrStdout(), result)
	return nil
}

// interruptGrace bounds the wait for a signal that killed a child but has
// not reached the handler yet.
const interruptGrace = 2 * time.Second

// awaitInterrupt leaves teardown and the exit status to the interrupt
// handler. With the real exit hook the process ends while waiting.
func awaitInterrupt(handler *interrupt.Handler, err error) error {
	select {
	case <-handler.Done():
		if !handler.Running() {
			return errInterrupted
		}
		return err
	case <-time.After(interruptGrace):
		return err
	}
}

func reportSuccess(out io.Writer, result pipeline.Result) {
	fmt.Fprintln(out, text.FgGreen.Sprintf("SUCCESS: wrote %s (%d frames in %s)",
		result.Output, result.Frames, result.Duration.Round(time.Second)))
	if result.Width > 0 && result.Height > 0 {
		fmt.Fprintf(out, "Resolution: %dx%d\n", result.Width, result.Height)
	}
	if result.FrameRate != "" {
		fmt.Fprintf(out, "Frame rate: %s\n", result.FrameRate)
	}
	if result.Preserved {
		fmt.Fprintf(out, "Workspace kept at %s\n", result.Workspace)
	}
}
