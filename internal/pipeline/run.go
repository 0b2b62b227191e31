package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"upscaler/internal/config"
	"upscaler/internal/fileutil"
	"upscaler/internal/logging"
	"upscaler/internal/progress"
	"upscaler/internal/services"
	"upscaler/internal/stageexec"
	"upscaler/internal/stages"
	"upscaler/internal/workspace"
)

// plan captures the branch decisions made before the workspace exists.
type plan struct {
	video       bool
	interpolate bool
	steps       int
}

// Run executes the pipeline. The workspace is released exactly once on every
// return path; stage errors are returned unmodified.
func (p *Pipeline) Run(ctx context.Context) (result Result, err error) {
	started := p.now()
	result.Output = p.cfg.Output

	pl, err := p.plan()
	if err != nil {
		return result, err
	}

	ws, err := p.handle.Create(p.cfg.WorkspaceDir, p.cfg.Codec.StagingExt, p.cfg.KeepWorkspace)
	if err != nil {
		return result, err
	}
	result.Workspace = ws.Root

	runID := filepath.Base(ws.Root)
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, p.logger)

	defer func() {
		decision, releaseErr := p.handle.Release()
		result.Preserved = decision.Preserved
		if releaseErr != nil && err == nil {
			// The output exists; a leftover workspace is only logged by the handle.
			logger.Debug("workspace release failed after successful run", logging.Error(releaseErr))
		}
		result.Duration = p.now().Sub(started)
	}()

	logger.Info("upscale started",
		logging.String("input", p.cfg.Input),
		logging.String("output", p.cfg.Output),
		logging.String("workspace", ws.Root),
		logging.String("profile", p.cfg.Profile.String()),
		logging.Int("scale", p.cfg.Scale),
		logging.String("target_fps", p.cfg.TargetFPS),
		logging.Bool("video", pl.video),
		logging.Bool("rife", pl.interpolate),
		logging.String(logging.FieldEventType, "run_start"),
	)

	step := 0
	next := func(stage stages.Stage) stageexec.Options {
		step++
		return stageexec.Options{Logger: logger, Runner: p.runner, Stage: stage, Step: step, Steps: pl.steps}
	}

	probeOut, err := stageexec.Capture(ctx, next(stages.Probe(p.cfg)), p.runner)
	if err != nil {
		return result, err
	}
	sourceRate := stages.SourceRate(probeOut)
	logger.Info("source frame rate", logging.String("rate", sourceRate))

	var sourceFPS float64
	if pl.video {
		sourceFPS, err = config.ParseRate(sourceRate)
		if err != nil {
			return result, services.Wrap(services.ErrMissingArtifact, stages.LabelProbe, "frame rate",
				fmt.Sprintf("ffprobe reported no usable frame rate for %s", p.cfg.Input), err)
		}
	}

	if err := stageexec.Run(ctx, next(stages.Extract(p.cfg, ws))); err != nil {
		return result, err
	}
	frames, err := progress.CountArtifacts(ws.LRFrames)
	if err != nil {
		return result, services.Wrap(services.ErrWorkspace, stages.LabelExtract, "count frames", ws.LRFrames, err)
	}
	if frames == 0 {
		return result, services.Wrap(services.ErrMissingArtifact, stages.LabelExtract, "count frames",
			"no frames were extracted from "+p.cfg.Input, nil)
	}
	result.Frames = frames
	logger.Info("frames extracted", logging.Int("frames", frames))

	if err := p.runUpscale(ctx, next(stages.Upscale(p.cfg, ws)), ws, frames); err != nil {
		return result, err
	}

	if !pl.video {
		step++
		if err := p.copyStill(logger, ws, step, pl.steps); err != nil {
			return result, err
		}
		p.verify(ctx, logger, &result)
		p.logComplete(logger, result, started)
		return result, nil
	}

	framesDir := ws.HRFrames
	if pl.interpolate {
		count := stages.InterpolatedCount(frames, sourceFPS, p.cfg.TargetRate)
		if err := stageexec.Run(ctx, next(stages.Interpolate(p.cfg, ws, count))); err != nil {
			return result, err
		}
		produced, err := progress.CountArtifacts(ws.InterpFrames)
		if err != nil || produced == 0 {
			return result, services.Wrap(services.ErrMissingArtifact, stages.LabelInterpolate, "count frames",
				"interpolation produced no frames", err)
		}
		framesDir = ws.InterpFrames
		result.Interpolated = true
	}

	if err := stageexec.Run(ctx, next(stages.Encode(p.cfg, ws, framesDir, sourceRate, result.Interpolated))); err != nil {
		return result, err
	}
	if err := stageexec.Run(ctx, next(stages.Mux(p.cfg, ws))); err != nil {
		return result, err
	}
	p.verify(ctx, logger, &result)

	p.logComplete(logger, result, started)
	return result, nil
}

// plan decides the branch and resolves the optional interpolation binary.
// In strict mode a missing binary is a configuration error raised before
// any workspace exists.
func (p *Pipeline) plan() (plan, error) {
	pl := plan{video: stages.IsVideo(p.cfg.Input)}
	if !pl.video {
		pl.steps = 4
		return pl, nil
	}
	pl.steps = 5
	if !p.cfg.UseRIFE {
		return pl, nil
	}
	if _, err := p.lookPath(p.cfg.Tools.RIFE); err != nil {
		if p.cfg.RIFEStrict {
			return pl, services.Wrap(services.ErrConfiguration, stages.LabelInterpolate, "resolve binary",
				fmt.Sprintf("%s not found and interpolate.strict is set", p.cfg.Tools.RIFE), err)
		}
		logging.WarnWithContext(p.logger, "interpolation binary not found; using ffmpeg minterpolate", "rife_fallback",
			logging.String("binary", p.cfg.Tools.RIFE),
			logging.String(logging.FieldErrorHint, "install rife-ncnn-vulkan or set RIFE_PATH"),
			logging.String(logging.FieldImpact, "frames are interpolated by the slower minterpolate filter"),
		)
		return pl, nil
	}
	pl.interpolate = true
	pl.steps = 6
	return pl, nil
}

// runUpscale runs the upscale stage with the progress monitor attached. The
// monitor's final render finishes before this returns.
func (p *Pipeline) runUpscale(ctx context.Context, opts stageexec.Options, ws *workspace.Workspace, frames int) error {
	monitor := progress.Monitor{
		Dir:      ws.HRFrames,
		Total:    frames,
		Interval: p.cfg.ProgressInterval,
		Renderer: p.newRenderer(stages.LabelUpscale, frames),
	}
	var session *progress.Session
	opts.OnStart = func() { session = monitor.Start(ctx) }
	opts.OnFinish = func(err error) {
		if session != nil {
			session.Stop(err == nil)
		}
	}
	return stageexec.Run(ctx, opts)
}

// copyStill copies the first upscaled frame to the output for image inputs.
func (p *Pipeline) copyStill(logger *slog.Logger, ws *workspace.Workspace, step, steps int) error {
	stageLogger := logger.With(logging.String(logging.FieldStage, stages.LabelCopy))
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("step", fmt.Sprintf("%d/%d", step, steps)),
	)

	first, err := fileutil.FirstArtifact(ws.HRFrames, ".png")
	if err != nil {
		return services.Wrap(services.ErrMissingArtifact, stages.LabelCopy, "find frame", ws.HRFrames, err)
	}
	if first == "" {
		return services.Wrap(services.ErrMissingArtifact, stages.LabelCopy, "find frame",
			"no upscaled frames found in "+ws.HRFrames, nil)
	}
	if err := fileutil.CopyFileVerified(first, p.cfg.Output); err != nil {
		return services.Wrap(services.ErrWorkspace, stages.LabelCopy, "write output", p.cfg.Output, err)
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("source", first),
	)
	return nil
}

// verify reads back the output's dimensions and frame rate. The output is
// already written, so a failure here is only a warning.
func (p *Pipeline) verify(ctx context.Context, logger *slog.Logger, result *Result) {
	stage := stages.Verify(p.cfg)
	out, err := p.runner.Capture(ctx, stage.Command)
	if err == nil {
		var info stages.OutputInfo
		if info, err = stages.ParseOutputInfo(out); err == nil {
			result.Width = info.Width
			result.Height = info.Height
			result.FrameRate = info.FrameRate
			logger.Info("output verified",
				logging.String(logging.FieldStage, stages.LabelVerify),
				logging.Int("width", info.Width),
				logging.Int("height", info.Height),
				logging.String("frame_rate", info.FrameRate),
				logging.String(logging.FieldEventType, "output_verified"),
			)
			return
		}
	}
	logging.WarnWithContext(logger, "could not read output stream info", "verify_failed",
		logging.String(logging.FieldStage, stages.LabelVerify),
		logging.String("output", p.cfg.Output),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "inspect the output with ffprobe"),
		logging.String(logging.FieldImpact, "resolution and frame rate not reported"),
	)
}

func (p *Pipeline) logComplete(logger *slog.Logger, result Result, started time.Time) {
	logger.Info("upscale finished",
		logging.String("output", result.Output),
		logging.Int("frames", result.Frames),
		logging.Bool("interpolated", result.Interpolated),
		logging.Int("width", result.Width),
		logging.Int("height", result.Height),
		logging.Duration("elapsed", p.now().Sub(started).Round(time.Second)),
		logging.String(logging.FieldEventType, "run_complete"),
	)
}
