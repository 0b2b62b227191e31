// Package stages builds the external commands for each pipeline stage.
// Builders are pure: they read the resolved configuration and workspace paths
// and never touch the filesystem.
package stages

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"upscaler/internal/cmdrun"
	"upscaler/internal/config"
	"upscaler/internal/workspace"
)

// Stage labels.
const (
	LabelProbe       = "probe"
	LabelExtract     = "extract"
	LabelUpscale     = "upscale"
	LabelInterpolate = "interpolate"
	LabelEncode      = "encode"
	LabelMux         = "mux"
	LabelCopy        = "copy"
	LabelVerify      = "verify"
)

// Stage is a named external command. Quiet suppresses the tool's stdout.
type Stage struct {
	Label   string
	Command cmdrun.Command
	Quiet   bool
}

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mkv":  {},
	".mov":  {},
	".avi":  {},
	".webm": {},
	".m4v":  {},
}

// IsVideo reports whether path names a video container. Anything else is
// treated as a still image.
func IsVideo(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Probe queries the first video stream's native frame rate.
func Probe(cfg config.PipelineConfig) Stage {
	return Stage{
		Label: LabelProbe,
		Command: cmdrun.Command{
			Name: cfg.Tools.FFprobe,
			Args: []string{
				"-v", "0",
				"-of", "csv=p=0",
				"-select_streams", "v:0",
				"-show_entries", "stream=r_frame_rate",
				cfg.Input,
			},
		},
		Quiet: true,
	}
}

// SourceRate extracts the frame rate from probe output. Only the first line
// is meaningful; an empty result (still images with no rate) yields "".
func SourceRate(output string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	return strings.TrimSpace(strings.TrimRight(line, "\r,"))
}

// Verify reads the dimensions and frame rate of the finished output.
func Verify(cfg config.PipelineConfig) Stage {
	return Stage{
		Label: LabelVerify,
		Command: cmdrun.Command{
			Name: cfg.Tools.FFprobe,
			Args: []string{
				"-v", "error",
				"-select_streams", "v:0",
				"-show_entries", "stream=width,height,r_frame_rate",
				"-of", "csv=p=0",
				cfg.Output,
			},
		},
		Quiet: true,
	}
}

// OutputInfo describes the first video stream of a finished output.
type OutputInfo struct {
	Width     int
	Height    int
	FrameRate string
}

// ParseOutputInfo parses "width,height,rate" as printed by the Verify stage.
// Still images report a rate of 0/0, which is returned as "".
func ParseOutputInfo(output string) (OutputInfo, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 2 {
		return OutputInfo{}, fmt.Errorf("unexpected stream info %q", line)
	}
	width, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil || width <= 0 {
		return OutputInfo{}, fmt.Errorf("invalid width in %q", line)
	}
	height, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil || height <= 0 {
		return OutputInfo{}, fmt.Errorf("invalid height in %q", line)
	}
	info := OutputInfo{Width: width, Height: height}
	if len(fields) > 2 {
		if rate := strings.TrimSpace(fields[2]); rate != "0/0" {
			info.FrameRate = rate
		}
	}
	return info, nil
}

// Extract decomposes the input into numbered PNG frames in the low-res directory.
func Extract(cfg config.PipelineConfig, ws *workspace.Workspace) Stage {
	args := []string{"-y", "-i", cfg.Input, "-qscale:v", "2"}
	if cfg.FrameLimit > 0 {
		args = append(args, "-frames:v", strconv.Itoa(cfg.FrameLimit))
	}
	args = append(args, workspace.FramePath(ws.LRFrames))
	return Stage{
		Label:   LabelExtract,
		Command: cmdrun.Command{Name: cfg.Tools.FFmpeg, Args: args},
		Quiet:   true,
	}
}

// Upscale runs the super-resolution tool over the low-res frames.
func Upscale(cfg config.PipelineConfig, ws *workspace.Workspace) Stage {
	return Stage{
		Label: LabelUpscale,
		Command: cmdrun.Command{
			Name: cfg.Tools.RealESRGAN,
			Args: []string{
				"-i", ws.LRFrames,
				"-o", ws.HRFrames,
				"-n", cfg.UpscaleModel,
				"-s", strconv.Itoa(cfg.Scale),
				"-t", strconv.Itoa(cfg.TileSize),
				"-f", "png",
			},
		},
		// The progress monitor reports on this stage; the tool's own per-frame
		// chatter would interleave with it.
		Quiet: true,
	}
}

// InterpolatedCount returns how many frames interpolation should produce to
// reach the target rate, or 0 when the source rate is unknown.
func InterpolatedCount(frames int, sourceRate, targetRate float64) int {
	if frames <= 0 || sourceRate <= 0 || targetRate <= 0 {
		return 0
	}
	return int(math.Ceil(float64(frames) * targetRate / sourceRate))
}

// Interpolate runs the motion-interpolation tool over the high-res frames.
// targetCount of 0 leaves the tool at its default (double the input).
func Interpolate(cfg config.PipelineConfig, ws *workspace.Workspace, targetCount int) Stage {
	args := []string{
		"-i", ws.HRFrames,
		"-o", ws.InterpFrames,
		"-m", cfg.RIFEModel,
	}
	if targetCount > 0 {
		args = append(args, "-n", strconv.Itoa(targetCount))
	}
	return Stage{
		Label:   LabelInterpolate,
		Command: cmdrun.Command{Name: cfg.Tools.RIFE, Args: args},
	}
}

// MinterpolateFilter is the motion-compensated frame-rate conversion used
// when frames were not interpolated beforehand.
func MinterpolateFilter(targetFPS string) string {
	return fmt.Sprintf("minterpolate=fps=%s:mi_mode=mci:mc_mode=aobmc:me_mode=bidir:vsbmc=1", targetFPS)
}

// Encode assembles frames from framesDir into the silent staging video. When
// interpolated is false the frames play at sourceRate and the minterpolate
// filter converts to the target; otherwise they play at the target directly.
func Encode(cfg config.PipelineConfig, ws *workspace.Workspace, framesDir, sourceRate string, interpolated bool) Stage {
	rate := sourceRate
	if interpolated || strings.TrimSpace(rate) == "" {
		rate = cfg.TargetFPS
	}

	args := []string{"-y", "-framerate", rate, "-i", workspace.FramePath(framesDir)}
	if !interpolated {
		args = append(args, "-vf", MinterpolateFilter(cfg.TargetFPS))
	}

	codec := cfg.Codec
	if codec.Codec == "" {
		codec = cfg.Profile.Settings()
	}
	args = append(args, "-c:v", codec.Codec)
	args = append(args, codec.Args...)
	if codec.HasBitrate() {
		args = append(args, "-b:v", codec.Bitrate)
	}
	args = append(args, "-pix_fmt", codec.PixelFormat, "-an", ws.Staging)

	return Stage{
		Label:   LabelEncode,
		Command: cmdrun.Command{Name: cfg.Tools.FFmpeg, Args: args},
		Quiet:   true,
	}
}

// Mux copies the encoded video and the source's first audio stream (if any)
// into the output, trimmed to the shorter stream.
func Mux(cfg config.PipelineConfig, ws *workspace.Workspace) Stage {
	codec := cfg.Codec
	if codec.AudioCodec == "" {
		codec = cfg.Profile.Settings()
	}
	return Stage{
		Label: LabelMux,
		Command: cmdrun.Command{
			Name: cfg.Tools.FFmpeg,
			Args: []string{
				"-y",
				"-i", ws.Staging,
				"-i", cfg.Input,
				"-c:v", "copy",
				"-c:a", codec.AudioCodec,
				"-map", "0:v:0",
				"-map", "1:a:0?",
				"-shortest",
				cfg.Output,
			},
		},
		Quiet: true,
	}
}
