package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"upscaler/internal/services"
)

// Request carries the per-run values that never live in the config file.
type Request struct {
	Input      string
	Output     string
	FrameLimit int
}

// PipelineConfig is the resolved, immutable configuration for a single run.
type PipelineConfig struct {
	Input         string
	Output        string
	TargetFPS     string
	TargetRate    float64
	Scale         int
	Profile       Profile
	Codec         CodecSettings
	FrameLimit    int
	UseRIFE       bool
	RIFEStrict    bool
	KeepWorkspace bool
	TileSize      int
	UpscaleModel  string
	RIFEModel     string
	Tools         Tools
	WorkspaceDir  string

	ProgressInterval time.Duration
	ProgressStyle    string
}

// Resolve combines the loaded configuration with the run request. The input
// must name an existing regular file before any stage runs.
func Resolve(cfg *Config, req Request) (PipelineConfig, error) {
	if cfg == nil {
		defaults := Default()
		if err := defaults.normalize(); err != nil {
			return PipelineConfig{}, err
		}
		cfg = &defaults
	}

	input := strings.TrimSpace(req.Input)
	if input == "" {
		return PipelineConfig{}, services.Wrap(services.ErrConfiguration, "preflight", "input", "input path is required", nil)
	}
	info, err := os.Stat(input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return PipelineConfig{}, services.Wrap(services.ErrConfiguration, "preflight", "input",
				fmt.Sprintf("input file %q does not exist", input), nil)
		}
		return PipelineConfig{}, services.Wrap(services.ErrConfiguration, "preflight", "input", "stat input", err)
	}
	if info.IsDir() {
		return PipelineConfig{}, services.Wrap(services.ErrConfiguration, "preflight", "input",
			fmt.Sprintf("input %q is a directory", input), nil)
	}
	if req.FrameLimit < 0 {
		return PipelineConfig{}, services.Wrap(services.ErrConfiguration, "preflight", "frames", "frame limit must be >= 0", nil)
	}

	profile, err := ParseProfile(cfg.Encode.Profile)
	if err != nil {
		return PipelineConfig{}, err
	}
	targetRate, err := ParseRate(cfg.Encode.TargetFPS)
	if err != nil || targetRate <= 0 {
		return PipelineConfig{}, services.Wrap(services.ErrConfiguration, "preflight", "fps",
			fmt.Sprintf("invalid target frame rate %q", cfg.Encode.TargetFPS), err)
	}

	codec := profile.Settings()
	if codec.HasBitrate() && cfg.Encode.Bitrate != "" {
		codec.Bitrate = cfg.Encode.Bitrate
	}

	// The default output takes the profile's container.
	output := strings.TrimSpace(req.Output)
	if output == "" {
		output = defaultOutputStem + codec.StagingExt
	}
	if !codec.SupportsContainer(filepath.Ext(output)) {
		return PipelineConfig{}, services.Wrap(services.ErrConfiguration, "preflight", "output",
			fmt.Sprintf("the %s profile (%s) cannot be written to %q; use a %s output", profile, codec.Codec, output, codec.StagingExt), nil)
	}

	return PipelineConfig{
		Input:            input,
		Output:           output,
		TargetFPS:        cfg.Encode.TargetFPS,
		TargetRate:       targetRate,
		Scale:            cfg.Upscale.Scale,
		Profile:          profile,
		Codec:            codec,
		FrameLimit:       req.FrameLimit,
		UseRIFE:          cfg.Interpolate.Enabled,
		RIFEStrict:       cfg.Interpolate.Strict,
		KeepWorkspace:    cfg.Workspace.Keep,
		TileSize:         cfg.Upscale.TileSize,
		UpscaleModel:     cfg.Upscale.Model,
		RIFEModel:        cfg.Interpolate.Model,
		Tools:            cfg.Tools,
		WorkspaceDir:     cfg.Paths.WorkspaceDir,
		ProgressInterval: time.Duration(cfg.Progress.IntervalMS) * time.Millisecond,
		ProgressStyle:    cfg.Progress.Style,
	}, nil
}

// ParseRate parses a frame rate written either as a rational ("24000/1001")
// or a decimal ("29.97").
func ParseRate(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("empty frame rate")
	}
	if num, den, ok := strings.Cut(value, "/"); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return 0, fmt.Errorf("parse frame rate numerator %q: %w", num, err)
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil {
			return 0, fmt.Errorf("parse frame rate denominator %q: %w", den, err)
		}
		if d == 0 {
			return 0, fmt.Errorf("frame rate %q has zero denominator", value)
		}
		return checkRate(value, n/d)
	}
	rate, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", value, err)
	}
	return checkRate(value, rate)
}

func checkRate(raw string, rate float64) (float64, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return 0, fmt.Errorf("frame rate %q must be a positive number", raw)
	}
	return rate, nil
}
