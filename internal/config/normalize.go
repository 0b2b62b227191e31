package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTools(); err != nil {
		return err
	}
	c.normalizeUpscale()
	c.normalizeEncode()
	c.normalizeProgress()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaultWorkspaceDir
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() error {
	if c.Tools.RealESRGAN == "" || c.Tools.RealESRGAN == defaultRealESRGAN {
		if value, ok := os.LookupEnv("REALESRGAN_PATH"); ok && strings.TrimSpace(value) != "" {
			c.Tools.RealESRGAN = value
		}
	}
	if c.Tools.RIFE == "" || c.Tools.RIFE == defaultRIFE {
		if value, ok := os.LookupEnv("RIFE_PATH"); ok && strings.TrimSpace(value) != "" {
			c.Tools.RIFE = value
		}
	}

	tools := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"tools.ffmpeg", &c.Tools.FFmpeg, defaultFFmpeg},
		{"tools.ffprobe", &c.Tools.FFprobe, defaultFFprobe},
		{"tools.realesrgan", &c.Tools.RealESRGAN, defaultRealESRGAN},
		{"tools.rife", &c.Tools.RIFE, defaultRIFE},
	}
	for _, tool := range tools {
		if strings.TrimSpace(*tool.value) == "" {
			*tool.value = tool.fallback
		}
		resolved, err := expandToolPath(*tool.value)
		if err != nil {
			return fmt.Errorf("%s: %w", tool.key, err)
		}
		*tool.value = resolved
	}
	return nil
}

func (c *Config) normalizeUpscale() {
	c.Upscale.Model = strings.TrimSpace(c.Upscale.Model)
	if c.Upscale.Model == "" {
		c.Upscale.Model = defaultUpscaleModel
	}
	c.Upscale.Format = strings.ToLower(strings.TrimSpace(c.Upscale.Format))
	if c.Upscale.Format == "" {
		c.Upscale.Format = defaultUpscaleFormat
	}
	c.Interpolate.Model = strings.TrimSpace(c.Interpolate.Model)
	if c.Interpolate.Model == "" {
		c.Interpolate.Model = defaultRIFEModel
	}
}

func (c *Config) normalizeEncode() {
	c.Encode.Profile = strings.ToLower(strings.TrimSpace(c.Encode.Profile))
	if c.Encode.Profile == "" {
		c.Encode.Profile = defaultProfile
	}
	c.Encode.TargetFPS = strings.TrimSpace(c.Encode.TargetFPS)
	if c.Encode.TargetFPS == "" {
		c.Encode.TargetFPS = defaultTargetFPS
	}
	c.Encode.Bitrate = strings.TrimSpace(c.Encode.Bitrate)
}

func (c *Config) normalizeProgress() {
	if c.Progress.IntervalMS == 0 {
		c.Progress.IntervalMS = defaultProgressInterval
	}
	c.Progress.Style = strings.ToLower(strings.TrimSpace(c.Progress.Style))
	if c.Progress.Style == "" {
		c.Progress.Style = defaultProgressStyle
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
