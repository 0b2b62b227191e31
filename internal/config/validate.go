package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateUpscale(); err != nil {
		return err
	}
	if err := c.validateEncode(); err != nil {
		return err
	}
	if err := c.validateProgress(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Workspace.StaleAfterHours < 0 {
		return errors.New("workspace.stale_after_hours must be >= 0")
	}
	return nil
}

func (c *Config) validateUpscale() error {
	if c.Upscale.Scale < 1 || c.Upscale.Scale > maxUpscaleScale {
		return fmt.Errorf("upscale.scale must be between 1 and %d", maxUpscaleScale)
	}
	if c.Upscale.TileSize < 0 {
		return errors.New("upscale.tile_size must be >= 0 (0 lets the upscaler choose)")
	}
	if c.Upscale.Format != "png" {
		return fmt.Errorf("upscale.format must be png, got %q", c.Upscale.Format)
	}
	return nil
}

func (c *Config) validateEncode() error {
	if _, err := ParseProfile(c.Encode.Profile); err != nil {
		return fmt.Errorf("encode.profile: %w", err)
	}
	rate, err := ParseRate(c.Encode.TargetFPS)
	if err != nil {
		return fmt.Errorf("encode.target_fps: %w", err)
	}
	if rate <= 0 {
		return errors.New("encode.target_fps must be positive")
	}
	return nil
}

func (c *Config) validateProgress() error {
	if c.Progress.IntervalMS < minProgressIntervalMilli {
		return fmt.Errorf("progress.interval_ms must be >= %d", minProgressIntervalMilli)
	}
	switch c.Progress.Style {
	case "auto", "bar", "log":
		return nil
	default:
		return fmt.Errorf("progress.style must be one of auto, bar, log (got %q)", c.Progress.Style)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
}
