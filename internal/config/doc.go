// Package config loads, normalizes, and validates upscaler configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REALESRGAN_PATH. The Config type centralizes every knob the CLI needs;
// Resolve turns it plus the per-run request into the immutable PipelineConfig
// the orchestrator consumes.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a total codec profile selection, and clear validation
// errors.
package config
