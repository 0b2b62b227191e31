package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	LogDir       string `toml:"log_dir"`
}

// Tools names the external binaries the pipeline invokes.
type Tools struct {
	FFmpeg     string `toml:"ffmpeg"`
	FFprobe    string `toml:"ffprobe"`
	RealESRGAN string `toml:"realesrgan"`
	RIFE       string `toml:"rife"`
}

// Upscale contains super-resolution settings.
type Upscale struct {
	Model    string `toml:"model"`
	Scale    int    `toml:"scale"`
	TileSize int    `toml:"tile_size"`
	Format   string `toml:"format"`
}

// Interpolate contains settings for the optional RIFE interpolation engine.
type Interpolate struct {
	Enabled bool   `toml:"enabled"`
	Model   string `toml:"model"`
	// Strict turns a missing RIFE binary into a configuration error instead
	// of falling back to the minterpolate filter.
	Strict bool `toml:"strict"`
}

// Encode contains final video encode settings.
type Encode struct {
	Profile   string `toml:"profile"`
	TargetFPS string `toml:"target_fps"`
	Bitrate   string `toml:"bitrate"`
}

// Progress controls the upscale progress display.
type Progress struct {
	IntervalMS int    `toml:"interval_ms"`
	Style      string `toml:"style"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Workspace controls the transient workspace lifecycle.
type Workspace struct {
	Keep            bool `toml:"keep"`
	StaleAfterHours int  `toml:"stale_after_hours"`
}

// Config encapsulates all configuration values for the upscaler.
//
// Configuration sections by subsystem:
//   - Paths: workspace parent and optional log directory
//   - Tools: ffmpeg, ffprobe, realesrgan-ncnn-vulkan and rife-ncnn-vulkan binaries
//   - Upscale: model, scale factor, tile size
//   - Interpolate: RIFE engine toggle and model
//   - Encode: codec profile, target frame rate, bitrate override
//   - Progress: poll interval and render style
//   - Logging: log format and level
//   - Workspace: preservation and stale sweep age
type Config struct {
	Paths       Paths       `toml:"paths"`
	Tools       Tools       `toml:"tools"`
	Upscale     Upscale     `toml:"upscale"`
	Interpolate Interpolate `toml:"interpolate"`
	Encode      Encode      `toml:"encode"`
	Progress    Progress    `toml:"progress"`
	Logging     Logging     `toml:"logging"`
	Workspace   Workspace   `toml:"workspace"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A missing file is not an error: defaults apply.
// Unknown keys are rejected so a misspelled setting never silently falls back to its default.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		if err := decodeFile(resolvedPath, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parse config %s: unknown keys:\n%s", path, strict.String())
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// resolveConfigPath returns the explicit path when given (missing is allowed),
// otherwise the first existing candidate: the user config, then ./upscaler.toml.
func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// expandToolPath leaves bare command names for PATH lookup and turns anything
// that looks like a path (./realesrgan-ncnn-vulkan, ~/bin/rife) into an
// absolute one.
func expandToolPath(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || !strings.ContainsAny(value, `/\`) && !strings.HasPrefix(value, "~") {
		return value, nil
	}
	return expandPath(value)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
