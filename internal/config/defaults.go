package config

const (
	defaultConfigPath        = "~/.config/upscaler/config.toml"
	projectConfigName        = "upscaler.toml"
	defaultWorkspaceDir      = "."
	defaultFFmpeg            = "ffmpeg"
	defaultFFprobe           = "ffprobe"
	defaultRealESRGAN        = "realesrgan-ncnn-vulkan"
	defaultRIFE              = "rife-ncnn-vulkan"
	defaultUpscaleModel      = "realesrgan-x4plus"
	defaultUpscaleScale      = 4
	defaultUpscaleTileSize   = 256
	defaultUpscaleFormat     = "png"
	defaultRIFEModel         = "rife-v4.6"
	defaultProfile           = string(ProfileDefault)
	defaultTargetFPS         = "60"
	defaultProgressInterval  = 500
	defaultProgressStyle     = "auto"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultStaleAfterHours   = 24
	defaultOutputStem        = "video-upscaled"
	maxUpscaleScale          = 4
	minProgressIntervalMilli = 50
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
		},
		Tools: Tools{
			FFmpeg:     defaultFFmpeg,
			FFprobe:    defaultFFprobe,
			RealESRGAN: defaultRealESRGAN,
			RIFE:       defaultRIFE,
		},
		Upscale: Upscale{
			Model:    defaultUpscaleModel,
			Scale:    defaultUpscaleScale,
			TileSize: defaultUpscaleTileSize,
			Format:   defaultUpscaleFormat,
		},
		Interpolate: Interpolate{
			Model: defaultRIFEModel,
		},
		Encode: Encode{
			Profile:   defaultProfile,
			TargetFPS: defaultTargetFPS,
		},
		Progress: Progress{
			IntervalMS: defaultProgressInterval,
			Style:      defaultProgressStyle,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Workspace: Workspace{
			StaleAfterHours: defaultStaleAfterHours,
		},
	}
}
