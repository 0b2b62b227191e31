package pipeline

import (
	"context"
	"log/slog"
	"os"
	"time"

	"upscaler/internal/cmdrun"
	"upscaler/internal/config"
	"upscaler/internal/deps"
	"upscaler/internal/logging"
	"upscaler/internal/progress"
	"upscaler/internal/workspace"
)

// CommandRunner executes stage commands.
type CommandRunner interface {
	Run(ctx context.Context, cmd cmdrun.Command, quiet bool) error
	Capture(ctx context.Context, cmd cmdrun.Command) (string, error)
}

// RendererFactory builds the progress renderer for a stage of total frames.
type RendererFactory func(label string, total int) progress.Renderer

// Result summarizes a successful run.
type Result struct {
	Output       string
	Workspace    string
	Preserved    bool
	Frames       int
	Interpolated bool
	Duration     time.Duration
	// Width, Height and FrameRate describe the written output. They stay
	// zero when the post-run check could not read it.
	Width     int
	Height    int
	FrameRate string
}

// Pipeline runs one upscale job.
type Pipeline struct {
	cfg         config.PipelineConfig
	runner      CommandRunner
	logger      *slog.Logger
	handle      *workspace.Handle
	newRenderer RendererFactory
	lookPath    func(string) (string, error)
	now         func() time.Time
}

// Option configures optional Pipeline behavior.
type Option func(*Pipeline)

// WithRunner replaces the command runner (tests inject fakes).
func WithRunner(runner CommandRunner) Option {
	return func(p *Pipeline) {
		if runner != nil {
			p.runner = runner
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithHandle shares a workspace handle with the interrupt handler.
func WithHandle(handle *workspace.Handle) Option {
	return func(p *Pipeline) {
		if handle != nil {
			p.handle = handle
		}
	}
}

// WithRendererFactory replaces how progress renderers are built.
func WithRendererFactory(factory RendererFactory) Option {
	return func(p *Pipeline) {
		if factory != nil {
			p.newRenderer = factory
		}
	}
}

// WithLookPath replaces binary resolution for optional tools.
func WithLookPath(lookPath func(string) (string, error)) Option {
	return func(p *Pipeline) {
		if lookPath != nil {
			p.lookPath = lookPath
		}
	}
}

// New constructs a pipeline for cfg.
func New(cfg config.PipelineConfig, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		runner:   cmdrun.New(),
		logger:   logging.NewNop(),
		lookPath: deps.LookPath,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "pipeline")
	if p.handle == nil {
		p.handle = workspace.NewHandle(p.logger)
	}
	if p.newRenderer == nil {
		style := cfg.ProgressStyle
		logger := p.logger
		p.newRenderer = func(label string, _ int) progress.Renderer {
			return progress.NewRenderer(style, os.Stderr, logger, label)
		}
	}
	return p
}
