package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"upscaler/internal/cmdrun"
	"upscaler/internal/config"
	"upscaler/internal/logging"
	"upscaler/internal/progress"
	"upscaler/internal/services"
	"upscaler/internal/workspace"
)

// fakeRunner simulates the external tools by producing the files each one
// would write.
type fakeRunner struct {
	mu       sync.Mutex
	commands []cmdrun.Command

	probe        string
	streamInfo   string
	infoFails    bool
	frames       int
	upscaleFails bool
	failOn       string
}

func (f *fakeRunner) record(cmd cmdrun.Command) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
}

func (f *fakeRunner) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.commands))
	for _, cmd := range f.commands {
		out = append(out, cmd.Name)
	}
	return out
}

func (f *fakeRunner) find(match func(cmdrun.Command) bool) (cmdrun.Command, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cmd := range f.commands {
		if match(cmd) {
			return cmd, true
		}
	}
	return cmdrun.Command{}, false
}

func (f *fakeRunner) Capture(_ context.Context, cmd cmdrun.Command) (string, error) {
	f.record(cmd)
	if f.failOn == cmd.Name {
		return "", &cmdrun.ExecutionError{ExitCode: 1, Command: cmd, Stderr: "probe failed"}
	}
	if slices.Contains(cmd.Args, "stream=width,height,r_frame_rate") {
		if f.infoFails {
			return "", &cmdrun.ExecutionError{ExitCode: 1, Command: cmd, Stderr: "moov atom not found"}
		}
		return f.streamInfo, nil
	}
	return f.probe, nil
}

func (f *fakeRunner) Run(_ context.Context, cmd cmdrun.Command, _ bool) error {
	f.record(cmd)
	if f.failOn == cmd.Name {
		return &cmdrun.ExecutionError{ExitCode: 1, Command: cmd, Stderr: cmd.Name + " failed"}
	}
	args := cmd.Args
	switch cmd.Name {
	case "ffmpeg":
		out := args[len(args)-1]
		if slices.Contains(args, "-qscale:v") {
			return writeFrames(filepath.Dir(out), f.frames, "lr")
		}
		return os.WriteFile(out, []byte("video"), 0o644)
	case "realesrgan-ncnn-vulkan":
		in, out := flag(args, "-i"), flag(args, "-o")
		if f.upscaleFails {
			if err := writeFrames(out, 1, "partial"); err != nil {
				return err
			}
			return &cmdrun.ExecutionError{ExitCode: 255, Command: cmd, Stderr: "vkCreateInstance failed"}
		}
		return copyFrames(in, out)
	case "rife-ncnn-vulkan":
		return writeFrames(flag(args, "-o"), f.frames*2, "interp")
	}
	return fmt.Errorf("unexpected command %s", cmd.Name)
}

func flag(args []string, name string) string {
	idx := slices.Index(args, name)
	if idx < 0 || idx+1 >= len(args) {
		return ""
	}
	return args[idx+1]
}

func writeFrames(dir string, n int, prefix string) error {
	for i := 1; i <= n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("frame_%07d.png", i))
		if err := os.WriteFile(path, []byte(fmt.Sprintf("%s-%d", prefix, i)), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func copyFrames(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(src, entry.Name()))
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dst, entry.Name()), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

type countingRenderer struct {
	mu        sync.Mutex
	finals    []progress.Sample
	completed []bool
}

func (r *countingRenderer) Render(progress.Sample) {}

func (r *countingRenderer) Finish(s progress.Sample, completed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finals = append(r.finals, s)
	r.completed = append(r.completed, completed)
}

func testConfig(t *testing.T, inputName string) config.PipelineConfig {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, inputName)
	if err := os.WriteFile(input, []byte("source"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	profile := config.ProfileDefault
	return config.PipelineConfig{
		Input:        input,
		Output:       filepath.Join(dir, "out"+filepath.Ext(inputName)),
		TargetFPS:    "60",
		TargetRate:   60,
		Scale:        4,
		Profile:      profile,
		Codec:        profile.Settings(),
		TileSize:     256,
		UpscaleModel: "realesrgan-x4plus",
		RIFEModel:    "rife-v4.6",
		Tools: config.Tools{
			FFmpeg:     "ffmpeg",
			FFprobe:    "ffprobe",
			RealESRGAN: "realesrgan-ncnn-vulkan",
			RIFE:       "rife-ncnn-vulkan",
		},
		WorkspaceDir:     filepath.Join(dir, "work"),
		ProgressInterval: time.Millisecond,
	}
}

func newTestPipeline(cfg config.PipelineConfig, runner *fakeRunner, renderer *countingRenderer, opts ...Option) *Pipeline {
	base := []Option{
		WithRunner(runner),
		WithRendererFactory(func(string, int) progress.Renderer { return renderer }),
		WithLookPath(func(name string) (string, error) { return "", errors.New("not found") }),
	}
	return New(cfg, append(base, opts...)...)
}

func workspaces(t *testing.T, parent string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(parent, workspace.Prefix+"*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	return matches
}

func TestRunVideoEncodesAtTargetRate(t *testing.T) {
	cfg := testConfig(t, "clip.mp4")
	runner := &fakeRunner{probe: "24/1\n", streamInfo: "7680,4320,60/1\n", frames: 5}
	renderer := &countingRenderer{}

	result, err := newTestPipeline(cfg, runner, renderer).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"ffprobe", "ffmpeg", "realesrgan-ncnn-vulkan", "ffmpeg", "ffmpeg", "ffprobe"}
	if got := runner.names(); !slices.Equal(got, want) {
		t.Fatalf("unexpected stage order %v", got)
	}
	encode, ok := runner.find(func(c cmdrun.Command) bool { return slices.Contains(c.Args, "-framerate") })
	if !ok {
		t.Fatal("encode command not issued")
	}
	if flag(encode.Args, "-framerate") != "24/1" {
		t.Fatalf("encode should use the probed rate: %s", encode)
	}
	if !strings.Contains(flag(encode.Args, "-vf"), "minterpolate=fps=60") {
		t.Fatalf("encode should target 60 fps: %s", encode)
	}
	if _, err := os.Stat(cfg.Output); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if result.Frames != 5 || result.Interpolated || result.Preserved {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Width != 7680 || result.Height != 4320 || result.FrameRate != "60/1" {
		t.Fatalf("output stream info not recorded: %+v", result)
	}
	if left := workspaces(t, cfg.WorkspaceDir); len(left) != 0 {
		t.Fatalf("workspace not removed: %v", left)
	}
	if len(renderer.finals) != 1 || !renderer.completed[0] || renderer.finals[0].Fraction() != 1 {
		t.Fatalf("expected one completed 100%% render, got %+v %v", renderer.finals, renderer.completed)
	}
}

func TestRunImageCopiesFirstFrameByteIdentical(t *testing.T) {
	cfg := testConfig(t, "photo.png")
	runner := &fakeRunner{probe: "25/1", streamInfo: "1024,768,0/0", frames: 3}

	result, err := newTestPipeline(cfg, runner, &countingRenderer{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Width != 1024 || result.Height != 768 || result.FrameRate != "" {
		t.Fatalf("unexpected still image info %+v", result)
	}

	got, err := os.ReadFile(cfg.Output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, []byte("lr-1")) {
		t.Fatalf("output should be the first upscaled frame unchanged, got %q", got)
	}
	want := []string{"ffprobe", "ffmpeg", "realesrgan-ncnn-vulkan", "ffprobe"}
	if names := runner.names(); !slices.Equal(names, want) {
		t.Fatalf("image inputs must not encode or mux: %v", names)
	}
	if left := workspaces(t, cfg.WorkspaceDir); len(left) != 0 {
		t.Fatalf("workspace not removed: %v", left)
	}
}

func TestRunOutputInfoFailureOnlyWarns(t *testing.T) {
	cfg := testConfig(t, "clip.mp4")
	var logs bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", Writer: &logs})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	runner := &fakeRunner{probe: "24/1", frames: 2, infoFails: true}

	result, err := newTestPipeline(cfg, runner, &countingRenderer{}, WithLogger(logger)).Run(context.Background())
	if err != nil {
		t.Fatalf("a failed read-back must not fail the run: %v", err)
	}
	if result.Width != 0 || result.Height != 0 || result.FrameRate != "" {
		t.Fatalf("stream info should stay empty, got %+v", result)
	}
	if _, err := os.Stat(cfg.Output); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	out := logs.String()
	if !strings.Contains(out, `"event_type":"verify_failed"`) || !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("expected verify warning, got:\n%s", out)
	}
	if strings.Contains(out, "stage_failure") {
		t.Fatalf("read-back failure must not be logged as a stage failure:\n%s", out)
	}
}

func TestRunUpscaleFailureStopsAndCleansUp(t *testing.T) {
	cfg := testConfig(t, "clip.mp4")
	runner := &fakeRunner{probe: "24/1", frames: 4, upscaleFails: true}
	renderer := &countingRenderer{}

	_, err := newTestPipeline(cfg, runner, renderer).Run(context.Background())
	var execErr *cmdrun.ExecutionError
	if !errors.As(err, &execErr) || execErr.ExitCode != 255 {
		t.Fatalf("expected upscale ExecutionError, got %v", err)
	}
	if !strings.Contains(execErr.Stderr, "vkCreateInstance") {
		t.Fatalf("stderr lost: %q", execErr.Stderr)
	}
	if names := runner.names(); len(names) != 3 {
		t.Fatalf("no stage may run after a failed upscale, got %v", names)
	}
	if left := workspaces(t, cfg.WorkspaceDir); len(left) != 0 {
		t.Fatalf("workspace not removed after failure: %v", left)
	}
	if _, err := os.Stat(cfg.Output); !os.IsNotExist(err) {
		t.Fatal("output must not exist after failure")
	}
	if len(renderer.finals) != 1 || renderer.completed[0] || renderer.finals[0].Fraction() == 1 {
		t.Fatalf("failed upscale must not render 100%%: %+v %v", renderer.finals, renderer.completed)
	}
}

func TestRunKeepWorkspace(t *testing.T) {
	cfg := testConfig(t, "clip.mp4")
	cfg.KeepWorkspace = true
	runner := &fakeRunner{probe: "30000/1001", frames: 2}

	result, err := newTestPipeline(cfg, runner, &countingRenderer{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Preserved {
		t.Fatal("expected workspace to be preserved")
	}
	left := workspaces(t, cfg.WorkspaceDir)
	if len(left) != 1 || left[0] != result.Workspace {
		t.Fatalf("expected exactly the run workspace to remain, got %v", left)
	}
	if _, err := os.Stat(filepath.Join(result.Workspace, "hr_frames", "frame_0000002.png")); err != nil {
		t.Fatalf("preserved workspace missing frames: %v", err)
	}
}

func TestRunSharesHandleForSingleRelease(t *testing.T) {
	cfg := testConfig(t, "clip.mp4")
	handle := workspace.NewHandle(nil)
	runner := &fakeRunner{probe: "24/1", frames: 1}

	result, err := newTestPipeline(cfg, runner, &countingRenderer{}, WithHandle(handle)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if handle.Path() != result.Workspace {
		t.Fatalf("handle should reference the run workspace, got %q", handle.Path())
	}
	if d, _ := handle.Release(); d != (workspace.Decision{}) {
		t.Fatalf("a second release must be a no-op, got %+v", d)
	}
}

func TestRunWithRIFE(t *testing.T) {
	cfg := testConfig(t, "clip.mkv")
	cfg.UseRIFE = true
	runner := &fakeRunner{probe: "24/1", frames: 4}
	lookPath := WithLookPath(func(name string) (string, error) { return "/opt/rife/" + name, nil })

	result, err := newTestPipeline(cfg, runner, &countingRenderer{}, lookPath).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Interpolated {
		t.Fatal("expected interpolated result")
	}
	rife, ok := runner.find(func(c cmdrun.Command) bool { return c.Name == "rife-ncnn-vulkan" })
	if !ok || flag(rife.Args, "-n") != "10" {
		t.Fatalf("expected RIFE with 10 target frames, got %v", rife)
	}
	encode, _ := runner.find(func(c cmdrun.Command) bool { return slices.Contains(c.Args, "-framerate") })
	if flag(encode.Args, "-framerate") != "60" || slices.Contains(encode.Args, "-vf") {
		t.Fatalf("interpolated frames should encode at the target without a filter: %s", encode)
	}
	if !strings.Contains(flag(encode.Args, "-i"), "interp_frames") {
		t.Fatalf("encode should read interpolated frames: %s", encode)
	}
}

func TestRunRIFEMissingFallsBack(t *testing.T) {
	cfg := testConfig(t, "clip.mp4")
	cfg.UseRIFE = true
	var logs bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", Writer: &logs})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	runner := &fakeRunner{probe: "24/1", frames: 2}

	result, err := newTestPipeline(cfg, runner, &countingRenderer{}, WithLogger(logger)).Run(context.Background())
	if err != nil {
		t.Fatalf("fallback should not fail: %v", err)
	}
	if result.Interpolated {
		t.Fatal("missing RIFE must fall back to minterpolate")
	}
	if !strings.Contains(logs.String(), `"event_type":"rife_fallback"`) {
		t.Fatalf("expected fallback warning, got:\n%s", logs.String())
	}
}

func TestRunRIFEMissingStrictFailsBeforeWorkspace(t *testing.T) {
	cfg := testConfig(t, "clip.mp4")
	cfg.UseRIFE = true
	cfg.RIFEStrict = true
	runner := &fakeRunner{probe: "24/1", frames: 2}

	_, err := newTestPipeline(cfg, runner, &countingRenderer{}).Run(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if len(runner.names()) != 0 {
		t.Fatal("no stage may run")
	}
	if left := workspaces(t, cfg.WorkspaceDir); len(left) != 0 {
		t.Fatalf("no workspace should be created: %v", left)
	}
}

func TestRunNoFramesExtracted(t *testing.T) {
	cfg := testConfig(t, "clip.mp4")
	runner := &fakeRunner{probe: "24/1", frames: 0}

	_, err := newTestPipeline(cfg, runner, &countingRenderer{}).Run(context.Background())
	if !errors.Is(err, services.ErrMissingArtifact) {
		t.Fatalf("expected missing artifact error, got %v", err)
	}
	if left := workspaces(t, cfg.WorkspaceDir); len(left) != 0 {
		t.Fatalf("workspace not removed: %v", left)
	}
}

func TestRunProbeFailurePropagates(t *testing.T) {
	cfg := testConfig(t, "clip.mp4")
	runner := &fakeRunner{failOn: "ffprobe"}

	_, err := newTestPipeline(cfg, runner, &countingRenderer{}).Run(context.Background())
	var execErr *cmdrun.ExecutionError
	if !errors.As(err, &execErr) || execErr.Command.Name != "ffprobe" {
		t.Fatalf("expected probe ExecutionError, got %v", err)
	}
	if left := workspaces(t, cfg.WorkspaceDir); len(left) != 0 {
		t.Fatalf("workspace not removed: %v", left)
	}
}

func TestRunUnusableProbeRate(t *testing.T) {
	cfg := testConfig(t, "clip.mp4")
	runner := &fakeRunner{probe: "0/0", frames: 2}

	_, err := newTestPipeline(cfg, runner, &countingRenderer{}).Run(context.Background())
	if !errors.Is(err, services.ErrMissingArtifact) {
		t.Fatalf("expected missing artifact error for 0/0, got %v", err)
	}
}

func TestRunMuxFailureKeepsWorkspaceWhenRequested(t *testing.T) {
	cfg := testConfig(t, "clip.mp4")
	cfg.KeepWorkspace = true
	runner := &fakeRunner{probe: "24/1", frames: 2}
	failing := &muxFailRunner{fakeRunner: runner}
	result, err := New(cfg,
		WithRunner(failing),
		WithRendererFactory(func(string, int) progress.Renderer { return &countingRenderer{} }),
	).Run(context.Background())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !result.Preserved {
		t.Fatal("failure with keep requested should preserve the workspace")
	}
	if left := workspaces(t, cfg.WorkspaceDir); len(left) != 1 {
		t.Fatalf("expected preserved workspace, got %v", left)
	}
}

// muxFailRunner fails the final mux invocation only.
type muxFailRunner struct {
	*fakeRunner
}

func (m *muxFailRunner) Run(ctx context.Context, cmd cmdrun.Command, quiet bool) error {
	if slices.Contains(cmd.Args, "-shortest") {
		m.record(cmd)
		return &cmdrun.ExecutionError{ExitCode: 1, Command: cmd, Stderr: "mux failed"}
	}
	return m.fakeRunner.Run(ctx, cmd, quiet)
}
