package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"upscaler/internal/services"
)

const (
	// Prefix starts every workspace directory name.
	Prefix = "temp_upscale_"
	// FramePattern is the printf-style frame filename shared by every tool.
	FramePattern = "frame_%07d.png"

	lockFileName    = ".lock"
	lrDirName       = "lr_frames"
	hrDirName       = "hr_frames"
	interpDirName   = "interp_frames"
	stagingBaseName = "temp_no_audio"
)

// Workspace is one run's directory tree.
type Workspace struct {
	Root         string
	LRFrames     string
	HRFrames     string
	InterpFrames string
	// Staging is the intermediate encode written before audio is muxed.
	Staging string

	mu        sync.Mutex
	lock      *flock.Flock
	destroyed bool
}

// Create allocates a new workspace under parent. The staging file extension
// follows the codec profile (".mp4" or ".mov").
func Create(parent, stagingExt string) (*Workspace, error) {
	parent = strings.TrimSpace(parent)
	if parent == "" {
		parent = "."
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, services.Wrap(services.ErrWorkspace, "workspace", "create parent", parent, err)
	}
	if stagingExt == "" {
		stagingExt = ".mp4"
	} else if !strings.HasPrefix(stagingExt, ".") {
		stagingExt = "." + stagingExt
	}

	root := filepath.Join(parent, newName(time.Now()))
	if err := os.Mkdir(root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrWorkspace, "workspace", "create root", root, err)
	}

	ws := &Workspace{
		Root:         root,
		LRFrames:     filepath.Join(root, lrDirName),
		HRFrames:     filepath.Join(root, hrDirName),
		InterpFrames: filepath.Join(root, interpDirName),
		Staging:      filepath.Join(root, stagingBaseName+stagingExt),
	}
	for _, dir := range []string{ws.LRFrames, ws.HRFrames, ws.InterpFrames} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			_ = os.RemoveAll(root)
			return nil, services.Wrap(services.ErrWorkspace, "workspace", "create subdirectory", dir, err)
		}
	}

	ws.lock = flock.New(filepath.Join(root, lockFileName))
	ok, err := ws.lock.TryLock()
	if err != nil || !ok {
		_ = os.RemoveAll(root)
		if err == nil {
			err = errors.New("lock held by another process")
		}
		return nil, services.Wrap(services.ErrWorkspace, "workspace", "lock", root, err)
	}
	return ws, nil
}

func newName(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%d_%s", Prefix, now.Unix(), suffix)
}

// FramePath returns the frame filename pattern inside dir.
func FramePath(dir string) string {
	return filepath.Join(dir, FramePattern)
}

// Unlock releases the run lock without removing anything, so a preserved
// workspace becomes eligible for the stale sweep.
func (w *Workspace) Unlock() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unlockLocked()
}

func (w *Workspace) unlockLocked() {
	if w.lock != nil {
		_ = w.lock.Unlock()
		w.lock = nil
	}
}

// Destroy removes the workspace tree. It is safe to call more than once and
// on a nil receiver; a tree that is already gone is not an error.
func (w *Workspace) Destroy() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unlockLocked()
	if w.destroyed || strings.TrimSpace(w.Root) == "" {
		return nil
	}
	if err := os.RemoveAll(w.Root); err != nil {
		return services.Wrap(services.ErrWorkspace, "workspace", "remove", w.Root, err)
	}
	w.destroyed = true
	return nil
}
