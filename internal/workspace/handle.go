package workspace

import (
	"log/slog"
	"sync"

	"upscaler/internal/logging"
	"upscaler/internal/services"
)

// Decision records what happened to the workspace when it was released.
type Decision struct {
	Path      string
	Removed   bool
	Preserved bool
}

// Handle is the shared reference to the active workspace. Every cleanup path
// (normal completion, failure, interrupt) goes through Release, and only the
// first call acts.
type Handle struct {
	mu       sync.Mutex
	ws       *Workspace
	keep     bool
	released bool
	closed   bool
	logger   *slog.Logger
}

// NewHandle returns an empty handle.
func NewHandle(logger *slog.Logger) *Handle {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handle{logger: logger}
}

// Acquire registers ws as the active workspace. keep selects preservation on release.
func (h *Handle) Acquire(ws *Workspace, keep bool) error {
	if ws == nil {
		return services.Wrap(services.ErrWorkspace, "workspace", "acquire", "nil workspace", nil)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return services.Wrap(services.ErrWorkspace, "workspace", "acquire", "handle already released", nil)
	}
	if h.ws != nil && !h.released {
		return services.Wrap(services.ErrWorkspace, "workspace", "acquire", "a workspace is already active: "+h.ws.Root, nil)
	}
	h.ws = ws
	h.keep = keep
	h.released = false
	return nil
}

// Create makes a workspace under parent and registers it while holding the
// handle lock, so a concurrent Release either sees the new workspace or runs
// before anything is created. Create fails once the handle has been released
// empty.
func (h *Handle) Create(parent, stagingExt string, keep bool) (*Workspace, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, services.Wrap(services.ErrWorkspace, "workspace", "create", "run aborted before the workspace was created", nil)
	}
	if h.ws != nil && !h.released {
		return nil, services.Wrap(services.ErrWorkspace, "workspace", "create", "a workspace is already active: "+h.ws.Root, nil)
	}
	ws, err := Create(parent, stagingExt)
	if err != nil {
		return nil, err
	}
	h.ws = ws
	h.keep = keep
	h.released = false
	return ws, nil
}

// Path returns the active workspace root, or "" when none is registered.
func (h *Handle) Path() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ws == nil {
		return ""
	}
	return h.ws.Root
}

// Keep reports whether release will preserve the workspace.
func (h *Handle) Keep() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.keep
}

// Release removes or preserves the workspace. Calls after the first are
// no-ops returning a zero Decision. Releasing an empty handle closes it
// against later Create calls.
func (h *Handle) Release() (Decision, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ws == nil {
		h.closed = true
		return Decision{}, nil
	}
	if h.released {
		return Decision{}, nil
	}
	h.released = true
	ws := h.ws

	if h.keep {
		ws.Unlock()
		h.logger.Info("workspace preserved",
			logging.String("path", ws.Root),
			logging.String(logging.FieldEventType, "workspace_preserved"),
		)
		return Decision{Path: ws.Root, Preserved: true}, nil
	}

	if err := ws.Destroy(); err != nil {
		h.logger.Warn("workspace removal failed",
			logging.String("path", ws.Root),
			logging.Error(err),
			logging.String(logging.FieldEventType, "workspace_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the directory manually or run 'upscaler workspaces clean'"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
		return Decision{Path: ws.Root}, err
	}
	h.logger.Info("workspace removed",
		logging.String("path", ws.Root),
		logging.String(logging.FieldEventType, "workspace_removed"),
	)
	return Decision{Path: ws.Root, Removed: true}, nil
}
