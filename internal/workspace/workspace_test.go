package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"upscaler/internal/logging"
	"upscaler/internal/services"
)

var namePattern = regexp.MustCompile(`^temp_upscale_\d+_[0-9a-f]{8}$`)

func TestCreateLaysOutWorkspace(t *testing.T) {
	parent := t.TempDir()
	ws, err := Create(parent, ".mov")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { _ = ws.Destroy() })

	if filepath.Dir(ws.Root) != parent {
		t.Fatalf("workspace not under parent: %s", ws.Root)
	}
	if !namePattern.MatchString(filepath.Base(ws.Root)) {
		t.Fatalf("unexpected workspace name %q", filepath.Base(ws.Root))
	}
	for _, dir := range []string{ws.LRFrames, ws.HRFrames, ws.InterpFrames} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
	if filepath.Base(ws.Staging) != "temp_no_audio.mov" {
		t.Fatalf("unexpected staging name %q", ws.Staging)
	}
	if !isLocked(ws.Root) {
		t.Fatal("expected live workspace to be locked")
	}
}

func TestCreateNamesAreUnique(t *testing.T) {
	parent := t.TempDir()
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		ws, err := Create(parent, ".mp4")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[ws.Root] {
			t.Fatalf("duplicate workspace %s", ws.Root)
		}
		seen[ws.Root] = true
		_ = ws.Destroy()
	}
}

func TestCreateFailsWhenParentIsFile(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(parent, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Create(parent, ".mp4"); !errors.Is(err, services.ErrWorkspace) {
		t.Fatalf("expected workspace error, got %v", err)
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	ws, err := Create(t.TempDir(), ".mp4")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := os.WriteFile(filepath.Join(ws.HRFrames, "frame_0000001.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if err := ws.Destroy(); err != nil {
		t.Fatalf("first Destroy: %v", err)
	}
	if _, err := os.Stat(ws.Root); !os.IsNotExist(err) {
		t.Fatalf("workspace still present: %v", err)
	}
	if err := ws.Destroy(); err != nil {
		t.Fatalf("second Destroy: %v", err)
	}

	var nilWS *Workspace
	if err := nilWS.Destroy(); err != nil {
		t.Fatalf("nil Destroy: %v", err)
	}
}

func TestDestroyToleratesMissingTree(t *testing.T) {
	ws, err := Create(t.TempDir(), ".mp4")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	ws.Unlock()
	if err := os.RemoveAll(ws.Root); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := ws.Destroy(); err != nil {
		t.Fatalf("Destroy on missing tree: %v", err)
	}
}

func TestHandleReleaseRemovesOnce(t *testing.T) {
	ws, err := Create(t.TempDir(), ".mp4")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	h := NewHandle(logging.NewNop())
	if err := h.Acquire(ws, false); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		decisions []Decision
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := h.Release()
			if err != nil {
				t.Errorf("Release: %v", err)
			}
			if d.Path != "" {
				mu.Lock()
				decisions = append(decisions, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(decisions) != 1 {
		t.Fatalf("expected exactly one effective release, got %d", len(decisions))
	}
	if !decisions[0].Removed || decisions[0].Preserved {
		t.Fatalf("unexpected decision %+v", decisions[0])
	}
	if _, err := os.Stat(ws.Root); !os.IsNotExist(err) {
		t.Fatal("workspace should be removed")
	}
}

func TestHandleReleasePreservesWhenKeep(t *testing.T) {
	ws, err := Create(t.TempDir(), ".mp4")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	h := NewHandle(nil)
	if err := h.Acquire(ws, true); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if h.Path() != ws.Root || !h.Keep() {
		t.Fatalf("handle state mismatch: path=%q keep=%v", h.Path(), h.Keep())
	}

	d, err := h.Release()
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !d.Preserved || d.Removed || d.Path != ws.Root {
		t.Fatalf("unexpected decision %+v", d)
	}
	if _, err := os.Stat(ws.LRFrames); err != nil {
		t.Fatalf("preserved workspace missing: %v", err)
	}
	if isLocked(ws.Root) {
		t.Fatal("preserved workspace should be unlocked")
	}
	if again, _ := h.Release(); again != (Decision{}) {
		t.Fatalf("second release should be a no-op, got %+v", again)
	}
}

func TestHandleReleaseBeforeAcquire(t *testing.T) {
	h := NewHandle(nil)
	d, err := h.Release()
	if err != nil || d != (Decision{}) {
		t.Fatalf("expected no-op release, got %+v %v", d, err)
	}
	if err := h.Acquire(nil, false); err == nil {
		t.Fatal("expected error acquiring nil workspace")
	}
}

func TestHandleCreateRegistersWorkspace(t *testing.T) {
	h := NewHandle(nil)
	ws, err := h.Create(t.TempDir(), ".mov", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if h.Path() != ws.Root {
		t.Fatalf("handle path = %q, want %q", h.Path(), ws.Root)
	}
	if _, err := h.Create(t.TempDir(), ".mov", false); !errors.Is(err, services.ErrWorkspace) {
		t.Fatalf("second Create should fail while active, got %v", err)
	}
	d, err := h.Release()
	if err != nil || !d.Removed {
		t.Fatalf("Release: %+v %v", d, err)
	}
}

func TestHandleCreateAfterEmptyReleaseFails(t *testing.T) {
	parent := t.TempDir()
	h := NewHandle(nil)
	if _, err := h.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := h.Create(parent, ".mp4", false); !errors.Is(err, services.ErrWorkspace) {
		t.Fatalf("expected workspace error, got %v", err)
	}
	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("no workspace should be created, found %d entries", len(entries))
	}
}

func TestHandleCreateRacingReleaseLeavesNothing(t *testing.T) {
	for i := 0; i < 20; i++ {
		parent := t.TempDir()
		h := NewHandle(nil)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = h.Create(parent, ".mp4", false)
		}()
		go func() {
			defer wg.Done()
			_, _ = h.Release()
		}()
		wg.Wait()

		entries, err := os.ReadDir(parent)
		if err != nil {
			t.Fatalf("ReadDir: %v", err)
		}
		if len(entries) != 0 {
			t.Fatalf("iteration %d: workspace leaked: %v", i, entries[0].Name())
		}
	}
}
