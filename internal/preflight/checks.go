package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"upscaler/internal/config"
	"upscaler/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBinaries evaluates only the external tools. A run gates on it; model
// files are left to the tools, which name a missing model in their stderr.
func CheckBinaries(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg.Tools))
}

// CheckSystemDeps extends CheckBinaries with the model files. The CLI check
// command reports it.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	statuses := CheckBinaries(cfg)
	statuses = append(statuses, deps.CheckRealESRGANModel(cfg.Tools.RealESRGAN, cfg.Upscale.Model))
	if cfg.Interpolate.Enabled {
		model := deps.CheckRIFEModel(cfg.Tools.RIFE, cfg.Interpolate.Model)
		// Strict interpolation makes RIFE and its model mandatory.
		model.Optional = !cfg.Interpolate.Strict
		statuses = append(statuses, model)
	}
	return statuses
}

// nearestExisting walks up from path to the first directory that exists, so
// a not-yet-created directory is judged by the parent it will be made in.
func nearestExisting(path string) string {
	current := filepath.Clean(path)
	for {
		if _, err := os.Stat(current); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path
		}
		current = parent
	}
}
