package preflight

import (
	"context"
	"path/filepath"
	"strings"

	"upscaler/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks that gate a run. output may be empty
// when no run is planned (the check command).
func RunAll(ctx context.Context, cfg *config.Config, output string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Workspace parent (always checked); Create makes it when missing.
	results = append(results, CheckDirectoryAccess("Workspace directory", nearestExisting(cfg.Paths.WorkspaceDir)))

	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", nearestExisting(cfg.Paths.LogDir)))
	}

	if output = strings.TrimSpace(output); output != "" {
		dir := filepath.Dir(output)
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		results = append(results, CheckDirectoryAccess("Output directory", dir))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
