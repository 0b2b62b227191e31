package deps

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// The ncnn-vulkan tools resolve model names relative to their own install
// directory: Real-ESRGAN reads models/<name>.param and models/<name>.bin,
// RIFE reads a <name>/ directory next to the binary.

// CheckRealESRGANModel reports whether model is installed beside binary.
func CheckRealESRGANModel(binary, model string) Status {
	result := Status{
		Name:        "Real-ESRGAN model",
		Command:     model,
		Description: "Weights for the upscale stage",
	}
	dir, ok := installDir(binary)
	if !ok {
		result.Detail = "upscaler binary not found"
		return result
	}
	for _, ext := range []string{".param", ".bin"} {
		candidate := filepath.Join(dir, "models", model+ext)
		if _, err := os.Stat(candidate); err != nil {
			result.Detail = fmt.Sprintf("missing %s", candidate)
			return result
		}
	}
	result.Path = filepath.Join(dir, "models")
	result.Available = true
	return result
}

// CheckRIFEModel reports whether the RIFE model directory is installed.
// Missing RIFE is optional, so the status is marked optional too.
func CheckRIFEModel(binary, model string) Status {
	result := Status{
		Name:        "RIFE model",
		Command:     model,
		Description: "Weights for the interpolate stage",
		Optional:    true,
	}
	dir, ok := installDir(binary)
	if !ok {
		result.Detail = "interpolation binary not found"
		return result
	}
	candidate := filepath.Join(dir, model)
	info, err := os.Stat(candidate)
	if err != nil || !info.IsDir() {
		result.Detail = fmt.Sprintf("missing %s", candidate)
		return result
	}
	result.Path = candidate
	result.Available = true
	return result
}

func installDir(binary string) (string, bool) {
	if strings.TrimSpace(binary) == "" {
		return "", false
	}
	resolved, err := LookPath(binary)
	if err != nil {
		return "", false
	}
	if evaluated, err := filepath.EvalSymlinks(resolved); err == nil {
		resolved = evaluated
	}
	return filepath.Dir(resolved), true
}
