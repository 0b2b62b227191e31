package deps

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"upscaler/internal/config"
)

// Requirement defines an external tool the upscaler relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the tools a run needs. RIFE is optional because a
// missing binary falls back to ffmpeg's minterpolate filter.
func Requirements(tools config.Tools) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: tools.FFmpeg, Description: "Frame extraction, encoding and audio muxing"},
		{Name: "FFprobe", Command: tools.FFprobe, Description: "Source frame rate probing"},
		{Name: "Real-ESRGAN", Command: tools.RealESRGAN, Description: "Neural super-resolution (realesrgan-ncnn-vulkan)"},
		{Name: "RIFE", Command: tools.RIFE, Description: "Optional motion interpolation (rife-ncnn-vulkan)", Optional: true},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := LookPath(cmd)
		if err != nil {
			status.Available = false
			status.Detail = err.Error()
			results = append(results, status)
			continue
		}
		status.Path = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}

// LookPath resolves cmd to an executable path. Paths containing a separator
// are checked directly; bare names go through PATH.
func LookPath(cmd string) (string, error) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return "", fmt.Errorf("command not configured")
	}
	if strings.ContainsRune(cmd, os.PathSeparator) {
		info, err := os.Stat(cmd)
		if err != nil {
			return "", fmt.Errorf("binary %q not found", cmd)
		}
		if !isExecutable(info) {
			return "", fmt.Errorf("binary %q is not executable", cmd)
		}
		return cmd, nil
	}
	resolved, err := exec.LookPath(cmd)
	if err != nil {
		return "", fmt.Errorf("binary %q not found", cmd)
	}
	return resolved, nil
}

// Missing returns the required (non-optional) dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
