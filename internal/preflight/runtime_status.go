package preflight

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// VulkanProbe reports the GPUs visible to the Vulkan loader. Both ncnn-vulkan
// tools need at least one.
type VulkanProbe struct {
	Checked bool
	Devices []string
	Detail  string
}

// ProbeVulkan lists Vulkan devices via vulkaninfo. A missing vulkaninfo is
// reported as unchecked rather than failed.
func ProbeVulkan(ctx context.Context) VulkanProbe {
	if _, err := exec.LookPath("vulkaninfo"); err != nil {
		return VulkanProbe{Detail: "vulkaninfo not installed"}
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, "vulkaninfo", "--summary")
	output, err := cmd.Output()
	if err != nil {
		return VulkanProbe{Checked: true, Detail: fmt.Sprintf("vulkaninfo failed (%v)", err)}
	}
	devices := parseVulkanDevices(string(output))
	if len(devices) == 0 {
		return VulkanProbe{Checked: true, Detail: "No Vulkan devices found"}
	}
	return VulkanProbe{Checked: true, Devices: devices}
}

func parseVulkanDevices(output string) []string {
	var devices []string
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || strings.TrimSpace(key) != "deviceName" {
			continue
		}
		if name := strings.TrimSpace(value); name != "" {
			devices = append(devices, name)
		}
	}
	return devices
}

// Passed reports whether at least one device was found.
func (p VulkanProbe) Passed() bool {
	return len(p.Devices) > 0
}

// DeviceDetail renders a display-friendly summary for status output.
func (p VulkanProbe) DeviceDetail() string {
	if len(p.Devices) == 0 {
		return p.Detail
	}
	return strings.Join(p.Devices, ", ")
}
