package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"upscaler/internal/deps"
	"upscaler/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var skipVulkan bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check external tools, models and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.configPath != "" {
				fmt.Fprintf(out, "Config: %s\n\n", ctx.configPath)
			}

			statuses := preflight.CheckSystemDeps(cfg)
			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				rows = append(rows, []string{status.Name, dependencyState(status), dependencyDetail(status)})
			}
			fmt.Fprintln(out, renderTable([]string{"Dependency", "Status", "Detail"}, rows, nil))

			results := preflight.RunAll(cmd.Context(), cfg, "")
			rows = rows[:0]
			for _, result := range results {
				state := text.FgGreen.Sprint("ok")
				if !result.Passed {
					state = text.FgRed.Sprint("failed")
				}
				rows = append(rows, []string{result.Name, state, result.Detail})
			}
			if !skipVulkan {
				probe := preflight.ProbeVulkan(cmd.Context())
				state := text.FgYellow.Sprint("unchecked")
				switch {
				case probe.Passed():
					state = text.FgGreen.Sprint("ok")
				case probe.Checked:
					state = text.FgRed.Sprint("failed")
				}
				rows = append(rows, []string{"Vulkan", state, probe.DeviceDetail()})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))

			missing := deps.Missing(statuses)
			failed := preflight.Failed(results)
			if len(missing) > 0 || len(failed) > 0 {
				return fmt.Errorf("%d required dependencies missing, %d directory checks failed", len(missing), len(failed))
			}
			fmt.Fprintln(out, text.FgGreen.Sprint("All required dependencies available"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipVulkan, "skip-vulkan", false, "Skip the vulkaninfo GPU probe")
	return cmd
}

func dependencyState(status deps.Status) string {
	switch {
	case status.Available:
		return text.FgGreen.Sprint("ok")
	case status.Optional:
		return text.FgYellow.Sprint("optional")
	default:
		return text.FgRed.Sprint("missing")
	}
}

func dependencyDetail(status deps.Status) string {
	if status.Available {
		if status.Path != "" {
			return status.Path
		}
		return status.Description
	}
	if status.Detail != "" {
		return status.Detail
	}
	return status.Description
}
