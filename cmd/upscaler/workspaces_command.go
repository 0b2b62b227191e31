package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"upscaler/internal/workspace"
)

func newWorkspacesCommand(ctx *commandContext) *cobra.Command {
	workspacesCmd := &cobra.Command{
		Use:   "workspaces",
		Short: "Manage temp_upscale_* workspaces",
	}

	workspacesCmd.AddCommand(newWorkspacesListCommand(ctx))
	workspacesCmd.AddCommand(newWorkspacesCleanCommand(ctx))

	return workspacesCmd
}

func newWorkspacesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces left behind by earlier runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			parent := cfg.Paths.WorkspaceDir
			dirs, err := workspace.List(parent)
			if err != nil {
				return fmt.Errorf("list workspaces: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintf(out, "No workspaces found in %s\n", parent)
				return nil
			}

			fmt.Fprintf(out, "Workspace directory: %s\n\n", parent)

			var totalSize int64
			rows := make([][]string, 0, len(dirs))
			for _, dir := range dirs {
				totalSize += dir.Size
				rows = append(rows, []string{
					dir.Name,
					humanize.Time(dir.ModTime),
					humanize.Bytes(uint64(max(dir.Size, 0))),
					yesNo(dir.Locked),
				})
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Workspace", "Modified", "Size", "In use"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "\nTotal: %d workspaces, %s\n", len(dirs), humanize.Bytes(uint64(max(totalSize, 0))))
			return nil
		},
	}
}

func newWorkspacesCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale workspaces",
		Long: `Remove temp_upscale_* workspaces older than the configured age.

Workspaces locked by a running upscaler are never removed. The default age
comes from workspace.stale_after_hours; --older-than overrides it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			maxAge := time.Duration(cfg.Workspace.StaleAfterHours) * time.Hour
			if cmd.Flags().Changed("older-than") {
				if olderThan < 0 {
					return fmt.Errorf("--older-than must not be negative")
				}
				maxAge = olderThan
			}

			logger, err := ctx.logger(cmd, cfg)
			if err != nil {
				return err
			}

			result := workspace.CleanStale(cmd.Context(), cfg.Paths.WorkspaceDir, maxAge, logger)

			out := cmd.OutOrStdout()
			for _, path := range result.Removed {
				fmt.Fprintf(out, "Removed %s\n", path)
			}
			for _, path := range result.Skipped {
				fmt.Fprintf(out, "Skipped %s (in use)\n", path)
			}
			for _, cleanupErr := range result.Errors {
				fmt.Fprintln(out, text.FgRed.Sprintf("Failed %s: %v", cleanupErr.Path, cleanupErr.Error))
			}
			fmt.Fprintf(out, "Removed %d workspaces older than %s\n", len(result.Removed), maxAge)
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d workspaces could not be removed", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Minimum workspace age to remove (e.g. 2h, 30m)")
	return cmd
}
