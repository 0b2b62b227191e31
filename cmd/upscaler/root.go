package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var errMissingInput = errors.New("required flag \"input\" not set")

func newRootCommand() *cobra.Command {
	return newRootCommandWithHooks(interruptHooks{})
}

func newRootCommandWithHooks(hooks interruptHooks) *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var logFormatFlag string
	var flags runFlags

	ctx := newCommandContext(&configFlag, &logLevelFlag, &logFormatFlag)
	ctx.interrupts = hooks

	rootCmd := &cobra.Command{
		Use:   "upscaler -i INPUT [flags]",
		Short: "Upscale a video or image with Real-ESRGAN and convert it to a target frame rate",
		Long: `Upscale a video or still image.

Videos are split into frames, upscaled with realesrgan-ncnn-vulkan, converted to
the target frame rate (RIFE or ffmpeg minterpolate), re-encoded and muxed with
the source audio. Images are upscaled and written directly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.input == "" {
				_ = cmd.Usage()
				return errMissingInput
			}
			return runUpscale(cmd, ctx, flags)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "console", "Log format (console, json)")
	flags.register(rootCmd)

	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newWorkspacesCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
