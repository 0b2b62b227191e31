package main

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"upscaler/internal/config"
	"upscaler/internal/logging"
)

// interruptHooks replaces signal delivery and process exit for the run's
// interrupt handler. The zero value uses the real ones.
type interruptHooks struct {
	signals <-chan os.Signal
	exit    func(code int)
}

type commandContext struct {
	configFlag    *string
	logLevelFlag  *string
	logFormatFlag *string
	interrupts    interruptHooks

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag, logFormatFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logLevelFlag:  logLevelFlag,
		logFormatFlag: logFormatFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// logger builds the process logger. Persistent --log-level/--log-format
// flags win over the config file.
func (c *commandContext) logger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Logging.Level
	format := cfg.Logging.Format
	if flagChanged(cmd, "log-level") && c.logLevelFlag != nil {
		level = *c.logLevelFlag
	}
	if flagChanged(cmd, "log-format") && c.logFormatFlag != nil {
		format = *c.logFormatFlag
	}
	opts, err := logging.FileOptions(level, format, cfg.Paths.LogDir)
	if err != nil {
		return nil, err
	}
	return logging.New(opts)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
