// Package main hosts the upscaler CLI.
//
// The root command runs one upscale job: it resolves configuration from the
// TOML file and flags, runs the preflight checks, installs the interrupt
// handler, and hands a resolved pipeline.PipelineConfig to the orchestrator.
// Subcommands cover dependency checks, workspace housekeeping, and
// configuration scaffolding.
//
// Keep this package thin: behavior lives in the internal packages and is
// surfaced here through flags and output formatting.
package main
