// Package services defines shared utilities consumed by the pipeline stages and
// the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp the run identifier and stage name for logging.
//   - Structured error markers plus the Wrap helper so every failure can be
//     classified (configuration, execution, missing artifact, workspace)
//     without string matching.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
