// Package pipeline sequences the upscale stages for one input.
//
// A Pipeline creates the run's workspace, probes and extracts the source,
// upscales every frame under the progress monitor, and then either encodes
// and muxes a video or copies the single upscaled frame for a still image.
// Stage errors propagate unmodified; the workspace is released exactly once
// through the shared workspace.Handle no matter which path ends the run.
package pipeline
