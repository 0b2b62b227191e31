// Package workspace owns the transient directory tree a pipeline run writes
// into.
//
// Create allocates a uniquely named temp_upscale_* directory with its frame
// subdirectories and holds an advisory lock on it for the lifetime of the run.
// Handle is the single place that decides whether the tree is removed or
// preserved; the orchestrator and the interrupt handler share one Handle so
// the decision happens exactly once. CleanStale and List provide housekeeping
// over workspaces left behind by crashed or preserved runs.
package workspace
