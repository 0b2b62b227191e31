// Package cmdrun launches external tools with explicit argument lists.
//
// Runner.Run streams stdout to the terminal (or discards it when quiet) and
// always captures stderr so a failure can report what the tool printed.
// Runner.Capture returns stdout for probe-style commands. Any spawn failure,
// non-zero exit, or signal death surfaces as *ExecutionError, which matches
// services.ErrExternalTool.
package cmdrun
