// Package preflight provides readiness checks for the external tools and
// filesystem paths the upscaler depends on.
//
// These checks run in two contexts:
//   - Before a run, RunAll verifies the workspace parent and output
//     directories and CheckBinaries the required tools, so a doomed run
//     fails before any frames are extracted.
//   - The CLI "upscaler check" command combines RunAll with CheckSystemDeps
//     and ProbeVulkan to display a readiness table.
package preflight
