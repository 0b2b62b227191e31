// Package progress reports how far a directory-in/directory-out stage has
// progressed by counting the artifacts it has written so far.
//
// A Monitor polls its destination directory on a fixed interval while the
// supervised command runs. Session.Stop is the completion handshake: it
// signals the polling goroutine, waits for the final render, and only then
// returns, so no progress output trails into the next stage. The reported
// count never decreases and reaches the total exactly once, when the stage
// is stopped as completed.
package progress
