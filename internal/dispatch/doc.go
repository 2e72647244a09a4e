// Package dispatch fans one relay command out to many smartplugs.
//
// Every target gets its own goroutine. The whole batch shares one deadline:
// when it passes, each target still without a result is recorded as failed
// with TimeoutReason and its goroutine is abandoned. Workers only send on a
// buffered channel, and a single collector builds the Outcome.
package dispatch
