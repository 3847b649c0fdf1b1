// Package core implements the handle and op-record allocator, the
// active-list progress engine, and the aggregation queue: the
// concurrency-critical machinery every algorithm poll function (package
// algo) and the top-level dispatch layer build on.
package core

import (
	"sync/atomic"
)

type handleState int32

const (
	handleInFlight handleState = iota
	handleComplete
	handleFreed
)

// Handle is the opaque completion cell surfaced to callers. Its three
// states (in-flight, complete-but-not-freed, freed) and the
// write-release/read-acquire transition between the first two ensure that
// a caller observing completion also observes every remote write the op
// performed.
type Handle struct {
	state atomic.Int32
}

func newHandle() *Handle {
	h := &Handle{}
	h.state.Store(int32(handleInFlight))
	return h
}

// signal stores "complete" with release ordering - any remote-node write
// the op performed, made visible to this goroutine before signal is called,
// becomes visible to any goroutine that subsequently observes Done()/done()
// returning true (acquire ordering on the read side).
func (h *Handle) signal() {
	h.state.Store(int32(handleComplete))
}

// Done reports whether the handle is in the complete state without
// consuming it (repeatable - matches try_sync's "probe" semantics).
func (h *Handle) Done() bool {
	return handleState(h.state.Load()) != handleInFlight
}

// release (used internally when recycling a handle back to a freelist)
// transitions complete -> freed. It is a logic error to release a handle
// still in-flight; callers must have observed Done() first.
func (h *Handle) release() {
	h.state.Store(int32(handleFreed))
}

// InvalidHandle is the distinguished value representing "no handle" -
// returned for AGGREGATE submissions that have no exposed handle of their
// own. It is never touched by the allocator's create/signal/release
// operations.
var InvalidHandle *Handle = nil
