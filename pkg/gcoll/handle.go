package gcoll

import "github.com/jabolina/gcoll-engine/pkg/gcoll/core"

// Handle is the caller-facing completion token returned by every NB entry
// point. It wraps the engine's internal three-state *core.Handle together
// with the ThreadContext that owns its freelist, so that TrySync/WaitSync
// can return the handle to its pool exactly once, on the first observed
// completion.
type Handle struct {
	tc    *core.ThreadContext
	h     *core.Handle
	freed bool
}

func wrapHandle(tc *core.ThreadContext, h *core.Handle) *Handle {
	return &Handle{tc: tc, h: h}
}

// done reports completion and, the first time it observes one, releases
// the underlying handle back to its pool. The freed latch keeps later
// probes from touching a cell the pool may already have recycled.
func (h *Handle) done() bool {
	if h == nil || h.h == nil || h.freed {
		return true
	}
	if !h.tc.Done(h.h) {
		return false
	}
	h.freed = true
	return true
}

// TrySync probes h without blocking.
func (h *Handle) TrySync() bool {
	return h.done()
}

// WaitSync blocks the calling goroutine, driving c's progress engine, until
// h completes.
func (c *Context) WaitSync(h *Handle) {
	for !h.done() {
		c.Poll()
	}
}

// TrySyncSome reports, without blocking, which of hs have completed.
func TrySyncSome(hs []*Handle) []bool {
	out := make([]bool, len(hs))
	for i, h := range hs {
		out[i] = h.done()
	}
	return out
}

// TrySyncAll reports whether every handle in hs has completed.
func TrySyncAll(hs []*Handle) bool {
	for _, h := range hs {
		if !h.done() {
			return false
		}
	}
	return true
}

// WaitSyncSome blocks until at least one handle in hs has completed,
// reporting which.
func (c *Context) WaitSyncSome(hs []*Handle) []bool {
	for {
		done := TrySyncSome(hs)
		for _, d := range done {
			if d {
				return done
			}
		}
		c.Poll()
	}
}

// WaitSyncAll blocks until every handle in hs has completed.
func (c *Context) WaitSyncAll(hs []*Handle) {
	for !TrySyncAll(hs) {
		c.Poll()
	}
}
