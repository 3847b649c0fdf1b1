package core

import "sync"

// aggregateGroup is the owning object backing one batch of AGGREGATE
// submissions: a plain membership counter plus completion bookkeeping,
// instead of intrusive ring links through the member records.
type aggregateGroup struct {
	mu           sync.Mutex
	pendingCount int // members linked so far, including the finalizing one
	total        int
	completed    int
	finalized    bool
}

// memberDone is called by the engine when a member op of this group
// reports Complete.
func (g *aggregateGroup) memberDone() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed++
}

// isDone reports whether the group has been finalized (a non-AGGREGATE
// submission arrived to close the batch) and every member has completed.
func (g *aggregateGroup) isDone() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.finalized && g.completed >= g.total
}

func (g *aggregateGroup) finalize(total int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.total = total
	g.finalized = true
}

// AggregationQueue groups aggregate submissions: ops carrying the AGGREGATE flag are
// appended to a process-global pending-members group and receive no handle
// of their own; the next op submitted *without* AGGREGATE becomes the final
// member and causes a synthetic container op to surface a handle that
// completes once every member (including the finalizing one) has reported
// Complete.
type AggregationQueue struct {
	mu      sync.Mutex
	pending *aggregateGroup
}

// NewAggregationQueue builds an empty aggregation queue.
func NewAggregationQueue() *AggregationQueue {
	return &AggregationQueue{}
}

// containerPoll is the synthetic container's poll function: it never issues
// any transport activity, it only observes its group's completion state.
func containerPoll(op *OpRecord, _ *ThreadContext) PollResult {
	if op.containerGroup.isDone() {
		return Complete
	}
	return Stall
}

// Submit links op into the active list. If aggregate is true, op joins (or
// starts) the pending group and is given no handle of its own. If false,
// op both joins and finalizes the pending group, and a synthetic container
// op carrying the real handle is submitted alongside it. The returned
// handle is InvalidHandle for aggregate==true submissions.
func (q *AggregationQueue) Submit(tc *ThreadContext, engine *Engine, op *OpRecord, aggregate bool) *Handle {
	q.mu.Lock()
	if q.pending == nil {
		q.pending = &aggregateGroup{}
	}
	group := q.pending
	group.mu.Lock()
	group.pendingCount++
	group.mu.Unlock()

	op.aggregate = group
	op.Handle = InvalidHandle

	if aggregate {
		q.mu.Unlock()
		engine.Submit(op)
		return InvalidHandle
	}

	q.pending = nil
	q.mu.Unlock()

	engine.Submit(op)

	h := tc.CreateHandle()
	container := tc.CreateOp()
	container.Poll = containerPoll
	container.Handle = h
	container.containerGroup = group

	group.finalize(group.pendingCount)

	engine.Submit(container)
	return h
}
