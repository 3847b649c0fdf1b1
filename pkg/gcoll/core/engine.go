package core

import (
	"sync"

	"github.com/jabolina/gcoll-engine/internal/logging"
	"github.com/jabolina/gcoll-engine/internal/telemetry"
)

// Engine is the active-list progress engine: a per-process FIFO queue of
// in-flight op records, advanced by repeatedly invoking each live op's poll
// function until it reports completion or inactivity. There is no global
// executor thread; Poll is driven explicitly by whoever wants progress.
type Engine struct {
	listMu     sync.Mutex
	head, tail *OpRecord
	length     int

	pollMu sync.Mutex

	logger  logging.Logger
	metrics *telemetry.Registry
}

// NewEngine builds an empty Engine.
func NewEngine(logger logging.Logger, metrics *telemetry.Registry) *Engine {
	return &Engine{logger: logger, metrics: metrics}
}

// Submit appends op to the tail of the active list, preserving FIFO
// submission order. Submission itself never blocks and never invokes a
// poll function.
func (e *Engine) Submit(op *OpRecord) {
	e.listMu.Lock()
	defer e.listMu.Unlock()
	op.prev, op.next = nil, nil
	if e.tail == nil {
		e.head, e.tail = op, op
	} else {
		op.prev = e.tail
		e.tail.next = op
		e.tail = op
	}
	e.length++
	if e.metrics != nil {
		e.metrics.ActiveListDepth.Set(float64(e.length))
	}
}

func (e *Engine) unlink(op *OpRecord) {
	e.listMu.Lock()
	defer e.listMu.Unlock()
	if op.prev != nil {
		op.prev.next = op.next
	} else {
		e.head = op.next
	}
	if op.next != nil {
		op.next.prev = op.prev
	} else {
		e.tail = op.prev
	}
	op.prev, op.next = nil, nil
	e.length--
	if e.metrics != nil {
		e.metrics.ActiveListDepth.Set(float64(e.length))
	}
}

// snapshot returns the current head-to-tail traversal order. Ops created
// during another op's poll are linked by Submit concurrently with this
// traversal but are only visited starting from the *next* sweep, since
// this snapshot is taken once at the start of Poll.
func (e *Engine) snapshot() []*OpRecord {
	e.listMu.Lock()
	defer e.listMu.Unlock()
	ops := make([]*OpRecord, 0, e.length)
	for op := e.head; op != nil; op = op.next {
		ops = append(ops, op)
	}
	return ops
}

// Poll is callable from any thread (goroutine). It acquires a single
// process-wide poll mutex - preventing useless contention among idle
// polling goroutines while still guaranteeing progress - then walks the
// active list head-first, invoking each op's poll function once. A
// returning Complete op has its handle signaled (or its aggregate
// membership decremented) and is unlinked; Stall leaves it exactly where
// it is for the next sweep. Calling Poll with no submitted ops is a
// no-op.
func (e *Engine) Poll(tc *ThreadContext) {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()

	for _, op := range e.snapshot() {
		result := op.Poll(op, tc)
		if result&Complete != 0 {
			e.completeOp(op, tc)
		} else if result&Inactive != 0 {
			e.unlink(op)
			e.recycle(op, tc)
		}
	}
}

// recycle returns an unlinked op's record and data blocks to the polling
// thread's freelists.
func (e *Engine) recycle(op *OpRecord, tc *ThreadContext) {
	if op.Generic != nil {
		if op.Generic.Tree != nil {
			tc.DestroyTreeData(op.Generic.Tree)
		}
		tc.DestroyGeneric(op.Generic)
	}
	tc.DestroyOp(op)
}

// completeOp unlinks op, recycles its record, and signals completion:
// directly on its own handle, or by decrementing its aggregate's
// remaining-member counter so the aggregate's container handle fires once
// the membership drains. Signaling happens last so the release store
// publishes every effect of the op.
func (e *Engine) completeOp(op *OpRecord, tc *ThreadContext) {
	e.unlink(op)
	agg := op.aggregate
	h := op.Handle
	e.recycle(op, tc)
	if agg != nil {
		agg.memberDone()
	} else if h != InvalidHandle {
		h.signal()
	}
}
