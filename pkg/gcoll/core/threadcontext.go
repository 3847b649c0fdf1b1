package core

import "sync"

// ThreadContext is the explicit per-caller context argument passed to
// every entry point in place of reserved thread-local storage. It carries
// this caller's image id and the freelists backing the
// op-record/generic-data/tree-data/handle pools, implemented with
// sync.Pool: the pools grow on demand, never hard-fail, and are not
// returned to the OS eagerly.
type ThreadContext struct {
	MyImage int

	opPool      sync.Pool
	genericPool sync.Pool
	treePool    sync.Pool
	handlePool  sync.Pool

	// currentImplicitOp is used by algorithms that themselves issue
	// implicit-sync non-blocking transfers bound to an ambient NBI
	// region rather than their own explicit handle.
	currentImplicitOp *OpRecord
}

// NewThreadContext builds a ThreadContext for the calling thread/goroutine,
// identified by myImage.
func NewThreadContext(myImage int) *ThreadContext {
	tc := &ThreadContext{MyImage: myImage}
	tc.opPool.New = func() interface{} { return &OpRecord{} }
	tc.genericPool.New = func() interface{} { return &GenericAlgData{} }
	tc.treePool.New = func() interface{} { return &TreeData{} }
	tc.handlePool.New = func() interface{} { return newHandle() }
	return tc
}

// CreateOp pops an op record from the freelist (or allocates a fresh one),
// zeroed except for the fields the caller is about to set.
func (tc *ThreadContext) CreateOp() *OpRecord {
	op := tc.opPool.Get().(*OpRecord)
	*op = OpRecord{}
	return op
}

// DestroyOp pushes op back onto the freelist.
func (tc *ThreadContext) DestroyOp(op *OpRecord) {
	tc.opPool.Put(op)
}

func (tc *ThreadContext) CreateGeneric() *GenericAlgData {
	g := tc.genericPool.Get().(*GenericAlgData)
	*g = GenericAlgData{}
	return g
}

func (tc *ThreadContext) DestroyGeneric(g *GenericAlgData) {
	tc.genericPool.Put(g)
}

func (tc *ThreadContext) CreateTreeData() *TreeData {
	t := tc.treePool.Get().(*TreeData)
	*t = TreeData{}
	return t
}

func (tc *ThreadContext) DestroyTreeData(t *TreeData) {
	tc.treePool.Put(t)
}

// CreateHandle returns a handle initialized to in-flight.
func (tc *ThreadContext) CreateHandle() *Handle {
	h := tc.handlePool.Get().(*Handle)
	h.state.Store(int32(handleInFlight))
	return h
}

// Done implements the three-state handle contract: it reads with acquire
// ordering, and on observing complete atomically moves the cell onto the
// freelist and returns true; otherwise it returns false and the handle
// remains the caller's to poll again.
func (tc *ThreadContext) Done(h *Handle) bool {
	if h == InvalidHandle {
		return true
	}
	if !h.Done() {
		return false
	}
	h.release()
	tc.handlePool.Put(h)
	return true
}
