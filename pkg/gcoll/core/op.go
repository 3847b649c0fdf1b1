package core

import (
	"github.com/jabolina/gcoll-engine/pkg/gcoll/consensus"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/p2p"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/tree"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/types"
)

// PollResult is the bitmask a PollFunc returns from one invocation.
type PollResult uint8

const (
	// Stall (the zero value) means "no progress this tick"; the engine
	// will revisit on the next sweep.
	Stall PollResult = 0
	// Complete means the op finished successfully; its handle (or
	// aggregate membership) should be signaled.
	Complete PollResult = 1 << iota
	// Inactive means the op should be unlinked and destroyed without
	// signaling. Most ops only ever return Stall/Complete, but the
	// active-list engine recognizes this bit too.
	Inactive
)

// PollFunc advances one op's state machine; one invocation may move it
// through several states, stopping at the first that cannot proceed.
type PollFunc func(op *OpRecord, tc *ThreadContext) PollResult

// TreeData is attached to algorithms that need a cached topology.
type TreeData struct {
	Geometry            *tree.Geometry
	PipelineSegmentSize int
	BytesSent           int
}

// GenericAlgData is the private data shared by every algorithm state
// machine: ownership, barrier/P2P options, consensus tokens, a pending
// non-blocking transport handle, algorithm-private scratch, and the tagged
// argument union.
type GenericAlgData struct {
	OwnerThread int

	NeedInBarrier  bool
	NeedOutBarrier bool
	NeedP2P        bool

	InToken  consensus.Token
	OutToken consensus.Token

	// SrcAddr/DstAddr are this rank's own segment-relative offsets for
	// its Src/Dst buffers, computed once at submit time. Under the
	// SINGLE flag's symmetric-address convention, a participant's own
	// SrcAddr is numerically identical to every other participant's -
	// including the root's - so a Get-based algorithm can target the
	// root's node using its own locally computed offset.
	SrcAddr uintptr
	DstAddr uintptr

	P2P *p2p.Record

	Tree *TreeData

	// Scratch is algorithm-private state opaque to the engine (e.g. a
	// pending transport handle, a slice of them, or a one-shot latch).
	Scratch interface{}

	// Scratch2 is a second algorithm-private one-shot gate, used by
	// variants that need to latch two independent "done once" flags (for
	// example BcastTreeGet latches its one ack to the parent here, apart
	// from its own Get-completion).
	Scratch2 bool

	Args types.CollArgs
}

// OpState is a named algorithm-local state.
type OpState int

const (
	AwaitInBarrier OpState = iota
	InitiateTransfer
	AwaitTransfer
	AwaitOutBarrier
	Cleanup
	done // terminal marker; never returned from a poll function directly
)

// OpRecord is a collective operation's engine-owned record: the unit linked
// into the active list and driven by the progress engine. Its State only
// ever advances.
type OpRecord struct {
	Team     *types.Team
	Sequence uint32
	Flags    types.Flags
	Algo     AlgorithmID

	RT      *Runtime
	Generic *GenericAlgData
	Poll    PollFunc

	State    OpState
	maxState OpState // highest state observed so far, enforced by AdvanceTo

	Handle *Handle

	// aggregate is non-nil when this op was submitted with AGGREGATE (or
	// finalized one), linking it to the group whose completion it
	// contributes to.
	aggregate *aggregateGroup

	// containerGroup is set only on the synthetic container op created
	// by AggregationQueue.Submit; containerPoll reads it to decide when
	// the whole group has finished.
	containerGroup *aggregateGroup

	prev, next *OpRecord // active-list links, owned by Engine
}

// AdvanceTo moves the op to newState, panicking (a programming error inside
// this repo's own algorithm library, not a caller-facing usage error) if
// newState would revisit an earlier state.
func (op *OpRecord) AdvanceTo(newState OpState) {
	if newState < op.maxState {
		panic(&types.ProtocolError{Message: "op state attempted to move backward"})
	}
	op.State = newState
	op.maxState = newState
}

// AlgorithmID names one of the (collective x strategy) poll function
// variants.
type AlgorithmID int

const (
	AlgoBcastGet AlgorithmID = iota
	AlgoBcastPut
	AlgoBcastEager
	AlgoBcastRVGet
	AlgoBcastTreePut
	AlgoBcastTreeGet
	AlgoBcastTreeEager

	AlgoScatterGet
	AlgoScatterPut
	AlgoScatterEager
	AlgoScatterRVGet

	AlgoGatherGet
	AlgoGatherPut
	AlgoGatherEager
	AlgoGatherRVPut
)

func (a AlgorithmID) String() string {
	names := [...]string{
		"bcast-get", "bcast-put", "bcast-eager", "bcast-rvget",
		"bcast-treeput", "bcast-treeget", "bcast-treeeager",
		"scatter-get", "scatter-put", "scatter-eager", "scatter-rvget",
		"gather-get", "gather-put", "gather-eager", "gather-rvput",
	}
	if int(a) < 0 || int(a) >= len(names) {
		return "unknown"
	}
	return names[a]
}
