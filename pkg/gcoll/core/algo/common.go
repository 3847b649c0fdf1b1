// Package algo is the collective algorithm library: one PollFunc per
// (collective, strategy) pair, each a state machine with the same canonical
// shape - await an optional IN barrier, issue transfers, await local
// completion, await an optional OUT barrier, clean up. A poll function
// advances its op's state through as many states as are ready within one
// invocation, stalling at the first that is not, and never rewinds.
package algo

import (
	"encoding/binary"

	"github.com/jabolina/gcoll-engine/pkg/gcoll/core"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/p2p"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/transport"
)

// awaitInBarrier runs the first canonical state: if an IN barrier was
// requested and hasn't drained yet, stall; otherwise the op may advance.
func awaitInBarrier(op *core.OpRecord) bool {
	g := op.Generic
	if !g.NeedInBarrier {
		return true
	}
	ok, err := op.RT.Consensus.Try(g.InToken)
	if err != nil {
		op.RT.Logger.Fatalf("consensus IN barrier failed for op %d/%d: %v", op.Team.ID, op.Sequence, err)
	}
	return ok
}

// awaitOutBarrier is the symmetric exit-side check.
func awaitOutBarrier(op *core.OpRecord) bool {
	g := op.Generic
	if !g.NeedOutBarrier {
		return true
	}
	ok, err := op.RT.Consensus.Try(g.OutToken)
	if err != nil {
		op.RT.Logger.Fatalf("consensus OUT barrier failed for op %d/%d: %v", op.Team.ID, op.Sequence, err)
	}
	return ok
}

// cleanup frees the op's P2P and tree resources (if any) and reports
// Complete - the final canonical state, run exactly once per op.
func cleanup(op *core.OpRecord, tc *core.ThreadContext) core.PollResult {
	g := op.Generic
	if g.NeedP2P {
		op.RT.P2P.Free(uint32(op.Team.ID), op.Sequence)
	}
	if g.Tree != nil {
		g.Tree.Geometry.Release()
	}
	return core.Complete
}

// runBarrierGatedTransfer is the shared driver every PollFunc below calls:
// it advances through AwaitInBarrier, delegates the transfer-specific
// states to transfer, then AwaitOutBarrier and Cleanup. transfer is called
// once per tick while the op is in InitiateTransfer or AwaitTransfer and
// returns true once the payload has been fully delivered; the driver then
// advances the op to AwaitOutBarrier itself.
func runBarrierGatedTransfer(op *core.OpRecord, tc *core.ThreadContext, transfer func(*core.OpRecord, *core.ThreadContext) bool) core.PollResult {
	switch op.State {
	case core.AwaitInBarrier:
		if !awaitInBarrier(op) {
			return core.Stall
		}
		op.AdvanceTo(core.InitiateTransfer)
		fallthrough

	case core.InitiateTransfer, core.AwaitTransfer:
		if !transfer(op, tc) {
			return core.Stall
		}
		op.AdvanceTo(core.AwaitOutBarrier)
		fallthrough

	case core.AwaitOutBarrier:
		if !awaitOutBarrier(op) {
			return core.Stall
		}
		op.AdvanceTo(core.Cleanup)
		fallthrough

	case core.Cleanup:
		return cleanup(op, tc)

	default:
		panic("algo: op in impossible state")
	}
}

// imageCount is a small convenience used throughout for sizing P2P state
// arrays to the team's topology.
func imageCount(op *core.OpRecord) int {
	return op.RT.Topology.ImageCount()
}

func myImage(tc *core.ThreadContext) int { return tc.MyImage }

// waitHandle polls a non-blocking transport handle to completion without
// blocking the calling goroutine - used by Get/Put-based transfer stages.
func waitHandle(op *core.OpRecord) bool {
	if op.Generic.Scratch == nil {
		return true
	}
	h := op.Generic.Scratch.(transport.NBHandle)
	if op.RT.Transport.TrySyncNB(h) {
		op.Generic.Scratch = nil
		return true
	}
	return false
}

// peerAddr decodes the 8-byte little-endian address a rendezvous peer
// published into the front of rec's data buffer via eager_addr.
func peerAddr(rec *p2p.Record) uintptr {
	return uintptr(binary.LittleEndian.Uint64(rec.Data[:8]))
}

// copyDistinct copies n bytes of src into dst unless they already alias the
// same backing array - the local-delivery step every rooted algorithm runs
// on the rank that already holds the payload.
func copyDistinct(dst, src []byte, n int) {
	if len(dst) == 0 || len(src) == 0 || &dst[0] == &src[0] {
		return
	}
	copy(dst[:n], src[:n])
}
