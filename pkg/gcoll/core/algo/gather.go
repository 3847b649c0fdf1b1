package algo

import (
	"github.com/jabolina/gcoll-engine/pkg/gcoll/core"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/transport"
)

// transportHandle is a local alias kept to avoid a package-qualified type
// assertion at every call site below.
type transportHandle = transport.NBHandle

// gatherDst/gatherSrc collapse the M-variant the same way the other
// families do.
func gatherDst(op *core.OpRecord) []byte {
	a := op.Generic.Args
	if a.IsM() {
		return a.GatherM.Dst
	}
	return a.Gather.Dst
}

func gatherSrc(op *core.OpRecord) []byte {
	a := op.Generic.Args
	if a.IsM() {
		return a.GatherM.SrcList[0]
	}
	return a.Gather.Src
}

func gatherRoot(op *core.OpRecord) int {
	return op.Generic.Args.RootImage()
}

func gatherNBytes(op *core.OpRecord) int {
	return op.Generic.Args.NBytes()
}

// gatherSlot returns the root's Dst sub-slice reserved for image's
// contribution.
func gatherSlot(op *core.OpRecord, image int) []byte {
	n := gatherNBytes(op)
	return gatherDst(op)[image*n : (image+1)*n]
}

// GatherGet: the root pulls each non-root's own Src slice directly via a
// Get; the root's own contribution is a local copy.
func GatherGet(op *core.OpRecord, tc *core.ThreadContext) core.PollResult {
	return runBarrierGatedTransfer(op, tc, func(op *core.OpRecord, tc *core.ThreadContext) bool {
		root := gatherRoot(op)
		n := imageCount(op)

		if myImage(tc) != root {
			return true
		}

		if op.Generic.Scratch == nil {
			copyDistinct(gatherSlot(op, root), gatherSrc(op), gatherNBytes(op))
			handles := make([]transportHandle, 0, n-1)
			for image := 0; image < n; image++ {
				if image == root {
					continue
				}
				node := op.RT.Topology.NodeOf(image)
				h, err := op.RT.Transport.NBGetBulk(gatherSlot(op, image), node, op.Generic.SrcAddr, gatherNBytes(op))
				if err != nil {
					op.RT.Logger.Fatalf("gather(get): NBGetBulk failed: %v", err)
				}
				handles = append(handles, h)
			}
			op.Generic.Scratch = handles
		}

		pending := op.Generic.Scratch.([]transportHandle)
		for _, h := range pending {
			if !op.RT.Transport.TrySyncNB(h) {
				return false
			}
		}
		return true
	})
}

// GatherPut: every non-root image pushes its own Src slice directly into
// the root's Dst slot with a single signalling put (payload plus the
// state-array ack in one call); the root waits for every slot to be marked
// delivered.
func GatherPut(op *core.OpRecord, tc *core.ThreadContext) core.PollResult {
	return runBarrierGatedTransfer(op, tc, func(op *core.OpRecord, tc *core.ThreadContext) bool {
		root := gatherRoot(op)
		n := imageCount(op)
		rec := op.Generic.P2P

		if myImage(tc) == root {
			copyDistinct(gatherSlot(op, root), gatherSrc(op), gatherNBytes(op))
			for image := 0; image < n; image++ {
				if image == root {
					continue
				}
				if rec.State[image] != 1 {
					return false
				}
			}
			return true
		}

		if op.Generic.Scratch == nil {
			rootNode := op.RT.Topology.NodeOf(root)
			me := myImage(tc)
			dstAddr := op.Generic.DstAddr + uintptr(me*gatherNBytes(op))
			if err := op.RT.P2P.SignallingPut(rootNode, uint32(op.Team.ID), op.Sequence, dstAddr, gatherSrc(op)[:gatherNBytes(op)], uint32(me), 1); err != nil {
				op.RT.Logger.Fatalf("gather(put): signalling put failed: %v", err)
			}
			op.Generic.Scratch = true
		}
		return true
	})
}

// GatherEager: every non-root AM-pushes its own slice into the root's P2P
// data buffer at its own image's element slot; the root copies out of its
// P2P record once every non-root slot has arrived.
func GatherEager(op *core.OpRecord, tc *core.ThreadContext) core.PollResult {
	return runBarrierGatedTransfer(op, tc, func(op *core.OpRecord, tc *core.ThreadContext) bool {
		root := gatherRoot(op)
		n := imageCount(op)
		rec := op.Generic.P2P

		if myImage(tc) == root {
			copyDistinct(gatherSlot(op, root), gatherSrc(op), gatherNBytes(op))
			if op.Generic.Scratch == nil {
				for image := 0; image < n; image++ {
					if image == root {
						continue
					}
					if rec.State[image] != 1 {
						return false
					}
				}
				nb := gatherNBytes(op)
				for image := 0; image < n; image++ {
					if image == root {
						continue
					}
					copy(gatherSlot(op, image), rec.Data[image*nb:(image+1)*nb])
				}
				op.Generic.Scratch = true
			}
			return true
		}

		if op.Generic.Scratch == nil {
			rootNode := op.RT.Topology.NodeOf(root)
			nb := gatherNBytes(op)
			if err := op.RT.P2P.EagerPut(rootNode, uint32(op.Team.ID), op.Sequence, gatherSrc(op)[:nb], nb, uint32(myImage(tc)), 1); err != nil {
				op.RT.Logger.Fatalf("gather(eager): push failed: %v", err)
			}
			op.Generic.Scratch = true
		}
		return true
	})
}

// GatherRVPut: the root broadcasts its destination address; every non-root
// waits for it, then issues a signalling put into its own slot of that
// buffer instead of blind-pushing on schedule - useful when the root's Dst
// segment residency isn't known to the rest of the team ahead of time.
func GatherRVPut(op *core.OpRecord, tc *core.ThreadContext) core.PollResult {
	return runBarrierGatedTransfer(op, tc, func(op *core.OpRecord, tc *core.ThreadContext) bool {
		root := gatherRoot(op)
		n := imageCount(op)
		rec := op.Generic.P2P

		if myImage(tc) == root {
			copyDistinct(gatherSlot(op, root), gatherSrc(op), gatherNBytes(op))
			if op.Generic.Scratch == nil {
				addr := uint64(op.Generic.DstAddr)
				if err := op.RT.P2P.EagerAddrAll(uint32(op.Team.ID), op.Sequence, addr, 0, 1); err != nil {
					op.RT.Logger.Fatalf("gather(rvput): address publish failed: %v", err)
				}
				op.Generic.Scratch = true
			}
			for image := 0; image < n; image++ {
				if image == root {
					continue
				}
				if rec.State[image] != 1 {
					return false
				}
			}
			return true
		}

		if op.Generic.Scratch == nil {
			if rec.State[0] != 1 {
				return false
			}
			rootNode := op.RT.Topology.NodeOf(root)
			me := myImage(tc)
			dstAddr := peerAddr(rec) + uintptr(me*gatherNBytes(op))
			if err := op.RT.P2P.SignallingPut(rootNode, uint32(op.Team.ID), op.Sequence, dstAddr, gatherSrc(op)[:gatherNBytes(op)], uint32(me), 1); err != nil {
				op.RT.Logger.Fatalf("gather(rvput): signalling put failed: %v", err)
			}
			op.Generic.Scratch = true
		}
		return true
	})
}
