package algo

import (
	"github.com/jabolina/gcoll-engine/pkg/gcoll/core"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/transport"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/tree"
)

// bcastDst returns the local destination buffer a remote transfer lands in,
// collapsing the M-variant's per-image list down to its first entry; the
// remaining local images are fanned out by bcastDeliverLocal after the
// remote arrives.
func bcastDst(op *core.OpRecord) []byte {
	a := op.Generic.Args
	if a.IsM() {
		return a.BcastM.DstList[0]
	}
	return a.Bcast.Dst
}

func bcastSrc(op *core.OpRecord) []byte {
	a := op.Generic.Args
	if a.IsM() {
		return a.BcastM.Src
	}
	return a.Bcast.Src
}

func bcastRoot(op *core.OpRecord) int {
	return op.Generic.Args.RootImage()
}

func bcastNBytes(op *core.OpRecord) int {
	return op.Generic.Args.NBytes()
}

// bcastDeliverLocal lands the payload in every local destination this rank
// names: the single Dst, or each entry of the M-variant's DstList. Copies
// are skipped where from already aliases the destination.
func bcastDeliverLocal(op *core.OpRecord, from []byte) {
	n := bcastNBytes(op)
	a := op.Generic.Args
	if a.IsM() {
		for _, d := range a.BcastM.DstList {
			copyDistinct(d, from, n)
		}
		return
	}
	copyDistinct(a.Bcast.Dst, from, n)
}

// BcastGet: non-roots pull directly from the root's Src buffer (needs
// SRC-in-segment); the root only delivers locally.
func BcastGet(op *core.OpRecord, tc *core.ThreadContext) core.PollResult {
	return runBarrierGatedTransfer(op, tc, func(op *core.OpRecord, tc *core.ThreadContext) bool {
		root := bcastRoot(op)
		if myImage(tc) == root {
			bcastDeliverLocal(op, bcastSrc(op))
			return true
		}
		if op.Generic.Scratch == nil {
			rootNode := op.RT.Topology.NodeOf(root)
			h, err := op.RT.Transport.NBGetBulk(bcastDst(op), rootNode, op.Generic.SrcAddr, bcastNBytes(op))
			if err != nil {
				op.RT.Logger.Fatalf("broadcast(get): NBGetBulk failed: %v", err)
			}
			op.Generic.Scratch = h
		}
		if !waitHandle(op) {
			return false
		}
		bcastDeliverLocal(op, bcastDst(op))
		return true
	})
}

// BcastPut: the root pushes the payload to every other image through an
// implicit-completion region, waits for the region to drain, then acks each
// destination through the P2P state array so a non-root with no transfer of
// its own can detect arrival without relying on OUT_ALLSYNC. The ack is
// sent only after the region handle reports done, honoring the "state
// observed only after payload stored" ordering rule across the two calls.
func BcastPut(op *core.OpRecord, tc *core.ThreadContext) core.PollResult {
	return runBarrierGatedTransfer(op, tc, func(op *core.OpRecord, tc *core.ThreadContext) bool {
		root := bcastRoot(op)
		n := imageCount(op)
		rec := op.Generic.P2P
		g := op.Generic

		if myImage(tc) == root {
			if g.Scratch == nil {
				src := bcastSrc(op)
				op.RT.Transport.BeginNBIRegion()
				for image := 0; image < n; image++ {
					if image == root {
						continue
					}
					node := op.RT.Topology.NodeOf(image)
					if err := op.RT.Transport.NBIPutBulk(node, g.DstAddr, src, bcastNBytes(op)); err != nil {
						op.RT.Logger.Fatalf("broadcast(put): put failed: %v", err)
					}
				}
				g.Scratch = op.RT.Transport.EndNBIRegion()
			}
			if !op.RT.Transport.TrySyncNB(g.Scratch.(transport.NBHandle)) {
				return false
			}
			if !g.Scratch2 {
				for image := 0; image < n; image++ {
					if image == root {
						continue
					}
					if err := op.RT.P2P.ChangeStates(op.RT.Topology.NodeOf(image), uint32(op.Team.ID), op.Sequence, 1, uint32(root), 1); err != nil {
						op.RT.Logger.Fatalf("broadcast(put): ack failed: %v", err)
					}
				}
				g.Scratch2 = true
			}
			bcastDeliverLocal(op, bcastSrc(op))
			return true
		}

		if rec.State[root] != 1 {
			return false
		}
		bcastDeliverLocal(op, bcastDst(op))
		return true
	})
}

// BcastEager: the root AM-pushes the payload directly into every other
// image's P2P data buffer.
func BcastEager(op *core.OpRecord, tc *core.ThreadContext) core.PollResult {
	return runBarrierGatedTransfer(op, tc, func(op *core.OpRecord, tc *core.ThreadContext) bool {
		root := bcastRoot(op)
		rec := op.Generic.P2P

		if myImage(tc) == root {
			if op.Generic.Scratch == nil {
				src := bcastSrc(op)
				if err := op.RT.P2P.EagerPutAll(uint32(op.Team.ID), op.Sequence, src, bcastNBytes(op), false, 0, 1); err != nil {
					op.RT.Logger.Fatalf("broadcast(eager): push failed: %v", err)
				}
				op.Generic.Scratch = true
			}
			bcastDeliverLocal(op, bcastSrc(op))
			return true
		}

		if rec.State[0] != 1 {
			return false
		}
		copy(bcastDst(op), rec.Data[:bcastNBytes(op)])
		bcastDeliverLocal(op, bcastDst(op))
		return true
	})
}

// BcastRVGet: the root broadcasts its own source address via P2P; once a
// non-root observes it, it issues a direct Get for the payload and acks the
// root, which holds its source buffer steady until every ack has arrived.
func BcastRVGet(op *core.OpRecord, tc *core.ThreadContext) core.PollResult {
	return runBarrierGatedTransfer(op, tc, func(op *core.OpRecord, tc *core.ThreadContext) bool {
		root := bcastRoot(op)
		n := imageCount(op)
		rec := op.Generic.P2P
		g := op.Generic

		if myImage(tc) == root {
			if g.Scratch == nil {
				addr := uint64(g.SrcAddr)
				if err := op.RT.P2P.EagerAddrAll(uint32(op.Team.ID), op.Sequence, addr, 0, 1); err != nil {
					op.RT.Logger.Fatalf("broadcast(rvget): address publish failed: %v", err)
				}
				g.Scratch = true
			}
			bcastDeliverLocal(op, bcastSrc(op))
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

		if g.Scratch == nil && !g.Scratch2 {
			if rec.State[0] != 1 {
				return false
			}
			rootNode := op.RT.Topology.NodeOf(root)
			h, err := op.RT.Transport.NBGetBulk(bcastDst(op), rootNode, peerAddr(rec), bcastNBytes(op))
			if err != nil {
				op.RT.Logger.Fatalf("broadcast(rvget): get failed: %v", err)
			}
			g.Scratch = h
			return false
		}
		if !waitHandle(op) {
			return false
		}
		if !g.Scratch2 {
			if err := op.RT.P2P.ChangeStates(op.RT.Topology.NodeOf(root), uint32(op.Team.ID), op.Sequence, 1, uint32(myImage(tc)), 1); err != nil {
				op.RT.Logger.Fatalf("broadcast(rvget): ack failed: %v", err)
			}
			g.Scratch2 = true
		}
		bcastDeliverLocal(op, bcastDst(op))
		return true
	})
}

// BcastTreePut: each rank, once its parent's signalling put has landed the
// payload in its Dst buffer (or immediately, if it is the root), forwards
// the payload to each of its own children with a signalling put of its own,
// building a tree of puts instead of a flat root-to-all fan-out.
func BcastTreePut(op *core.OpRecord, tc *core.ThreadContext) core.PollResult {
	return runBarrierGatedTransfer(op, tc, func(op *core.OpRecord, tc *core.ThreadContext) bool {
		g := op.Generic
		rec := g.P2P
		geom := g.Tree.Geometry

		if geom.Parent != tree.None && rec.State[0] != 1 {
			return false
		}
		if geom.Parent == tree.None {
			bcastDeliverLocal(op, bcastSrc(op))
		} else {
			bcastDeliverLocal(op, bcastDst(op))
		}

		if g.Scratch == nil {
			payload := bcastDst(op)[:bcastNBytes(op)]
			for _, child := range geom.Children {
				childNode := op.RT.Topology.NodeOf(child)
				if err := op.RT.P2P.SignallingPut(childNode, uint32(op.Team.ID), op.Sequence, g.DstAddr, payload, 0, 1); err != nil {
					op.RT.Logger.Fatalf("broadcast(treeput): forward failed: %v", err)
				}
			}
			g.Scratch = true
		}
		return true
	})
}

// BcastTreeGet: each non-root rank waits for its parent to signal
// readiness, issues a direct Get from the parent's node, and acknowledges
// the parent so it may retire its send slot; parents in turn hold their
// buffer steady until every child has acked.
//
// State-slot protocol: slot 0 carries the parent's ready signal; slots
// 1+childID carry each child's ack back up.
func BcastTreeGet(op *core.OpRecord, tc *core.ThreadContext) core.PollResult {
	return runBarrierGatedTransfer(op, tc, func(op *core.OpRecord, tc *core.ThreadContext) bool {
		g := op.Generic
		geom := g.Tree.Geometry
		rec := g.P2P
		root := bcastRoot(op)

		if geom.Parent == tree.None {
			bcastDeliverLocal(op, bcastSrc(op))
			return treeChildrenDone(op)
		}

		if rec.State[0] != 1 {
			return false
		}
		if g.Scratch == nil && !g.Scratch2 {
			parentNode := op.RT.Topology.NodeOf(geom.Parent)
			srcAddr := g.DstAddr
			if geom.Parent == root {
				srcAddr = g.SrcAddr
			}
			h, err := op.RT.Transport.NBGetBulk(bcastDst(op), parentNode, srcAddr, bcastNBytes(op))
			if err != nil {
				op.RT.Logger.Fatalf("broadcast(treeget): get failed: %v", err)
			}
			g.Scratch = h
		}
		if !waitHandle(op) {
			return false
		}
		if !g.Scratch2 {
			if err := op.RT.P2P.ChangeStates(op.RT.Topology.NodeOf(geom.Parent), uint32(op.Team.ID), op.Sequence, 1, 1+uint32(geom.ChildID), 1); err != nil {
				op.RT.Logger.Fatalf("broadcast(treeget): parent ack failed: %v", err)
			}
			g.Scratch2 = true
		}
		bcastDeliverLocal(op, bcastDst(op))
		return treeChildrenDone(op)
	})
}

// treeChildrenDone signals every child of this rank that it may now Get
// from here (sent exactly once), then reports whether every child's ack has
// arrived back.
func treeChildrenDone(op *core.OpRecord) bool {
	g := op.Generic
	rec := g.P2P
	children := g.Tree.Geometry.Children
	if g.Tree.BytesSent == 0 {
		for _, child := range children {
			if err := op.RT.P2P.ChangeStates(op.RT.Topology.NodeOf(child), uint32(op.Team.ID), op.Sequence, 1, 0, 1); err != nil {
				op.RT.Logger.Fatalf("broadcast(treeget): child ready-signal failed: %v", err)
			}
		}
		g.Tree.BytesSent = bcastNBytes(op) * len(children)
	}
	for i := range children {
		if rec.State[1+i] != 1 {
			return false
		}
	}
	return true
}

// BcastTreeEager: each rank, once its own P2P record shows a payload
// delivered from its parent (or immediately, if root), eager-AM-pushes the
// payload into each child's P2P data buffer.
func BcastTreeEager(op *core.OpRecord, tc *core.ThreadContext) core.PollResult {
	return runBarrierGatedTransfer(op, tc, func(op *core.OpRecord, tc *core.ThreadContext) bool {
		rec := op.Generic.P2P
		geom := op.Generic.Tree.Geometry
		n := bcastNBytes(op)

		payload := bcastSrc(op)
		if geom.Parent != tree.None {
			if rec.State[0] != 1 {
				return false
			}
			copy(bcastDst(op), rec.Data[:n])
			payload = bcastDst(op)
		}
		bcastDeliverLocal(op, payload)

		if op.Generic.Scratch == nil {
			for _, child := range geom.Children {
				childNode := op.RT.Topology.NodeOf(child)
				if err := op.RT.P2P.EagerPut(childNode, uint32(op.Team.ID), op.Sequence, payload[:n], n, 0, 1); err != nil {
					op.RT.Logger.Fatalf("broadcast(treeeager): push failed: %v", err)
				}
			}
			op.Generic.Scratch = true
		}
		return true
	})
}
