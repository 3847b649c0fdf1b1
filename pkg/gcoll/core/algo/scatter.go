package algo

import (
	"github.com/jabolina/gcoll-engine/pkg/gcoll/core"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/transport"
)

// scatterDst/scatterSrc collapse the M-variant's per-image list the same
// way bcastDst/bcastSrc do for broadcast.
func scatterDst(op *core.OpRecord) []byte {
	a := op.Generic.Args
	if a.IsM() {
		return a.ScatterM.DstList[0]
	}
	return a.Scatter.Dst
}

func scatterSrc(op *core.OpRecord) []byte {
	a := op.Generic.Args
	if a.IsM() {
		return a.ScatterM.Src
	}
	return a.Scatter.Src
}

func scatterRoot(op *core.OpRecord) int {
	return op.Generic.Args.RootImage()
}

func scatterNBytes(op *core.OpRecord) int {
	return op.Generic.Args.NBytes()
}

// scatterSlice returns the image-th NBytes-wide slice of the root's full
// source buffer - scatter's source is laid out root-side as nimages
// contiguous NBytes chunks, one per destination image.
func scatterSlice(op *core.OpRecord, image int) []byte {
	n := scatterNBytes(op)
	src := scatterSrc(op)
	return src[image*n : (image+1)*n]
}

// ScatterGet: every non-root image pulls its own slice directly out of the
// root's Src buffer at an offset computed from its own image number; the
// root delivers its own slice with a local copy.
func ScatterGet(op *core.OpRecord, tc *core.ThreadContext) core.PollResult {
	return runBarrierGatedTransfer(op, tc, func(op *core.OpRecord, tc *core.ThreadContext) bool {
		root := scatterRoot(op)
		if myImage(tc) == root {
			copyDistinct(scatterDst(op), scatterSlice(op, root), scatterNBytes(op))
			return true
		}
		if op.Generic.Scratch == nil {
			rootNode := op.RT.Topology.NodeOf(root)
			n := scatterNBytes(op)
			srcAddr := op.Generic.SrcAddr + uintptr(myImage(tc)*n)
			h, err := op.RT.Transport.NBGetBulk(scatterDst(op), rootNode, srcAddr, n)
			if err != nil {
				op.RT.Logger.Fatalf("scatter(get): NBGetBulk failed: %v", err)
			}
			op.Generic.Scratch = h
		}
		return waitHandle(op)
	})
}

// ScatterPut: the root pushes each non-root's slice through an
// implicit-completion region, waits for the region to drain, then acks each
// destination via the P2P state array, mirroring BcastPut's shape.
func ScatterPut(op *core.OpRecord, tc *core.ThreadContext) core.PollResult {
	return runBarrierGatedTransfer(op, tc, func(op *core.OpRecord, tc *core.ThreadContext) bool {
		root := scatterRoot(op)
		n := imageCount(op)
		rec := op.Generic.P2P
		g := op.Generic

		if myImage(tc) == root {
			if g.Scratch == nil {
				op.RT.Transport.BeginNBIRegion()
				for image := 0; image < n; image++ {
					if image == root {
						continue
					}
					node := op.RT.Topology.NodeOf(image)
					if err := op.RT.Transport.NBIPutBulk(node, g.DstAddr, scatterSlice(op, image), scatterNBytes(op)); err != nil {
						op.RT.Logger.Fatalf("scatter(put): put failed: %v", err)
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
						op.RT.Logger.Fatalf("scatter(put): ack failed: %v", err)
					}
				}
				g.Scratch2 = true
			}
			copyDistinct(scatterDst(op), scatterSlice(op, root), scatterNBytes(op))
			return true
		}

		return rec.State[root] == 1
	})
}

// ScatterEager: the root AM-pushes each non-root's slice directly into that
// image's P2P data buffer.
func ScatterEager(op *core.OpRecord, tc *core.ThreadContext) core.PollResult {
	return runBarrierGatedTransfer(op, tc, func(op *core.OpRecord, tc *core.ThreadContext) bool {
		root := scatterRoot(op)
		rec := op.Generic.P2P

		if myImage(tc) == root {
			if op.Generic.Scratch == nil {
				if err := op.RT.P2P.EagerPutAll(uint32(op.Team.ID), op.Sequence, scatterSrc(op), scatterNBytes(op), true, 0, 1); err != nil {
					op.RT.Logger.Fatalf("scatter(eager): push failed: %v", err)
				}
				op.Generic.Scratch = true
			}
			copyDistinct(scatterDst(op), scatterSlice(op, root), scatterNBytes(op))
			return true
		}

		if rec.State[0] != 1 {
			return false
		}
		copy(scatterDst(op), rec.Data[:scatterNBytes(op)])
		return true
	})
}

// ScatterRVGet: the root publishes its own source address; once a non-root
// observes it, it issues a direct Get against its own image's slice of the
// root's buffer and acks, with the root holding its buffer steady until
// every ack has arrived.
func ScatterRVGet(op *core.OpRecord, tc *core.ThreadContext) core.PollResult {
	return runBarrierGatedTransfer(op, tc, func(op *core.OpRecord, tc *core.ThreadContext) bool {
		root := scatterRoot(op)
		n := imageCount(op)
		rec := op.Generic.P2P
		g := op.Generic

		if myImage(tc) == root {
			if g.Scratch == nil {
				addr := uint64(g.SrcAddr)
				if err := op.RT.P2P.EagerAddrAll(uint32(op.Team.ID), op.Sequence, addr, 0, 1); err != nil {
					op.RT.Logger.Fatalf("scatter(rvget): address publish failed: %v", err)
				}
				g.Scratch = true
			}
			copyDistinct(scatterDst(op), scatterSlice(op, root), scatterNBytes(op))
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
			nb := scatterNBytes(op)
			srcAddr := peerAddr(rec) + uintptr(myImage(tc)*nb)
			h, err := op.RT.Transport.NBGetBulk(scatterDst(op), rootNode, srcAddr, nb)
			if err != nil {
				op.RT.Logger.Fatalf("scatter(rvget): get failed: %v", err)
			}
			g.Scratch = h
			return false
		}
		if !waitHandle(op) {
			return false
		}
		if !g.Scratch2 {
			if err := op.RT.P2P.ChangeStates(op.RT.Topology.NodeOf(root), uint32(op.Team.ID), op.Sequence, 1, uint32(myImage(tc)), 1); err != nil {
				op.RT.Logger.Fatalf("scatter(rvget): ack failed: %v", err)
			}
			g.Scratch2 = true
		}
		return true
	})
}
