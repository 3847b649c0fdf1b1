package gcoll

import (
	"context"

	"github.com/jabolina/gcoll-engine/pkg/gcoll/core"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/core/algo"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/tree"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/types"
)

// BroadcastNB distributes nBytes bytes of src (valid at rootImage) into dst
// at every image, choosing an algorithm by size and segment residency.
// Returns immediately with a handle the caller syncs on later.
func (c *Context) BroadcastNB(flags types.Flags, dst []byte, rootImage int, src []byte, nBytes int) *Handle {
	srcAddr, dstAddr := c.addrOf(src), c.addrOf(dst)
	flags = detectInSegment(c.rt, flags, familyBcast, c.rt.Topology.NodeOf(rootImage), srcAddr, dstAddr, nBytes)

	sel := selectAlgorithm(familyBcast, flags, nBytes)
	args := types.CollArgs{Kind: types.KindBroadcast, Bcast: &types.BcastArgs{
		Dst: dst, SrcImage: rootImage, Src: src, NBytes: nBytes,
	}}
	return c.submit(flags, sel, args, srcAddr, dstAddr)
}

// Broadcast is BroadcastNB's blocking twin: it submits then drives the
// progress engine until the op completes.
func (c *Context) Broadcast(ctx context.Context, flags types.Flags, dst []byte, rootImage int, src []byte, nBytes int) error {
	h := c.BroadcastNB(flags, dst, rootImage, src, nBytes)
	return c.waitBlocking(ctx, h)
}

// BroadcastMNB is the per-image-destination-list variant: the remote
// transfer lands in dstList[0] and is then fanned out locally into the
// remaining entries.
func (c *Context) BroadcastMNB(flags types.Flags, dstList [][]byte, rootImage int, src []byte, nBytes int) *Handle {
	srcAddr, dstAddr := c.addrOf(src), c.addrOf(dstList[0])
	flags = detectInSegment(c.rt, flags, familyBcast, c.rt.Topology.NodeOf(rootImage), srcAddr, dstAddr, nBytes)
	sel := selectAlgorithm(familyBcast, flags, nBytes)
	args := types.CollArgs{Kind: types.KindBroadcastM, BcastM: &types.BcastMArgs{
		DstList: dstList, SrcImage: rootImage, Src: src, NBytes: nBytes,
	}}
	return c.submit(flags, sel, args, srcAddr, dstAddr)
}

// TreeStrategy names one of the three tree-based broadcast strategies,
// opted into explicitly via BroadcastTreeNB rather than chosen by
// selectAlgorithm's size/segment rules.
type TreeStrategy int

const (
	TreePut TreeStrategy = iota
	TreeGet
	TreeEager
)

// BroadcastTreeNB bypasses the size/segment selection rules to run one of
// the three tree-based strategies directly over the requested topology
// kind, for callers that want a tree fan-out regardless of payload shape.
func (c *Context) BroadcastTreeNB(flags types.Flags, strategy TreeStrategy, kind tree.Kind, dst []byte, rootImage int, src []byte, nBytes int) *Handle {
	var sel selection
	switch strategy {
	case TreePut:
		sel = selection{algo: core.AlgoBcastTreePut, poll: algo.BcastTreePut, treeKind: kind}
	case TreeGet:
		sel = selection{algo: core.AlgoBcastTreeGet, poll: algo.BcastTreeGet, treeKind: kind}
	case TreeEager:
		sel = selection{algo: core.AlgoBcastTreeEager, poll: algo.BcastTreeEager, treeKind: kind}
	default:
		panic(&types.UsageError{Message: "gcoll: unknown tree broadcast strategy"})
	}
	args := types.CollArgs{Kind: types.KindBroadcast, Bcast: &types.BcastArgs{
		Dst: dst, SrcImage: rootImage, Src: src, NBytes: nBytes,
	}}
	return c.submit(flags, sel, args, c.addrOf(src), c.addrOf(dst))
}
