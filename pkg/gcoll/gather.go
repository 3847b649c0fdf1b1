package gcoll

import (
	"context"

	"github.com/jabolina/gcoll-engine/pkg/gcoll/types"
)

// GatherNB collects one nBytes slice per image into rootImage's dst buffer,
// laid out in image order.
func (c *Context) GatherNB(flags types.Flags, dst []byte, rootImage int, src []byte, nBytes int) *Handle {
	srcAddr, dstAddr := c.addrOf(src), c.addrOf(dst)
	flags = detectInSegment(c.rt, flags, familyGather, c.rt.Topology.NodeOf(rootImage), srcAddr, dstAddr, nBytes)
	sel := selectAlgorithm(familyGather, flags, nBytes)
	args := types.CollArgs{Kind: types.KindGather, Gather: &types.GatherArgs{
		Dst: dst, RootImage: rootImage, Src: src, NBytes: nBytes,
	}}
	return c.submit(flags, sel, args, srcAddr, dstAddr)
}

// Gather is GatherNB's blocking twin.
func (c *Context) Gather(ctx context.Context, flags types.Flags, dst []byte, rootImage int, src []byte, nBytes int) error {
	h := c.GatherNB(flags, dst, rootImage, src, nBytes)
	return c.waitBlocking(ctx, h)
}

// GatherMNB is the per-image-source-list variant.
func (c *Context) GatherMNB(flags types.Flags, dst []byte, rootImage int, srcList [][]byte, nBytes int) *Handle {
	srcAddr, dstAddr := c.addrOf(srcList[0]), c.addrOf(dst)
	flags = detectInSegment(c.rt, flags, familyGather, c.rt.Topology.NodeOf(rootImage), srcAddr, dstAddr, nBytes)
	sel := selectAlgorithm(familyGather, flags, nBytes)
	args := types.CollArgs{Kind: types.KindGatherM, GatherM: &types.GatherMArgs{
		Dst: dst, RootImage: rootImage, SrcList: srcList, NBytes: nBytes,
	}}
	return c.submit(flags, sel, args, srcAddr, dstAddr)
}
