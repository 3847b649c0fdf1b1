package gcoll

import (
	"context"

	"github.com/jabolina/gcoll-engine/pkg/gcoll/types"
)

// ScatterNB splits src (valid and full-length only at rootImage) into
// equal nBytes slices, one per image, landing each non-root's slice into
// its own dst.
func (c *Context) ScatterNB(flags types.Flags, dst []byte, rootImage int, src []byte, nBytes int) *Handle {
	srcAddr, dstAddr := c.addrOf(src), c.addrOf(dst)
	flags = detectInSegment(c.rt, flags, familyScatter, c.rt.Topology.NodeOf(rootImage), srcAddr, dstAddr, nBytes)
	sel := selectAlgorithm(familyScatter, flags, nBytes)
	args := types.CollArgs{Kind: types.KindScatter, Scatter: &types.ScatterArgs{
		Dst: dst, RootImage: rootImage, Src: src, NBytes: nBytes,
	}}
	return c.submit(flags, sel, args, srcAddr, dstAddr)
}

// Scatter is ScatterNB's blocking twin.
func (c *Context) Scatter(ctx context.Context, flags types.Flags, dst []byte, rootImage int, src []byte, nBytes int) error {
	h := c.ScatterNB(flags, dst, rootImage, src, nBytes)
	return c.waitBlocking(ctx, h)
}

// ScatterMNB is the per-image-destination-list variant.
func (c *Context) ScatterMNB(flags types.Flags, dstList [][]byte, rootImage int, src []byte, nBytes int) *Handle {
	srcAddr, dstAddr := c.addrOf(src), c.addrOf(dstList[0])
	flags = detectInSegment(c.rt, flags, familyScatter, c.rt.Topology.NodeOf(rootImage), srcAddr, dstAddr, nBytes)
	sel := selectAlgorithm(familyScatter, flags, nBytes)
	args := types.CollArgs{Kind: types.KindScatterM, ScatterM: &types.ScatterMArgs{
		DstList: dstList, RootImage: rootImage, Src: src, NBytes: nBytes,
	}}
	return c.submit(flags, sel, args, srcAddr, dstAddr)
}
