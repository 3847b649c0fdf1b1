package gcoll

import (
	"context"

	"github.com/jabolina/gcoll-engine/pkg/gcoll/types"
)

// runAsConcurrentGathers implements the "N concurrent gathers rooted at
// each rank" decomposition shared by gather-all and exchange: it submits
// one sub-gather per image r, using AGGREGATE on every sub-gather but the
// last so the whole batch surfaces exactly one handle, signaled once every
// sub-gather has completed.
func runAsConcurrentGathers(n int, submit func(root int, aggregate bool) *Handle) *Handle {
	var last *Handle
	for r := 0; r < n; r++ {
		last = submit(r, r < n-1)
	}
	return last
}

func withAggregate(flags types.Flags, aggregate bool) types.Flags {
	if aggregate {
		return flags | types.Aggregate
	}
	return flags &^ types.Aggregate
}

// GatherAllNB collects every image's nBytes Src slice into every image's
// own Dst buffer - a gather with every rank as root simultaneously,
// implemented as N concurrent single-root gathers of the same shared Src.
func (c *Context) GatherAllNB(flags types.Flags, dst, src []byte, nBytes int) *Handle {
	n := c.rt.Topology.ImageCount()
	return runAsConcurrentGathers(n, func(root int, aggregate bool) *Handle {
		return c.GatherNB(withAggregate(flags, aggregate), dst, root, src, nBytes)
	})
}

// GatherAll is GatherAllNB's blocking twin.
func (c *Context) GatherAll(ctx context.Context, flags types.Flags, dst, src []byte, nBytes int) error {
	h := c.GatherAllNB(flags, dst, src, nBytes)
	return c.waitBlocking(ctx, h)
}

// GatherAllMNB is the per-image-list variant of GatherAllNB.
func (c *Context) GatherAllMNB(flags types.Flags, dstList, srcList [][]byte, nBytes int) *Handle {
	n := c.rt.Topology.ImageCount()
	return runAsConcurrentGathers(n, func(root int, aggregate bool) *Handle {
		return c.GatherMNB(withAggregate(flags, aggregate), dstList[0], root, srcList, nBytes)
	})
}

// ExchangeNB is an all-to-all: at image r, Dst[i*nBytes:(i+1)*nBytes]
// receives image i's r-th nBytes slice of Src. Implemented as N
// concurrent gathers, one per destination root r, each one gathering the
// r-th nBytes slice of every participant's Src into root r's Dst.
func (c *Context) ExchangeNB(flags types.Flags, dst, src []byte, nBytes int) *Handle {
	n := c.rt.Topology.ImageCount()
	return runAsConcurrentGathers(n, func(root int, aggregate bool) *Handle {
		subSrc := src[root*nBytes : (root+1)*nBytes]
		return c.GatherNB(withAggregate(flags, aggregate), dst, root, subSrc, nBytes)
	})
}

// Exchange is ExchangeNB's blocking twin.
func (c *Context) Exchange(ctx context.Context, flags types.Flags, dst, src []byte, nBytes int) error {
	h := c.ExchangeNB(flags, dst, src, nBytes)
	return c.waitBlocking(ctx, h)
}

// ExchangeMNB is the per-image-list variant of ExchangeNB.
func (c *Context) ExchangeMNB(flags types.Flags, dstList, srcList [][]byte, nBytes int) *Handle {
	n := c.rt.Topology.ImageCount()
	return runAsConcurrentGathers(n, func(root int, aggregate bool) *Handle {
		subSrcList := make([][]byte, len(srcList))
		for i, s := range srcList {
			subSrcList[i] = s[root*nBytes : (root+1)*nBytes]
		}
		return c.GatherMNB(withAggregate(flags, aggregate), dstList[0], root, subSrcList, nBytes)
	})
}
