package gcoll

import (
	"github.com/jabolina/gcoll-engine/pkg/gcoll/core"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/core/algo"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/p2p"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/transport"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/tree"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/types"
)

// family names which of the three rooted collectives a selection is being
// made for, since the same selection rules pick a different concrete
// strategy per family.
type family int

const (
	familyBcast family = iota
	familyScatter
	familyGather
)

// inSegment reports whether [addr, addr+n) lies within node's registered
// segment.
func inSegment(rt *core.Runtime, node int, addr uintptr, n int) bool {
	if addr == transport.OutOfSegment {
		return false
	}
	base, length := rt.Transport.SegmentOf(node)
	return addr >= base && addr+uintptr(n) <= base+length
}

// detectInSegment applies in-segment detection: a hint absent from flags
// is silently added when the op is SINGLE and the relevant buffer
// falls within the known segment of the rooted node (for bcast/scatter's
// source, and gather's destination) or of every node (for the side that is
// per-participant). Under SINGLE the locally computed address stands in for
// every participant's, so the every-node sweep checks the one address
// against each node's segment bounds.
func detectInSegment(rt *core.Runtime, flags types.Flags, fam family, rootNode int, srcAddr, dstAddr uintptr, n int) types.Flags {
	if !flags.Has(types.Single) {
		return flags
	}
	everyNode := func(addr uintptr) bool {
		for node := 0; node < rt.Topology.ImageCount(); node++ {
			if !inSegment(rt, node, addr, n) {
				return false
			}
		}
		return true
	}
	switch fam {
	case familyBcast, familyScatter:
		if !flags.Has(types.SrcInSegment) && inSegment(rt, rootNode, srcAddr, n) {
			flags |= types.SrcInSegment
		}
		if !flags.Has(types.DstInSegment) && everyNode(dstAddr) {
			flags |= types.DstInSegment
		}
	case familyGather:
		if !flags.Has(types.DstInSegment) && inSegment(rt, rootNode, dstAddr, n) {
			flags |= types.DstInSegment
		}
		if !flags.Has(types.SrcInSegment) && everyNode(srcAddr) {
			flags |= types.SrcInSegment
		}
	}
	return flags
}

// selection is the algorithm + poll function pair selectAlgorithm returns;
// tree-based strategies additionally carry the topology kind they drive.
type selection struct {
	algo     core.AlgorithmID
	poll     core.PollFunc
	treeKind tree.Kind
}

// eagerMin is the size threshold below which an eager (AM-pushed) strategy
// is preferred over a rendezvous one.
const eagerMin = p2p.EagerMin

// selectAlgorithm implements the size/segment-residency selection rules
// for one of the three rooted collective families; tree-topology
// strategies are opted into explicitly through the Tree* entry points and
// never chosen here.
func selectAlgorithm(fam family, flags types.Flags, size int) selection {
	srcIn := flags.Has(types.SrcInSegment)
	dstIn := flags.Has(types.DstInSegment)
	wantsMySyncOrLocal := flags.Has(types.InMySync) || flags.Has(types.OutMySync) || flags.Has(types.Local)

	switch {
	case srcIn && dstIn:
		switch {
		case size <= eagerMin && wantsMySyncOrLocal:
			return eagerSelection(fam)
		case wantsMySyncOrLocal:
			return rendezvousSelection(fam)
		case flags.Has(types.OutMySync) && size <= eagerMin:
			return eagerSelection(fam)
		default:
			return putOrGetSelection(fam)
		}

	case dstIn && !srcIn:
		// only destination known in-segment
		if fam == familyGather {
			return eagerSelection(fam)
		}
		return putSelection(fam)

	case srcIn && !dstIn:
		// only source known in-segment
		if fam == familyGather {
			return putSelection(fam)
		}
		return getSelection(fam)

	default:
		if size <= eagerMin {
			return eagerSelection(fam)
		}
		panic(&types.ProtocolError{Message: "gcoll: no in-segment hint and payload too large for an AM-based fallback"})
	}
}

func eagerSelection(fam family) selection {
	switch fam {
	case familyBcast:
		return selection{algo: core.AlgoBcastEager, poll: algo.BcastEager}
	case familyScatter:
		return selection{algo: core.AlgoScatterEager, poll: algo.ScatterEager}
	default:
		return selection{algo: core.AlgoGatherEager, poll: algo.GatherEager}
	}
}

func rendezvousSelection(fam family) selection {
	switch fam {
	case familyBcast:
		return selection{algo: core.AlgoBcastRVGet, poll: algo.BcastRVGet}
	case familyScatter:
		return selection{algo: core.AlgoScatterRVGet, poll: algo.ScatterRVGet}
	default:
		return selection{algo: core.AlgoGatherRVPut, poll: algo.GatherRVPut}
	}
}

func putSelection(fam family) selection {
	switch fam {
	case familyBcast:
		return selection{algo: core.AlgoBcastPut, poll: algo.BcastPut}
	case familyScatter:
		return selection{algo: core.AlgoScatterPut, poll: algo.ScatterPut}
	default:
		return selection{algo: core.AlgoGatherPut, poll: algo.GatherPut}
	}
}

func getSelection(fam family) selection {
	switch fam {
	case familyBcast:
		return selection{algo: core.AlgoBcastGet, poll: algo.BcastGet}
	case familyScatter:
		return selection{algo: core.AlgoScatterGet, poll: algo.ScatterGet}
	default:
		return selection{algo: core.AlgoGatherGet, poll: algo.GatherGet}
	}
}

func putOrGetSelection(fam family) selection {
	if fam == familyGather {
		return getSelection(fam)
	}
	return putSelection(fam)
}

// needsP2P reports whether algo requires a P2P record - every strategy but
// the pure Get pulls, which only ever touch transport get and a consensus
// barrier.
func needsP2P(id core.AlgorithmID) bool {
	switch id {
	case core.AlgoBcastGet, core.AlgoScatterGet, core.AlgoGatherGet:
		return false
	default:
		return true
	}
}

// needsTree reports whether algo drives a tree.Cache-backed Geometry.
func needsTree(id core.AlgorithmID) bool {
	switch id {
	case core.AlgoBcastTreePut, core.AlgoBcastTreeGet, core.AlgoBcastTreeEager:
		return true
	default:
		return false
	}
}
