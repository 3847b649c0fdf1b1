package test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jabolina/gcoll-engine/pkg/gcoll"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/tree"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/types"
)

const runTimeout = 30 * time.Second

// waitHandle drives eng's progress engine until h completes, respecting the
// run context so a wedged collective fails the test instead of hanging it.
func waitHandle(ctx context.Context, eng *gcoll.Context, h *gcoll.Handle) error {
	for !h.TrySync() {
		eng.Poll()
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

// Four nodes, one image each, SINGLE/IN_NOSYNC/OUT_ALLSYNC, 8 bytes rooted
// at node 2: after every node's blocking call returns, every destination
// holds the root's bit pattern.
func TestBroadcast_FourNodesOutAllSync(t *testing.T) {
	cluster := CreateCluster(4, 64*1024, t)
	pattern := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x12, 0x34, 0x56, 0x78}
	const srcOff, dstOff, n = 0, 4096, 8
	copy(cluster.Buf(2, srcOff, n), pattern)

	flags := types.Single | types.InNoSync | types.OutAllSync
	cluster.RunOnAll(runTimeout, func(ctx context.Context, node int, eng *gcoll.Context) error {
		return eng.Broadcast(ctx, flags, cluster.Buf(node, dstOff, n), 2, cluster.Buf(node, srcOff, n), n)
	})

	for node := 0; node < cluster.Size; node++ {
		if got := cluster.Buf(node, dstOff, n); !bytes.Equal(got, pattern) {
			t.Errorf("node %d destination = %x, want %x", node, got, pattern)
		}
	}
}

// Three nodes, SINGLE/IN_ALLSYNC/OUT_MYSYNC, 4 bytes per image: node i ends
// up with bytes [4i, 4i+4) of the root's 12-byte source.
func TestScatter_ThreeNodesSlices(t *testing.T) {
	cluster := CreateCluster(3, 64*1024, t)
	src := []byte{0x00, 0x01, 0x02, 0x03, 0x10, 0x11, 0x12, 0x13, 0x20, 0x21, 0x22, 0x23}
	const srcOff, dstOff, n = 0, 4096, 4
	copy(cluster.Buf(0, srcOff, len(src)), src)

	flags := types.Single | types.InAllSync | types.OutMySync
	cluster.RunOnAll(runTimeout, func(ctx context.Context, node int, eng *gcoll.Context) error {
		return eng.Scatter(ctx, flags, cluster.Buf(node, dstOff, n), 0, cluster.Buf(node, srcOff, len(src)), n)
	})

	for node := 0; node < cluster.Size; node++ {
		want := src[node*n : (node+1)*n]
		if got := cluster.Buf(node, dstOff, n); !bytes.Equal(got, want) {
			t.Errorf("node %d destination = %x, want %x", node, got, want)
		}
	}
}

// Four nodes, eager gather rooted at node 3, 2 bytes per image: heap-side
// sources force the AM-push strategy; the root ends up with every
// contribution in image order and non-root destinations stay untouched.
func TestGather_FourNodesEager(t *testing.T) {
	cluster := CreateCluster(4, 64*1024, t)
	const dstOff, n = 4096, 2

	flags := types.Single | types.InNoSync | types.OutAllSync
	cluster.RunOnAll(runTimeout, func(ctx context.Context, node int, eng *gcoll.Context) error {
		src := []byte{byte(node << 4), byte(node<<4 | 1)} // heap buffer, not in segment
		return eng.Gather(ctx, flags, cluster.Buf(node, dstOff, cluster.Size*n), 3, src, n)
	})

	want := []byte{0x00, 0x01, 0x10, 0x11, 0x20, 0x21, 0x30, 0x31}
	if got := cluster.Buf(3, dstOff, len(want)); !bytes.Equal(got, want) {
		t.Errorf("root destination = %x, want %x", got, want)
	}
	empty := make([]byte, cluster.Size*n)
	for node := 0; node < 3; node++ {
		if got := cluster.Buf(node, dstOff, cluster.Size*n); !bytes.Equal(got, empty) {
			t.Errorf("non-root node %d destination changed: %x", node, got)
		}
	}
}

// Three AGGREGATE broadcasts followed by a plain one: the single surfaced
// handle completes only when all four members have, and all four payloads
// land.
func TestBroadcast_Aggregate(t *testing.T) {
	cluster := CreateCluster(4, 64*1024, t)
	const n = 8
	offsets := []int{1 << 10, 2 << 10, 3 << 10, 4 << 10}
	dstOffsets := []int{8 << 10, 9 << 10, 10 << 10, 11 << 10}
	for i, off := range offsets {
		for b := 0; b < n; b++ {
			cluster.Buf(0, off, n)[b] = byte(i<<4 | b)
		}
	}

	base := types.Single | types.InNoSync | types.OutNoSync
	cluster.RunOnAll(runTimeout, func(ctx context.Context, node int, eng *gcoll.Context) error {
		for i := 0; i < 3; i++ {
			member := eng.BroadcastNB(base|types.Aggregate, cluster.Buf(node, dstOffsets[i], n), 0, cluster.Buf(node, offsets[i], n), n)
			if !member.TrySync() {
				return fmt.Errorf("node %d: aggregate member %d surfaced a live handle", node, i)
			}
		}
		h := eng.BroadcastNB(base, cluster.Buf(node, dstOffsets[3], n), 0, cluster.Buf(node, offsets[3], n), n)
		return waitHandle(ctx, eng, h)
	})

	for node := 0; node < cluster.Size; node++ {
		for i, off := range dstOffsets {
			want := cluster.Buf(0, offsets[i], n)
			if got := cluster.Buf(node, off, n); !bytes.Equal(got, want) {
				t.Errorf("node %d aggregate member %d destination = %x, want %x", node, i, got, want)
			}
		}
	}
}

// Seven nodes, binary-tree put broadcast of 1 MiB rooted at node 0: every
// non-root receives the root's content, and payload bytes travel only along
// the binary tree's parent-child edges.
func TestBroadcast_BinaryTreeOneMiB(t *testing.T) {
	const (
		nodes  = 7
		nBytes = 1 << 20
		srcOff = 0
		dstOff = 2 << 20
	)
	cluster := CreateCluster(nodes, 4<<20, t)
	src := cluster.Buf(0, srcOff, nBytes)
	for i := range src {
		src[i] = byte(i * 7)
	}

	flags := types.Single | types.InNoSync | types.OutAllSync
	cluster.RunOnAll(runTimeout, func(ctx context.Context, node int, eng *gcoll.Context) error {
		h := eng.BroadcastTreeNB(flags, gcoll.TreePut, tree.Binary,
			cluster.Buf(node, dstOff, nBytes), 0, cluster.Buf(node, srcOff, nBytes), nBytes)
		return waitHandle(ctx, eng, h)
	})

	for node := 0; node < nodes; node++ {
		if !bytes.Equal(cluster.Buf(node, dstOff, nBytes), src) {
			t.Errorf("node %d destination does not match root content", node)
		}
	}

	// Wire shape: payload only flows parent -> child along binary-tree
	// edges.
	edges := make(map[[2]int]bool)
	cache := tree.NewCache()
	for rank := 0; rank < nodes; rank++ {
		geom := cache.Init(tree.Binary, 0, nodes, rank)
		for _, child := range geom.Children {
			edges[[2]int{rank, child}] = true
		}
		geom.Release()
	}
	for from := 0; from < nodes; from++ {
		for to := 0; to < nodes; to++ {
			if from == to {
				continue
			}
			got := cluster.Fabric.TrafficBytes(from, to)
			if edges[[2]int{from, to}] {
				if got < nBytes {
					t.Errorf("tree edge %d->%d carried %d bytes, want >= %d", from, to, got, nBytes)
				}
			} else if got != 0 {
				t.Errorf("non-edge %d->%d carried %d payload bytes, want 0", from, to, got)
			}
		}
	}
}

// Per-image destination lists: the remote payload lands in the first local
// buffer and fans out to the rest.
func TestBroadcastM_LocalFanOut(t *testing.T) {
	cluster := CreateCluster(3, 64*1024, t)
	pattern := []byte{1, 2, 3, 4}
	const srcOff, n = 0, 4
	copy(cluster.Buf(1, srcOff, n), pattern)

	locals := make([][][]byte, cluster.Size)
	flags := types.Single | types.InNoSync | types.OutAllSync
	cluster.RunOnAll(runTimeout, func(ctx context.Context, node int, eng *gcoll.Context) error {
		dstList := [][]byte{cluster.Buf(node, 4096, n), cluster.Buf(node, 8192, n)}
		locals[node] = dstList
		h := eng.BroadcastMNB(flags, dstList, 1, cluster.Buf(node, srcOff, n), n)
		return waitHandle(ctx, eng, h)
	})

	for node := 0; node < cluster.Size; node++ {
		for i, dst := range locals[node] {
			if !bytes.Equal(dst, pattern) {
				t.Errorf("node %d local image %d = %x, want %x", node, i, dst, pattern)
			}
		}
	}
}

// Gather-all: every image ends up with every image's contribution.
func TestGatherAll_AllRanksPopulated(t *testing.T) {
	cluster := CreateCluster(3, 64*1024, t)
	const srcOff, dstOff, n = 0, 4096, 4
	for node := 0; node < cluster.Size; node++ {
		for b := 0; b < n; b++ {
			cluster.Buf(node, srcOff, n)[b] = byte(node<<4 | b)
		}
	}

	flags := types.Single | types.InNoSync | types.OutAllSync
	cluster.RunOnAll(runTimeout, func(ctx context.Context, node int, eng *gcoll.Context) error {
		return eng.GatherAll(ctx, flags, cluster.Buf(node, dstOff, cluster.Size*n), cluster.Buf(node, srcOff, n), n)
	})

	for node := 0; node < cluster.Size; node++ {
		for img := 0; img < cluster.Size; img++ {
			want := cluster.Buf(img, srcOff, n)
			got := cluster.Buf(node, dstOff+img*n, n)
			if !bytes.Equal(got, want) {
				t.Errorf("node %d slot %d = %x, want %x", node, img, got, want)
			}
		}
	}
}

// Exchange: node r's i-th destination slice is node i's r-th source slice.
func TestExchange_AllToAll(t *testing.T) {
	cluster := CreateCluster(3, 64*1024, t)
	const srcOff, dstOff, n = 0, 8192, 2
	for node := 0; node < cluster.Size; node++ {
		src := cluster.Buf(node, srcOff, cluster.Size*n)
		for b := range src {
			src[b] = byte(node<<4 | b)
		}
	}

	flags := types.Single | types.InNoSync | types.OutAllSync
	cluster.RunOnAll(runTimeout, func(ctx context.Context, node int, eng *gcoll.Context) error {
		return eng.Exchange(ctx, flags, cluster.Buf(node, dstOff, cluster.Size*n), cluster.Buf(node, srcOff, cluster.Size*n), n)
	})

	for r := 0; r < cluster.Size; r++ {
		for i := 0; i < cluster.Size; i++ {
			want := cluster.Buf(i, srcOff+r*n, n)
			got := cluster.Buf(r, dstOff+i*n, n)
			if !bytes.Equal(got, want) {
				t.Errorf("node %d slice %d = %x, want %x", r, i, got, want)
			}
		}
	}
}

// Round-trip across every broadcast strategy the selection rules reach plus
// the explicit tree variants: whatever bit pattern the root holds arrives
// intact at every participant.
func TestBroadcast_RoundTripAllAlgorithms(t *testing.T) {
	type variant struct {
		name   string
		nBytes int
		flags  types.Flags
		// inSegSrc/inSegDst steer the selection rules to the intended
		// strategy by controlling segment residency.
		inSegSrc, inSegDst bool
		tree               bool
		strategy           gcoll.TreeStrategy
		kind               tree.Kind
	}
	variants := []variant{
		{name: "put", nBytes: 1024, flags: types.Single | types.InNoSync | types.OutAllSync, inSegSrc: true, inSegDst: true},
		{name: "get", nBytes: 1024, flags: types.Single | types.InNoSync | types.OutAllSync, inSegSrc: true},
		{name: "eager", nBytes: 512, flags: types.Single | types.InNoSync | types.OutAllSync},
		{name: "rvget", nBytes: 8192, flags: types.Single | types.InMySync | types.OutAllSync, inSegSrc: true, inSegDst: true},
		{name: "treeput-binomial", nBytes: 64, flags: types.Single | types.InNoSync | types.OutAllSync, inSegSrc: true, inSegDst: true, tree: true, strategy: gcoll.TreePut, kind: tree.Binomial},
		{name: "treeget-chain", nBytes: 64, flags: types.Single | types.InNoSync | types.OutAllSync, inSegSrc: true, inSegDst: true, tree: true, strategy: gcoll.TreeGet, kind: tree.Chain},
		{name: "treeeager-sequential", nBytes: 64, flags: types.Single | types.InNoSync | types.OutAllSync, inSegSrc: true, inSegDst: true, tree: true, strategy: gcoll.TreeEager, kind: tree.Sequential},
	}

	for _, v := range variants {
		v := v
		t.Run(v.name, func(t *testing.T) {
			const nodes, root = 5, 1
			cluster := CreateCluster(nodes, 256*1024, t)

			pattern := make([]byte, v.nBytes)
			for i := range pattern {
				pattern[i] = byte(i*31 + 5)
			}

			srcs := make([][]byte, nodes)
			dsts := make([][]byte, nodes)
			for node := 0; node < nodes; node++ {
				if v.inSegSrc {
					srcs[node] = cluster.Buf(node, 0, v.nBytes)
				} else {
					srcs[node] = make([]byte, v.nBytes)
				}
				if v.inSegDst {
					dsts[node] = cluster.Buf(node, 64*1024, v.nBytes)
				} else {
					dsts[node] = make([]byte, v.nBytes)
				}
			}
			copy(srcs[root], pattern)

			cluster.RunOnAll(runTimeout, func(ctx context.Context, node int, eng *gcoll.Context) error {
				if v.tree {
					h := eng.BroadcastTreeNB(v.flags, v.strategy, v.kind, dsts[node], root, srcs[node], v.nBytes)
					return waitHandle(ctx, eng, h)
				}
				return eng.Broadcast(ctx, v.flags, dsts[node], root, srcs[node], v.nBytes)
			})

			for node := 0; node < nodes; node++ {
				if !bytes.Equal(dsts[node], pattern) {
					t.Errorf("node %d destination does not match pattern", node)
				}
			}
		})
	}
}

// ScatterM/GatherM: per-image list variants round-trip through the same
// machinery.
func TestScatterGatherM_RoundTrip(t *testing.T) {
	cluster := CreateCluster(3, 64*1024, t)
	const n = 4
	src := cluster.Buf(0, 0, cluster.Size*n)
	for i := range src {
		src[i] = byte(0xA0 | i)
	}

	flags := types.Single | types.InNoSync | types.OutAllSync
	cluster.RunOnAll(runTimeout, func(ctx context.Context, node int, eng *gcoll.Context) error {
		dstList := [][]byte{cluster.Buf(node, 4096, n)}
		h := eng.ScatterMNB(flags, dstList, 0, cluster.Buf(node, 0, cluster.Size*n), n)
		if err := waitHandle(ctx, eng, h); err != nil {
			return err
		}
		srcList := [][]byte{cluster.Buf(node, 4096, n)}
		h = eng.GatherMNB(flags, cluster.Buf(node, 8192, cluster.Size*n), 2, srcList, n)
		return waitHandle(ctx, eng, h)
	})

	if got := cluster.Buf(2, 8192, cluster.Size*n); !bytes.Equal(got, src) {
		t.Errorf("gathered = %x, want %x", got, src)
	}
}
