package tree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheHitIncrementsRefcount(t *testing.T) {
	c := NewCache()
	g1 := c.Init(Binary, 0, 7, 3)
	require.EqualValues(t, 1, g1.refcount)

	g2 := c.Init(Binary, 0, 7, 3)
	require.Same(t, g1, g2)
	require.EqualValues(t, 2, g1.refcount)

	g1.Release()
	g2.Release()
}

func TestCacheEvictionKeepsGeometryAliveUntilReleased(t *testing.T) {
	c := NewCache()
	g1 := c.Init(Chain, 0, 4, 1)
	// A different key evicts g1 from the MRU slot, but g1 remains valid
	// for whoever still holds it: the refcount, not the cache slot,
	// governs lifetime.
	g2 := c.Init(Binary, 0, 4, 1)
	require.NotSame(t, g1, g2)
	require.EqualValues(t, 0, g1.Root)
	require.EqualValues(t, 0, g2.Root)

	g1.Release()
	g2.Release()
}

func TestChainTopology(t *testing.T) {
	const n = 4
	root := 1
	// relative ranks: actual 1->0, 2->1, 3->2, 0->3
	cases := []struct {
		actual         int
		wantParent     int
		wantChild      int
		wantChildCount int
	}{
		{1, None, 2, 1},
		{2, 1, 3, 1},
		{3, 2, 0, 1},
		{0, 3, None, 0},
	}
	for _, tc := range cases {
		g := compute(Chain, root, n, tc.actual)
		require.Equal(t, tc.wantParent, g.Parent, "actual rank %d parent", tc.actual)
		require.Len(t, g.Children, tc.wantChildCount)
		if tc.wantChildCount > 0 {
			require.Equal(t, tc.wantChild, g.Children[0])
		}
	}
}

func TestBinaryTopologyRoot(t *testing.T) {
	g := compute(Binary, 0, 7, 0)
	require.Equal(t, None, g.Parent)
	require.ElementsMatch(t, []int{1, 2}, g.Children)
}

func TestBinaryTopologyLeaf(t *testing.T) {
	// n=7, rank 3 relative: level 1 (2^1-1=1 <= 3 < 2^2-1=3? no, 3 is not <3).
	// level 2: 2^2-1=3 <= 3 < 2^3-1=7, true. parent = (3-3)/2 + 1 = 1.
	g := compute(Binary, 0, 7, 3)
	require.Equal(t, 1, g.Parent)
}

func TestSequentialTopology(t *testing.T) {
	const n = 5
	root := 2
	g := compute(Sequential, root, n, root)
	require.Equal(t, None, g.Parent)
	require.Len(t, g.Children, n-1)

	for actual := 0; actual < n; actual++ {
		if actual == root {
			continue
		}
		leaf := compute(Sequential, root, n, actual)
		require.Equal(t, root, leaf.Parent)
		require.Empty(t, leaf.Children)
	}
}

func TestBinomialTopologyEveryNodeReachableFromRoot(t *testing.T) {
	const n = 13
	root := 0
	reached := map[int]bool{root: true}
	frontier := []int{root}
	for len(frontier) > 0 {
		var next []int
		for _, rank := range frontier {
			g := compute(Binomial, root, n, rank)
			for _, c := range g.Children {
				require.False(t, reached[c], "node %d reached twice", c)
				reached[c] = true
				next = append(next, c)
			}
		}
		frontier = next
	}
	require.Len(t, reached, n, "every node must be reachable exactly once from the binomial root")
}

func TestUnknownKindIsFatal(t *testing.T) {
	require.Panics(t, func() {
		compute(Kind(99), 0, 4, 0)
	})
}
