// Package test hosts the in-process cluster harness and the end-to-end
// scenario tests for the collective engine: N simulated nodes over a
// loopback fabric, one engine Context per node, each participant driven by
// its own goroutine the way a real process would drive its own rank.
package test

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jabolina/gcoll-engine/pkg/gcoll"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/transport/loopback"
)

// Alphabet is a handy payload series for stress tests that want one small,
// distinguishable value per step.
var Alphabet = []string{
	"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m",
	"n", "o", "p", "q", "r", "s", "t", "u", "v", "w", "x", "y", "z",
}

// EngineCluster simulates size single-image processes sharing one loopback
// fabric, each with its own engine Context.
type EngineCluster struct {
	T       *testing.T
	Size    int
	Fabric  *loopback.Fabric
	Engines []*gcoll.Context
}

// CreateCluster builds a cluster of size nodes, each owning a segSize-byte
// registered segment.
func CreateCluster(size, segSize int, t *testing.T) *EngineCluster {
	fab := loopback.NewFabric(size, segSize)
	engines := make([]*gcoll.Context, size)
	for i := 0; i < size; i++ {
		engines[i] = gcoll.Init(gcoll.DefaultConfig(fab.Node(i), size, i))
	}
	return &EngineCluster{T: t, Size: size, Fabric: fab, Engines: engines}
}

// Buf returns an n-byte window into node's registered segment at the given
// offset. Participants that pass symmetric buffers to a SINGLE collective
// should carve them at the same offset on every node.
func (c *EngineCluster) Buf(node int, off, n int) []byte {
	return c.Fabric.Segment(node)[off : off+n]
}

// RunOnAll invokes fn once per node, each on its own goroutine, and waits
// for every participant to return. The shared context is cancelled on the
// first error or when the timeout elapses; any error fails the test.
func (c *EngineCluster) RunOnAll(timeout time.Duration, fn func(ctx context.Context, node int, eng *gcoll.Context) error) {
	c.T.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.Size; i++ {
		node := i
		g.Go(func() error {
			return fn(ctx, node, c.Engines[node])
		})
	}
	if err := g.Wait(); err != nil {
		c.T.Fatalf("cluster run failed: %v", err)
	}
}
