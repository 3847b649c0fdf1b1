// Package fuzzy holds concurrency stress tests for the collective engine,
// exercising many in-flight collectives per process across a simulated
// cluster with goroutine-leak verification.
package fuzzy

import (
	"bytes"
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/jabolina/gcoll-engine/pkg/gcoll"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/types"
	"github.com/jabolina/gcoll-engine/test"
)

// This test emits one broadcast per alphabet letter, sequentially, rotating
// the root through the cluster. Every participant must observe every letter
// in order; no failure is injected.
func Test_SequentialBroadcasts(t *testing.T) {
	defer goleak.VerifyNone(t)

	cluster := test.CreateCluster(3, 64*1024, t)
	const srcOff, dstOff = 0, 4096
	flags := types.Single | types.InNoSync | types.OutAllSync

	for step, letter := range test.Alphabet {
		root := step % cluster.Size
		payload := []byte(letter)
		copy(cluster.Buf(root, srcOff, len(payload)), payload)

		cluster.RunOnAll(30*time.Second, func(ctx context.Context, node int, eng *gcoll.Context) error {
			return eng.Broadcast(ctx, flags, cluster.Buf(node, dstOff, len(payload)), root,
				cluster.Buf(node, srcOff, len(payload)), len(payload))
		})

		for node := 0; node < cluster.Size; node++ {
			if got := cluster.Buf(node, dstOff, len(payload)); !bytes.Equal(got, payload) {
				t.Fatalf("step %d: node %d saw %q, want %q", step, node, got, letter)
			}
		}
	}
}

// Many collectives in flight at once on each participant: every node
// submits a batch of non-blocking broadcasts (one rooted at each rank, at
// distinct offsets) before syncing any of them, so the active list carries
// the whole batch simultaneously.
func Test_ConcurrentInFlightBroadcasts(t *testing.T) {
	defer goleak.VerifyNone(t)

	const rounds = 8
	cluster := test.CreateCluster(4, 256*1024, t)
	flags := types.Single | types.InNoSync | types.OutAllSync
	const n = 16

	srcOff := func(root int) int { return root * 1024 }
	dstOff := func(round, root int) int { return 32*1024 + (round*cluster.Size+root)*1024 }

	for root := 0; root < cluster.Size; root++ {
		buf := cluster.Buf(root, srcOff(root), n)
		for i := range buf {
			buf[i] = byte(root<<6 | i)
		}
	}

	for round := 0; round < rounds; round++ {
		round := round
		cluster.RunOnAll(60*time.Second, func(ctx context.Context, node int, eng *gcoll.Context) error {
			handles := make([]*gcoll.Handle, 0, cluster.Size)
			for root := 0; root < cluster.Size; root++ {
				h := eng.BroadcastNB(flags, cluster.Buf(node, dstOff(round, root), n), root,
					cluster.Buf(node, srcOff(root), n), n)
				handles = append(handles, h)
			}
			for !gcoll.TrySyncAll(handles) {
				eng.Poll()
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}
			return nil
		})

		for node := 0; node < cluster.Size; node++ {
			for root := 0; root < cluster.Size; root++ {
				want := cluster.Buf(root, srcOff(root), n)
				got := cluster.Buf(node, dstOff(round, root), n)
				if !bytes.Equal(got, want) {
					t.Fatalf("round %d: node %d root %d payload mismatch", round, node, root)
				}
			}
		}
	}
}
