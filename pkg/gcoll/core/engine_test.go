package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jabolina/gcoll-engine/internal/logging"
	"github.com/jabolina/gcoll-engine/internal/telemetry"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/types"
)

func newTestEngine() (*Engine, *ThreadContext) {
	return NewEngine(logging.NewDefaultLogger(), telemetry.NewNoop()), NewThreadContext(0)
}

// stubOp builds an op whose poll function is entirely under the test's
// control.
func stubOp(tc *ThreadContext, poll PollFunc) *OpRecord {
	op := tc.CreateOp()
	op.Poll = poll
	op.Handle = InvalidHandle
	return op
}

func TestPollWithNoOpsIsANoOp(t *testing.T) {
	engine, tc := newTestEngine()
	engine.Poll(tc)
	require.Zero(t, engine.length)
}

func TestPollVisitsOpsInSubmissionOrder(t *testing.T) {
	engine, tc := newTestEngine()

	var visited []string
	mk := func(name string) *OpRecord {
		return stubOp(tc, func(op *OpRecord, _ *ThreadContext) PollResult {
			visited = append(visited, name)
			return Stall
		})
	}
	engine.Submit(mk("a"))
	engine.Submit(mk("b"))
	engine.Submit(mk("c"))

	engine.Poll(tc)
	require.Equal(t, []string{"a", "b", "c"}, visited)

	// A stalled op stays linked, in place, for the next sweep.
	engine.Poll(tc)
	require.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, visited)
}

func TestCompleteSignalsHandleAndUnlinks(t *testing.T) {
	engine, tc := newTestEngine()

	h := tc.CreateHandle()
	ticks := 0
	op := stubOp(tc, func(op *OpRecord, _ *ThreadContext) PollResult {
		ticks++
		if ticks < 3 {
			return Stall
		}
		return Complete
	})
	op.Handle = h
	engine.Submit(op)

	engine.Poll(tc)
	require.False(t, h.Done())
	engine.Poll(tc)
	engine.Poll(tc)
	require.True(t, h.Done())
	require.Zero(t, engine.length, "completed op must be unlinked")

	// Three-state handle contract: first Done() observation consumes it.
	require.True(t, tc.Done(h))
}

func TestInactiveOpIsDestroyedWithoutSignaling(t *testing.T) {
	engine, tc := newTestEngine()
	op := stubOp(tc, func(op *OpRecord, _ *ThreadContext) PollResult {
		return Inactive
	})
	engine.Submit(op)
	engine.Poll(tc)
	require.Zero(t, engine.length)
}

func TestStateNeverMovesBackward(t *testing.T) {
	_, tc := newTestEngine()
	op := tc.CreateOp()
	op.AdvanceTo(AwaitTransfer)
	require.Equal(t, AwaitTransfer, op.State)

	require.Panics(t, func() {
		op.AdvanceTo(AwaitInBarrier)
	}, "an op state revisiting an earlier state is a protocol error")
}

func TestOpsCreatedDuringPollRunNextSweep(t *testing.T) {
	engine, tc := newTestEngine()

	var lateVisited bool
	spawner := stubOp(tc, nil)
	spawner.Poll = func(op *OpRecord, tc *ThreadContext) PollResult {
		late := stubOp(tc, func(op *OpRecord, _ *ThreadContext) PollResult {
			lateVisited = true
			return Complete
		})
		engine.Submit(late)
		return Complete
	}
	engine.Submit(spawner)

	engine.Poll(tc)
	require.False(t, lateVisited, "an op submitted mid-sweep is scheduled no earlier than the next traversal")
	engine.Poll(tc)
	require.True(t, lateVisited)
}

func TestAggregateSurfacesSingleHandle(t *testing.T) {
	engine, tc := newTestEngine()
	queue := NewAggregationQueue()

	var gate [4]bool
	mk := func(i int) *OpRecord {
		return stubOp(tc, func(op *OpRecord, _ *ThreadContext) PollResult {
			if gate[i] {
				return Complete
			}
			return Stall
		})
	}

	for i := 0; i < 3; i++ {
		h := queue.Submit(tc, engine, mk(i), true)
		require.Equal(t, InvalidHandle, h, "aggregate members surface no handle of their own")
	}
	h := queue.Submit(tc, engine, mk(3), false)
	require.NotEqual(t, InvalidHandle, h)

	// Complete members one at a time; the container handle fires only
	// after the last.
	for i := 0; i < 4; i++ {
		require.False(t, h.Done(), "container completed with member %d still pending", i)
		gate[i] = true
		engine.Poll(tc)
	}
	engine.Poll(tc) // the container already completed in the last member's sweep
	require.True(t, h.Done())
}

func TestSequencesDistinctAcrossActiveOps(t *testing.T) {
	team := types.UniversalTeam(4)
	seen := map[uint32]bool{}
	for i := 0; i < 100; i++ {
		seq := team.NextSequence()
		require.False(t, seen[seq], "sequence %d issued twice", seq)
		seen[seq] = true
	}
}
