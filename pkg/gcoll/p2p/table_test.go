package p2p

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetCreatesAndReturnsSameRecord(t *testing.T) {
	table := NewTable()
	r1 := table.Get(0, 42, 4)
	require.NotNil(t, r1)
	require.True(t, table.Contains(0, 42))

	r2 := table.Get(0, 42, 4)
	require.Same(t, r1, r2, "lookup-or-create must return the existing record")
}

func TestRecordSizing(t *testing.T) {
	table := NewTable()
	r := table.Get(0, 1, 4)
	require.GreaterOrEqual(t, len(r.Data), EagerMin)
	require.Zero(t, len(r.Data)%8, "data buffer must stay aligned for pointer storage")
	require.Len(t, r.State, 4)

	big := table.Get(0, 2, 64)
	require.GreaterOrEqual(t, len(big.Data), EagerScale*64)
}

func TestFreeRemovesAndRecyclesZeroed(t *testing.T) {
	table := NewTable()
	r := table.Get(7, 9, 2)
	r.Data[0] = 0xFF
	r.State[1] = 3

	table.Free(r)
	require.False(t, table.Contains(7, 9), "freed record must leave the table")

	// The freelist hands the same record back for the next create, with
	// its state array and data buffer zeroed again.
	r2 := table.Get(7, 10, 2)
	require.Same(t, r, r2)
	require.EqualValues(t, 0, r2.Data[0])
	require.EqualValues(t, 0, r2.State[1])
}

func TestDistinctKeysShareSlotChains(t *testing.T) {
	// Sequences 3 and 3+T hash to the same slot; both must coexist.
	table := NewTableSize(16)
	a := table.Get(0, 3, 2)
	b := table.Get(0, 3+16, 2)
	require.NotSame(t, a, b)
	require.True(t, table.Contains(0, 3))
	require.True(t, table.Contains(0, 3+16))

	table.Free(a)
	require.False(t, table.Contains(0, 3))
	require.True(t, table.Contains(0, 3+16), "freeing one chain entry must not disturb its neighbors")
}
