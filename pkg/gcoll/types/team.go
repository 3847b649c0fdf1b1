package types

import "sync/atomic"

// TeamID is the 32-bit identity of a team.
type TeamID uint32

// UniversalTeamID is the distinguished id of the "team-all" value - the only
// team this core exposes a constructor for.
const UniversalTeamID TeamID = 0

// Team is an opaque identity with a rank count, a rank-to-node mapping, and a
// per-team monotonically increasing operation-sequence counter. Sequence
// comparisons use signed modular difference so the counter wraps safely.
//
// The struct is shaped generally enough to grow a real multi-team
// implementation later, but only UniversalTeam below is exposed.
type Team struct {
	ID    TeamID
	Ranks []int // rank -> node
	seq   uint32
}

// UniversalTeam returns the team-all value spanning every node in
// [0, nodeCount).
func UniversalTeam(nodeCount int) *Team {
	ranks := make([]int, nodeCount)
	for i := range ranks {
		ranks[i] = i
	}
	return &Team{ID: UniversalTeamID, Ranks: ranks}
}

// NodeCount returns the number of ranks participating in the team.
func (t *Team) NodeCount() int { return len(t.Ranks) }

// Node maps a rank to its owning process node.
func (t *Team) Node(rank int) int { return t.Ranks[rank] }

// NextSequence atomically returns the next unused operation sequence number
// for this team.
func (t *Team) NextSequence() uint32 {
	return atomic.AddUint32(&t.seq, 1) - 1
}

// SeqBefore reports whether a precedes b under signed modular-difference
// comparison, so the counter can wrap without breaking ordering semantics.
func SeqBefore(a, b uint32) bool {
	return int32(a-b) < 0
}
