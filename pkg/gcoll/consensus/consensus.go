// Package consensus implements the sequenced two-phase notify/try barrier
// service used to back IN_ALLSYNC/OUT_ALLSYNC synchronization: a single
// process-wide state word encodes the next barrier id and its phase, and
// tokens drain strictly in creation order.
package consensus

import (
	"sync"

	"github.com/jabolina/gcoll-engine/internal/logging"
	"github.com/jabolina/gcoll-engine/internal/telemetry"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/types"
)

// Token is an opaque handle to a sequenced barrier. Tokens are totally
// ordered by creation order.
type Token uint32

// Barrier is the subset of the transport contract the consensus service
// depends on: a named/anonymous barrier with notify/try phases. Separated
// from the full transport.Transport interface so unit tests can supply an
// in-memory double without a real transport.
type Barrier interface {
	// Notify announces this process has reached the barrier named by id.
	Notify(id uint32) error
	// Try probes whether the barrier named by id has drained without
	// blocking. ok is true only once every process has notified.
	Try(id uint32) (ok bool, err error)
}

// phase values packed into the low bit of the state word.
const (
	phaseNotify = 0
	phaseTry    = 1
)

// Service sequences and arbitrates barrier notify/try calls made by any
// number of goroutines within this process against a shared Barrier
// collaborator. Calls are safe to interleave from the same process; the
// service serializes internally.
type Service struct {
	barrier Barrier
	logger  logging.Logger
	metrics *telemetry.Registry

	mu     sync.Mutex
	state  uint32 // (next_id << 1) | phase
	nextID uint32 // next unused token id handed out by Create
}

// New builds a consensus Service driving the given Barrier collaborator.
// metrics may be nil, in which case token creation is not counted.
func New(barrier Barrier, logger logging.Logger, metrics *telemetry.Registry) *Service {
	return &Service{barrier: barrier, logger: logger, metrics: metrics}
}

// Create returns the next unused token id. Tokens from the same Service are
// totally ordered by creation: a token created before another always
// compares less under the wraparound-safe types.SeqBefore.
func (s *Service) Create() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	if s.metrics != nil {
		s.metrics.ConsensusTokensTotal.Inc()
	}
	return Token(id)
}

// decode decodes the current (id, phase) pair from the packed state word.
func decode(state uint32) (id uint32, phase uint32) {
	return state >> 1, state & 1
}

func encode(id uint32, phase uint32) uint32 {
	return (id << 1) | (phase & 1)
}

// Try attempts to complete the two-phase protocol for tok. It returns true
// only once every participating process has notified for every token
// strictly preceding tok and the barrier at tok itself has drained.
// A caller whose token matches the current notify slot issues notify first,
// advancing the shared state; any caller may speculatively try once the
// phase has advanced to "try", advancing state again on success. Safe to
// call repeatedly (it just stalls, like a poll-function state advance)
// until it returns true.
func (s *Service) Try(tok Token) (bool, error) {
	id := uint32(tok)

	s.mu.Lock()
	curID, phase := decode(s.state)
	if types.SeqBefore(id, curID) {
		// A token strictly before the current slot has, by construction
		// of this service's own sequencing, already drained.
		s.mu.Unlock()
		return true, nil
	}
	if id != curID {
		// Not yet this token's turn; nothing to do this call.
		s.mu.Unlock()
		return false, nil
	}

	switch phase {
	case phaseNotify:
		s.mu.Unlock()
		if err := s.barrier.Notify(id); err != nil {
			return false, &types.ProtocolError{Message: "consensus: barrier notify mismatch: " + err.Error()}
		}
		s.mu.Lock()
		// Only advance if nobody else raced us past this id already.
		if curID2, phase2 := decode(s.state); curID2 == id && phase2 == phaseNotify {
			s.state = encode(id, phaseTry)
		}
		s.mu.Unlock()
		return false, nil

	case phaseTry:
		s.mu.Unlock()
		ok, err := s.barrier.Try(id)
		if err != nil {
			return false, &types.ProtocolError{Message: "consensus: barrier try mismatch: " + err.Error()}
		}
		if !ok {
			return false, nil
		}
		s.mu.Lock()
		if curID2, phase2 := decode(s.state); curID2 == id && phase2 == phaseTry {
			s.state = encode(id+1, phaseNotify)
		}
		s.mu.Unlock()
		return true, nil

	default:
		s.mu.Unlock()
		panic(&types.ProtocolError{Message: "consensus: impossible phase value"})
	}
}

// outstanding reports (for tests/metrics) how many tokens have been created
// but not yet advanced past by this process, bounded by the ~1 billion the
// unsigned-32-bit wraparound comparison supports.
func (s *Service) outstanding() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID - (s.state >> 1)
}
