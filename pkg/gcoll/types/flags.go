// Package types holds the data model shared across every component of the
// collective engine: team/image identity, the flag word that callers pass to
// every collective request, and the tagged union of per-collective
// arguments.
package types

// Flags is the bitmask word carried on every collective request. Exactly one
// IN-sync bit, exactly one OUT-sync bit, and exactly one of SINGLE/LOCAL must
// be set; the dispatch layer rejects anything else as a usage error.
type Flags uint32

const (
	// InNoSync: the issuer promises its buffer is already safe to use -
	// no entry barrier is issued.
	InNoSync Flags = 1 << iota
	// InMySync: the issuer waits for its own buffer-safe moment before
	// entering, but does not require every participant to have arrived.
	InMySync
	// InAllSync: every participant waits at entry (a full barrier).
	InAllSync

	// OutNoSync: the caller promises it will not touch the buffer until
	// it independently knows the op is done - no exit barrier.
	OutNoSync
	// OutMySync: the caller waits only for its own participation to be
	// safely retired.
	OutMySync
	// OutAllSync: every participant waits at exit (a full barrier).
	OutAllSync

	// Single asserts identical (address, size) arguments on every
	// participant, enabling one-sided algorithms that assume a shared
	// view of the transfer shape.
	Single
	// Local asserts each participant names only its own buffer, forcing
	// a rendezvous to exchange addresses before any transfer.
	Local

	// Aggregate appends this submission to the pending aggregate group
	// instead of giving it its own handle.
	Aggregate

	// DstInSegment hints that the destination buffer is known to lie
	// within the registered communication segment.
	DstInSegment
	// SrcInSegment hints that the source buffer is known to lie within
	// the registered communication segment.
	SrcInSegment
)

const (
	inSyncMask  = InNoSync | InMySync | InAllSync
	outSyncMask = OutNoSync | OutMySync | OutAllSync
	addrMask    = Single | Local
)

// Has reports whether every bit in mask is set in f.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// Any reports whether any bit in mask is set in f.
func (f Flags) Any(mask Flags) bool { return f&mask != 0 }

// onlyOneOf reports whether exactly one bit of mask is set in f.
func onlyOneOf(f, mask Flags) bool {
	v := f & mask
	return v != 0 && v&(v-1) == 0
}

// Validate checks the exactly-one-of constraints on the IN-sync, OUT-sync
// and SINGLE/LOCAL groups. It does not check AGGREGATE or the in-segment
// hints, which are both optional.
func (f Flags) Validate() error {
	if !onlyOneOf(f, inSyncMask) {
		return &UsageError{Message: "flags must set exactly one of IN_NOSYNC|IN_MYSYNC|IN_ALLSYNC"}
	}
	if !onlyOneOf(f, outSyncMask) {
		return &UsageError{Message: "flags must set exactly one of OUT_NOSYNC|OUT_MYSYNC|OUT_ALLSYNC"}
	}
	if !onlyOneOf(f, addrMask) {
		return &UsageError{Message: "flags must set exactly one of SINGLE|LOCAL"}
	}
	return nil
}

// UsageError is a programmer-error detected by the dispatch layer:
// bad flag combination, a missing transport, an unknown tree strategy or
// function index, or a buffer claimed in-segment that is not. These are fatal - the caller is expected to let
// it propagate as a panic at the process boundary, not recover it as part
// of normal control flow.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return "gcoll: usage error: " + e.Message }

// ProtocolError reports an internal protocol inconsistency (a barrier
// mismatch detected by the consensus service, an op state moving backward,
// an unknown argument kind).
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string { return "gcoll: protocol error: " + e.Message }
