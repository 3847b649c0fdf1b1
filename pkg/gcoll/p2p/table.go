// Package p2p implements the point-to-point rendezvous table: a
// hash-indexed set of per-collective records delivering eager payloads,
// rendezvous addresses, and step signals between op instances identified
// only by a (team, sequence) pair, without requiring any prior entry at the
// receiver.
package p2p

import (
	"container/list"
	"sync"

	"github.com/jabolina/gcoll-engine/internal/telemetry"
)

// EagerMin is the minimum data-buffer size a P2P record is allocated with,
// regardless of image count.
const EagerMin = 4096

// EagerScale is the per-image data-buffer sizing multiplier: a record's
// buffer is at least EagerScale * imageCount bytes.
const EagerScale = 256

// defaultTableSize is the table's slot count (sequence mod T); must be a
// power of two >= 16.
const defaultTableSize = 16

// Record is a P2P table entry keyed by (TeamID, Sequence): a byte buffer for
// eager payloads/rendezvous addresses, and a parallel array of state words
// signalling per-image delivery.
type Record struct {
	TeamID   uint32
	Sequence uint32

	Data  []byte
	State []uint32

	elem *list.Element // this record's position in its slot's list
	slot int
}

// alignedSize rounds n up to the largest of EagerMin and
// EagerScale*imageCount, aligned to 8 bytes for pointer storage.
func alignedSize(imageCount int) int {
	n := EagerMin
	if v := EagerScale * imageCount; v > n {
		n = v
	}
	return (n + 7) &^ 7
}

// Table is the hash-indexed P2P table. Lookup-or-create is atomic relative
// to concurrent mutation; a record is removed (not destroyed - see Free)
// once the owning op completes.
type Table struct {
	mu        sync.Mutex
	slots     []*list.List
	freelist  []*Record
	size      int
	occupancy int

	metrics *telemetry.Registry
}

// NewTable builds a P2P table with the default (>=16, power-of-two) slot
// count.
func NewTable() *Table {
	return NewTableSize(defaultTableSize)
}

// NewTableSize builds a P2P table with an explicit slot count; size must be
// a power of two.
func NewTableSize(size int) *Table {
	t := &Table{slots: make([]*list.List, size), size: size}
	for i := range t.slots {
		t.slots[i] = list.New()
	}
	return t
}

// SetMetrics wires the table's occupancy gauge into a telemetry registry.
func (t *Table) SetMetrics(m *telemetry.Registry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics = m
}

func (t *Table) slotIndex(sequence uint32) int {
	return int(sequence) & (t.size - 1)
}

// Get performs lookup-or-create for (teamID, sequence): if a matching
// record exists it is returned as-is; otherwise one is allocated (from the
// freelist if possible), zeroed, sized per alignedSize(imageCount), linked
// into its slot, and returned.
func (t *Table) Get(teamID, sequence uint32, imageCount int) *Record {
	idx := t.slotIndex(sequence)

	t.mu.Lock()
	defer t.mu.Unlock()

	slot := t.slots[idx]
	for e := slot.Front(); e != nil; e = e.Next() {
		r := e.Value.(*Record)
		if r.TeamID == teamID && r.Sequence == sequence {
			return r
		}
	}

	var r *Record
	if n := len(t.freelist); n > 0 {
		r = t.freelist[n-1]
		t.freelist = t.freelist[:n-1]
	} else {
		r = &Record{}
	}

	size := alignedSize(imageCount)
	if cap(r.Data) < size {
		r.Data = make([]byte, size)
	} else {
		r.Data = r.Data[:size]
		for i := range r.Data {
			r.Data[i] = 0
		}
	}
	if cap(r.State) < imageCount {
		r.State = make([]uint32, imageCount)
	} else {
		r.State = r.State[:imageCount]
		for i := range r.State {
			r.State[i] = 0
		}
	}
	r.TeamID = teamID
	r.Sequence = sequence
	r.slot = idx
	r.elem = slot.PushBack(r)
	t.occupancy++
	if t.metrics != nil {
		t.metrics.P2POccupancy.Set(float64(t.occupancy))
	}
	return r
}

// Free unlinks rec from its slot and pushes it onto the freelist. Actual
// memory release is deferred to process teardown.
func (t *Table) Free(rec *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots[rec.slot].Remove(rec.elem)
	rec.elem = nil
	t.freelist = append(t.freelist, rec)
	t.occupancy--
	if t.metrics != nil {
		t.metrics.P2POccupancy.Set(float64(t.occupancy))
	}
}

// Contains reports whether a record for (teamID, sequence) is currently
// present in the table. A record exists only while some active op with
// that (team, sequence) pair holds it.
func (t *Table) Contains(teamID, sequence uint32) bool {
	idx := t.slotIndex(sequence)
	t.mu.Lock()
	defer t.mu.Unlock()
	slot := t.slots[idx]
	for e := slot.Front(); e != nil; e = e.Next() {
		r := e.Value.(*Record)
		if r.TeamID == teamID && r.Sequence == sequence {
			return true
		}
	}
	return false
}
