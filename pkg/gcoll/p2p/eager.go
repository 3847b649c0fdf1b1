package p2p

import (
	"encoding/binary"

	"github.com/jabolina/gcoll-engine/pkg/gcoll/transport"
)

// amArgs layout shared by every P2P active message: [0]=teamID [1]=sequence
// [2]=offset [3]=state, then a handler-specific tail: the change_states
// count (short) or the element size (medium) in one slot, or the 64-bit
// destination segment address split over two slots (long/signalling). A single fixed
// prefix keeps the three handlers' decode paths identical.
const (
	argTeam = iota
	argSeq
	argOff
	argState
	argElemSize

	argAddrLo = argElemSize
	argAddrHi = argElemSize + 1
)

// Endpoint binds a Table to a transport.Transport, registering the AM
// handlers that implement the messaging primitives (signalling puts, the
// eager put/addr family and their scalar/broadcast/scatter variants, and
// bare state changes). It is the thing algorithm poll functions actually
// call.
type Endpoint struct {
	table      *Table
	trans      transport.Transport
	imageCount int
}

// NewEndpoint builds a P2P Endpoint over table and trans, registering the
// three reserved AM handlers. imageCount sizes newly created records.
func NewEndpoint(table *Table, trans transport.Transport, imageCount int) *Endpoint {
	e := &Endpoint{table: table, trans: trans, imageCount: imageCount}
	trans.RegisterHandler(transport.AMHandlerEagerShort, e.handleShort)
	trans.RegisterHandler(transport.AMHandlerEagerMed, e.handleMed)
	trans.RegisterHandler(transport.AMHandlerEagerLong, e.handleLong)
	return e
}

func (e *Endpoint) record(teamID, sequence uint32) *Record {
	return e.table.Get(teamID, sequence, e.imageCount)
}

// handleShort implements change_states: no payload, just a state-array
// write.
func (e *Endpoint) handleShort(_ int, args []uint32, _ []byte) {
	teamID, seq, off, state := args[argTeam], args[argSeq], args[argOff], args[argState]
	count := uint32(1)
	if len(args) > int(argElemSize) {
		count = args[argElemSize]
	}
	rec := e.record(teamID, seq)
	for i := uint32(0); i < count; i++ {
		rec.State[off+i] = state
	}
}

// handleMed implements the eager put/addr family: copy payload into the
// record's data buffer at the byte offset implied by (off, elemSize), then
// set state on the addressed slot(s). State is set on every chunk delivered
// for a multi-chunk logical transfer, not only the final one; receivers
// must therefore treat a slot's state as a per-slot signal, valid once that
// slot's own bytes have landed, never as an all-chunks-arrived signal for a
// wider transfer.
func (e *Endpoint) handleMed(_ int, args []uint32, payload []byte) {
	teamID, seq, off, state, elemSize := args[argTeam], args[argSeq], args[argOff], args[argState], args[argElemSize]
	rec := e.record(teamID, seq)
	if elemSize == 0 {
		elemSize = 1
	}
	byteOff := int(off) * int(elemSize)
	if need := byteOff + len(payload); need > len(rec.Data) {
		rec.Data = append(rec.Data, make([]byte, need-len(rec.Data))...)
	}
	copy(rec.Data[byteOff:], payload)
	count := uint32(len(payload)) / elemSize
	if need := int(off + count); need > len(rec.State) {
		rec.State = append(rec.State, make([]uint32, need-len(rec.State))...)
	}
	for i := uint32(0); i < count; i++ {
		rec.State[off+i] = state
	}
}

// handleLong implements signalling_put's receive side: store the payload
// into this node's registered segment at the carried destination address,
// then set the single state entry. The state write happens strictly after
// the payload store, so a remote observing ready state also observes the
// payload.
func (e *Endpoint) handleLong(_ int, args []uint32, payload []byte) {
	teamID, seq, off, state := args[argTeam], args[argSeq], args[argOff], args[argState]
	addr := uintptr(args[argAddrLo]) | uintptr(args[argAddrHi])<<32
	if len(payload) > 0 {
		if err := e.trans.BlockingPut(e.trans.MyNode(), addr, payload, len(payload)); err != nil {
			return
		}
	}
	rec := e.record(teamID, seq)
	rec.State[off] = state
}

func packArgs(teamID, sequence, off, state, elemSize uint32) []uint32 {
	return []uint32{teamID, sequence, off, state, elemSize}
}

// SignallingPut issues a single transport-level long put of up to
// MaxLongRequest() bytes, delivering src to dstAddr on dstNode and, upon AM
// delivery at the remote, setting state[off] := state on its P2P record for
// (teamID, sequence). It segments nothing itself - callers must keep src
// within the transport's MaxLongRequest().
func (e *Endpoint) SignallingPut(dstNode int, teamID, sequence uint32, dstAddr uintptr, src []byte, off, state uint32) error {
	args := []uint32{teamID, sequence, off, state, uint32(dstAddr), uint32(uint64(dstAddr) >> 32)}
	return e.trans.ShortRequestReply(dstNode, transport.AMHandlerEagerLong, args, src)
}

// SignallingPutAsync is semantically identical to SignallingPut but makes
// no promise about when the local src buffer becomes reusable again -
// modeled identically here since the in-memory loopback transport's
// ShortRequestReply already copies src before returning.
func (e *Endpoint) SignallingPutAsync(dstNode int, teamID, sequence uint32, dstAddr uintptr, src []byte, off, state uint32) error {
	return e.SignallingPut(dstNode, teamID, sequence, dstAddr, src, off, state)
}

// EagerPutM sends count elements of elemSize bytes into the remote P2P
// record's data buffer starting at element off, segmenting into chunks of
// at most MaxMedium()/elemSize elements. Each chunk's delivery marks the
// state entries for the elements it carried; the whole range
// [off, off+count) reads as state once the final chunk lands.
func (e *Endpoint) EagerPutM(dstNode int, teamID, sequence uint32, src []byte, count int, elemSize int, off uint32, state uint32) error {
	if elemSize <= 0 {
		elemSize = 1
	}
	maxElems := e.trans.MaxMedium() / elemSize
	if maxElems <= 0 {
		maxElems = 1
	}
	sent := 0
	for sent < count {
		chunk := count - sent
		if chunk > maxElems {
			chunk = maxElems
		}
		payload := src[sent*elemSize : (sent+chunk)*elemSize]
		args := packArgs(teamID, sequence, off+uint32(sent), state, uint32(elemSize))
		if err := e.trans.ShortRequestReply(dstNode, transport.AMHandlerEagerMed, args, payload); err != nil {
			return err
		}
		sent += chunk
	}
	return nil
}

// EagerPut is EagerPutM with count=1.
func (e *Endpoint) EagerPut(dstNode int, teamID, sequence uint32, src []byte, elemSize int, off uint32, state uint32) error {
	return e.EagerPutM(dstNode, teamID, sequence, src, 1, elemSize, off, state)
}

const addrElemSize = 8 // pointer/address element size, uintptr-width

// EagerAddrM is EagerPutM specialized to element type "pointer": addrs
// holds count addresses encoded as little-endian uint64.
func (e *Endpoint) EagerAddrM(dstNode int, teamID, sequence uint32, addrs []uint64, off uint32, state uint32) error {
	buf := make([]byte, len(addrs)*addrElemSize)
	for i, a := range addrs {
		binary.LittleEndian.PutUint64(buf[i*addrElemSize:], a)
	}
	return e.EagerPutM(dstNode, teamID, sequence, buf, len(addrs), addrElemSize, off, state)
}

// EagerAddr is EagerAddrM for a single address.
func (e *Endpoint) EagerAddr(dstNode int, teamID, sequence uint32, addr uint64, off uint32, state uint32) error {
	return e.EagerAddrM(dstNode, teamID, sequence, []uint64{addr}, off, state)
}

// EagerPutAll broadcasts (scatter=false) or scatters (scatter=true) src to
// every other node in [0, nodeCount). When scatter is false every
// destination receives the same size bytes starting at src[0:size]; when
// true, node i receives src[i*size:(i+1)*size]. Either way the payload is
// one size-byte element landing at element slot off, with state[off] set on
// delivery.
func (e *Endpoint) EagerPutAll(teamID, sequence uint32, src []byte, size int, scatter bool, off uint32, state uint32) error {
	me := e.trans.MyNode()
	for node := 0; node < e.trans.NodeCount(); node++ {
		if node == me {
			continue
		}
		var slice []byte
		if scatter {
			slice = src[node*size : (node+1)*size]
		} else {
			slice = src[:size]
		}
		if err := e.EagerPut(node, teamID, sequence, slice, size, off, state); err != nil {
			return err
		}
	}
	return nil
}

// EagerAddrAll broadcasts a single address to every other node.
func (e *Endpoint) EagerAddrAll(teamID, sequence uint32, addr uint64, off uint32, state uint32) error {
	me := e.trans.MyNode()
	for node := 0; node < e.trans.NodeCount(); node++ {
		if node == me {
			continue
		}
		if err := e.EagerAddr(node, teamID, sequence, addr, off, state); err != nil {
			return err
		}
	}
	return nil
}

// ChangeStates is a no-payload AM that writes state into count consecutive
// state entries starting at off on dstNode's P2P record for (teamID,
// sequence).
func (e *Endpoint) ChangeStates(dstNode int, teamID, sequence uint32, count int, off uint32, state uint32) error {
	args := packArgs(teamID, sequence, off, state, 0)
	args[argElemSize] = uint32(count)
	return e.trans.ShortRequestReply(dstNode, transport.AMHandlerEagerShort, args, nil)
}

// Free releases a local P2P record for (teamID, sequence) back to the
// table - called by the owning op on completion.
func (e *Endpoint) Free(teamID, sequence uint32) {
	if e.table.Contains(teamID, sequence) {
		rec := e.table.Get(teamID, sequence, e.imageCount)
		e.table.Free(rec)
	}
}

// Local returns this process's own record for (teamID, sequence) without
// going over the transport - used when the local rank is both sender and
// receiver in a collective (e.g. the root in a gather).
func (e *Endpoint) Local(teamID, sequence uint32) *Record {
	return e.record(teamID, sequence)
}
