// Package loopback provides an in-memory reference implementation of
// transport.Transport: multiple simulated process nodes inside one Go
// process, each with its own registered segment, connected by buffered
// channels carrying active-message traffic. It is the transport every test
// in this repository uses in place of a real RDMA fabric.
package loopback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sync/semaphore"

	"github.com/jabolina/gcoll-engine/pkg/gcoll/transport"
)

const (
	defaultMaxLongRequest = 1 << 20 // 1 MiB
	defaultMaxMedium      = 8192

	// maxInFlightTransfers bounds the goroutines simulating concurrent
	// bulk transfers across the whole fabric.
	maxInFlightTransfers = 64
)

// amMessage is one active-message in flight between two simulated nodes.
type amMessage struct {
	srcNode int
	handler transport.AMHandlerIndex
	args    []uint32
	payload []byte
}

// Fabric owns every simulated node's state: registered segments and the
// shared barrier bookkeeping used by every node's Barrier().
type Fabric struct {
	nodeCount int
	segSize   int

	nodes []*node

	barrierMu   sync.Mutex
	barrierSeen map[uint32]map[int]bool

	// trafficMu guards putBytes, a from-node x to-node matrix of bytes
	// moved by put/get calls - tests use it to assert that tree-based
	// algorithms only ever talk along tree edges.
	trafficMu sync.Mutex
	putBytes  [][]int

	sem *semaphore.Weighted
}

// NewFabric builds a Fabric of n simulated nodes, each with a segSize-byte
// registered segment.
func NewFabric(n int, segSize int) *Fabric {
	f := &Fabric{
		nodeCount:   n,
		segSize:     segSize,
		barrierSeen: make(map[uint32]map[int]bool),
	}
	f.sem = semaphore.NewWeighted(maxInFlightTransfers)
	f.nodes = make([]*node, n)
	f.putBytes = make([][]int, n)
	for i := 0; i < n; i++ {
		f.nodes[i] = &node{
			fab:     f,
			id:      i,
			segment: make([]byte, segSize),
			inbox:   make(chan amMessage, 1024),
		}
		f.putBytes[i] = make([]int, n)
	}
	return f
}

// TrafficBytes returns the number of payload bytes moved from node `from`
// to node `to` so far, counting puts, gets (attributed to the data's source
// node), and AM payloads.
func (f *Fabric) TrafficBytes(from, to int) int {
	f.trafficMu.Lock()
	defer f.trafficMu.Unlock()
	return f.putBytes[from][to]
}

func (f *Fabric) countTraffic(from, to, n int) {
	if from == to {
		return
	}
	f.trafficMu.Lock()
	f.putBytes[from][to] += n
	f.trafficMu.Unlock()
}

// Node returns the transport.Transport view for simulated node id.
func (f *Fabric) Node(id int) transport.Transport { return f.nodes[id] }

// Segment exposes a node's raw registered segment - used by tests to plant
// source data and assert on delivered destination data directly.
func (f *Fabric) Segment(id int) []byte { return f.nodes[id].segment }

type node struct {
	fab     *Fabric
	id      int
	segment []byte
	segMu   sync.RWMutex

	inbox chan amMessage

	handlersMu    sync.RWMutex
	handlers      map[transport.AMHandlerIndex]transport.AMHandler
	currentRegion *nbiRegion
}

func (n *node) NodeCount() int { return n.fab.nodeCount }
func (n *node) MyNode() int    { return n.id }

func (n *node) SegmentOf(nodeID int) (uintptr, uintptr) {
	return 0, uintptr(n.fab.segSize)
}

// AddrOf translates buf into its byte offset within this node's registered
// segment - the symmetric, segment-relative representation put/get address
// remote memory with. A buffer outside the segment has no such offset.
func (n *node) AddrOf(buf []byte) uintptr {
	if len(buf) == 0 || len(n.segment) == 0 {
		return transport.OutOfSegment
	}
	base := uintptr(unsafe.Pointer(&n.segment[0]))
	p := uintptr(unsafe.Pointer(&buf[0]))
	if p < base || p+uintptr(len(buf)) > base+uintptr(len(n.segment)) {
		return transport.OutOfSegment
	}
	return p - base
}

func (n *node) BlockingGet(dst []byte, srcNode int, src uintptr, nbytes int) error {
	target := n.fab.nodes[srcNode]
	target.segMu.RLock()
	defer target.segMu.RUnlock()
	if int(src)+nbytes > len(target.segment) {
		return fmt.Errorf("loopback: get out of segment bounds on node %d", srcNode)
	}
	copy(dst, target.segment[src:src+uintptr(nbytes)])
	n.fab.countTraffic(srcNode, n.id, nbytes)
	return nil
}

func (n *node) BlockingPut(dstNode int, dst uintptr, src []byte, nbytes int) error {
	target := n.fab.nodes[dstNode]
	target.segMu.Lock()
	defer target.segMu.Unlock()
	if int(dst)+nbytes > len(target.segment) {
		return fmt.Errorf("loopback: put out of segment bounds on node %d", dstNode)
	}
	copy(target.segment[dst:dst+uintptr(nbytes)], src[:nbytes])
	n.fab.countTraffic(n.id, dstNode, nbytes)
	return nil
}

// handle is the loopback NBHandle: an atomic bool flipped once the
// simulated transfer's goroutine finishes.
type handle struct {
	done atomic.Bool
	err  error
}

func (h *handle) Done() bool { return h.done.Load() }

func (n *node) NBPutBulk(dstNode int, dst uintptr, src []byte, nbytes int) (transport.NBHandle, error) {
	h := &handle{}
	go func() {
		_ = n.fab.sem.Acquire(context.Background(), 1)
		defer n.fab.sem.Release(1)
		h.err = n.BlockingPut(dstNode, dst, src, nbytes)
		h.done.Store(true)
	}()
	return h, nil
}

func (n *node) NBGetBulk(dst []byte, srcNode int, src uintptr, nbytes int) (transport.NBHandle, error) {
	h := &handle{}
	go func() {
		_ = n.fab.sem.Acquire(context.Background(), 1)
		defer n.fab.sem.Release(1)
		h.err = n.BlockingGet(dst, srcNode, src, nbytes)
		h.done.Store(true)
	}()
	return h, nil
}

// nbiRegion is the single handle opened by BeginNBIRegion/EndNBIRegion,
// accumulating every NBI* call issued in between.
type nbiRegion struct {
	mu      sync.Mutex
	pending []*handle
}

func (r *nbiRegion) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.pending {
		if !h.Done() {
			return false
		}
	}
	return true
}

func (n *node) BeginNBIRegion() {
	n.handlersMu.Lock()
	n.currentRegion = &nbiRegion{}
	n.handlersMu.Unlock()
}

func (n *node) EndNBIRegion() transport.NBHandle {
	n.handlersMu.Lock()
	r := n.currentRegion
	n.currentRegion = nil
	n.handlersMu.Unlock()
	if r == nil {
		return &nbiRegion{}
	}
	return r
}

func (n *node) NBIPutBulk(dstNode int, dst uintptr, src []byte, nbytes int) error {
	h, err := n.NBPutBulk(dstNode, dst, src, nbytes)
	if err != nil {
		return err
	}
	n.attachToRegion(h.(*handle))
	return nil
}

func (n *node) NBIGetBulk(dst []byte, srcNode int, src uintptr, nbytes int) error {
	h, err := n.NBGetBulk(dst, srcNode, src, nbytes)
	if err != nil {
		return err
	}
	n.attachToRegion(h.(*handle))
	return nil
}

func (n *node) attachToRegion(h *handle) {
	n.handlersMu.Lock()
	defer n.handlersMu.Unlock()
	if n.currentRegion != nil {
		n.currentRegion.mu.Lock()
		n.currentRegion.pending = append(n.currentRegion.pending, h)
		n.currentRegion.mu.Unlock()
	}
}

func (n *node) TrySyncNB(h transport.NBHandle) bool { return h.Done() }

func (n *node) WaitSyncNB(ctx context.Context, h transport.NBHandle) error {
	for !h.Done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

func (n *node) MaxLongRequest() int { return defaultMaxLongRequest }
func (n *node) MaxMedium() int      { return defaultMaxMedium }

func (n *node) ShortRequestReply(dstNode int, handlerIdx transport.AMHandlerIndex, args []uint32, payload []byte) error {
	target := n.fab.nodes[dstNode]
	cp := make([]byte, len(payload))
	copy(cp, payload)
	msg := amMessage{srcNode: n.id, handler: handlerIdx, args: append([]uint32(nil), args...), payload: cp}
	select {
	case target.inbox <- msg:
		n.fab.countTraffic(n.id, dstNode, len(cp))
		return nil
	default:
		return errors.New("loopback: AM inbox full")
	}
}

func (n *node) RegisterHandler(idx transport.AMHandlerIndex, fn transport.AMHandler) {
	n.handlersMu.Lock()
	defer n.handlersMu.Unlock()
	if n.handlers == nil {
		n.handlers = make(map[transport.AMHandlerIndex]transport.AMHandler)
	}
	n.handlers[idx] = fn
}

func (n *node) Barrier() transport.Barrier { return &fabricBarrier{n: n} }

func (n *node) Poll() {
	for {
		select {
		case msg := <-n.inbox:
			n.handlersMu.RLock()
			fn := n.handlers[msg.handler]
			n.handlersMu.RUnlock()
			if fn != nil {
				fn(msg.srcNode, msg.args, msg.payload)
			}
		default:
			return
		}
	}
}

// fabricBarrier implements transport.Barrier against the shared Fabric
// bookkeeping: every node's Notify(id) marks itself seen for id; Try(id)
// reports ok once every node has been seen.
type fabricBarrier struct {
	n *node
}

func (b *fabricBarrier) Notify(id uint32) error {
	f := b.n.fab
	f.barrierMu.Lock()
	defer f.barrierMu.Unlock()
	seen := f.barrierSeen[id]
	if seen == nil {
		seen = make(map[int]bool)
		f.barrierSeen[id] = seen
	}
	seen[b.n.id] = true
	return nil
}

func (b *fabricBarrier) Try(id uint32) (bool, error) {
	f := b.n.fab
	f.barrierMu.Lock()
	defer f.barrierMu.Unlock()
	seen := f.barrierSeen[id]
	return len(seen) >= f.nodeCount, nil
}

func (b *fabricBarrier) Wait(id uint32) error {
	for {
		ok, err := b.Try(id)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
}
