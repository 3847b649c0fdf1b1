// Package gcoll is the top-level dispatch layer of the collective engine:
// validate flags, choose an algorithm, allocate an op record from the
// caller's ThreadContext, submit it to the engine, and return a handle.
package gcoll

import (
	"context"

	"github.com/jabolina/gcoll-engine/internal/logging"
	"github.com/jabolina/gcoll-engine/internal/telemetry"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/consensus"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/core"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/p2p"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/transport"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/tree"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/types"
)

// Context is the handle to an initialized collective engine: the runtime
// collaborators bundle (transport, P2P, consensus, trees, topology), the
// progress engine, and this process's own ThreadContext. Every collective
// entry point in this package is a method on *Context.
type Context struct {
	rt        *core.Runtime
	engine    *core.Engine
	agg       *core.AggregationQueue
	tc        *core.ThreadContext
	team      *types.Team
	fnIndexes []transport.AMHandlerIndex
}

// Init builds a Context from cfg, wiring the tree cache, consensus service,
// and P2P endpoint over cfg.Transport, and registering the universal team
// spanning cfg.ImageCounts.
func Init(cfg *Config) *Context {
	if cfg.Transport == nil {
		panic(&types.UsageError{Message: "gcoll.Init: Transport is required"})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoop()
	}

	topology := types.NewTopology(cfg.ImageCounts)
	table := cfg.table()
	table.SetMetrics(metrics)
	p2pEndpoint := p2p.NewEndpoint(table, cfg.Transport, topology.ImageCount())
	consensusSvc := consensus.New(cfg.Transport.Barrier(), logger, metrics)
	trees := tree.NewCache()

	rt := &core.Runtime{
		Transport: cfg.Transport,
		P2P:       p2pEndpoint,
		Consensus: consensusSvc,
		Trees:     trees,
		Topology:  topology,
		Logger:    logger,
		Metrics:   metrics,
	}

	// Register the caller's computational function table behind the
	// reserved P2P handlers, handing the assigned indices back through
	// FunctionIndex.
	fnIndexes := make([]transport.AMHandlerIndex, len(cfg.Functions))
	for i, fn := range cfg.Functions {
		idx := transport.AMHandlerReservedCount + transport.AMHandlerIndex(i)
		cfg.Transport.RegisterHandler(idx, fn)
		fnIndexes[i] = idx
	}

	return &Context{
		rt:        rt,
		engine:    core.NewEngine(logger, metrics),
		agg:       core.NewAggregationQueue(),
		tc:        core.NewThreadContext(cfg.MyImage),
		team:      types.UniversalTeam(topology.ImageCount()),
		fnIndexes: fnIndexes,
	}
}

// FunctionIndex returns the active-message handler index assigned to the
// i-th entry of Config.Functions at Init time.
func (c *Context) FunctionIndex(i int) transport.AMHandlerIndex {
	if i < 0 || i >= len(c.fnIndexes) {
		panic(&types.UsageError{Message: "gcoll: FunctionIndex out of range"})
	}
	return c.fnIndexes[i]
}

// Poll drives one sweep of the progress engine. Callers are expected to
// call it regularly from whatever goroutine(s) they dedicate to making
// collective progress - there is no internal polling thread.
func (c *Context) Poll() {
	c.rt.Transport.Poll()
	c.engine.Poll(c.tc)
}

// addrOf translates a caller buffer into the segment-relative address
// representation put/get targets use.
func (c *Context) addrOf(b []byte) uintptr {
	return c.rt.Transport.AddrOf(b)
}

// checkSegmentClaims bounds-checks the local buffer portions the flags
// claim in-segment; a claim the segment cannot honor is a fatal usage
// error.
func (c *Context) checkSegmentClaims(flags types.Flags, srcAddr, dstAddr uintptr, nBytes int) {
	me := c.rt.Transport.MyNode()
	if flags.Has(types.SrcInSegment) && !inSegment(c.rt, me, srcAddr, nBytes) {
		panic(&types.UsageError{Message: "source buffer claimed in-segment is outside the registered segment"})
	}
	if flags.Has(types.DstInSegment) && !inSegment(c.rt, me, dstAddr, nBytes) {
		panic(&types.UsageError{Message: "destination buffer claimed in-segment is outside the registered segment"})
	}
}

// submit validates flags, builds the op record's generic data from the
// dispatch-time decisions made by select.go, and links it into the engine,
// returning the handle the caller will sync on.
func (c *Context) submit(flags types.Flags, sel selection, args types.CollArgs, srcAddr, dstAddr uintptr) *Handle {
	if err := flags.Validate(); err != nil {
		panic(err)
	}
	c.checkSegmentClaims(flags, srcAddr, dstAddr, args.NBytes())

	op := c.tc.CreateOp()
	op.Team = c.team
	op.Sequence = c.team.NextSequence()
	op.Flags = flags
	op.Algo = sel.algo
	op.RT = c.rt
	op.Poll = sel.poll

	g := c.tc.CreateGeneric()
	g.Args = args
	g.SrcAddr = srcAddr
	g.DstAddr = dstAddr
	g.NeedInBarrier = flags.Has(types.InAllSync)
	g.NeedOutBarrier = flags.Has(types.OutAllSync)
	g.NeedP2P = needsP2P(sel.algo)
	if g.NeedInBarrier {
		g.InToken = c.rt.Consensus.Create()
	}
	if g.NeedOutBarrier {
		g.OutToken = c.rt.Consensus.Create()
	}
	if g.NeedP2P {
		g.P2P = c.rt.P2P.Local(uint32(op.Team.ID), op.Sequence)
	}
	if needsTree(sel.algo) {
		root := args.RootImage()
		geom := c.rt.Trees.Init(sel.treeKind, root, c.rt.Topology.ImageCount(), c.tc.MyImage)
		g.Tree = c.tc.CreateTreeData()
		g.Tree.Geometry = geom
	}
	op.Generic = g

	h := c.agg.Submit(c.tc, c.engine, op, flags.Has(types.Aggregate))
	if c.rt.Metrics != nil {
		c.rt.Metrics.AlgorithmSelected.WithLabelValues(args.Kind.String(), sel.algo.String()).Inc()
	}
	return wrapHandle(c.tc, h)
}

// waitBlocking drains Poll until h reports done, or ctx is cancelled - the
// implementation behind every blocking entry point (Broadcast, Scatter,
// ...), which shares validation and submission with its NB counterpart.
func (c *Context) waitBlocking(ctx context.Context, h *Handle) error {
	for {
		if h.done() {
			return nil
		}
		c.Poll()
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}
