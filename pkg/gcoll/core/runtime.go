package core

import (
	"github.com/jabolina/gcoll-engine/internal/logging"
	"github.com/jabolina/gcoll-engine/internal/telemetry"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/consensus"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/p2p"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/transport"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/tree"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/types"
)

// Runtime bundles the process-wide collaborators every poll function needs:
// the transport, the P2P endpoint, the consensus service, the tree-geometry
// cache, and process topology/logging/metrics. It is attached to every
// OpRecord at creation time by the dispatch layer so algorithm poll
// functions (package algo) never need a global variable to reach them.
type Runtime struct {
	Transport transport.Transport
	P2P       *p2p.Endpoint
	Consensus *consensus.Service
	Trees     *tree.Cache
	Topology  *types.Topology

	Logger  logging.Logger
	Metrics *telemetry.Registry
}
