package gcoll

import (
	"github.com/jabolina/gcoll-engine/internal/logging"
	"github.com/jabolina/gcoll-engine/internal/telemetry"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/p2p"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/transport"
)

// Config is the single struct passed to Init: one value naming every
// process-wide collaborator plus the handful of tunable constants this
// package exposes.
type Config struct {
	// Transport is the one-sided put/get + AM collaborator. Required.
	Transport transport.Transport

	// ImageCounts[node] is the number of images that node hosts; in the
	// common single-image-per-process mode every entry is 1. Required.
	ImageCounts []int

	// MyImage is this process's own image id.
	MyImage int

	// Logger is the structured logging facade. Defaults to a
	// logrus-backed logger at Info level if nil.
	Logger logging.Logger

	// Metrics is the telemetry registry. Defaults to a no-op
	// registry if nil.
	Metrics *telemetry.Registry

	// P2PTableSize overrides the P2P table's slot count (must be a power
	// of two, >= 16). Zero selects p2p.NewTable's default.
	P2PTableSize int

	// Functions is the caller's table of computational callbacks, opaque
	// to the core; Init registers each one as an active-message handler
	// past the reserved P2P indices and hands the assigned index back via
	// Context.FunctionIndex.
	Functions []transport.AMHandler
}

// DefaultConfig returns a Config for a single-image-per-process cluster of
// nodeCount nodes communicating over trans, with a logrus-backed default
// logger and a no-op telemetry registry.
func DefaultConfig(trans transport.Transport, nodeCount, myImage int) *Config {
	counts := make([]int, nodeCount)
	for i := range counts {
		counts[i] = 1
	}
	return &Config{
		Transport:   trans,
		ImageCounts: counts,
		MyImage:     myImage,
		Logger:      logging.NewDefaultLogger(),
		Metrics:     telemetry.NewNoop(),
	}
}

func (c *Config) table() *p2p.Table {
	if c.P2PTableSize > 0 {
		return p2p.NewTableSize(c.P2PTableSize)
	}
	return p2p.NewTable()
}
