package test

import (
	"sync"
	"testing"

	"github.com/jabolina/gcoll-engine/internal/logging"
	"github.com/jabolina/gcoll-engine/internal/telemetry"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/consensus"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/transport/loopback"
)

// Three processes concurrently create tokens t0,t1,t2 over a shared fabric
// barrier and try them in differing orders: every process must eventually
// observe OK for all three, and the OK observations on each process must be
// ordered t0 < t1 < t2.
func TestConsensus_InterleavedTokensAcrossNodes(t *testing.T) {
	const processes = 3
	fab := loopback.NewFabric(processes, 1024)

	services := make([]*consensus.Service, processes)
	for i := range services {
		services[i] = consensus.New(fab.Node(i).Barrier(), logging.NewDefaultLogger(), telemetry.NewNoop())
	}

	observed := make([][]int, processes)
	var wg sync.WaitGroup
	for p := 0; p < processes; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			svc := services[p]
			toks := make([]consensus.Token, 3)
			for i := range toks {
				toks[i] = svc.Create()
			}

			// Cycle the tokens starting from a different position per
			// process so the try order is interleaved, not aligned.
			done := make([]bool, len(toks))
			remaining := len(toks)
			for i := p; remaining > 0; i++ {
				idx := i % len(toks)
				if done[idx] {
					continue
				}
				ok, err := svc.Try(toks[idx])
				if err != nil {
					t.Errorf("process %d: try failed: %v", p, err)
					return
				}
				if ok {
					done[idx] = true
					remaining--
					observed[p] = append(observed[p], int(toks[idx]))
				}
			}
		}(p)
	}
	wg.Wait()

	for p := 0; p < processes; p++ {
		if len(observed[p]) != 3 {
			t.Fatalf("process %d observed %d completions, want 3", p, len(observed[p]))
		}
		for i, id := range observed[p] {
			if id != i {
				t.Errorf("process %d observed completion order %v, want [0 1 2]", p, observed[p])
				break
			}
		}
	}
}
