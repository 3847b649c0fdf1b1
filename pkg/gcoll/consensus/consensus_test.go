package consensus

import (
	"sync"
	"testing"

	"github.com/jabolina/gcoll-engine/internal/logging"
	"github.com/jabolina/gcoll-engine/internal/telemetry"
	"github.com/stretchr/testify/require"
)

// memBarrier simulates n processes sharing a single named barrier: Notify
// counts arrivals per id, Try reports ok once every process has notified
// for that id.
type memBarrier struct {
	n int

	mu      sync.Mutex
	arrived map[uint32]int
}

func newMemBarrier(n int) *memBarrier {
	return &memBarrier{n: n, arrived: make(map[uint32]int)}
}

func (b *memBarrier) Notify(id uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.arrived[id]++
	return nil
}

func (b *memBarrier) Try(id uint32) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.arrived[id] >= b.n, nil
}

func TestTokenMonotonicity(t *testing.T) {
	barrier := newMemBarrier(1)
	svc := New(barrier, logging.NewDefaultLogger(), telemetry.NewNoop())

	t0 := svc.Create()
	t1 := svc.Create()
	t2 := svc.Create()
	require.Less(t, uint32(t0), uint32(t1))
	require.Less(t, uint32(t1), uint32(t2))

	// t1 cannot succeed before t0 has.
	ok, err := svc.Try(t1)
	require.NoError(t, err)
	require.False(t, ok)

	for {
		ok, err = svc.Try(t0)
		require.NoError(t, err)
		if ok {
			break
		}
	}

	for {
		ok, err = svc.Try(t1)
		require.NoError(t, err)
		if ok {
			break
		}
	}
}

func TestSingleProcessDrainsImmediately(t *testing.T) {
	barrier := newMemBarrier(1)
	svc := New(barrier, logging.NewDefaultLogger(), telemetry.NewNoop())
	tok := svc.Create()

	var ok bool
	var err error
	for i := 0; i < 4 && !ok; i++ {
		ok, err = svc.Try(tok)
		require.NoError(t, err)
	}
	require.True(t, ok, "a single-process barrier should drain within a few Try calls")
}

func TestConcurrentInterleavedTokensOrderedAcrossProcesses(t *testing.T) {
	const processes = 3
	barrier := newMemBarrier(processes)

	services := make([]*Service, processes)
	for i := range services {
		services[i] = New(barrier, logging.NewDefaultLogger(), telemetry.NewNoop())
	}

	const tokens = 3
	var wg sync.WaitGroup
	observedOrder := make([][]int, processes)
	for p := 0; p < processes; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			svc := services[p]
			toks := make([]Token, tokens)
			for i := range toks {
				toks[i] = svc.Create()
			}
			for _, id := range toks {
				for {
					ok, err := svc.Try(id)
					require.NoError(t, err)
					if ok {
						observedOrder[p] = append(observedOrder[p], int(id))
						break
					}
				}
			}
		}(p)
	}
	wg.Wait()

	for p := 0; p < processes; p++ {
		require.Equal(t, []int{0, 1, 2}, observedOrder[p], "process %d must observe OK in token order", p)
	}
}
