package gcoll

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jabolina/gcoll-engine/pkg/gcoll/core"
	"github.com/jabolina/gcoll-engine/pkg/gcoll/types"
)

func TestSelectionRules(t *testing.T) {
	const small = eagerMin / 2
	const large = eagerMin * 4

	base := types.Single | types.InNoSync | types.OutNoSync
	mySyncIn := types.Single | types.InMySync | types.OutNoSync
	mySyncOut := types.Single | types.InNoSync | types.OutMySync
	cases := []struct {
		name  string
		fam   family
		flags types.Flags
		size  int
		want  core.AlgorithmID
	}{
		// Rule 1: both in segment.
		{"both-small-mysync", familyBcast, mySyncIn | types.SrcInSegment | types.DstInSegment, small, core.AlgoBcastEager},
		{"both-large-mysync", familyBcast, mySyncIn | types.SrcInSegment | types.DstInSegment, large, core.AlgoBcastRVGet},
		{"both-nosync", familyBcast, base | types.SrcInSegment | types.DstInSegment, large, core.AlgoBcastPut},
		{"both-nosync-gather", familyGather, base | types.SrcInSegment | types.DstInSegment, large, core.AlgoGatherGet},
		{"both-mysync-gather", familyGather, mySyncOut | types.SrcInSegment | types.DstInSegment, large, core.AlgoGatherRVPut},
		// Rule 2: only destination in segment.
		{"dst-only", familyBcast, base | types.DstInSegment, large, core.AlgoBcastPut},
		{"dst-only-scatter", familyScatter, base | types.DstInSegment, large, core.AlgoScatterPut},
		{"dst-only-gather", familyGather, base | types.DstInSegment, small, core.AlgoGatherEager},
		// Rule 3: only source in segment.
		{"src-only", familyBcast, base | types.SrcInSegment, large, core.AlgoBcastGet},
		{"src-only-gather", familyGather, base | types.SrcInSegment, large, core.AlgoGatherPut},
		// Rule 4: neither, small enough for AM.
		{"neither-small", familyBcast, base, small, core.AlgoBcastEager},
		{"neither-small-scatter", familyScatter, base, small, core.AlgoScatterEager},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sel := selectAlgorithm(tc.fam, tc.flags, tc.size)
			require.Equal(t, tc.want, sel.algo)
			require.NotNil(t, sel.poll)
		})
	}
}

func TestSelectionRejectsOversizedOutOfSegment(t *testing.T) {
	base := types.Single | types.InNoSync | types.OutNoSync
	require.Panics(t, func() {
		selectAlgorithm(familyBcast, base, eagerMin*4)
	}, "no in-segment hints and a payload too large for AM delivery is unsupported")
}

func TestFlagValidation(t *testing.T) {
	require.NoError(t, (types.Single | types.InNoSync | types.OutAllSync).Validate())

	cases := map[string]types.Flags{
		"two in-sync modes":  types.Single | types.InNoSync | types.InAllSync | types.OutNoSync,
		"no out-sync mode":   types.Single | types.InNoSync,
		"single and local":   types.Single | types.Local | types.InNoSync | types.OutNoSync,
		"no addressing mode": types.InNoSync | types.OutNoSync,
	}
	for name, flags := range cases {
		t.Run(name, func(t *testing.T) {
			err := flags.Validate()
			require.Error(t, err)
			var usage *types.UsageError
			require.ErrorAs(t, err, &usage)
		})
	}
}
