package network

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestNetwork(t *testing.T, seed int64) *Network {
	t.Helper()
	return NewNetwork(NewSimulationContext(WithSeed(seed)))
}

func newPair(t *testing.T, net *Network, ns, nt int) (*NeuronGroup, *NeuronGroup) {
	t.Helper()
	src := NewNeuronGroupOfSize(net, ns, nil)
	src.SetLabel("S")
	tgt := NewNeuronGroupOfSize(net, nt, nil)
	tgt.SetLabel("T")
	return src, tgt
}

// requireGroupInvariant checks set disjointness, endpoint membership and
// adjacency registration for every member.
func requireGroupInvariant(t *testing.T, g *SynapseGroup) {
	t.Helper()
	src := g.SourceGroup().indexMap()
	tgt := g.TargetGroup().indexMap()
	for _, s := range g.ExcitatorySynapses() {
		require.False(t, g.in.contains(s), "synapse %s in both sets", s.ID())
	}
	for _, s := range append(g.ExcitatorySynapses(), g.InhibitorySynapses()...) {
		_, ok := src[s.Source()]
		require.True(t, ok, "source of %s outside source group", s.ID())
		_, ok = tgt[s.Target()]
		require.True(t, ok, "target of %s outside target group", s.ID())
		require.Contains(t, s.Source().FanOut(), s)
		require.Contains(t, s.Target().FanIn(), s)
		require.Same(t, g, s.Group())
	}
}

func requireSignsMatchSets(t *testing.T, g *SynapseGroup) {
	t.Helper()
	for _, s := range g.ExcitatorySynapses() {
		require.GreaterOrEqual(t, s.Strength(), 0.0)
	}
	for _, s := range g.InhibitorySynapses() {
		require.Less(t, s.Strength(), 0.0)
	}
}

func synapseIDs(syns []*Synapse) []string {
	out := make([]string, len(syns))
	for i, s := range syns {
		out[i] = s.ID()
	}
	return out
}
