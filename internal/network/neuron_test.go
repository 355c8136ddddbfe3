package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuralsim/internal/nn"
)

func TestNeuronIncrementRespectsBounds(t *testing.T) {
	n := NewNeuron(nil)
	n.SetActivation(0.95)
	n.IncrementActivation()
	assert.Equal(t, 1.0, n.Activation())
	assert.Equal(t, 0.95, n.LastActivation())

	n.SetIncrement(0.5)
	n.DecrementActivation()
	assert.Equal(t, 0.5, n.Activation())

	n.SetClamped(true)
	n.IncrementActivation()
	assert.Equal(t, 0.5, n.Activation())
}

func TestNeuronFanInSummaries(t *testing.T) {
	net := newTestNetwork(t, 1)
	a, b, target := NewNeuron(nil), NewNeuron(nil), NewNeuron(nil)
	for _, n := range []*Neuron{a, b, target} {
		net.AddNeuron(n)
	}
	exc := NewSynapseWithStrength(a, target, 2)
	inh := NewSynapseWithStrength(b, target, -0.5)
	require.NoError(t, net.AddSynapse(exc))
	require.NoError(t, net.AddSynapse(inh))

	exc.SetPSR(0.4)
	inh.SetPSR(-0.1)
	assert.InDelta(t, 0.4, target.ExcitatoryInputs(), 1e-12)
	assert.InDelta(t, -0.1, target.InhibitoryInputs(), 1e-12)
	assert.InDelta(t, 1.5, target.SummedIncomingWeights(), 1e-12)
}

func TestRandomizeFanOutFollowsPolarity(t *testing.T) {
	net := newTestNetwork(t, 4)
	src := NewNeuron(nil)
	src.SetPolarity(Inhibitory)
	net.AddNeuron(src)
	var out []*Synapse
	for i := 0; i < 5; i++ {
		tgt := NewNeuron(nil)
		net.AddNeuron(tgt)
		s := NewSynapse(src, tgt)
		require.NoError(t, net.AddSynapse(s))
		out = append(out, s)
	}

	src.RandomizeFanOut(nn.UniformRandomizer{Floor: 1, Ceil: 2})
	for _, s := range out {
		assert.LessOrEqual(t, s.Strength(), -1.0)
		assert.GreaterOrEqual(t, s.Strength(), -2.0)
	}
}

func TestSynapseWeightSteps(t *testing.T) {
	s := NewSynapseWithStrength(NewNeuron(nil), NewNeuron(nil), 99.5)
	s.IncrementWeight()
	assert.Equal(t, DefaultSynapseUpper, s.Strength())
	s.IncrementWeight()
	assert.Equal(t, DefaultSynapseUpper, s.Strength())

	s.SetFrozen(true)
	s.DecrementWeight()
	assert.Equal(t, DefaultSynapseUpper, s.Strength())

	assert.False(t, s.IsTemplate())
	assert.True(t, NewTemplateSynapse(0.3).IsTemplate())
}
