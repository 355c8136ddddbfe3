package network

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuralsim/internal/nn"
)

func TestCreateSynapseGroupDefaultSparse(t *testing.T) {
	built := 0
	for seed := int64(1); seed <= 50; seed++ {
		net := newTestNetwork(t, seed)
		src, tgt := newPair(t, net, 3, 4)

		g, err := CreateSynapseGroup(src, tgt)
		if err != nil {
			// Density 0.1 over 12 pairs can legitimately produce nothing.
			require.ErrorIs(t, err, ErrNoSynapses)
			assert.Nil(t, g)
			assert.Empty(t, net.SynapseGroups())
			assert.Empty(t, src.OutgoingSynapseGroups())
			assert.Empty(t, tgt.IncomingSynapseGroups())
			continue
		}
		built++
		require.Greater(t, g.Size(), 0)
		assert.Equal(t, StrategySparse, g.Strategy().Name())
		assert.Equal(t, g.ExcitatoryRatioPrecise(), g.ExcitatoryRatioParameter())
		requireGroupInvariant(t, g)
		requireSignsMatchSets(t, g)
		assert.Contains(t, src.OutgoingSynapseGroups(), g)
		assert.Contains(t, tgt.IncomingSynapseGroups(), g)
	}
	assert.Greater(t, built, 0)
}

func TestSetExcitatoryRatioExtremes(t *testing.T) {
	net := newTestNetwork(t, 7)
	src, tgt := newPair(t, net, 10, 10)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&AllToAll{}))
	require.NoError(t, err)
	require.Equal(t, 100, g.Size())

	require.NoError(t, g.SetExcitatoryRatio(0))
	assert.Equal(t, 100, g.NumInhibitory())
	assert.Equal(t, 0, g.NumExcitatory())
	assert.Equal(t, 0.0, g.ExcitatoryRatioPrecise())
	requireSignsMatchSets(t, g)

	require.NoError(t, g.SetExcitatoryRatio(1))
	assert.Equal(t, 100, g.NumExcitatory())
	assert.Equal(t, 0, g.NumInhibitory())
	assert.Equal(t, 1.0, g.ExcitatoryRatioPrecise())
	requireSignsMatchSets(t, g)
	requireGroupInvariant(t, g)

	require.NoError(t, g.SetExcitatoryRatio(0.25))
	assert.Equal(t, 25, g.NumExcitatory())
	assert.Equal(t, 75, g.NumInhibitory())
	assert.Equal(t, 0.25, g.ExcitatoryRatioPrecise())
}

func TestSetExcitatoryRatioRejectsOutOfRange(t *testing.T) {
	net := newTestNetwork(t, 1)
	src, tgt := newPair(t, net, 3, 3)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&AllToAll{}))
	require.NoError(t, err)
	ex, in := g.NumExcitatory(), g.NumInhibitory()

	for _, r := range []float64{-0.1, 1.5} {
		err := g.SetExcitatoryRatio(r)
		require.ErrorIs(t, err, ErrInvalidRatio)
	}
	assert.Equal(t, ex, g.NumExcitatory())
	assert.Equal(t, in, g.NumInhibitory())

	_, err = NewSynapseGroup(src, tgt, WithExcitatoryRatio(2))
	require.ErrorIs(t, err, ErrInvalidRatio)
}

func TestSetExcitatoryRatioWithPolarizedSources(t *testing.T) {
	net := newTestNetwork(t, 1)
	src, tgt := newPair(t, net, 3, 3)
	src.SetPolarity(Excitatory)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&AllToAll{}), WithExcitatoryRatio(0.2))
	require.NoError(t, err)
	require.Equal(t, 9, g.NumExcitatory(), "excitatory sources ignore the ratio")

	err = g.SetExcitatoryRatio(0)
	require.ErrorIs(t, err, ErrRatioUnreachable)
	assert.Equal(t, 9, g.NumExcitatory())
	assert.Equal(t, 0.0, g.ExcitatoryRatioParameter())
	assert.Equal(t, 1.0, g.ExcitatoryRatioPrecise())
}

func TestAddNewSynapseConvergesToTargetRatio(t *testing.T) {
	net := newTestNetwork(t, 11)
	src, tgt := newPair(t, net, 1, 1)
	g, err := NewSynapseGroup(src, tgt, WithExcitatoryRatio(0.3))
	require.NoError(t, err)

	a, b := src.NeuronAt(0), tgt.NeuronAt(0)
	for i := 0; i < 2000; i++ {
		g.AddNewSynapse(NewSynapse(a, b))
	}
	assert.Equal(t, 2000, g.Size())
	assert.InDelta(t, 0.3, g.ExcitatoryRatioPrecise(), 0.02)
	requireSignsMatchSets(t, g)
}

func TestAddNewSynapseStampsPrototype(t *testing.T) {
	net := newTestNetwork(t, 3)
	src, tgt := newPair(t, net, 1, 1)
	src.SetPolarity(Inhibitory)
	g, err := NewSynapseGroup(src, tgt, WithRandomizers(nil, nil))
	require.NoError(t, err)
	g.InhibitoryPrototype().SetDelay(2)
	g.InhibitoryPrototype().SetUpperBound(5)

	s := NewSynapse(src.NeuronAt(0), tgt.NeuronAt(0))
	g.AddNewSynapse(s)

	require.Equal(t, 1, g.NumInhibitory())
	assert.Equal(t, DefaultInhibitoryStrength, s.Strength())
	assert.Equal(t, 2, s.Delay())
	assert.Equal(t, 5.0, s.UpperBound())
	assert.NotEmpty(t, s.ID())
}

func TestRevalidateSynapseSetsIsIdempotent(t *testing.T) {
	net := newTestNetwork(t, 5)
	src, tgt := newPair(t, net, 5, 5)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&AllToAll{}))
	require.NoError(t, err)
	require.NoError(t, g.SetExcitatoryRatio(0.6))

	ex := g.ExcitatorySynapses()
	in := g.InhibitorySynapses()
	for _, s := range ex[:4] {
		s.ForceSetStrength(-0.5)
	}
	for _, s := range in[:2] {
		s.ForceSetStrength(0.7)
	}

	assert.Equal(t, 6, g.RevalidateSynapseSets())
	requireSignsMatchSets(t, g)
	requireGroupInvariant(t, g)
	firstEx := synapseIDs(g.ExcitatorySynapses())
	firstRatio := g.ExcitatoryRatioParameter()
	assert.Equal(t, g.ExcitatoryRatioPrecise(), firstRatio)
	assert.Equal(t, 13, g.NumExcitatory())

	assert.Equal(t, 0, g.RevalidateSynapseSets())
	assert.ElementsMatch(t, firstEx, synapseIDs(g.ExcitatorySynapses()))
	assert.Equal(t, firstRatio, g.ExcitatoryRatioParameter())
}

func TestRemoveSynapseDeletesGroupWithLastSynapse(t *testing.T) {
	net := newTestNetwork(t, 2)
	src, tgt := newPair(t, net, 2, 2)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&AllToAll{}))
	require.NoError(t, err)

	sub := NewSubnetwork(net, "sub")
	sub.AddChild(src)
	sub.AddChild(tgt)
	sub.AddChild(g)

	removedEvents := 0
	net.Subscribe(func(ev Event) {
		if ev.Kind == GroupRemoved && ev.ID == g.ID() {
			removedEvents++
		}
	})

	syns := g.Synapses()
	require.Len(t, syns, 4)
	for i, s := range syns {
		require.True(t, g.RemoveSynapse(s))
		assert.NotContains(t, s.Source().FanOut(), s)
		assert.Nil(t, s.Group())
		if i < len(syns)-1 {
			assert.False(t, g.MarkedForDeletion())
			assert.Contains(t, sub.Children(), Group(g))
			assert.Equal(t, 0, removedEvents)
		}
	}
	assert.True(t, g.MarkedForDeletion())
	assert.NotContains(t, sub.Children(), Group(g))
	assert.NotContains(t, net.AllGroups(), Group(g))
	assert.Empty(t, src.OutgoingSynapseGroups())
	assert.Equal(t, 1, removedEvents)
	assert.False(t, sub.MarkedForDeletion())

	assert.False(t, g.RemoveSynapse(syns[0]))
}

func TestSetSynapseStrengthMigratesBetweenSets(t *testing.T) {
	net := newTestNetwork(t, 4)
	src, tgt := newPair(t, net, 4, 4)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&AllToAll{}))
	require.NoError(t, err)
	require.NoError(t, g.SetExcitatoryRatio(0.5))

	s := g.ExcitatorySynapses()[0]
	require.True(t, g.SetSynapseStrength(s, -0.4))
	assert.Equal(t, -0.4, s.Strength())
	assert.True(t, g.in.contains(s))
	assert.False(t, g.ex.contains(s))

	require.True(t, g.SetSynapseStrength(s, 0.3))
	assert.True(t, g.ex.contains(s))
	requireGroupInvariant(t, g)

	other := NewNeuronGroupOfSize(net, 1, nil)
	foreign := NewSynapse(other.NeuronAt(0), tgt.NeuronAt(0))
	assert.False(t, g.SetSynapseStrength(foreign, 1))
	assert.False(t, g.RemoveSynapse(foreign))
}

func TestPreAllocateRejectsPopulatedGroup(t *testing.T) {
	net := newTestNetwork(t, 1)
	src, tgt := newPair(t, net, 2, 2)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&AllToAll{}))
	require.NoError(t, err)

	err = g.PreAllocateSynapses(10)
	require.ErrorIs(t, err, ErrAlreadyPopulated)
	assert.Equal(t, 4, g.Size())

	empty, err := NewSynapseGroup(src, tgt)
	require.NoError(t, err)
	require.NoError(t, empty.PreAllocateSynapses(10))
}

func TestPruneRemovesZeroWeights(t *testing.T) {
	net := newTestNetwork(t, 1)
	src, tgt := newPair(t, net, 3, 3)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&AllToAll{}))
	require.NoError(t, err)

	syns := g.Synapses()
	require.True(t, g.SetSynapseStrength(syns[0], 0))
	require.True(t, g.SetSynapseStrength(syns[4], 0))

	assert.Equal(t, 2, g.Prune())
	assert.Equal(t, 7, g.Size())
	requireGroupInvariant(t, g)
}

func TestMakeConnectionsFailureDeletesGroup(t *testing.T) {
	net := newTestNetwork(t, 1)
	src, tgt := newPair(t, net, 2, 2)
	g, err := NewSynapseGroup(src, tgt, WithStrategy(NewSparse(0, true, false)))
	require.NoError(t, err)

	err = g.MakeConnections()
	require.ErrorIs(t, err, ErrNoSynapses)
	assert.True(t, g.MarkedForDeletion())
	assert.NotContains(t, net.AllGroups(), Group(g))
	assert.Empty(t, src.OutgoingSynapseGroups())
}

func TestGroupLevelAndMemberLevelGetters(t *testing.T) {
	net := newTestNetwork(t, 9)
	src, tgt := newPair(t, net, 4, 4)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&AllToAll{}))
	require.NoError(t, err)
	require.NoError(t, g.SetExcitatoryRatio(0.5))
	require.Equal(t, 8, g.NumExcitatory())

	g.SetDelay(2, SelectExcitatory)
	for _, s := range g.ExcitatorySynapses() {
		assert.Equal(t, 2, s.Delay())
	}
	for _, s := range g.InhibitorySynapses() {
		assert.Equal(t, 0, s.Delay())
	}

	d, ok := g.Delay(Excitatory)
	require.True(t, ok)
	assert.Equal(t, 2, d)

	g.ExcitatorySynapses()[0].SetDelay(3)
	d, ok = g.Delay(Excitatory)
	assert.True(t, ok, "group-level settings answer from the prototype")
	assert.Equal(t, 2, d)

	g.SetUseGroupLevelSettings(false)
	_, ok = g.Delay(Excitatory)
	assert.False(t, ok, "members disagree")
	d, ok = g.Delay(Inhibitory)
	require.True(t, ok)
	assert.Equal(t, 0, d)

	g.SetStrength(0.7, SelectBoth)
	for _, s := range g.ExcitatorySynapses() {
		assert.Equal(t, 0.7, s.Strength())
	}
	for _, s := range g.InhibitorySynapses() {
		assert.Equal(t, -0.7, s.Strength())
	}

	g.SetFrozen(true, SelectInhibitory)
	frozen, ok := g.Frozen(Inhibitory)
	require.True(t, ok)
	assert.True(t, frozen)
	frozen, ok = g.Frozen(Excitatory)
	require.True(t, ok)
	assert.False(t, frozen)
}

func TestStaticFlagsGateLearning(t *testing.T) {
	net := newTestNetwork(t, 9)
	src, tgt := newPair(t, net, 2, 2)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&AllToAll{}))
	require.NoError(t, err)
	require.NoError(t, g.SetExcitatoryRatio(0.5))
	require.True(t, g.Static(Excitatory))
	require.True(t, g.Static(Inhibitory))

	g.SetLearningRule(&nn.HebbianRule{Rate: 0.1}, SelectExcitatory)
	assert.False(t, g.Static(Excitatory))
	assert.True(t, g.Static(Inhibitory))
	name, ok := g.LearningRuleName(Excitatory)
	require.True(t, ok)
	assert.Equal(t, nn.LearningHebbian, name)

	g.SetStrength(0.5, SelectBoth)
	require.NoError(t, src.ForceSetActivations([]float64{1, 1}))
	require.NoError(t, tgt.ForceSetActivations([]float64{1, 1}))
	g.Update()

	for _, s := range g.ExcitatorySynapses() {
		assert.InDelta(t, 0.6, s.Strength(), 1e-12)
	}
	for _, s := range g.InhibitorySynapses() {
		assert.Equal(t, -0.5, s.Strength())
	}

	g.ExcitatorySynapses()[0].SetLearningRule(nn.StaticRule{})
	g.InhibitorySynapses()[0].SetLearningRule(&nn.OjaRule{Rate: 0.1})
	assert.False(t, g.Static(Inhibitory))
}

func TestSynapseGroupDeleteDetachesEverything(t *testing.T) {
	net := newTestNetwork(t, 1)
	src, tgt := newPair(t, net, 3, 3)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&AllToAll{}))
	require.NoError(t, err)

	g.Delete()
	g.Delete()
	assert.Equal(t, 0, g.Size())
	for _, n := range src.Neurons() {
		assert.Empty(t, n.FanOut())
	}
	for _, n := range tgt.Neurons() {
		assert.Empty(t, n.FanIn())
	}
	assert.Empty(t, net.SynapseGroups())
	assert.Len(t, net.NeuronGroups(), 2)
}

func TestWeightMatrixShape(t *testing.T) {
	net := newTestNetwork(t, 1)
	src, tgt := newPair(t, net, 2, 3)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&OneToOne{}))
	require.NoError(t, err)

	m := g.WeightMatrix()
	require.Len(t, m, 2)
	require.Len(t, m[0], 3)
	assert.Equal(t, 0.0, m[0][1])
	assert.Equal(t, 0.0, m[1][2])
	assert.Equal(t, g.Synapses()[0].Strength(), m[0][0])
	assert.Len(t, g.WeightVector(), 2)
	assert.True(t, errors.Is(g.SetExcitatoryRatio(-1), ErrInvalidRatio))
}

func newLearningGroup(t *testing.T, groupLevel bool) (*SynapseGroup, *NeuronGroup, *NeuronGroup) {
	t.Helper()
	net := newTestNetwork(t, 9)
	src, tgt := newPair(t, net, 2, 2)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&AllToAll{}))
	require.NoError(t, err)
	require.NoError(t, g.SetExcitatoryRatio(0.5))
	g.SetUseGroupLevelSettings(groupLevel)
	g.SetLearningRule(&nn.HebbianRule{Rate: 0.1}, SelectExcitatory)
	require.NoError(t, src.ForceSetActivations([]float64{1, 1}))
	require.NoError(t, tgt.ForceSetActivations([]float64{1, 1}))
	return g, src, tgt
}

func TestSignChangeCarriesLearningIntoInhibitorySet(t *testing.T) {
	for _, groupLevel := range []bool{false, true} {
		g, _, _ := newLearningGroup(t, groupLevel)
		s := g.ExcitatorySynapses()[0]

		require.True(t, g.SetSynapseStrength(s, -0.5))
		require.Contains(t, g.InhibitorySynapses(), s)
		assert.False(t, g.Static(Inhibitory), "group level %v", groupLevel)

		g.Update()
		assert.InDelta(t, -0.4, s.Strength(), 1e-12, "group level %v", groupLevel)
		requireGroupInvariant(t, g)
	}
}

func TestUpdateIgnoresStaticFlagsWithoutGroupLevelSettings(t *testing.T) {
	g, _, _ := newLearningGroup(t, false)
	g.SetLearningRule(nn.StaticRule{}, SelectInhibitory)
	require.True(t, g.Static(Inhibitory))

	// A member-level rule bypasses the group's bookkeeping.
	s := g.InhibitorySynapses()[0]
	s.learningRule = &nn.HebbianRule{Rate: 0.1}
	before := s.Strength()
	g.Update()
	assert.InDelta(t, before+0.1, s.Strength(), 1e-12)
}

func TestRevalidateCarriesLearningIntoInhibitorySet(t *testing.T) {
	g, _, _ := newLearningGroup(t, true)
	s := g.ExcitatorySynapses()[0]
	s.ForceSetStrength(-0.5)

	require.Equal(t, 1, g.RevalidateSynapseSets())
	require.Contains(t, g.InhibitorySynapses(), s)
	assert.False(t, g.Static(Inhibitory))

	g.Update()
	assert.InDelta(t, -0.4, s.Strength(), 1e-12)
}

func TestUnsafeAddMarksDestinationSetLearning(t *testing.T) {
	net := newTestNetwork(t, 3)
	src, tgt := newPair(t, net, 2, 2)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&OneToOne{}))
	require.NoError(t, err)
	require.True(t, g.Static(Excitatory))
	require.True(t, g.Static(Inhibitory))

	s := NewSynapseWithStrength(src.NeuronAt(0), tgt.NeuronAt(1), -0.5)
	s.SetLearningRule(&nn.HebbianRule{Rate: 0.1})
	g.AddInhibitorySynapseUnsafe(s)

	assert.True(t, g.Static(Excitatory))
	assert.False(t, g.Static(Inhibitory))

	require.NoError(t, src.ForceSetActivations([]float64{1, 1}))
	require.NoError(t, tgt.ForceSetActivations([]float64{1, 1}))
	g.Update()
	assert.InDelta(t, -0.4, s.Strength(), 1e-12)

	e := NewSynapseWithStrength(src.NeuronAt(1), tgt.NeuronAt(0), 0.5)
	e.SetLearningRule(&nn.OjaRule{Rate: 0.1})
	g.AddSynapseUnsafe(e)
	assert.False(t, g.Static(Excitatory))
}
