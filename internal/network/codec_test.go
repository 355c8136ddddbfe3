package network

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuralsim/internal/nn"
)

func TestEncodeSparseLayout(t *testing.T) {
	conns := []Connection{
		{Source: 0, Target: 1, Weight: 0.5},
		{Source: 0, Target: 2, Weight: -1},
		{Source: 2, Target: 0, Weight: 2},
	}
	code := EncodeSparse(conns, Float64)

	header := []byte{
		0xff, 0xff, 0xff, 0xff, // marker
		0x01,                   // precision
		0x00, 0x00, 0x00, 0x03, // synapses
		0x00, 0x00, 0x00, 0x02, // sources
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00,
	}
	require.Len(t, code, len(header)+3*8)
	assert.Equal(t, header, code[:len(header)])
	// 0.5 as a big-endian float64.
	assert.Equal(t, []byte{0x3f, 0xe0, 0, 0, 0, 0, 0, 0}, code[len(header):len(header)+8])

	got, err := DecodeSparse(code)
	require.NoError(t, err)
	assert.Equal(t, conns, got)

	code32 := EncodeSparse(conns, Float32)
	require.Len(t, code32, len(header)+3*4)
	assert.Equal(t, byte(0), code32[4])
}

func TestSparseCodeRoundTripFloat64(t *testing.T) {
	net := newTestNetwork(t, 31)
	src, tgt := newPair(t, net, 5, 5)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&OneToOne{}))
	require.NoError(t, err)
	require.Equal(t, 5, g.Size())
	g.SetRandomizers(nn.NormalRandomizer{Mean: 0, Std: 3}, nn.NormalRandomizer{Mean: 0, Std: 3})
	g.Randomize()

	code := g.SparseCode(Float64)
	decoded, err := DecodeSparse(code)
	require.NoError(t, err)
	require.Len(t, decoded, 5)
	want := g.connections()
	for i := range want {
		assert.Equal(t, want[i].Source, decoded[i].Source)
		assert.Equal(t, want[i].Target, decoded[i].Target)
		assert.Equal(t, math.Float64bits(want[i].Weight), math.Float64bits(decoded[i].Weight))
	}

	copyGroup, err := NewSynapseGroup(src, tgt)
	require.NoError(t, err)
	require.NoError(t, copyGroup.LoadSparseCode(code))
	assert.Equal(t, want, copyGroup.connections())
	requireGroupInvariant(t, copyGroup)
	requireSignsMatchSets(t, copyGroup)
}

func TestSparseCodeRoundTripFloat32(t *testing.T) {
	net := newTestNetwork(t, 32)
	src, tgt := newPair(t, net, 4, 6)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&AllToAll{}))
	require.NoError(t, err)

	decoded, err := DecodeSparse(g.SparseCode(Float32))
	require.NoError(t, err)
	want := g.connections()
	require.Len(t, decoded, len(want))
	for i := range want {
		assert.Equal(t, float64(float32(want[i].Weight)), decoded[i].Weight)
		assert.InDelta(t, want[i].Weight, decoded[i].Weight, 1e-6)
	}
}

func TestDecodeSparseRejectsMalformedInput(t *testing.T) {
	good := EncodeSparse([]Connection{{Source: 0, Target: 0, Weight: 1}}, Float64)

	cases := map[string][]byte{
		"empty":          nil,
		"bad marker":     append([]byte{0, 0, 0, 1}, good[4:]...),
		"bad precision":  append(append(append([]byte(nil), good[:4]...), 7), good[5:]...),
		"truncated":      good[:len(good)-3],
		"short topology": good[:15],
	}
	for name, code := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSparse(code)
			require.ErrorIs(t, err, ErrBadEncoding)
		})
	}
}

func TestLoadSparseCodeRejectsOutOfRangeIndices(t *testing.T) {
	net := newTestNetwork(t, 1)
	src, tgt := newPair(t, net, 2, 2)
	g, err := NewSynapseGroup(src, tgt)
	require.NoError(t, err)

	code := EncodeSparse([]Connection{{Source: 0, Target: 5, Weight: 1}}, Float64)
	require.ErrorIs(t, g.LoadSparseCode(code), ErrBadEncoding)
	assert.Equal(t, 0, g.Size())
}

func TestFullCodeRoundTrip(t *testing.T) {
	net := newTestNetwork(t, 41)
	src, tgt := newPair(t, net, 3, 3)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&AllToAll{}))
	require.NoError(t, err)
	g.SetDelay(2, SelectBoth)
	g.SetFrozen(true, SelectInhibitory)
	g.Synapses()[1].SetEnabled(false)
	require.NoError(t, src.ForceSetActivations([]float64{0.5, -0.5, 1}))
	for i := 0; i < 3; i++ {
		for _, n := range tgt.Neurons() {
			n.UpdateInputs()
		}
	}

	code := g.FullCode()
	require.Len(t, code, 9*(33+8*2))

	copyGroup, err := NewSynapseGroup(src, tgt)
	require.NoError(t, err)
	require.NoError(t, copyGroup.LoadFullCode(code))

	want, got := g.Synapses(), copyGroup.Synapses()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Same(t, want[i].Source(), got[i].Source())
		assert.Same(t, want[i].Target(), got[i].Target())
		assert.Equal(t, want[i].Strength(), got[i].Strength())
		assert.Equal(t, want[i].PSR(), got[i].PSR())
		assert.Equal(t, want[i].Delay(), got[i].Delay())
		assert.Equal(t, want[i].DelayQueue(), got[i].DelayQueue())
		assert.Equal(t, want[i].dlyPtr, got[i].dlyPtr)
		assert.Equal(t, want[i].Enabled(), got[i].Enabled())
		assert.Equal(t, want[i].Frozen(), got[i].Frozen())
	}
	requireGroupInvariant(t, copyGroup)
}

func TestDecodeFullRejectsTruncatedRecord(t *testing.T) {
	net := newTestNetwork(t, 1)
	src, tgt := newPair(t, net, 2, 2)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&OneToOne{}))
	require.NoError(t, err)
	code := g.FullCode()

	_, err = decodeFull(code[:len(code)-1])
	require.ErrorIs(t, err, ErrBadEncoding)
}

func TestPreSaveInitHoldsSetsUntilReInit(t *testing.T) {
	net := newTestNetwork(t, 3)
	src, tgt := newPair(t, net, 3, 3)
	g, err := CreateSynapseGroup(src, tgt, WithStrategy(&AllToAll{}))
	require.NoError(t, err)

	g.PreSaveInit(Float64)
	sparse, full := g.SavedCodes()
	assert.NotEmpty(t, sparse)
	assert.Empty(t, full)
	assert.Equal(t, 0, g.Size(), "group-level saves move the sets aside")

	g.PostSaveReInit()
	assert.Equal(t, 9, g.Size())
	sparse, _ = g.SavedCodes()
	assert.Empty(t, sparse)

	g.SetUseFullRepOnSave(true)
	g.SetUseGroupLevelSettings(false)
	g.PreSaveInit(Float64)
	sparse, full = g.SavedCodes()
	assert.Empty(t, sparse)
	assert.NotEmpty(t, full)
	assert.Equal(t, 9, g.Size())
	g.PostSaveReInit()

	restored, err := NewSynapseGroup(src, tgt)
	require.NoError(t, err)
	require.NoError(t, restored.PostUnmarshallingInit(nil, full))
	assert.Equal(t, g.WeightMatrix(), restored.WeightMatrix())
}
