package io

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstantSensorBroadcasts(t *testing.T) {
	s := NewConstantSensor(3, 0.5)
	var setter ScalarSensorSetter = s
	setter.Set(-2)

	values, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, -2, -2}, values)
}

func TestVectorSensorCopiesValues(t *testing.T) {
	s := NewVectorSensor(2)
	var setter VectorSensorSetter = s
	in := []float64{1, 2}
	setter.Set(in)
	in[0] = 9

	values, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, values)
}

func TestSineSensorAdvancesPerRead(t *testing.T) {
	s := NewSineSensor(4, 2, 4)
	ctx := context.Background()

	first, err := s.Read(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0, first[0], 1e-12)
	assert.InDelta(t, 2, first[1], 1e-12)
	assert.InDelta(t, 0, first[2], 1e-12)
	assert.InDelta(t, -2, first[3], 1e-12)

	second, err := s.Read(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 2*math.Sin(math.Pi/2), second[0], 1e-12)
}

func TestRecorderActuatorKeepsHistory(t *testing.T) {
	a := NewRecorderActuator()
	assert.Nil(t, a.Last())

	ctx := context.Background()
	require.NoError(t, a.Write(ctx, []float64{1, 2}))
	require.NoError(t, a.Write(ctx, []float64{3, 4}))

	var snap SnapshotActuator = a
	assert.Equal(t, []float64{3, 4}, snap.Last())
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, a.History())
}

func TestWinnerActuatorPicksFirstMaximum(t *testing.T) {
	a := NewWinnerActuator()
	assert.Equal(t, -1, a.Winner())

	require.NoError(t, a.Write(context.Background(), []float64{0.2, 0.9, 0.9, -1}))
	assert.Equal(t, 1, a.Winner())
	assert.Equal(t, []float64{0, 1, 0, 0}, a.Last())
}
