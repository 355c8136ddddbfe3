package io

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuralsim/internal/network"
)

type failingSensor struct{}

func (failingSensor) Name() string { return "failing" }
func (failingSensor) Read(context.Context) ([]float64, error) {
	return nil, errors.New("unplugged")
}

func newCoupledNetwork(t *testing.T) (*network.Network, *network.NeuronGroup, *network.NeuronGroup) {
	t.Helper()
	net := network.NewNetwork(network.NewSimulationContext(network.WithSeed(1)))
	in := network.NewNeuronGroupOfSize(net, 3, nil)
	out := network.NewNeuronGroupOfSize(net, 3, nil)
	g, err := network.CreateSynapseGroup(in, out,
		network.WithStrategy(&network.OneToOne{}), network.WithExcitatoryRatio(1))
	require.NoError(t, err)
	g.SetStrength(1, network.SelectBoth)
	return net, in, out
}

func TestCouplingStepDrivesNetwork(t *testing.T) {
	net, in, out := newCoupledNetwork(t)
	sensor := NewVectorSensor(3)
	sensor.Set([]float64{0.1, 0.2, 0.3})
	recorder := NewRecorderActuator()

	c := NewCoupling()
	c.BindSensor(sensor, in)
	c.BindActuator(recorder, out)
	assert.Equal(t, 1, c.Sensors())
	assert.Equal(t, 1, c.Actuators())

	ctx := context.Background()
	require.NoError(t, c.Step(ctx, net))
	assert.InDeltaSlice(t, []float64{0.1, 0.2, 0.3}, in.Activations(), 1e-12)
	// in is registered first, so out already sees this tick's input.
	assert.InDeltaSlice(t, []float64{0.1, 0.2, 0.3}, recorder.Last(), 1e-12)

	// External input is consumed by the tick, not accumulated.
	sensor.Set([]float64{0, 0, 0})
	require.NoError(t, c.Step(ctx, net))
	assert.InDeltaSlice(t, []float64{0, 0, 0}, recorder.Last(), 1e-12)
	assert.Len(t, recorder.History(), 2)
	assert.Equal(t, 2, net.Iterations())
}

func TestCouplingBroadcastsScalarAndSumsSensors(t *testing.T) {
	net, in, _ := newCoupledNetwork(t)
	c := NewCoupling()
	c.BindSensor(NewConstantSensor(1, 0.25), in)
	c.BindSensor(NewConstantSensor(1, 0.25), in)

	require.NoError(t, c.Step(context.Background(), net))
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0.5}, in.Activations(), 1e-12)
}

func TestCouplingErrors(t *testing.T) {
	net, in, _ := newCoupledNetwork(t)
	ctx := context.Background()

	c := NewCoupling()
	c.BindSensor(NewVectorSensor(2), in)
	require.ErrorIs(t, c.Sense(ctx), ErrWidthMismatch)

	c = NewCoupling()
	c.BindSensor(failingSensor{}, in)
	err := c.Step(ctx, net)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unplugged")
	assert.Equal(t, 0, net.Iterations())
}

func TestCouplingSkipsDeletedGroups(t *testing.T) {
	_, in, out := newCoupledNetwork(t)
	recorder := NewRecorderActuator()
	c := NewCoupling()
	c.BindSensor(NewVectorSensor(1), in)
	c.BindActuator(recorder, out)

	in.Delete()
	out.Delete()
	ctx := context.Background()
	require.NoError(t, c.Sense(ctx))
	require.NoError(t, c.Act(ctx))
	assert.Nil(t, recorder.Last())
}
