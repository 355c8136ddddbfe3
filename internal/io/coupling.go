package io

import (
	"context"
	"errors"
	"fmt"

	"neuralsim/internal/network"
)

var (
	ErrWidthMismatch = errors.New("value width does not match group size")
	errWinnerWidth   = errors.New("winner needs at least two neurons")
)

type sensorBinding struct {
	sensor Sensor
	group  *network.NeuronGroup
}

type actuatorBinding struct {
	actuator Actuator
	group    *network.NeuronGroup
}

// Coupling connects a network to the outside world. Sensors are read into
// their groups' input values before a tick and actuators receive their
// groups' activations after it.
type Coupling struct {
	sensors   []sensorBinding
	actuators []actuatorBinding
}

func NewCoupling() *Coupling {
	return &Coupling{}
}

func (c *Coupling) BindSensor(s Sensor, g *network.NeuronGroup) {
	c.sensors = append(c.sensors, sensorBinding{sensor: s, group: g})
}

func (c *Coupling) BindActuator(a Actuator, g *network.NeuronGroup) {
	c.actuators = append(c.actuators, actuatorBinding{actuator: a, group: g})
}

func (c *Coupling) Sensors() int   { return len(c.sensors) }
func (c *Coupling) Actuators() int { return len(c.actuators) }

// Sense writes every sensor's reading into its group. A single value is
// broadcast to the whole group; anything else must match the group size.
// Groups deleted since binding are skipped.
func (c *Coupling) Sense(ctx context.Context) error {
	for _, b := range c.sensors {
		if b.group.MarkedForDeletion() {
			continue
		}
		values, err := b.sensor.Read(ctx)
		if err != nil {
			return fmt.Errorf("read sensor %s: %w", b.sensor.Name(), err)
		}
		size := b.group.Size()
		if len(values) == 1 && size > 1 {
			v := values[0]
			values = make([]float64, size)
			for i := range values {
				values[i] = v
			}
		}
		if len(values) != size {
			return fmt.Errorf("%w: sensor %s gave %d values for %s (%d neurons)",
				ErrWidthMismatch, b.sensor.Name(), len(values), b.group.Label(), size)
		}
		for i, n := range b.group.Neurons() {
			n.AddInputValue(values[i])
		}
	}
	return nil
}

// Act hands each bound group's activations to its actuator.
func (c *Coupling) Act(ctx context.Context) error {
	for _, b := range c.actuators {
		if b.group.MarkedForDeletion() {
			continue
		}
		if err := b.actuator.Write(ctx, b.group.Activations()); err != nil {
			return fmt.Errorf("write actuator %s: %w", b.actuator.Name(), err)
		}
	}
	return nil
}

// Step senses, advances net by one tick and acts.
func (c *Coupling) Step(ctx context.Context, net *network.Network) error {
	if err := c.Sense(ctx); err != nil {
		return err
	}
	if err := net.Update(); err != nil {
		return err
	}
	return c.Act(ctx)
}
