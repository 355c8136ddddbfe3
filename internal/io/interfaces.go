package io

import "context"

// Sensor produces the values a coupling writes into a neuron group's input
// values before each tick.
type Sensor interface {
	Name() string
	Read(ctx context.Context) ([]float64, error)
}

// ScalarSensorSetter is an optional sensor capability for sensors that
// broadcast one value.
type ScalarSensorSetter interface {
	Set(value float64)
}

// VectorSensorSetter is an optional sensor capability for sensors that carry
// one value per neuron.
type VectorSensorSetter interface {
	Set(values []float64)
}

// Actuator consumes a neuron group's activations after each tick.
type Actuator interface {
	Name() string
	Write(ctx context.Context, values []float64) error
}

// SnapshotActuator is an optional actuator capability exposing the most
// recent write.
type SnapshotActuator interface {
	Last() []float64
}
