package io

import (
	"context"
	"math"
	"sync"
)

const (
	ConstantSensorName   = "constant"
	VectorSensorName     = "vector"
	SineSensorName       = "sine"
	RecorderActuatorName = "recorder"
	WinnerActuatorName   = "winner"
)

// ConstantSensor broadcasts one value to every neuron of its group.
type ConstantSensor struct {
	mu    sync.RWMutex
	width int
	value float64
}

func NewConstantSensor(width int, initial float64) *ConstantSensor {
	return &ConstantSensor{width: max(width, 1), value: initial}
}

func (s *ConstantSensor) Name() string { return ConstantSensorName }

func (s *ConstantSensor) Read(_ context.Context) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, s.width)
	for i := range out {
		out[i] = s.value
	}
	return out, nil
}

func (s *ConstantSensor) Set(value float64) {
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
}

// VectorSensor holds one value per neuron.
type VectorSensor struct {
	mu     sync.RWMutex
	values []float64
}

func NewVectorSensor(width int) *VectorSensor {
	return &VectorSensor{values: make([]float64, max(width, 0))}
}

func (s *VectorSensor) Name() string { return VectorSensorName }

func (s *VectorSensor) Read(_ context.Context) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float64(nil), s.values...), nil
}

func (s *VectorSensor) Set(values []float64) {
	s.mu.Lock()
	s.values = append([]float64(nil), values...)
	s.mu.Unlock()
}

// SineSensor emits a travelling wave: neuron i reads
// Amplitude*sin(2*pi*(step/Period + i/width)), and each Read advances step.
type SineSensor struct {
	Amplitude float64
	Period    float64

	mu    sync.Mutex
	width int
	step  int
}

func NewSineSensor(width int, amplitude, period float64) *SineSensor {
	return &SineSensor{Amplitude: amplitude, Period: period, width: max(width, 1)}
}

func (s *SineSensor) Name() string { return SineSensorName }

func (s *SineSensor) Read(_ context.Context) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, s.width)
	period := s.Period
	if period <= 0 {
		period = 1
	}
	for i := range out {
		phase := float64(s.step)/period + float64(i)/float64(s.width)
		out[i] = s.Amplitude * math.Sin(2*math.Pi*phase)
	}
	s.step++
	return out, nil
}

// RecorderActuator keeps every write.
type RecorderActuator struct {
	mu      sync.RWMutex
	history [][]float64
}

func NewRecorderActuator() *RecorderActuator {
	return &RecorderActuator{}
}

func (a *RecorderActuator) Name() string { return RecorderActuatorName }

func (a *RecorderActuator) Write(_ context.Context, values []float64) error {
	a.mu.Lock()
	a.history = append(a.history, append([]float64(nil), values...))
	a.mu.Unlock()
	return nil
}

func (a *RecorderActuator) Last() []float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.history) == 0 {
		return nil
	}
	return append([]float64(nil), a.history[len(a.history)-1]...)
}

func (a *RecorderActuator) History() [][]float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([][]float64, len(a.history))
	for i, row := range a.history {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// WinnerActuator reduces a write to a one-hot vector marking the most
// active neuron; the first maximum wins ties.
type WinnerActuator struct {
	mu     sync.RWMutex
	last   []float64
	winner int
}

func NewWinnerActuator() *WinnerActuator {
	return &WinnerActuator{winner: -1}
}

func (a *WinnerActuator) Name() string { return WinnerActuatorName }

func (a *WinnerActuator) Write(_ context.Context, values []float64) error {
	winner := -1
	for i, v := range values {
		if winner < 0 || v > values[winner] {
			winner = i
		}
	}
	out := make([]float64, len(values))
	if winner >= 0 {
		out[winner] = 1
	}
	a.mu.Lock()
	a.last, a.winner = out, winner
	a.mu.Unlock()
	return nil
}

func (a *WinnerActuator) Last() []float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]float64(nil), a.last...)
}

// Winner is the index of the most recent winner, or -1 before any write.
func (a *WinnerActuator) Winner() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.winner
}

func init() {
	initializeDefaultComponents()
}

func initializeDefaultComponents() {
	mustRegisterSensor(ConstantSensorName, func(width int) Sensor { return NewConstantSensor(width, 0) })
	mustRegisterSensor(VectorSensorName, func(width int) Sensor { return NewVectorSensor(width) })
	mustRegisterSensor(SineSensorName, func(width int) Sensor { return NewSineSensor(width, 1, 20) })

	mustRegisterActuator(RecorderActuatorName, func(int) Actuator { return NewRecorderActuator() })
	if err := RegisterActuatorWithSpec(ActuatorSpec{
		Name:          WinnerActuatorName,
		Factory:       func(int) Actuator { return NewWinnerActuator() },
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
		Compatible: func(width int) error {
			if width < 2 {
				return errWinnerWidth
			}
			return nil
		},
	}); err != nil {
		panic(err)
	}
}

func mustRegisterSensor(name string, factory SensorFactory) {
	if err := RegisterSensor(name, factory); err != nil {
		panic(err)
	}
}

func mustRegisterActuator(name string, factory ActuatorFactory) {
	if err := RegisterActuator(name, factory); err != nil {
		panic(err)
	}
}
