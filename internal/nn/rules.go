package nn

import (
	"math"
	"math/rand"
)

const (
	RuleLinear     = "linear"
	RuleBinary     = "binary"
	RuleSigmoidal  = "sigmoidal"
	RuleStochastic = "stochastic"
	RuleIzhikevich = "izhikevich"
)

// NeuronState is the slice of neuron state an update rule reads and writes.
// Input is the summed post-synaptic response plus external drive.
type NeuronState struct {
	Activation float64
	Input      float64
	Aux        float64
	Lower      float64
	Upper      float64
	TimeStep   float64
	Spike      bool
	Rand       *rand.Rand
}

// NeuronRule computes the next neuron state. Implementations must not retain
// the state they are given.
type NeuronRule interface {
	Name() string
	Step(s NeuronState) NeuronState
	Copy() NeuronRule
}

// ContinuousRule is implemented by rules that integrate over the network time step.
type ContinuousRule interface {
	Continuous() bool
}

// BoundsProvider supplies default activation bounds for rules whose natural
// range is not [-1, 1].
type BoundsProvider interface {
	DefaultBounds() (lower, upper float64)
}

// IsContinuous reports whether rule integrates over time.
func IsContinuous(rule NeuronRule) bool {
	c, ok := rule.(ContinuousRule)
	return ok && c.Continuous()
}

type LinearRule struct {
	Slope float64
	Bias  float64
}

func NewLinearRule() *LinearRule {
	return &LinearRule{Slope: 1}
}

func (r *LinearRule) Name() string { return RuleLinear }

func (r *LinearRule) Step(s NeuronState) NeuronState {
	s.Activation = r.Slope * (s.Input + r.Bias)
	return s
}

func (r *LinearRule) Copy() NeuronRule {
	c := *r
	return &c
}

// BinaryRule fires the upper bound when input plus bias exceeds Threshold and
// the lower bound otherwise.
type BinaryRule struct {
	Threshold float64
	Bias      float64
}

func NewBinaryRule() *BinaryRule {
	return &BinaryRule{Threshold: 0.5}
}

func (r *BinaryRule) Name() string { return RuleBinary }

func (r *BinaryRule) Step(s NeuronState) NeuronState {
	if s.Input+r.Bias > r.Threshold {
		s.Activation = s.Upper
	} else {
		s.Activation = s.Lower
	}
	return s
}

func (r *BinaryRule) Copy() NeuronRule {
	c := *r
	return &c
}

const (
	SigmoidLogistic = "logistic"
	SigmoidTanh     = "tanh"
	SigmoidArctan   = "arctan"
)

// SigmoidalRule squashes input into the neuron's bounds.
type SigmoidalRule struct {
	Kind  string
	Slope float64
	Bias  float64
}

func NewSigmoidalRule() *SigmoidalRule {
	return &SigmoidalRule{Kind: SigmoidLogistic, Slope: 1}
}

func (r *SigmoidalRule) Name() string { return RuleSigmoidal }

func (r *SigmoidalRule) Step(s NeuronState) NeuronState {
	x := r.Slope * (s.Input + r.Bias)
	diff := s.Upper - s.Lower
	switch r.Kind {
	case SigmoidTanh:
		s.Activation = diff/2*math.Tanh(x) + (s.Upper+s.Lower)/2
	case SigmoidArctan:
		s.Activation = diff/math.Pi*math.Atan(x) + (s.Upper+s.Lower)/2
	default:
		s.Activation = diff*Logistic(x) + s.Lower
	}
	return s
}

func (r *SigmoidalRule) Copy() NeuronRule {
	c := *r
	return &c
}

// StochasticRule ignores its input and fires with a fixed probability. A
// firing step reports a spike.
type StochasticRule struct {
	FiringProbability float64
}

func NewStochasticRule() *StochasticRule {
	return &StochasticRule{FiringProbability: 0.5}
}

func (r *StochasticRule) Name() string { return RuleStochastic }

func (r *StochasticRule) Step(s NeuronState) NeuronState {
	var draw float64
	if s.Rand != nil {
		draw = s.Rand.Float64()
	} else {
		draw = rand.Float64()
	}
	s.Spike = draw < r.FiringProbability
	if s.Spike {
		s.Activation = s.Upper
	} else {
		s.Activation = s.Lower
	}
	return s
}

func (r *StochasticRule) Copy() NeuronRule {
	c := *r
	return &c
}

const izhikevichThreshold = 30.0

// IzhikevichRule is the two-variable spiking model. Activation carries the
// membrane potential and Aux the recovery variable.
type IzhikevichRule struct {
	A, B, C, D float64
	IBg        float64
}

func NewIzhikevichRule() *IzhikevichRule {
	return &IzhikevichRule{A: 0.02, B: 0.2, C: -65, D: 6, IBg: 14}
}

func (r *IzhikevichRule) Name() string { return RuleIzhikevich }

func (r *IzhikevichRule) Continuous() bool { return true }

func (r *IzhikevichRule) DefaultBounds() (float64, float64) { return -100, izhikevichThreshold }

func (r *IzhikevichRule) Step(s NeuronState) NeuronState {
	dt := s.TimeStep
	if dt <= 0 {
		dt = 1
	}
	v, u := s.Activation, s.Aux
	u += dt * r.A * (r.B*v - u)
	v += dt * (0.04*v*v + 5*v + 140 - u + s.Input + r.IBg)
	s.Spike = false
	if v >= izhikevichThreshold {
		s.Spike = true
		v = r.C
		u += r.D
	}
	s.Activation = v
	s.Aux = u
	return s
}

func (r *IzhikevichRule) Copy() NeuronRule {
	c := *r
	return &c
}
