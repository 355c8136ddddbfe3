package network

import (
	"math/rand"

	"neuralsim/internal/nn"
)

const (
	DefaultSynapseUpper       = 100.0
	DefaultSynapseLower       = -100.0
	DefaultSynapseIncrement   = 1.0
	DefaultExcitatoryStrength = 1.0
	DefaultInhibitoryStrength = -1.0
)

// Synapse is a weighted directed edge. Source and target are non-owning; the
// synapse itself belongs to one SynapseGroup or to the Network's flat list.
type Synapse struct {
	id     string
	source *Neuron
	target *Neuron

	strength   float64
	lowerBound float64
	upperBound float64
	increment  float64
	psr        float64

	delay    int
	delayBuf []float64
	dlyPtr   int

	learningRule   nn.LearningRule
	spikeResponder nn.SpikeResponder
	enabled        bool
	frozen         bool
	template       bool

	group   *SynapseGroup
	network *Network
}

// NewSynapse connects source to target with the default strength and
// registers itself in both neurons' adjacency lists.
func NewSynapse(source, target *Neuron) *Synapse {
	return NewSynapseWithStrength(source, target, DefaultExcitatoryStrength)
}

func NewSynapseWithStrength(source, target *Neuron, strength float64) *Synapse {
	s := newBlankSynapse()
	s.strength = strength
	s.source = source
	s.target = target
	if source != nil && target != nil {
		source.addFanOut(s)
		target.addFanIn(s)
	}
	return s
}

// NewTemplateSynapse returns a prototype with no source or target. Templates
// carry group-level defaults and accept any strength.
func NewTemplateSynapse(strength float64) *Synapse {
	s := newBlankSynapse()
	s.template = true
	s.strength = strength
	return s
}

func newBlankSynapse() *Synapse {
	return &Synapse{
		strength:     DefaultExcitatoryStrength,
		lowerBound:   DefaultSynapseLower,
		upperBound:   DefaultSynapseUpper,
		increment:    DefaultSynapseIncrement,
		learningRule: nn.StaticRule{},
		enabled:      true,
	}
}

func (s *Synapse) ID() string              { return s.id }
func (s *Synapse) Source() *Neuron         { return s.source }
func (s *Synapse) Target() *Neuron         { return s.target }
func (s *Synapse) Strength() float64       { return s.strength }
func (s *Synapse) LowerBound() float64     { return s.lowerBound }
func (s *Synapse) UpperBound() float64     { return s.upperBound }
func (s *Synapse) Increment() float64      { return s.increment }
func (s *Synapse) PSR() float64            { return s.psr }
func (s *Synapse) Delay() int              { return s.delay }
func (s *Synapse) Enabled() bool           { return s.enabled }
func (s *Synapse) Frozen() bool            { return s.frozen }
func (s *Synapse) IsTemplate() bool        { return s.template }
func (s *Synapse) Group() *SynapseGroup    { return s.group }
func (s *Synapse) SetLowerBound(v float64) { s.lowerBound = v }
func (s *Synapse) SetUpperBound(v float64) { s.upperBound = v }
func (s *Synapse) SetIncrement(v float64)  { s.increment = v }
func (s *Synapse) SetEnabled(e bool)       { s.enabled = e }
func (s *Synapse) SetFrozen(f bool)        { s.frozen = f }
func (s *Synapse) SetPSR(v float64)        { s.psr = v }

func (s *Synapse) LearningRule() nn.LearningRule     { return s.learningRule }
func (s *Synapse) SpikeResponder() nn.SpikeResponder { return s.spikeResponder }

// SetStrength honors the frozen flag, the source neuron's polarity and the
// synapse bounds. Templates take the value as is.
func (s *Synapse) SetStrength(w float64) {
	if s.template {
		s.strength = w
		return
	}
	if s.frozen {
		return
	}
	if s.source != nil {
		w = s.source.polarity.Clip(w)
	}
	s.strength = s.Clip(w)
}

// ForceSetStrength bypasses frozen, polarity and bounds.
func (s *Synapse) ForceSetStrength(w float64) {
	s.strength = w
}

func (s *Synapse) IncrementWeight() {
	if s.strength < s.upperBound {
		s.SetStrength(s.strength + s.increment)
	}
}

func (s *Synapse) DecrementWeight() {
	if s.strength > s.lowerBound {
		s.SetStrength(s.strength - s.increment)
	}
}

// Clip bounds value to the synapse's [lower, upper] range.
func (s *Synapse) Clip(value float64) float64 {
	return nn.Clip(value, s.lowerBound, s.upperBound)
}

func (s *Synapse) SetLearningRule(rule nn.LearningRule) {
	if rule == nil {
		rule = nn.StaticRule{}
	}
	s.learningRule = rule
	if s.group != nil {
		s.group.learningRuleChanged(s)
	}
}

// SetSpikeResponder installs r; nil restores the connectionist response.
func (s *Synapse) SetSpikeResponder(r nn.SpikeResponder) {
	s.spikeResponder = r
}

// SetDelay resizes the delay queue and zeroes it. Negative delays are only
// accepted on templates.
func (s *Synapse) SetDelay(d int) {
	if d < 0 && !s.template {
		return
	}
	s.delay = d
	s.dlyPtr = 0
	if d <= 0 {
		s.delayBuf = nil
		return
	}
	s.delayBuf = make([]float64, d)
}

// DelayQueue returns a copy of the pending delayed responses.
func (s *Synapse) DelayQueue() []float64 {
	return append([]float64(nil), s.delayBuf...)
}

func (s *Synapse) dequeue() float64 {
	if s.dlyPtr == s.delay {
		s.dlyPtr = 0
	}
	v := s.delayBuf[s.dlyPtr]
	s.dlyPtr++
	return v
}

func (s *Synapse) enqueue(v float64) {
	if s.dlyPtr == 0 {
		s.delayBuf[s.delay-1] = v
	} else {
		s.delayBuf[s.dlyPtr-1] = v
	}
}

// updateOutput computes the post-synaptic response from the source's current
// activation, routing it through the delay queue when one is set.
func (s *Synapse) updateOutput() {
	if !s.enabled {
		s.psr = 0
		return
	}
	if s.spikeResponder == nil {
		s.psr = s.source.activation * s.strength
	} else {
		s.psr = s.spikeResponder.Respond(s.source.spike, s.strength, s.psr, s.source.timeStep())
	}
	if s.delay > 0 {
		delayed := s.dequeue()
		s.enqueue(s.psr)
		s.psr = delayed
	}
}

// Update applies the learning rule unless the synapse is frozen.
func (s *Synapse) Update() {
	if s.frozen || nn.IsStatic(s.learningRule) {
		return
	}
	next := s.learningRule.Apply(nn.SynapseState{
		Strength: s.strength,
		Pre:      s.source.activation,
		Post:     s.target.activation,
		Lower:    s.lowerBound,
		Upper:    s.upperBound,
	})
	s.strength = s.Clip(next)
}

// HardClear zeroes the response and any pending delayed values.
func (s *Synapse) HardClear() {
	s.psr = 0
	for i := range s.delayBuf {
		s.delayBuf[i] = 0
	}
	s.dlyPtr = 0
}

// Randomize draws a new strength from rnd, signed by polarity.
func (s *Synapse) Randomize(rnd nn.Randomizer, p Polarity, r *rand.Rand) {
	s.ForceSetStrength(p.Signed(rnd.Sample(r)))
}

// conformTo copies every prototype-governed field from proto.
func (s *Synapse) conformTo(proto *Synapse) {
	d := proto.delay
	if d < 0 && !s.template {
		d = 0
	}
	s.SetDelay(d)
	s.learningRule = proto.learningRule.Copy()
	if proto.spikeResponder != nil {
		s.spikeResponder = proto.spikeResponder.Copy()
	} else {
		s.spikeResponder = nil
	}
	s.frozen = proto.frozen
	s.enabled = proto.enabled
	s.lowerBound = proto.lowerBound
	s.upperBound = proto.upperBound
	s.increment = proto.increment
}

// copyTemplate duplicates a prototype.
func (s *Synapse) copyTemplate() *Synapse {
	c := NewTemplateSynapse(s.strength)
	c.conformTo(s)
	return c
}

// detach removes s from both neurons' adjacency lists.
func (s *Synapse) detach() {
	if s.source != nil {
		s.source.removeFanOut(s)
	}
	if s.target != nil {
		s.target.removeFanIn(s)
	}
}
