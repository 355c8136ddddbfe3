package network

import (
	"math/rand"

	"neuralsim/internal/nn"
)

const (
	DefaultNeuronLower     = -1.0
	DefaultNeuronUpper     = 1.0
	DefaultNeuronIncrement = 0.1
)

// Neuron is a node of the network. Its fan-in and fan-out lists hold
// non-owning references to synapses owned by a SynapseGroup or the Network.
type Neuron struct {
	id    string
	label string

	activation     float64
	lastActivation float64
	buffer         float64
	inputValue     float64
	aux            float64
	spike          bool
	nextSpike      bool

	lowerBound float64
	upperBound float64
	increment  float64

	rule     nn.NeuronRule
	polarity Polarity
	clamped  bool
	priority int

	x, y     float64
	isInput  bool
	isOutput bool

	fanIn  []*Synapse
	fanOut []*Synapse

	parent  *NeuronGroup
	network *Network
}

// NewNeuron returns a detached neuron. A nil rule means linear.
func NewNeuron(rule nn.NeuronRule) *Neuron {
	if rule == nil {
		rule = nn.NewLinearRule()
	}
	n := &Neuron{
		lowerBound: DefaultNeuronLower,
		upperBound: DefaultNeuronUpper,
		increment:  DefaultNeuronIncrement,
		rule:       rule,
	}
	n.applyRuleBounds()
	return n
}

func (n *Neuron) applyRuleBounds() {
	if bp, ok := n.rule.(nn.BoundsProvider); ok {
		n.lowerBound, n.upperBound = bp.DefaultBounds()
	}
}

func (n *Neuron) ID() string                { return n.id }
func (n *Neuron) Label() string             { return n.label }
func (n *Neuron) ParentGroup() *NeuronGroup { return n.parent }
func (n *Neuron) Network() *Network         { return n.network }

func (n *Neuron) SetLabel(label string) {
	n.label = label
	n.emit(LabelChanged)
}

func (n *Neuron) Activation() float64     { return n.activation }
func (n *Neuron) LastActivation() float64 { return n.lastActivation }
func (n *Neuron) Buffer() float64         { return n.buffer }
func (n *Neuron) Aux() float64            { return n.aux }
func (n *Neuron) Spike() bool             { return n.spike }

// SetActivation sets and clips the activation unless the neuron is clamped.
func (n *Neuron) SetActivation(v float64) {
	n.lastActivation = n.activation
	if n.clamped {
		return
	}
	n.activation = v
	n.CheckBounds()
}

// ForceSetActivation ignores clamping and bounds.
func (n *Neuron) ForceSetActivation(v float64) {
	n.lastActivation = n.activation
	n.activation = v
}

func (n *Neuron) InputValue() float64       { return n.inputValue }
func (n *Neuron) SetInputValue(v float64)   { n.inputValue = v }
func (n *Neuron) AddInputValue(v float64)   { n.inputValue += v }
func (n *Neuron) LowerBound() float64       { return n.lowerBound }
func (n *Neuron) UpperBound() float64       { return n.upperBound }
func (n *Neuron) SetLowerBound(v float64)   { n.lowerBound = v }
func (n *Neuron) SetUpperBound(v float64)   { n.upperBound = v }
func (n *Neuron) Increment() float64        { return n.increment }
func (n *Neuron) SetIncrement(v float64)    { n.increment = v }
func (n *Neuron) UpdateRule() nn.NeuronRule { return n.rule }
func (n *Neuron) Polarity() Polarity        { return n.polarity }
func (n *Neuron) Clamped() bool             { return n.clamped }
func (n *Neuron) SetClamped(c bool)         { n.clamped = c }
func (n *Neuron) Priority() int             { return n.priority }
func (n *Neuron) X() float64                { return n.x }
func (n *Neuron) Y() float64                { return n.y }
func (n *Neuron) IsInput() bool             { return n.isInput }
func (n *Neuron) IsOutput() bool            { return n.isOutput }
func (n *Neuron) SetInput(in bool)          { n.isInput = in }
func (n *Neuron) SetOutput(out bool)        { n.isOutput = out }

// SetPolarity changes what sign future outgoing weights may take. Existing
// weights keep their value until they are next set.
func (n *Neuron) SetPolarity(p Polarity) { n.polarity = p }

func (n *Neuron) SetUpdateRule(rule nn.NeuronRule) {
	if rule == nil {
		rule = nn.NewLinearRule()
	}
	n.rule = rule
	n.applyRuleBounds()
	if n.network != nil {
		n.network.updateTimeType()
	}
}

func (n *Neuron) SetPriority(p int) {
	n.priority = p
	if n.network != nil {
		n.network.priorityChanged()
	}
}

func (n *Neuron) SetLocation(x, y float64) {
	n.x, n.y = x, y
}

func (n *Neuron) Offset(dx, dy float64) {
	n.x += dx
	n.y += dy
}

// FanIn and FanOut must be treated as read-only.
func (n *Neuron) FanIn() []*Synapse  { return n.fanIn }
func (n *Neuron) FanOut() []*Synapse { return n.fanOut }

// FanOutTo returns the synapse from n to target, if any.
func (n *Neuron) FanOutTo(target *Neuron) *Synapse {
	for _, s := range n.fanOut {
		if s.target == target {
			return s
		}
	}
	return nil
}

// CheckBounds clips the activation into [lower, upper].
func (n *Neuron) CheckBounds() {
	n.activation = nn.Clip(n.activation, n.lowerBound, n.upperBound)
}

// UpdateInputs refreshes every fan-in synapse's output and adds their sum to
// the external input.
func (n *Neuron) UpdateInputs() {
	for _, s := range n.fanIn {
		s.updateOutput()
	}
	n.inputValue += n.WeightedInputs()
}

// Update is the buffer phase: the rule's result lands in the buffer and the
// visible activation is left untouched. The consumed input is cleared.
func (n *Neuron) Update() {
	n.nextSpike = false
	if n.clamped {
		n.buffer = n.activation
		return
	}
	next := n.rule.Step(nn.NeuronState{
		Activation: n.activation,
		Input:      n.inputValue,
		Aux:        n.aux,
		Lower:      n.lowerBound,
		Upper:      n.upperBound,
		TimeStep:   n.timeStep(),
		Rand:       n.rng(),
	})
	n.buffer = next.Activation
	n.aux = next.Aux
	n.nextSpike = next.Spike
	n.inputValue = 0
}

// Commit is the second phase: buffer becomes the activation, clipped, and
// the spike computed in the buffer phase becomes visible.
func (n *Neuron) Commit() {
	n.spike = n.nextSpike
	if n.clamped {
		return
	}
	n.lastActivation = n.activation
	n.activation = n.buffer
	n.CheckBounds()
}

// WeightedInputs sums the post-synaptic responses of the fan-in.
func (n *Neuron) WeightedInputs() float64 {
	sum := 0.0
	for _, s := range n.fanIn {
		sum += s.psr
	}
	return sum
}

func (n *Neuron) ExcitatoryInputs() float64 {
	sum := 0.0
	for _, s := range n.fanIn {
		if s.strength > 0 {
			sum += s.psr
		}
	}
	return sum
}

func (n *Neuron) InhibitoryInputs() float64 {
	sum := 0.0
	for _, s := range n.fanIn {
		if s.strength < 0 {
			sum += s.psr
		}
	}
	return sum
}

func (n *Neuron) SummedIncomingWeights() float64 {
	sum := 0.0
	for _, s := range n.fanIn {
		sum += s.strength
	}
	return sum
}

func (n *Neuron) IncrementActivation() {
	n.SetActivation(n.activation + n.increment)
}

func (n *Neuron) DecrementActivation() {
	n.SetActivation(n.activation - n.increment)
}

// Clear zeroes activation, buffer and input.
func (n *Neuron) Clear() {
	n.lastActivation = n.activation
	n.activation = 0
	n.buffer = 0
	n.inputValue = 0
	n.aux = 0
	n.spike = false
	n.nextSpike = false
}

// Randomize draws an activation uniformly from the neuron's bounds.
func (n *Neuron) Randomize() {
	r := n.rng()
	n.ForceSetActivation(n.lowerBound + r.Float64()*(n.upperBound-n.lowerBound))
}

// RandomizeFanIn redraws every incoming weight from rnd, honoring each
// source's polarity.
func (n *Neuron) RandomizeFanIn(rnd nn.Randomizer) {
	for _, s := range n.fanIn {
		s.SetStrength(rnd.Sample(n.rng()))
	}
}

func (n *Neuron) RandomizeFanOut(rnd nn.Randomizer) {
	for _, s := range n.fanOut {
		s.SetStrength(n.polarity.Signed(rnd.Sample(n.rng())))
	}
}

func (n *Neuron) rng() *rand.Rand {
	if n.network == nil {
		return detachedRand
	}
	return n.network.ctx.rand
}

func (n *Neuron) timeStep() float64 {
	if n.network == nil {
		return 1
	}
	return n.network.timeStep
}

func (n *Neuron) addFanIn(s *Synapse)  { n.fanIn = append(n.fanIn, s) }
func (n *Neuron) addFanOut(s *Synapse) { n.fanOut = append(n.fanOut, s) }

func (n *Neuron) removeFanIn(s *Synapse) {
	n.fanIn = removeSynapseRef(n.fanIn, s)
}

func (n *Neuron) removeFanOut(s *Synapse) {
	n.fanOut = removeSynapseRef(n.fanOut, s)
}

func removeSynapseRef(list []*Synapse, s *Synapse) []*Synapse {
	for i, item := range list {
		if item == s {
			copy(list[i:], list[i+1:])
			list[len(list)-1] = nil
			return list[:len(list)-1]
		}
	}
	return list
}

func (n *Neuron) emit(kind EventKind) {
	if n.network != nil {
		n.network.ctx.emit(Event{Kind: kind, ID: n.id, Subject: n})
	}
}
