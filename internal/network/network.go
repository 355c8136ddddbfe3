package network

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"

	"neuralsim/internal/nn"
)

const DefaultTimeStep = 1.0

var (
	ErrNotMember       = errors.New("element does not belong to this network")
	ErrGroupNotFound   = errors.New("group not found")
	ErrInvalidTimeStep = errors.New("time step must be positive")
)

// TimeType reports whether simulated time is counted in iterations or in
// continuous units of the time step.
type TimeType int

const (
	Discrete TimeType = iota
	Continuous
)

func (t TimeType) String() string {
	if t == Continuous {
		return "continuous"
	}
	return "discrete"
}

// Network is the root aggregate. It owns loose neurons and synapses, every
// group, and the shared SimulationContext.
type Network struct {
	id  string
	ctx *SimulationContext

	neurons  []*Neuron
	synapses []*Synapse
	top      []Group
	all      []Group
	byID     map[string]Group

	time      float64
	timeStep  float64
	iterCount int

	method   UpdateMethod
	script   TickStrategy
	parallel int

	clampNeurons  bool
	clampSynapses bool

	timeTypeDirty bool
	timeType      TimeType
	priorityDirty bool
	priorities    []int

	ready atomic.Bool
}

type NetworkOption func(*Network)

func WithTimeStep(dt float64) NetworkOption {
	return func(n *Network) {
		if dt > 0 {
			n.timeStep = dt
		}
	}
}

func WithUpdateMethod(m UpdateMethod) NetworkOption {
	return func(n *Network) { n.method = m }
}

// WithParallelBuffer spreads the buffer phase of large neuron lists over up
// to workers goroutines. Commit stays sequential.
func WithParallelBuffer(workers int) NetworkOption {
	return func(n *Network) { n.parallel = workers }
}

// NewNetwork returns an empty network. A nil ctx gets a fresh context.
func NewNetwork(ctx *SimulationContext, opts ...NetworkOption) *Network {
	if ctx == nil {
		ctx = NewSimulationContext()
	}
	n := &Network{
		id:       uuid.NewString(),
		ctx:      ctx,
		byID:     make(map[string]Group),
		timeStep: DefaultTimeStep,
		method:   UpdateDefault,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.ready.Store(true)
	return n
}

func (n *Network) ID() string                     { return n.id }
func (n *Network) Context() *SimulationContext    { return n.ctx }
func (n *Network) Logger() *slog.Logger           { return n.ctx.logger }
func (n *Network) Time() float64                  { return n.time }
func (n *Network) TimeStep() float64              { return n.timeStep }
func (n *Network) Iterations() int                { return n.iterCount }
func (n *Network) ClampNeurons() bool             { return n.clampNeurons }
func (n *Network) ClampSynapses() bool            { return n.clampSynapses }
func (n *Network) SetClampNeurons(v bool)         { n.clampNeurons = v }
func (n *Network) SetClampSynapses(v bool)        { n.clampSynapses = v }
func (n *Network) UpdateMethod() UpdateMethod     { return n.method }
func (n *Network) SetUpdateMethod(m UpdateMethod) { n.method = m }

func (n *Network) SetTimeStep(dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("%w: %f", ErrInvalidTimeStep, dt)
	}
	n.timeStep = dt
	return nil
}

// SetTime moves the clock, e.g. when restoring a snapshot.
func (n *Network) SetTime(t float64, iterations int) {
	n.time = t
	n.iterCount = iterations
}

// Ready is false while a tick is in progress.
func (n *Network) Ready() bool { return n.ready.Load() }

// Subscribe is shorthand for Context().Subscribe.
func (n *Network) Subscribe(o Observer) func() { return n.ctx.Subscribe(o) }

// AddNeuron adds a loose neuron owned by the network itself.
func (n *Network) AddNeuron(neuron *Neuron) {
	n.adoptNeuron(neuron)
	n.neurons = append(n.neurons, neuron)
	neuron.emit(NeuronAdded)
}

// AddSynapse adds a loose synapse between two neurons already in the network.
func (n *Network) AddSynapse(s *Synapse) error {
	if s.source == nil || s.target == nil || s.source.network != n || s.target.network != n {
		return fmt.Errorf("%w: synapse endpoints", ErrNotMember)
	}
	s.id = n.ctx.NextID("Synapse")
	s.network = n
	n.synapses = append(n.synapses, s)
	n.ctx.emit(Event{Kind: SynapseAdded, ID: s.id, Subject: s})
	return nil
}

// RemoveNeuron removes a neuron wherever it lives, along with every synapse
// touching it.
func (n *Network) RemoveNeuron(neuron *Neuron) bool {
	if neuron.network != n {
		return false
	}
	if neuron.parent != nil {
		return neuron.parent.RemoveNeuron(neuron)
	}
	n.releaseNeuron(neuron)
	return true
}

// RemoveSynapse removes a synapse wherever it lives.
func (n *Network) RemoveSynapse(s *Synapse) bool {
	if s.group != nil {
		return s.group.RemoveSynapse(s)
	}
	return n.removeLooseSynapse(s)
}

func (n *Network) removeLooseSynapse(s *Synapse) bool {
	for i, item := range n.synapses {
		if item == s {
			n.synapses = append(n.synapses[:i], n.synapses[i+1:]...)
			s.detach()
			n.ctx.emit(Event{Kind: SynapseRemoved, ID: s.id, Subject: s})
			return true
		}
	}
	return false
}

func (n *Network) adoptNeuron(neuron *Neuron) {
	neuron.id = n.ctx.NextID("Neuron")
	neuron.network = n
	n.timeTypeDirty = true
	n.priorityDirty = true
}

// releaseNeuron removes every synapse touching neuron through its owner, then
// drops the neuron from the loose list.
func (n *Network) releaseNeuron(neuron *Neuron) {
	touching := append(append([]*Synapse(nil), neuron.fanIn...), neuron.fanOut...)
	for _, s := range touching {
		if s.group != nil {
			s.group.RemoveSynapse(s)
		} else if !n.removeLooseSynapse(s) {
			s.detach()
		}
	}
	for i, item := range n.neurons {
		if item == neuron {
			n.neurons = append(n.neurons[:i], n.neurons[i+1:]...)
			break
		}
	}
	neuron.emit(NeuronRemoved)
	neuron.network = nil
	n.timeTypeDirty = true
	n.priorityDirty = true
}

// AddGroup registers g, gives it an id and makes it top-level.
func (n *Network) AddGroup(g Group) {
	b := g.base()
	kind := "Group"
	switch g.(type) {
	case *NeuronGroup:
		kind = "NeuronGroup"
	case *SynapseGroup:
		kind = "SynapseGroup"
	case *Subnetwork:
		kind = "Subnetwork"
	}
	b.id = n.ctx.NextID(kind)
	b.network = n
	if b.label == "" {
		b.label = b.id
	}
	n.top = append(n.top, g)
	n.all = append(n.all, g)
	n.byID[b.id] = g
	n.priorityDirty = true
	b.emit(GroupAdded, g)
}

func (n *Network) unregisterGroup(g Group) {
	n.top = removeGroup(n.top, g)
	n.all = removeGroup(n.all, g)
	delete(n.byID, g.ID())
	n.priorityDirty = true
}

// detachTopLevel keeps g registered but stops the network updating it
// directly.
func (n *Network) detachTopLevel(g Group) {
	n.top = removeGroup(n.top, g)
}

func removeGroup(list []Group, g Group) []Group {
	for i, item := range list {
		if item == g {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Neurons lists loose neurons only.
func (n *Network) Neurons() []*Neuron { return append([]*Neuron(nil), n.neurons...) }

// Synapses lists loose synapses only.
func (n *Network) Synapses() []*Synapse { return append([]*Synapse(nil), n.synapses...) }

// Groups lists top-level groups in registration order.
func (n *Network) Groups() []Group { return append([]Group(nil), n.top...) }

// AllGroups includes groups nested in subnetworks.
func (n *Network) AllGroups() []Group { return append([]Group(nil), n.all...) }

func (n *Network) Group(id string) (Group, bool) {
	g, ok := n.byID[id]
	return g, ok
}

// GroupByLabel returns the first group registered under label.
func (n *Network) GroupByLabel(label string) (Group, bool) {
	for _, g := range n.all {
		if g.Label() == label {
			return g, true
		}
	}
	return nil, false
}

func (n *Network) NeuronGroups() []*NeuronGroup {
	var out []*NeuronGroup
	for _, g := range n.all {
		if ng, ok := g.(*NeuronGroup); ok {
			out = append(out, ng)
		}
	}
	return out
}

func (n *Network) SynapseGroups() []*SynapseGroup {
	var out []*SynapseGroup
	for _, g := range n.all {
		if sg, ok := g.(*SynapseGroup); ok {
			out = append(out, sg)
		}
	}
	return out
}

func (n *Network) Subnetworks() []*Subnetwork {
	var out []*Subnetwork
	for _, g := range n.all {
		if sn, ok := g.(*Subnetwork); ok {
			out = append(out, sn)
		}
	}
	return out
}

// FlatNeuronList returns loose neurons followed by the members of every
// neuron group in registration order.
func (n *Network) FlatNeuronList() []*Neuron {
	out := append([]*Neuron(nil), n.neurons...)
	for _, ng := range n.NeuronGroups() {
		out = append(out, ng.neurons...)
	}
	return out
}

// FlatSynapseList returns loose synapses followed by every synapse group's
// members.
func (n *Network) FlatSynapseList() []*Synapse {
	out := append([]*Synapse(nil), n.synapses...)
	for _, sg := range n.SynapseGroups() {
		out = append(out, sg.Synapses()...)
	}
	return out
}

// ClearInputs zeroes every neuron's external input.
func (n *Network) ClearInputs() {
	for _, neuron := range n.FlatNeuronList() {
		neuron.inputValue = 0
	}
}

// ClearActivations resets every neuron and zeroes synapse responses.
func (n *Network) ClearActivations() {
	for _, neuron := range n.FlatNeuronList() {
		neuron.Clear()
	}
	for _, s := range n.FlatSynapseList() {
		s.HardClear()
	}
}

// Randomize draws new activations for every neuron and new strengths for
// every synapse group.
func (n *Network) Randomize() {
	for _, neuron := range n.FlatNeuronList() {
		neuron.Randomize()
	}
	for _, sg := range n.SynapseGroups() {
		sg.Randomize()
	}
}

// TimeType is continuous iff any neuron's rule is continuous.
func (n *Network) TimeType() TimeType {
	if n.timeTypeDirty {
		n.timeType = Discrete
		for _, neuron := range n.FlatNeuronList() {
			if nn.IsContinuous(neuron.rule) {
				n.timeType = Continuous
				break
			}
		}
		n.timeTypeDirty = false
	}
	return n.timeType
}

func (n *Network) updateTimeType()  { n.timeTypeDirty = true }
func (n *Network) priorityChanged() { n.priorityDirty = true }

// Priorities returns the distinct priorities of loose neurons and top-level
// subnetworks in ascending order.
func (n *Network) Priorities() []int {
	if n.priorityDirty || n.priorities == nil {
		seen := map[int]bool{}
		for _, neuron := range n.neurons {
			seen[neuron.priority] = true
		}
		for _, g := range n.top {
			if sn, ok := g.(*Subnetwork); ok {
				seen[sn.priority] = true
			}
		}
		n.priorities = make([]int, 0, len(seen))
		for p := range seen {
			n.priorities = append(n.priorities, p)
		}
		sort.Ints(n.priorities)
		n.priorityDirty = false
	}
	return append([]int(nil), n.priorities...)
}

func (n *Network) String() string {
	return fmt.Sprintf("Network[%s] neurons=%d synapses=%d groups=%d time=%g",
		n.id, len(n.FlatNeuronList()), len(n.FlatSynapseList()), len(n.all), n.time)
}
