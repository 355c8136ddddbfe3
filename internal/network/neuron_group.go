package network

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"

	"neuralsim/internal/nn"
)

var ErrSizeMismatch = errors.New("value count does not match group size")

// NeuronGroup is an ordered collection of neurons. Order is significant: it
// fixes the indices used by weight codecs and exports.
type NeuronGroup struct {
	groupBase
	neurons         []*Neuron
	deleteWhenEmpty bool

	incoming []*SynapseGroup
	outgoing []*SynapseGroup

	recorder *bufio.Writer
}

// NewNeuronGroup adopts neurons into a new group registered with net.
func NewNeuronGroup(net *Network, neurons []*Neuron) *NeuronGroup {
	g := &NeuronGroup{deleteWhenEmpty: true}
	net.AddGroup(g)
	for _, n := range neurons {
		g.AddNeuron(n)
	}
	return g
}

// NewNeuronGroupOfSize builds size neurons each with its own copy of rule.
func NewNeuronGroupOfSize(net *Network, size int, rule nn.NeuronRule) *NeuronGroup {
	neurons := make([]*Neuron, size)
	for i := range neurons {
		var r nn.NeuronRule
		if rule != nil {
			r = rule.Copy()
		}
		neurons[i] = NewNeuron(r)
	}
	g := NewNeuronGroup(net, neurons)
	g.GridLayout(0, 0, DefaultGridSpacing)
	return g
}

func (g *NeuronGroup) SetLabel(label string) {
	g.label = label
	g.emit(LabelChanged, g)
}

func (g *NeuronGroup) Size() int { return len(g.neurons) }

// Neurons must be treated as read-only.
func (g *NeuronGroup) Neurons() []*Neuron { return g.neurons }

func (g *NeuronGroup) NeuronAt(i int) *Neuron { return g.neurons[i] }

func (g *NeuronGroup) DeleteWhenEmpty() bool { return g.deleteWhenEmpty }

func (g *NeuronGroup) SetDeleteWhenEmpty(v bool) { g.deleteWhenEmpty = v }

// IndexOf returns n's position in the group or -1.
func (g *NeuronGroup) IndexOf(n *Neuron) int {
	for i, m := range g.neurons {
		if m == n {
			return i
		}
	}
	return -1
}

func (g *NeuronGroup) indexMap() map[*Neuron]int {
	m := make(map[*Neuron]int, len(g.neurons))
	for i, n := range g.neurons {
		m[n] = i
	}
	return m
}

// AddNeuron adopts n and gives it a fresh id from the network.
func (g *NeuronGroup) AddNeuron(n *Neuron) {
	n.parent = g
	if g.network != nil {
		g.network.adoptNeuron(n)
	}
	g.neurons = append(g.neurons, n)
}

// RemoveNeuron removes n and every synapse touching it. An emptied group that
// deletes when empty takes itself out of the network and notifies its parent.
func (g *NeuronGroup) RemoveNeuron(n *Neuron) bool {
	idx := g.IndexOf(n)
	if idx < 0 {
		return false
	}
	g.neurons = append(g.neurons[:idx], g.neurons[idx+1:]...)
	if g.network != nil {
		g.network.releaseNeuron(n)
	}
	n.parent = nil
	if len(g.neurons) == 0 && g.deleteWhenEmpty && !g.marked {
		g.Delete()
	}
	return true
}

// Delete is idempotent. It removes attached synapse groups, then every member
// neuron from the network.
func (g *NeuronGroup) Delete() {
	if g.marked {
		return
	}
	g.marked = true
	if err := g.StopRecording(); err != nil {
		g.logger().Warn("activation recording flush failed", slog.String("group", g.label), slog.Any("err", err))
	}
	for _, sg := range append(append([]*SynapseGroup(nil), g.incoming...), g.outgoing...) {
		sg.Delete()
	}
	for _, n := range append([]*Neuron(nil), g.neurons...) {
		if g.network != nil {
			g.network.releaseNeuron(n)
		}
		n.parent = nil
	}
	g.neurons = nil
	finishDelete(g)
}

// Update runs a buffered update over the members, then records activations
// if recording is on.
func (g *NeuronGroup) Update() {
	if g.network != nil && g.network.clampNeurons {
		return
	}
	updateNeurons(g.neurons, g.network)
	g.writeActivations()
}

func (g *NeuronGroup) IncomingSynapseGroups() []*SynapseGroup {
	return append([]*SynapseGroup(nil), g.incoming...)
}

func (g *NeuronGroup) OutgoingSynapseGroups() []*SynapseGroup {
	return append([]*SynapseGroup(nil), g.outgoing...)
}

func (g *NeuronGroup) addIncoming(sg *SynapseGroup) { g.incoming = addGroupRef(g.incoming, sg) }
func (g *NeuronGroup) addOutgoing(sg *SynapseGroup) { g.outgoing = addGroupRef(g.outgoing, sg) }
func (g *NeuronGroup) removeIncoming(sg *SynapseGroup) {
	g.incoming = removeGroupRef(g.incoming, sg)
}
func (g *NeuronGroup) removeOutgoing(sg *SynapseGroup) {
	g.outgoing = removeGroupRef(g.outgoing, sg)
}

func addGroupRef(list []*SynapseGroup, sg *SynapseGroup) []*SynapseGroup {
	for _, item := range list {
		if item == sg {
			return list
		}
	}
	return append(list, sg)
}

func removeGroupRef(list []*SynapseGroup, sg *SynapseGroup) []*SynapseGroup {
	for i, item := range list {
		if item == sg {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (g *NeuronGroup) Activations() []float64 {
	out := make([]float64, len(g.neurons))
	for i, n := range g.neurons {
		out[i] = n.activation
	}
	return out
}

func (g *NeuronGroup) SetActivations(values []float64) error {
	if len(values) != len(g.neurons) {
		return fmt.Errorf("%w: got=%d want=%d", ErrSizeMismatch, len(values), len(g.neurons))
	}
	for i, n := range g.neurons {
		n.SetActivation(values[i])
	}
	return nil
}

func (g *NeuronGroup) ForceSetActivations(values []float64) error {
	if len(values) != len(g.neurons) {
		return fmt.Errorf("%w: got=%d want=%d", ErrSizeMismatch, len(values), len(g.neurons))
	}
	for i, n := range g.neurons {
		n.ForceSetActivation(values[i])
	}
	return nil
}

// SetInputValues drives the group for the next tick.
func (g *NeuronGroup) SetInputValues(values []float64) error {
	if len(values) != len(g.neurons) {
		return fmt.Errorf("%w: got=%d want=%d", ErrSizeMismatch, len(values), len(g.neurons))
	}
	for i, n := range g.neurons {
		n.inputValue = values[i]
	}
	return nil
}

func (g *NeuronGroup) SetClamped(clamped bool) {
	for _, n := range g.neurons {
		n.clamped = clamped
	}
}

func (g *NeuronGroup) SetPolarity(p Polarity) {
	for _, n := range g.neurons {
		n.polarity = p
	}
}

// SetUpdateRule gives every member its own copy of rule.
func (g *NeuronGroup) SetUpdateRule(rule nn.NeuronRule) {
	for _, n := range g.neurons {
		n.SetUpdateRule(rule.Copy())
	}
}

func (g *NeuronGroup) SetLowerBound(v float64) {
	for _, n := range g.neurons {
		n.lowerBound = v
	}
}

func (g *NeuronGroup) SetUpperBound(v float64) {
	for _, n := range g.neurons {
		n.upperBound = v
	}
}

func (g *NeuronGroup) SetIncrement(v float64) {
	for _, n := range g.neurons {
		n.increment = v
	}
}

func (g *NeuronGroup) SetInputFlags(input, output bool) {
	for _, n := range g.neurons {
		n.isInput = input
		n.isOutput = output
	}
}

func (g *NeuronGroup) Randomize() {
	for _, n := range g.neurons {
		n.Randomize()
	}
}

func (g *NeuronGroup) Clear() {
	for _, n := range g.neurons {
		n.Clear()
	}
}

// Prune removes neurons with no synapses at all.
func (g *NeuronGroup) Prune() int {
	removed := 0
	for _, n := range append([]*Neuron(nil), g.neurons...) {
		if len(n.fanIn) == 0 && len(n.fanOut) == 0 {
			g.RemoveNeuron(n)
			removed++
		}
	}
	return removed
}

const DefaultGridSpacing = 50.0

// Geometry treats neurons as points; every call is a fresh O(n) scan.

func (g *NeuronGroup) MinX() float64 {
	return g.extent(func(n *Neuron) float64 { return n.x }, math.Min)
}
func (g *NeuronGroup) MaxX() float64 {
	return g.extent(func(n *Neuron) float64 { return n.x }, math.Max)
}
func (g *NeuronGroup) MinY() float64 {
	return g.extent(func(n *Neuron) float64 { return n.y }, math.Min)
}
func (g *NeuronGroup) MaxY() float64 {
	return g.extent(func(n *Neuron) float64 { return n.y }, math.Max)
}

func (g *NeuronGroup) extent(coord func(*Neuron) float64, pick func(a, b float64) float64) float64 {
	if len(g.neurons) == 0 {
		return 0
	}
	v := coord(g.neurons[0])
	for _, n := range g.neurons[1:] {
		v = pick(v, coord(n))
	}
	return v
}

func (g *NeuronGroup) Width() float64   { return g.MaxX() - g.MinX() }
func (g *NeuronGroup) Height() float64  { return g.MaxY() - g.MinY() }
func (g *NeuronGroup) CenterX() float64 { return g.MinX() + g.Width()/2 }
func (g *NeuronGroup) CenterY() float64 { return g.MinY() + g.Height()/2 }

// Offset translates every member.
func (g *NeuronGroup) Offset(dx, dy float64) {
	for _, n := range g.neurons {
		n.Offset(dx, dy)
	}
}

// SetLocation moves the group so its top-left corner sits at (x, y).
func (g *NeuronGroup) SetLocation(x, y float64) {
	g.Offset(x-g.MinX(), y-g.MinY())
}

// LineLayout places members left to right starting at (x, y).
func (g *NeuronGroup) LineLayout(x, y, spacing float64) {
	for i, n := range g.neurons {
		n.SetLocation(x+float64(i)*spacing, y)
	}
}

// GridLayout places members row-major in a near-square grid.
func (g *NeuronGroup) GridLayout(x, y, spacing float64) {
	cols := int(math.Ceil(math.Sqrt(float64(len(g.neurons)))))
	if cols == 0 {
		return
	}
	for i, n := range g.neurons {
		n.SetLocation(x+float64(i%cols)*spacing, y+float64(i/cols)*spacing)
	}
}

// StartRecording writes one line of activations per update to w.
func (g *NeuronGroup) StartRecording(w io.Writer) {
	if err := g.StopRecording(); err != nil {
		g.logger().Warn("activation recording flush failed", slog.String("group", g.label), slog.Any("err", err))
	}
	g.recorder = bufio.NewWriter(w)
}

// StopRecording flushes any buffered lines.
func (g *NeuronGroup) StopRecording() error {
	if g.recorder == nil {
		return nil
	}
	err := g.recorder.Flush()
	g.recorder = nil
	return err
}

func (g *NeuronGroup) IsRecording() bool { return g.recorder != nil }

func (g *NeuronGroup) writeActivations() {
	if g.recorder == nil {
		return
	}
	for i, n := range g.neurons {
		if i > 0 {
			g.recorder.WriteString(", ")
		}
		g.recorder.WriteString(strconv.FormatFloat(n.activation, 'g', -1, 64))
	}
	// bufio keeps the first write error, so one check covers the line.
	if err := g.recorder.WriteByte('\n'); err != nil {
		g.logger().Warn("activation recording stopped", slog.String("group", g.label), slog.Any("err", err))
		g.recorder = nil
	}
}

func (g *NeuronGroup) logger() *slog.Logger {
	if g.network == nil {
		return slog.Default()
	}
	return g.network.ctx.logger
}
