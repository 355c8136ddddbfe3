package network

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"neuralsim/internal/nn"
)

const DefaultExcitatoryRatio = 0.5

var (
	ErrNoSynapses         = errors.New("connection strategy produced no synapses")
	ErrInvalidRatio       = errors.New("excitatory ratio must be in [0, 1]")
	ErrRatioUnreachable   = errors.New("excitatory ratio unreachable with polarized sources")
	ErrAlreadyPopulated   = errors.New("synapse group already contains synapses")
	ErrNilNeuronGroup     = errors.New("source and target neuron groups are required")
	ErrForeignNeuronGroup = errors.New("neuron groups belong to different networks")
)

// SynapseGroup connects a source NeuronGroup to a target NeuronGroup and keeps
// its synapses partitioned into disjoint excitatory (strength >= 0) and
// inhibitory (strength < 0) sets.
type SynapseGroup struct {
	groupBase
	source    *NeuronGroup
	target    *NeuronGroup
	recurrent bool

	ex *synapseSet
	in *synapseSet

	exRatio      float64
	exRandomizer nn.Randomizer
	inRandomizer nn.Randomizer
	exProto      *Synapse
	inProto      *Synapse
	strategy     ConnectionStrategy

	useGroupLevelSettings bool
	useFullRepOnSave      bool
	exStatic              bool
	inStatic              bool

	save saveState
}

type SynapseGroupOption func(*SynapseGroup)

func WithStrategy(cs ConnectionStrategy) SynapseGroupOption {
	return func(g *SynapseGroup) {
		if cs != nil {
			g.strategy = cs
		}
	}
}

func WithExcitatoryRatio(ratio float64) SynapseGroupOption {
	return func(g *SynapseGroup) { g.exRatio = ratio }
}

// WithRandomizers sets the weight distributions; nil falls back to the
// prototype strength.
func WithRandomizers(ex, in nn.Randomizer) SynapseGroupOption {
	return func(g *SynapseGroup) {
		g.exRandomizer = ex
		g.inRandomizer = in
	}
}

func WithLabel(label string) SynapseGroupOption {
	return func(g *SynapseGroup) { g.label = label }
}

// NewSynapseGroup returns an empty group bound to source and target and
// registered with their network. It does not connect anything.
func NewSynapseGroup(source, target *NeuronGroup, opts ...SynapseGroupOption) (*SynapseGroup, error) {
	if source == nil || target == nil {
		return nil, ErrNilNeuronGroup
	}
	if source.network != target.network {
		return nil, ErrForeignNeuronGroup
	}
	g := &SynapseGroup{
		source:                source,
		target:                target,
		recurrent:             source == target,
		ex:                    newSynapseSet(0),
		in:                    newSynapseSet(0),
		exRatio:               DefaultExcitatoryRatio,
		exRandomizer:          nn.UniformRandomizer{Floor: 0, Ceil: 1},
		inRandomizer:          nn.UniformRandomizer{Floor: 0, Ceil: 1},
		exProto:               NewTemplateSynapse(DefaultExcitatoryStrength),
		inProto:               NewTemplateSynapse(DefaultInhibitoryStrength),
		strategy:              NewSparse(DefaultSparseDensity, false, false),
		useGroupLevelSettings: true,
		exStatic:              true,
		inStatic:              true,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.exRatio < 0 || g.exRatio > 1 {
		return nil, fmt.Errorf("%w: %f", ErrInvalidRatio, g.exRatio)
	}
	if g.label == "" {
		g.label = fmt.Sprintf("%s to %s", source.label, target.label)
	}
	if source.network != nil {
		source.network.AddGroup(g)
	}
	return g, nil
}

// CreateSynapseGroup builds and connects a group. The ratio parameter is reset
// to the ratio actually produced. On failure the group has already deleted
// itself.
func CreateSynapseGroup(source, target *NeuronGroup, opts ...SynapseGroupOption) (*SynapseGroup, error) {
	g, err := NewSynapseGroup(source, target, opts...)
	if err != nil {
		return nil, err
	}
	if err := g.MakeConnections(); err != nil {
		return nil, err
	}
	g.exRatio = g.ExcitatoryRatioPrecise()
	return g, nil
}

func (g *SynapseGroup) SetLabel(label string) {
	g.label = label
	g.emit(LabelChanged, g)
}

func (g *SynapseGroup) SourceGroup() *NeuronGroup           { return g.source }
func (g *SynapseGroup) TargetGroup() *NeuronGroup           { return g.target }
func (g *SynapseGroup) IsRecurrent() bool                   { return g.recurrent }
func (g *SynapseGroup) Strategy() ConnectionStrategy        { return g.strategy }
func (g *SynapseGroup) ExcitatoryPrototype() *Synapse       { return g.exProto }
func (g *SynapseGroup) InhibitoryPrototype() *Synapse       { return g.inProto }
func (g *SynapseGroup) ExcitatoryRandomizer() nn.Randomizer { return g.exRandomizer }
func (g *SynapseGroup) InhibitoryRandomizer() nn.Randomizer { return g.inRandomizer }
func (g *SynapseGroup) UseGroupLevelSettings() bool         { return g.useGroupLevelSettings }
func (g *SynapseGroup) UseFullRepOnSave() bool              { return g.useFullRepOnSave }
func (g *SynapseGroup) SetUseFullRepOnSave(v bool)          { g.useFullRepOnSave = v }

func (g *SynapseGroup) SetStrategy(cs ConnectionStrategy) {
	if cs != nil {
		g.strategy = cs
	}
}

func (g *SynapseGroup) SetUseGroupLevelSettings(v bool) { g.useGroupLevelSettings = v }

func (g *SynapseGroup) SetRandomizers(ex, in nn.Randomizer) {
	g.exRandomizer = ex
	g.inRandomizer = in
}

func (g *SynapseGroup) Size() int { return g.ex.len() + g.in.len() }

func (g *SynapseGroup) NumExcitatory() int { return g.ex.len() }
func (g *SynapseGroup) NumInhibitory() int { return g.in.len() }

func (g *SynapseGroup) ExcitatorySynapses() []*Synapse { return g.ex.list() }
func (g *SynapseGroup) InhibitorySynapses() []*Synapse { return g.in.list() }

// Contains reports whether s belongs to either set.
func (g *SynapseGroup) Contains(s *Synapse) bool {
	return g.ex.contains(s) || g.in.contains(s)
}

// Synapses returns every member sorted by (source index, target index).
func (g *SynapseGroup) Synapses() []*Synapse {
	all := append(g.ex.list(), g.in.list()...)
	srcIdx := g.source.indexMap()
	tgtIdx := srcIdx
	if !g.recurrent {
		tgtIdx = g.target.indexMap()
	}
	sort.Slice(all, func(i, j int) bool {
		si, sj := srcIdx[all[i].source], srcIdx[all[j].source]
		if si != sj {
			return si < sj
		}
		return tgtIdx[all[i].target] < tgtIdx[all[j].target]
	})
	return all
}

// ExcitatoryRatioParameter is the target ratio used to route new synapses.
func (g *SynapseGroup) ExcitatoryRatioParameter() float64 { return g.exRatio }

// ExcitatoryRatioPrecise is the measured |excitatory| / size, 0 when empty.
func (g *SynapseGroup) ExcitatoryRatioPrecise() float64 {
	size := g.Size()
	if size == 0 {
		return 0
	}
	return float64(g.ex.len()) / float64(size)
}

// CalculateExcitatoryRatio is the fraction of members with strength > 0,
// independent of set membership.
func (g *SynapseGroup) CalculateExcitatoryRatio() float64 {
	size := g.Size()
	if size == 0 {
		return 0
	}
	pos := 0
	for _, s := range append(g.ex.list(), g.in.list()...) {
		if s.strength > 0 {
			pos++
		}
	}
	return float64(pos) / float64(size)
}

func (g *SynapseGroup) rng() *rand.Rand {
	if g.network == nil {
		return detachedRand
	}
	return g.network.ctx.rand
}

func (g *SynapseGroup) logger() *slog.Logger {
	if g.network == nil {
		return slog.Default()
	}
	return g.network.ctx.logger
}

func (g *SynapseGroup) ensureSets() {
	if g.ex == nil {
		g.ex = newSynapseSet(0)
	}
	if g.in == nil {
		g.in = newSynapseSet(0)
	}
}

// MakeConnections discards any existing synapses, registers the group on its
// neuron groups and lets the strategy populate it. A strategy that produces
// nothing is fatal to the group.
func (g *SynapseGroup) MakeConnections() error {
	g.clearSynapses()
	g.source.addOutgoing(g)
	g.target.addIncoming(g)
	g.strategy.Connect(g)
	if g.Size() == 0 {
		g.Delete()
		return fmt.Errorf("%w: %s (%s)", ErrNoSynapses, g.label, g.strategy.Name())
	}
	g.logger().Debug("synapse group connected",
		slog.String("group", g.label),
		slog.String("strategy", g.strategy.Name()),
		slog.Int("synapses", g.Size()),
		slog.Float64("excitatory_ratio", g.ExcitatoryRatioPrecise()),
	)
	g.emit(GroupChanged, g)
	return nil
}

// PreAllocateSynapses sizes both sets for n synapses split by the ratio.
func (g *SynapseGroup) PreAllocateSynapses(n int) error {
	if g.Size() > 0 {
		return fmt.Errorf("%w: %s has %d", ErrAlreadyPopulated, g.label, g.Size())
	}
	if n < 0 {
		n = 0
	}
	numEx := int(float64(n) * g.exRatio)
	g.ex = newSynapseSet(numEx)
	g.in = newSynapseSet(n - numEx)
	return nil
}

// AddNewSynapse routes s into a set and stamps it from that set's prototype.
// A polarized source decides the set outright. Otherwise a uniform draw is
// compared against the target ratio plus the gap between target and current
// ratio, which steers the measured ratio toward the target.
func (g *SynapseGroup) AddNewSynapse(s *Synapse) {
	g.ensureSets()
	var toEx bool
	switch s.source.polarity {
	case Excitatory:
		toEx = true
	case Inhibitory:
		toEx = false
	default:
		correction := 0.0
		if size := g.Size(); size > 0 {
			correction = g.exRatio - float64(g.ex.len())/float64(size)
		}
		toEx = g.rng().Float64() < g.exRatio+correction
	}
	g.adopt(s)
	dest := Inhibitory
	if toEx {
		dest = Excitatory
	}
	g.stamp(s, dest)
	g.insert(s, dest)
	synapsesAdded.Inc()
	g.emitSynapse(SynapseAdded, s)
}

// AddSynapseUnsafe routes s by the sign of its current strength and leaves its
// fields alone.
func (g *SynapseGroup) AddSynapseUnsafe(s *Synapse) {
	if s.strength >= 0 {
		g.AddExcitatorySynapseUnsafe(s)
	} else {
		g.AddInhibitorySynapseUnsafe(s)
	}
}

func (g *SynapseGroup) AddExcitatorySynapseUnsafe(s *Synapse) {
	g.ensureSets()
	g.adopt(s)
	g.insert(s, Excitatory)
	synapsesAdded.Inc()
	g.emitSynapse(SynapseAdded, s)
}

func (g *SynapseGroup) AddInhibitorySynapseUnsafe(s *Synapse) {
	g.ensureSets()
	g.adopt(s)
	g.insert(s, Inhibitory)
	synapsesAdded.Inc()
	g.emitSynapse(SynapseAdded, s)
}

func (g *SynapseGroup) adopt(s *Synapse) {
	s.group = g
	s.network = g.network
	if g.network != nil {
		s.id = g.network.ctx.NextID("Synapse")
	}
}

// insert adds s to the set for p. A learning synapse makes that set non-static.
func (g *SynapseGroup) insert(s *Synapse, p Polarity) {
	if p == Inhibitory {
		g.in.add(s)
	} else {
		g.ex.add(s)
	}
	g.markLearning(s, p)
}

// move takes s out of the set opposite p and inserts it into p's set.
func (g *SynapseGroup) move(s *Synapse, p Polarity) {
	if p == Inhibitory {
		g.ex.remove(s)
	} else {
		g.in.remove(s)
	}
	g.insert(s, p)
}

func (g *SynapseGroup) markLearning(s *Synapse, p Polarity) {
	if nn.IsStatic(s.learningRule) {
		return
	}
	if p == Inhibitory {
		g.inStatic = false
	} else {
		g.exStatic = false
	}
}

// stamp draws a strength for polarity p and copies the prototype fields.
func (g *SynapseGroup) stamp(s *Synapse, p Polarity) {
	proto, rnd := g.exProto, g.exRandomizer
	if p == Inhibitory {
		proto, rnd = g.inProto, g.inRandomizer
	}
	s.conformTo(proto)
	if rnd != nil {
		s.ForceSetStrength(p.Signed(rnd.Sample(g.rng())))
	} else {
		s.ForceSetStrength(p.Signed(proto.strength))
	}
}

// SetExcitatoryRatio flips synapses with unpolarized sources between the sets
// until the measured ratio matches, in one bounded pass. When polarized
// sources make the ratio unreachable the closest ratio is kept, the requested
// value stays the routing target and ErrRatioUnreachable is returned.
func (g *SynapseGroup) SetExcitatoryRatio(ratio float64) error {
	if ratio < 0 || ratio > 1 || math.IsNaN(ratio) {
		return fmt.Errorf("%w: %f", ErrInvalidRatio, ratio)
	}
	size := g.Size()
	if size == 0 {
		g.exRatio = ratio
		return nil
	}
	precise := g.ExcitatoryRatioPrecise()
	if ratio == precise {
		g.exRatio = ratio
		return nil
	}
	numSwitch := int(math.Round(math.Abs(ratio-precise) * float64(size)))

	from, dest := g.ex, Inhibitory
	if ratio > precise {
		from, dest = g.in, Excitatory
	}
	switched := 0
	for _, s := range from.list() {
		if switched >= numSwitch {
			break
		}
		if s.source.polarity != Unpolarized {
			continue
		}
		g.stamp(s, dest)
		g.move(s, dest)
		switched++
	}
	g.exRatio = ratio
	polarityFlips.Add(float64(switched))
	g.emit(GroupChanged, g)

	if switched < numSwitch {
		g.logger().Warn("excitatory ratio unreachable",
			slog.String("group", g.label),
			slog.Float64("requested", ratio),
			slog.Float64("achieved", g.ExcitatoryRatioPrecise()),
		)
		return fmt.Errorf("%w: requested=%f achieved=%f", ErrRatioUnreachable, ratio, g.ExcitatoryRatioPrecise())
	}
	return nil
}

// RevalidateSynapseSets moves every synapse whose strength sign disagrees
// with its set into the other set, then resets the ratio parameter to the
// measured ratio. Running it twice changes nothing the second time.
func (g *SynapseGroup) RevalidateSynapseSets() int {
	g.ensureSets()
	var toIn, toEx []*Synapse
	for _, s := range g.ex.items {
		if s.strength < 0 {
			toIn = append(toIn, s)
		}
	}
	for _, s := range g.in.items {
		if s.strength >= 0 {
			toEx = append(toEx, s)
		}
	}
	for _, s := range toIn {
		g.move(s, Inhibitory)
	}
	for _, s := range toEx {
		g.move(s, Excitatory)
	}
	g.exRatio = g.ExcitatoryRatioPrecise()
	switched := len(toIn) + len(toEx)
	if switched > 0 {
		polarityFlips.Add(float64(switched))
		g.emit(GroupChanged, g)
	}
	return switched
}

// RemoveSynapse reports false when s is not a member. Removing the last
// synapse deletes the group.
func (g *SynapseGroup) RemoveSynapse(s *Synapse) bool {
	if !g.ex.remove(s) && !g.in.remove(s) {
		return false
	}
	s.detach()
	s.group = nil
	synapsesRemoved.Inc()
	g.emitSynapse(SynapseRemoved, s)
	if g.Size() == 0 {
		if !g.marked {
			g.Delete()
		}
		return true
	}
	g.exRatio = g.ExcitatoryRatioPrecise()
	g.emit(GroupChanged, g)
	return true
}

// Prune removes every synapse whose strength is exactly zero.
func (g *SynapseGroup) Prune() int {
	removed := 0
	for _, s := range append(g.ex.list(), g.in.list()...) {
		if s.strength == 0 {
			if g.RemoveSynapse(s) {
				removed++
			}
		}
	}
	if removed > 0 {
		g.logger().Debug("pruned synapses", slog.String("group", g.label), slog.Int("removed", removed))
	}
	return removed
}

// SetSynapseStrength reports false for a synapse outside the group. A sign
// change moves the synapse to the other set.
func (g *SynapseGroup) SetSynapseStrength(s *Synapse, w float64) bool {
	inEx := g.ex.contains(s)
	if !inEx && !g.in.contains(s) {
		return false
	}
	s.SetStrength(w)
	switch {
	case inEx && s.strength < 0:
		g.move(s, Inhibitory)
	case !inEx && s.strength >= 0:
		g.move(s, Excitatory)
	}
	g.emitSynapse(SynapseChanged, s)
	return true
}

// clearSynapses detaches every member without deleting the group.
func (g *SynapseGroup) clearSynapses() {
	for _, s := range append(g.ex.list(), g.in.list()...) {
		s.detach()
		s.group = nil
	}
	g.ex = newSynapseSet(0)
	g.in = newSynapseSet(0)
}

// Delete detaches every synapse from its neurons, unregisters from both
// neuron groups and the network, and notifies the parent group.
func (g *SynapseGroup) Delete() {
	if g.marked {
		return
	}
	g.marked = true
	for _, s := range append(g.ex.list(), g.in.list()...) {
		s.detach()
		s.group = nil
	}
	g.ex = newSynapseSet(0)
	g.in = newSynapseSet(0)
	g.source.removeOutgoing(g)
	g.target.removeIncoming(g)
	finishDelete(g)
}

// Update applies learning rules. With group-level settings on, a polarity
// known to be static is skipped; otherwise every member is updated.
func (g *SynapseGroup) Update() {
	if g.network != nil && g.network.clampSynapses {
		return
	}
	if !g.useGroupLevelSettings || !g.exStatic {
		for _, s := range g.ex.items {
			s.Update()
		}
	}
	if !g.useGroupLevelSettings || !g.inStatic {
		for _, s := range g.in.items {
			s.Update()
		}
	}
}

// learningRuleChanged is called by a member after its rule was replaced.
func (g *SynapseGroup) learningRuleChanged(s *Synapse) {
	switch {
	case g.in.contains(s):
		g.markLearning(s, Inhibitory)
	case g.ex.contains(s):
		g.markLearning(s, Excitatory)
	}
}

// Randomize redraws every strength from the polarity's randomizer.
func (g *SynapseGroup) Randomize() {
	g.RandomizeExcitatory()
	g.RandomizeInhibitory()
}

func (g *SynapseGroup) RandomizeExcitatory() {
	if g.exRandomizer == nil {
		return
	}
	for _, s := range g.ex.items {
		s.Randomize(g.exRandomizer, Excitatory, g.rng())
	}
}

func (g *SynapseGroup) RandomizeInhibitory() {
	if g.inRandomizer == nil {
		return
	}
	for _, s := range g.in.items {
		s.Randomize(g.inRandomizer, Inhibitory, g.rng())
	}
}

// HardClear zeroes responses and delay queues.
func (g *SynapseGroup) HardClear() {
	for _, s := range g.ex.items {
		s.HardClear()
	}
	for _, s := range g.in.items {
		s.HardClear()
	}
}

// WeightVector lists strengths in (source, target) order.
func (g *SynapseGroup) WeightVector() []float64 {
	syns := g.Synapses()
	out := make([]float64, len(syns))
	for i, s := range syns {
		out[i] = s.strength
	}
	return out
}

func (g *SynapseGroup) ExcitatoryStrengths() []float64 {
	out := make([]float64, 0, g.ex.len())
	for _, s := range g.ex.items {
		out = append(out, s.strength)
	}
	return out
}

func (g *SynapseGroup) InhibitoryStrengths() []float64 {
	out := make([]float64, 0, g.in.len())
	for _, s := range g.in.items {
		out = append(out, s.strength)
	}
	return out
}

// WeightMatrix is the dense source x target matrix; absent synapses are 0.
func (g *SynapseGroup) WeightMatrix() [][]float64 {
	rows := make([][]float64, g.source.Size())
	for i := range rows {
		rows[i] = make([]float64, g.target.Size())
	}
	srcIdx := g.source.indexMap()
	tgtIdx := g.target.indexMap()
	for _, s := range append(g.ex.list(), g.in.list()...) {
		rows[srcIdx[s.source]][tgtIdx[s.target]] = s.strength
	}
	return rows
}

func (g *SynapseGroup) emitSynapse(kind EventKind, s *Synapse) {
	if g.network != nil {
		g.network.ctx.emit(Event{Kind: kind, ID: s.id, Subject: s})
	}
}
