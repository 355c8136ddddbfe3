package network

import (
	"neuralsim/internal/nn"
)

// Bulk setters apply to the prototype and every live synapse of the selected
// polarities. Getters honor group-level settings: when they are on, or the
// set is empty, the prototype answers; otherwise the members must agree.

func (g *SynapseGroup) forEach(sel Selector, fn func(s *Synapse, p Polarity)) {
	if sel.excitatory() {
		fn(g.exProto, Excitatory)
		for _, s := range g.ex.items {
			fn(s, Excitatory)
		}
	}
	if sel.inhibitory() {
		fn(g.inProto, Inhibitory)
		for _, s := range g.in.items {
			fn(s, Inhibitory)
		}
	}
}

// groupProperty reads one field across a polarity. ok is false when members
// disagree.
func groupProperty[T comparable](g *SynapseGroup, p Polarity, get func(*Synapse) T) (T, bool) {
	proto, set := g.exProto, g.ex
	if p == Inhibitory {
		proto, set = g.inProto, g.in
	}
	if g.useGroupLevelSettings || set.len() == 0 {
		return get(proto), true
	}
	first := get(set.items[0])
	for _, s := range set.items[1:] {
		if get(s) != first {
			var zero T
			return zero, false
		}
	}
	return first, true
}

// SetStrength gives every selected synapse the magnitude of w, signed by its
// set.
func (g *SynapseGroup) SetStrength(w float64, sel Selector) {
	g.forEach(sel, func(s *Synapse, p Polarity) {
		s.ForceSetStrength(p.Signed(w))
	})
	g.emit(GroupChanged, g)
}

func (g *SynapseGroup) SetDelay(d int, sel Selector) {
	g.forEach(sel, func(s *Synapse, _ Polarity) { s.SetDelay(d) })
}

func (g *SynapseGroup) SetEnabled(enabled bool, sel Selector) {
	g.forEach(sel, func(s *Synapse, _ Polarity) { s.enabled = enabled })
}

func (g *SynapseGroup) SetFrozen(frozen bool, sel Selector) {
	g.forEach(sel, func(s *Synapse, _ Polarity) { s.frozen = frozen })
}

func (g *SynapseGroup) SetIncrement(inc float64, sel Selector) {
	g.forEach(sel, func(s *Synapse, _ Polarity) { s.increment = inc })
}

func (g *SynapseGroup) SetUpperBound(v float64, sel Selector) {
	g.forEach(sel, func(s *Synapse, _ Polarity) { s.upperBound = v })
}

func (g *SynapseGroup) SetLowerBound(v float64, sel Selector) {
	g.forEach(sel, func(s *Synapse, _ Polarity) { s.lowerBound = v })
}

// SetLearningRule installs a copy of rule on each selected synapse and
// recomputes the static flag of each selected polarity.
func (g *SynapseGroup) SetLearningRule(rule nn.LearningRule, sel Selector) {
	if rule == nil {
		rule = nn.StaticRule{}
	}
	g.forEach(sel, func(s *Synapse, _ Polarity) { s.learningRule = rule.Copy() })
	static := nn.IsStatic(rule)
	if sel.excitatory() {
		g.exStatic = static
	}
	if sel.inhibitory() {
		g.inStatic = static
	}
}

func (g *SynapseGroup) SetSpikeResponder(r nn.SpikeResponder, sel Selector) {
	g.forEach(sel, func(s *Synapse, _ Polarity) {
		if r == nil {
			s.spikeResponder = nil
			return
		}
		s.spikeResponder = r.Copy()
	})
}

// SetAndConformToTemplate replaces a polarity's prototype and restamps the
// members of that set from it, keeping their strengths.
func (g *SynapseGroup) SetAndConformToTemplate(proto *Synapse, p Polarity) {
	c := proto.copyTemplate()
	c.strength = proto.strength
	set := g.ex
	if p == Inhibitory {
		g.inProto = c
		set = g.in
	} else {
		g.exProto = c
	}
	for _, s := range set.items {
		s.conformTo(c)
	}
	static := nn.IsStatic(c.learningRule)
	if p == Inhibitory {
		g.inStatic = static
	} else {
		g.exStatic = static
	}
}

func (g *SynapseGroup) Delay(p Polarity) (int, bool) {
	return groupProperty(g, p, func(s *Synapse) int { return s.delay })
}

func (g *SynapseGroup) Enabled(p Polarity) (bool, bool) {
	return groupProperty(g, p, func(s *Synapse) bool { return s.enabled })
}

func (g *SynapseGroup) Frozen(p Polarity) (bool, bool) {
	return groupProperty(g, p, func(s *Synapse) bool { return s.frozen })
}

func (g *SynapseGroup) Increment(p Polarity) (float64, bool) {
	return groupProperty(g, p, func(s *Synapse) float64 { return s.increment })
}

func (g *SynapseGroup) UpperBound(p Polarity) (float64, bool) {
	return groupProperty(g, p, func(s *Synapse) float64 { return s.upperBound })
}

func (g *SynapseGroup) LowerBound(p Polarity) (float64, bool) {
	return groupProperty(g, p, func(s *Synapse) float64 { return s.lowerBound })
}

// LearningRuleName compares rules by name.
func (g *SynapseGroup) LearningRuleName(p Polarity) (string, bool) {
	return groupProperty(g, p, func(s *Synapse) string { return s.learningRule.Name() })
}

func (g *SynapseGroup) SpikeResponderName(p Polarity) (string, bool) {
	return groupProperty(g, p, func(s *Synapse) string {
		if s.spikeResponder == nil {
			return ""
		}
		return s.spikeResponder.Name()
	})
}

// Static reports whether updates of polarity p are skipped.
func (g *SynapseGroup) Static(p Polarity) bool {
	if p == Inhibitory {
		return g.inStatic
	}
	return g.exStatic
}
