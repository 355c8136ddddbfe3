package network

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"neuralsim/internal/model"
	"neuralsim/internal/nn"
)

// Snapshot captures the network as a versioned record. Every synapse group
// is encoded through PreSaveInit and reinitialized afterwards, so the network
// keeps running unchanged.
func (n *Network) Snapshot(p Precision) (model.NetworkRecord, error) {
	rec := model.NetworkRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: model.CurrentSchemaVersion,
			CodecVersion:  model.CurrentCodecVersion,
		},
		ID:            n.id,
		Time:          n.time,
		TimeStep:      n.timeStep,
		Iterations:    int64(n.iterCount),
		UpdateMethod:  n.method.String(),
		ClampNeurons:  n.clampNeurons,
		ClampSynapses: n.clampSynapses,
	}
	for _, neuron := range n.neurons {
		nr, err := neuronRecord(neuron)
		if err != nil {
			return model.NetworkRecord{}, err
		}
		rec.Neurons = append(rec.Neurons, nr)
	}
	for _, s := range n.synapses {
		sr, err := synapseRecord(s)
		if err != nil {
			return model.NetworkRecord{}, err
		}
		rec.Synapses = append(rec.Synapses, sr)
	}
	for _, g := range n.all {
		switch g := g.(type) {
		case *NeuronGroup:
			gr := model.NeuronGroupRecord{ID: g.id, Label: g.label, DeleteWhenEmpty: g.deleteWhenEmpty}
			for _, neuron := range g.neurons {
				nr, err := neuronRecord(neuron)
				if err != nil {
					return model.NetworkRecord{}, err
				}
				gr.Neurons = append(gr.Neurons, nr)
			}
			rec.NeuronGroups = append(rec.NeuronGroups, gr)
		case *SynapseGroup:
			gr, err := synapseGroupRecord(g, p)
			if err != nil {
				return model.NetworkRecord{}, err
			}
			rec.SynapseGroups = append(rec.SynapseGroups, gr)
		case *Subnetwork:
			sr := model.SubnetworkRecord{ID: g.id, Label: g.label, Priority: g.priority}
			for _, c := range g.children {
				switch c.(type) {
				case *NeuronGroup:
					sr.NeuronGroups = append(sr.NeuronGroups, c.ID())
				case *SynapseGroup:
					sr.SynapseGroups = append(sr.SynapseGroups, c.ID())
				}
			}
			rec.Subnetworks = append(rec.Subnetworks, sr)
		}
	}
	return rec, nil
}

func synapseGroupRecord(g *SynapseGroup, p Precision) (model.SynapseGroupRecord, error) {
	exProto, err := synapseRecord(g.exProto)
	if err != nil {
		return model.SynapseGroupRecord{}, err
	}
	inProto, err := synapseRecord(g.inProto)
	if err != nil {
		return model.SynapseGroupRecord{}, err
	}
	g.PreSaveInit(p)
	sparse, full := g.SavedCodes()
	g.PostSaveReInit()
	return model.SynapseGroupRecord{
		ID:                 g.id,
		Label:              g.label,
		Source:             g.source.id,
		Target:             g.target.id,
		ExcitatoryRatio:    g.exRatio,
		GroupLevelSettings: g.useGroupLevelSettings,
		FullRepOnSave:      g.useFullRepOnSave,
		ExPrototype:        exProto,
		InPrototype:        inProto,
		SparseCode:         sparse,
		FullCode:           full,
	}, nil
}

// Restore rebuilds a network from rec inside ctx. Element ids are preserved
// and reserved in the context.
func Restore(ctx *SimulationContext, rec model.NetworkRecord) (*Network, error) {
	if rec.SchemaVersion != model.CurrentSchemaVersion || rec.CodecVersion != model.CurrentCodecVersion {
		return nil, fmt.Errorf("unsupported network record version: schema=%d codec=%d", rec.SchemaVersion, rec.CodecVersion)
	}
	method, err := ParseUpdateMethod(rec.UpdateMethod)
	if err != nil {
		return nil, err
	}
	if method == UpdateScript {
		// Scripts are not persisted; the caller reinstalls one.
		method = UpdateDefault
	}
	net := NewNetwork(ctx, WithTimeStep(rec.TimeStep), WithUpdateMethod(method))
	if rec.ID != "" {
		net.id = rec.ID
	}
	net.SetTime(rec.Time, int(rec.Iterations))
	net.clampNeurons = rec.ClampNeurons
	net.clampSynapses = rec.ClampSynapses

	neurons := make(map[string]*Neuron)
	for _, nr := range rec.Neurons {
		neuron, err := neuronFromRecord(nr)
		if err != nil {
			return nil, err
		}
		net.AddNeuron(neuron)
		net.renameNeuron(neuron, nr.ID)
		neurons[nr.ID] = neuron
	}
	groups := make(map[string]Group)
	for _, gr := range rec.NeuronGroups {
		members := make([]*Neuron, 0, len(gr.Neurons))
		for _, nr := range gr.Neurons {
			neuron, err := neuronFromRecord(nr)
			if err != nil {
				return nil, err
			}
			members = append(members, neuron)
		}
		g := NewNeuronGroup(net, members)
		g.label = gr.Label
		g.deleteWhenEmpty = gr.DeleteWhenEmpty
		net.renameGroup(g, gr.ID)
		for i, nr := range gr.Neurons {
			net.renameNeuron(members[i], nr.ID)
			neurons[nr.ID] = members[i]
		}
		groups[gr.ID] = g
	}
	for _, sr := range rec.Synapses {
		src, tgt := neurons[sr.Source], neurons[sr.Target]
		if src == nil || tgt == nil {
			return nil, fmt.Errorf("%w: synapse %s endpoints %s -> %s", ErrNotMember, sr.ID, sr.Source, sr.Target)
		}
		s := NewSynapse(src, tgt)
		if err := applySynapseRecord(s, sr); err != nil {
			return nil, err
		}
		if err := net.AddSynapse(s); err != nil {
			return nil, err
		}
		s.id = sr.ID
		ctx.reserveID(sr.ID)
	}
	for _, gr := range rec.SynapseGroups {
		src, ok1 := groups[gr.Source].(*NeuronGroup)
		tgt, ok2 := groups[gr.Target].(*NeuronGroup)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: synapse group %s endpoints %s -> %s", ErrGroupNotFound, gr.ID, gr.Source, gr.Target)
		}
		g, err := NewSynapseGroup(src, tgt, WithLabel(gr.Label))
		if err != nil {
			return nil, err
		}
		net.renameGroup(g, gr.ID)
		if err := applySynapseRecord(g.exProto, gr.ExPrototype); err != nil {
			return nil, err
		}
		if err := applySynapseRecord(g.inProto, gr.InPrototype); err != nil {
			return nil, err
		}
		g.exStatic = nn.IsStatic(g.exProto.learningRule)
		g.inStatic = nn.IsStatic(g.inProto.learningRule)
		g.useGroupLevelSettings = gr.GroupLevelSettings
		g.useFullRepOnSave = gr.FullRepOnSave
		src.addOutgoing(g)
		tgt.addIncoming(g)
		if err := g.PostUnmarshallingInit(gr.SparseCode, gr.FullCode); err != nil {
			return nil, fmt.Errorf("synapse group %s: %w", gr.ID, err)
		}
		g.exRatio = gr.ExcitatoryRatio
		groups[gr.ID] = g
	}
	for _, sr := range rec.Subnetworks {
		sn := NewSubnetwork(net, sr.Label)
		net.renameGroup(sn, sr.ID)
		sn.priority = sr.Priority
		for _, id := range append(append([]string(nil), sr.NeuronGroups...), sr.SynapseGroups...) {
			child, ok := groups[id]
			if !ok {
				return nil, fmt.Errorf("%w: subnetwork %s child %s", ErrGroupNotFound, sr.ID, id)
			}
			sn.AddChild(child)
		}
	}
	net.priorityDirty = true
	net.timeTypeDirty = true
	ctx.logger.Info("network restored",
		slog.String("network", net.id),
		slog.Int("neurons", len(net.FlatNeuronList())),
		slog.Int("synapse_groups", len(rec.SynapseGroups)),
	)
	return net, nil
}

func (n *Network) renameNeuron(neuron *Neuron, id string) {
	if id == "" {
		return
	}
	neuron.id = id
	n.ctx.reserveID(id)
}

func (n *Network) renameGroup(g Group, id string) {
	if id == "" {
		return
	}
	b := g.base()
	delete(n.byID, b.id)
	b.id = id
	n.byID[id] = g
	n.ctx.reserveID(id)
}

func neuronRecord(n *Neuron) (model.NeuronRecord, error) {
	rule, err := ruleRecord(n.rule.Name(), n.rule)
	if err != nil {
		return model.NeuronRecord{}, err
	}
	return model.NeuronRecord{
		ID:         n.id,
		Label:      n.label,
		Activation: n.activation,
		Aux:        n.aux,
		LowerBound: n.lowerBound,
		UpperBound: n.upperBound,
		Increment:  n.increment,
		Polarity:   n.polarity.String(),
		Clamped:    n.clamped,
		Priority:   n.priority,
		X:          n.x,
		Y:          n.y,
		Input:      n.isInput,
		Output:     n.isOutput,
		UpdateRule: rule,
	}, nil
}

func neuronFromRecord(rec model.NeuronRecord) (*Neuron, error) {
	rule, err := nn.NewNeuronRule(rec.UpdateRule.Name)
	if err != nil {
		return nil, err
	}
	if err := decodeParams(rec.UpdateRule.Params, rule); err != nil {
		return nil, fmt.Errorf("neuron %s rule params: %w", rec.ID, err)
	}
	polarity, err := ParsePolarity(rec.Polarity)
	if err != nil {
		return nil, err
	}
	n := NewNeuron(rule)
	n.label = rec.Label
	n.activation = rec.Activation
	n.aux = rec.Aux
	n.lowerBound = rec.LowerBound
	n.upperBound = rec.UpperBound
	n.increment = rec.Increment
	n.polarity = polarity
	n.clamped = rec.Clamped
	n.priority = rec.Priority
	n.x, n.y = rec.X, rec.Y
	n.isInput, n.isOutput = rec.Input, rec.Output
	return n, nil
}

func synapseRecord(s *Synapse) (model.SynapseRecord, error) {
	learning, err := ruleRecord(s.learningRule.Name(), s.learningRule)
	if err != nil {
		return model.SynapseRecord{}, err
	}
	rec := model.SynapseRecord{
		ID:           s.id,
		Strength:     s.strength,
		LowerBound:   s.lowerBound,
		UpperBound:   s.upperBound,
		Increment:    s.increment,
		Delay:        s.delay,
		Enabled:      s.enabled,
		Frozen:       s.frozen,
		LearningRule: learning,
	}
	if s.source != nil {
		rec.Source = s.source.id
	}
	if s.target != nil {
		rec.Target = s.target.id
	}
	if s.spikeResponder != nil {
		sr, err := ruleRecord(s.spikeResponder.Name(), s.spikeResponder)
		if err != nil {
			return model.SynapseRecord{}, err
		}
		rec.SpikeResponder = &sr
	}
	return rec, nil
}

func applySynapseRecord(s *Synapse, rec model.SynapseRecord) error {
	learning, err := nn.NewLearningRule(rec.LearningRule.Name, 0)
	if err != nil {
		return err
	}
	if err := decodeParams(rec.LearningRule.Params, learning); err != nil {
		return fmt.Errorf("synapse %s learning params: %w", rec.ID, err)
	}
	s.learningRule = learning
	s.spikeResponder = nil
	if rec.SpikeResponder != nil {
		r, err := nn.NewSpikeResponder(rec.SpikeResponder.Name)
		if err != nil {
			return err
		}
		if r != nil {
			if err := decodeParams(rec.SpikeResponder.Params, r); err != nil {
				return fmt.Errorf("synapse %s responder params: %w", rec.ID, err)
			}
		}
		s.spikeResponder = r
	}
	s.lowerBound = rec.LowerBound
	s.upperBound = rec.UpperBound
	s.increment = rec.Increment
	s.SetDelay(rec.Delay)
	s.enabled = rec.Enabled
	s.frozen = rec.Frozen
	s.strength = rec.Strength
	return nil
}

func ruleRecord(name string, rule any) (model.RuleRecord, error) {
	raw, err := json.Marshal(rule)
	if err != nil {
		return model.RuleRecord{}, fmt.Errorf("encode %s params: %w", name, err)
	}
	rec := model.RuleRecord{Name: name}
	if string(raw) != "{}" && string(raw) != "null" {
		rec.Params = raw
	}
	return rec, nil
}

func decodeParams(raw json.RawMessage, rule any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, rule)
}
