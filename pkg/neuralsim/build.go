// Package neuralsim is the public entry point: it turns a blueprint into a
// running network, drives it for a number of ticks and keeps the results.
package neuralsim

import (
	"fmt"
	"log/slog"

	"neuralsim/internal/config"
	simio "neuralsim/internal/io"
	"neuralsim/internal/network"
	"neuralsim/internal/nn"
)

// Built is a network assembled from a blueprint, with its groups and I/O
// bindings addressable by their blueprint names.
type Built struct {
	Network       *network.Network
	Groups        map[string]*network.NeuronGroup
	SynapseGroups map[string]*network.SynapseGroup
	Sensors       map[string]simio.Sensor
	Actuators     map[string]simio.Actuator
	Coupling      *simio.Coupling
}

// Build validates sim and assembles it. A zero seed seeds from the clock.
func Build(sim config.Simulation, logger *slog.Logger) (*Built, error) {
	if err := sim.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctxOpts := []network.ContextOption{network.WithLogger(logger)}
	if sim.Network.Seed != 0 {
		ctxOpts = append(ctxOpts, network.WithSeed(sim.Network.Seed))
	}
	method, err := network.ParseUpdateMethod(sim.Network.UpdateMethod)
	if err != nil {
		return nil, err
	}
	net := network.NewNetwork(network.NewSimulationContext(ctxOpts...),
		network.WithTimeStep(sim.Network.TimeStep),
		network.WithUpdateMethod(method),
		network.WithParallelBuffer(sim.Network.ParallelBuffer),
	)
	net.SetClampNeurons(sim.Network.ClampNeurons)
	net.SetClampSynapses(sim.Network.ClampSynapses)

	b := &Built{
		Network:       net,
		Groups:        make(map[string]*network.NeuronGroup, len(sim.Groups)),
		SynapseGroups: make(map[string]*network.SynapseGroup, len(sim.SynapseGroups)),
		Sensors:       make(map[string]simio.Sensor),
		Actuators:     make(map[string]simio.Actuator),
		Coupling:      simio.NewCoupling(),
	}
	for _, gc := range sim.Groups {
		g, err := buildGroup(net, gc)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", gc.Name, err)
		}
		b.Groups[gc.Name] = g
	}
	for i, sc := range sim.SynapseGroups {
		sg, err := buildSynapseGroup(b.Groups[sc.Source], b.Groups[sc.Target], sc)
		if err != nil {
			return nil, fmt.Errorf("synapses %s: %w", sc.Name, err)
		}
		name := sc.Name
		if name == "" {
			name = fmt.Sprintf("%s#%d", sg.Label(), i)
		}
		b.SynapseGroups[name] = sg
	}
	for _, ic := range sim.IO {
		if err := b.bind(ic); err != nil {
			return nil, fmt.Errorf("io %s: %w", ic.Name, err)
		}
	}

	logger.Info("network built",
		slog.String("network", net.ID()),
		slog.Int("neurons", len(net.FlatNeuronList())),
		slog.Int("synapses", len(net.FlatSynapseList())),
		slog.Int("sensors", b.Coupling.Sensors()),
		slog.Int("actuators", b.Coupling.Actuators()),
	)
	return b, nil
}

func buildGroup(net *network.Network, gc config.GroupConfig) (*network.NeuronGroup, error) {
	rule, err := nn.NewNeuronRule(gc.Rule)
	if err != nil {
		return nil, err
	}
	polarity, err := network.ParsePolarity(gc.Polarity)
	if err != nil {
		return nil, err
	}

	g := network.NewNeuronGroupOfSize(net, gc.Size, rule)
	g.SetLabel(gc.Name)
	g.SetPolarity(polarity)
	if gc.HasBounds() {
		g.SetLowerBound(gc.LowerBound)
		g.SetUpperBound(gc.UpperBound)
	}
	if gc.Layout == config.LayoutGrid {
		g.GridLayout(gc.X, gc.Y, gc.Spacing)
	} else {
		g.LineLayout(gc.X, gc.Y, gc.Spacing)
	}
	if gc.Priority != 0 {
		for _, n := range g.Neurons() {
			n.SetPriority(gc.Priority)
		}
	}
	g.SetInputFlags(gc.Input, gc.Output)
	g.SetDeleteWhenEmpty(gc.DeleteWhenEmpty)
	return g, nil
}

func buildSynapseGroup(src, tgt *network.NeuronGroup, sc config.SynapseGroupConfig) (*network.SynapseGroup, error) {
	strategy, err := network.NewStrategy(sc.Strategy, sc.StrategyParams())
	if err != nil {
		return nil, err
	}
	ex, err := sc.ExcitatoryRandomizer()
	if err != nil {
		return nil, err
	}
	in, err := sc.InhibitoryRandomizer()
	if err != nil {
		return nil, err
	}
	learning, err := nn.NewLearningRule(sc.LearningRule, sc.LearningRate)
	if err != nil {
		return nil, err
	}

	opts := []network.SynapseGroupOption{
		network.WithStrategy(strategy),
		network.WithExcitatoryRatio(sc.ExcitatoryRatio),
		network.WithRandomizers(ex, in),
	}
	if sc.Name != "" {
		opts = append(opts, network.WithLabel(sc.Name))
	}
	sg, err := network.CreateSynapseGroup(src, tgt, opts...)
	if err != nil {
		return nil, err
	}
	sg.SetUseGroupLevelSettings(sc.GroupLevelSettings)
	sg.SetUseFullRepOnSave(sc.FullRepOnSave)
	sg.SetLearningRule(learning, network.SelectBoth)
	if sc.Delay > 0 {
		sg.SetDelay(sc.Delay, network.SelectBoth)
	}
	return sg, nil
}

func (b *Built) bind(ic config.IOConfig) error {
	g := b.Groups[ic.Group]
	switch ic.Kind {
	case config.IOSensor:
		s, err := simio.ResolveSensor(ic.Component, g.Size())
		if err != nil {
			return err
		}
		switch s := s.(type) {
		case *simio.ConstantSensor:
			s.Set(ic.Value)
		case *simio.SineSensor:
			s.Amplitude, s.Period = ic.Amplitude, ic.Period
		}
		b.Sensors[ic.Name] = s
		b.Coupling.BindSensor(s, g)
	case config.IOActuator:
		a, err := simio.ResolveActuator(ic.Component, g.Size())
		if err != nil {
			return err
		}
		b.Actuators[ic.Name] = a
		b.Coupling.BindActuator(a, g)
	default:
		return fmt.Errorf("unknown kind %q", ic.Kind)
	}
	return nil
}
