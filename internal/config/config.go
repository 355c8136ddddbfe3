// Package config describes a simulation blueprint: the network clock, its
// neuron groups, the synapse groups wiring them and how a run is driven.
package config

import (
	"errors"
	"fmt"

	simio "neuralsim/internal/io"
	"neuralsim/internal/network"
	"neuralsim/internal/nn"
)

const (
	LayoutLine = "line"
	LayoutGrid = "grid"

	IOSensor   = "sensor"
	IOActuator = "actuator"
)

type Simulation struct {
	Network       NetworkConfig        `yaml:"network"`
	Groups        []GroupConfig        `yaml:"groups"`
	SynapseGroups []SynapseGroupConfig `yaml:"synapse_groups"`
	IO            []IOConfig           `yaml:"io,omitempty"`
	Run           RunConfig            `yaml:"run"`
}

type NetworkConfig struct {
	TimeStep       float64 `ini:"time_step" yaml:"time_step"`
	UpdateMethod   string  `ini:"update_method" yaml:"update_method"`
	ClampNeurons   bool    `ini:"clamp_neurons" yaml:"clamp_neurons"`
	ClampSynapses  bool    `ini:"clamp_synapses" yaml:"clamp_synapses"`
	ParallelBuffer int     `ini:"parallel_buffer" yaml:"parallel_buffer"`
	// Seed 0 seeds from the clock.
	Seed int64 `ini:"seed" yaml:"seed"`
}

type GroupConfig struct {
	Name            string  `ini:"-" yaml:"name"`
	Size            int     `ini:"size" yaml:"size"`
	Rule            string  `ini:"rule" yaml:"rule"`
	Polarity        string  `ini:"polarity" yaml:"polarity"`
	LowerBound      float64 `ini:"lower_bound" yaml:"lower_bound"`
	UpperBound      float64 `ini:"upper_bound" yaml:"upper_bound"`
	X               float64 `ini:"x" yaml:"x"`
	Y               float64 `ini:"y" yaml:"y"`
	Spacing         float64 `ini:"spacing" yaml:"spacing"`
	Layout          string  `ini:"layout" yaml:"layout"`
	Priority        int     `ini:"priority" yaml:"priority"`
	Input           bool    `ini:"input" yaml:"input"`
	Output          bool    `ini:"output" yaml:"output"`
	DeleteWhenEmpty bool    `ini:"delete_when_empty" yaml:"delete_when_empty"`
}

// HasBounds reports whether explicit activation bounds replace the rule's.
func (g GroupConfig) HasBounds() bool { return g.LowerBound < g.UpperBound }

type SynapseGroupConfig struct {
	Name     string  `ini:"-" yaml:"name"`
	Source   string  `ini:"source" yaml:"source"`
	Target   string  `ini:"target" yaml:"target"`
	Strategy string  `ini:"strategy" yaml:"strategy"`
	Density  float64 `ini:"density" yaml:"density"`
	// Equalize gives every source the same number of efferents.
	Equalize        bool    `ini:"equalize_efferents" yaml:"equalize_efferents"`
	AllowSelf       bool    `ini:"allow_self" yaml:"allow_self"`
	Radius          float64 `ini:"radius" yaml:"radius"`
	MaxPerSource    int     `ini:"max_per_source" yaml:"max_per_source"`
	ExcitatoryRatio float64 `ini:"excitatory_ratio" yaml:"excitatory_ratio"`

	ExDist string  `ini:"ex_dist" yaml:"ex_dist"`
	ExLow  float64 `ini:"ex_low" yaml:"ex_low"`
	ExHigh float64 `ini:"ex_high" yaml:"ex_high"`
	ExMean float64 `ini:"ex_mean" yaml:"ex_mean"`
	ExStd  float64 `ini:"ex_std" yaml:"ex_std"`
	InDist string  `ini:"in_dist" yaml:"in_dist"`
	InLow  float64 `ini:"in_low" yaml:"in_low"`
	InHigh float64 `ini:"in_high" yaml:"in_high"`
	InMean float64 `ini:"in_mean" yaml:"in_mean"`
	InStd  float64 `ini:"in_std" yaml:"in_std"`

	LearningRule       string  `ini:"learning_rule" yaml:"learning_rule"`
	LearningRate       float64 `ini:"learning_rate" yaml:"learning_rate"`
	Delay              int     `ini:"delay" yaml:"delay"`
	GroupLevelSettings bool    `ini:"group_level_settings" yaml:"group_level_settings"`
	FullRepOnSave      bool    `ini:"full_rep_on_save" yaml:"full_rep_on_save"`
}

// IOConfig binds a registered sensor or actuator to a neuron group.
// Value seeds constant sensors; Amplitude and Period shape sine sensors.
type IOConfig struct {
	Name      string  `ini:"-" yaml:"name"`
	Kind      string  `ini:"kind" yaml:"kind"`
	Component string  `ini:"component" yaml:"component"`
	Group     string  `ini:"group" yaml:"group"`
	Value     float64 `ini:"value" yaml:"value"`
	Amplitude float64 `ini:"amplitude" yaml:"amplitude"`
	Period    float64 `ini:"period" yaml:"period"`
}

type RunConfig struct {
	Ticks        int    `ini:"ticks" yaml:"ticks"`
	Store        string `ini:"store" yaml:"store"`
	DBPath       string `ini:"db_path" yaml:"db_path"`
	ArtifactsDir string `ini:"artifacts_dir" yaml:"artifacts_dir"`
	RecordGroup  string `ini:"record_group" yaml:"record_group"`
	Precision    string `ini:"precision" yaml:"precision"`
	ExportDir    string `ini:"export_dir" yaml:"export_dir"`
}

func Default() Simulation {
	return Simulation{
		Network: DefaultNetwork(),
		Run:     DefaultRun(),
	}
}

func DefaultNetwork() NetworkConfig {
	return NetworkConfig{
		TimeStep:     network.DefaultTimeStep,
		UpdateMethod: network.UpdateDefault.String(),
	}
}

func DefaultRun() RunConfig {
	return RunConfig{
		Ticks:     100,
		Store:     "memory",
		Precision: network.Float64.String(),
	}
}

func DefaultGroup() GroupConfig {
	return GroupConfig{
		Size:            1,
		Rule:            nn.RuleLinear,
		Polarity:        network.Unpolarized.String(),
		Spacing:         50,
		Layout:          LayoutLine,
		DeleteWhenEmpty: true,
	}
}

func DefaultSynapseGroup() SynapseGroupConfig {
	return SynapseGroupConfig{
		Strategy:           network.StrategySparse,
		Density:            network.DefaultSparseDensity,
		Radius:             network.DefaultRadius,
		MaxPerSource:       network.DefaultMaxPerSource,
		ExcitatoryRatio:    network.DefaultExcitatoryRatio,
		ExDist:             nn.DistUniform,
		ExLow:              0,
		ExHigh:             1,
		InDist:             nn.DistUniform,
		InLow:              0,
		InHigh:             1,
		LearningRule:       nn.LearningStatic,
		GroupLevelSettings: true,
	}
}

func DefaultIO() IOConfig {
	return IOConfig{
		Kind:      IOSensor,
		Component: simio.ConstantSensorName,
		Amplitude: 1,
		Period:    20,
	}
}

// ExcitatoryRandomizer builds the weight distribution for excitatory synapses.
func (c SynapseGroupConfig) ExcitatoryRandomizer() (nn.Randomizer, error) {
	return randomizer(c.ExDist, c.ExLow, c.ExHigh, c.ExMean, c.ExStd)
}

func (c SynapseGroupConfig) InhibitoryRandomizer() (nn.Randomizer, error) {
	return randomizer(c.InDist, c.InLow, c.InHigh, c.InMean, c.InStd)
}

func randomizer(dist string, low, high, mean, std float64) (nn.Randomizer, error) {
	if dist == "" || dist == nn.DistUniform {
		return nn.NewRandomizer(nn.DistUniform, low, high)
	}
	return nn.NewRandomizer(dist, mean, std)
}

// StrategyParams maps the connection fields onto network.NewStrategy input.
func (c SynapseGroupConfig) StrategyParams() network.StrategyParams {
	return network.StrategyParams{
		Density:      c.Density,
		Equalize:     c.Equalize,
		AllowSelf:    c.AllowSelf,
		Radius:       c.Radius,
		MaxPerSource: c.MaxPerSource,
	}
}

// Group returns the neuron group named name.
func (s Simulation) Group(name string) (GroupConfig, bool) {
	for _, g := range s.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return GroupConfig{}, false
}

// Validate reports every invalid field at once.
func (s Simulation) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if s.Network.TimeStep <= 0 {
		add("network.time_step must be positive, got %v", s.Network.TimeStep)
	}
	if m, err := network.ParseUpdateMethod(s.Network.UpdateMethod); err != nil {
		errs = append(errs, fmt.Errorf("network.update_method: %w", err))
	} else if m == network.UpdateScript {
		add("network.update_method: script mode cannot be configured from a file")
	}
	if s.Network.ParallelBuffer < 0 {
		add("network.parallel_buffer must not be negative")
	}

	names := make(map[string]bool)
	for i, g := range s.Groups {
		where := fmt.Sprintf("groups[%d]", i)
		if g.Name == "" {
			add("%s: name is required", where)
		} else {
			where = "group " + g.Name
			if names[g.Name] {
				add("%s: duplicate name", where)
			}
			names[g.Name] = true
		}
		if g.Size <= 0 {
			add("%s: size must be positive, got %d", where, g.Size)
		}
		if _, err := nn.NewNeuronRule(g.Rule); err != nil {
			errs = append(errs, fmt.Errorf("%s: rule: %w", where, err))
		}
		if _, err := network.ParsePolarity(g.Polarity); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		if g.LowerBound > g.UpperBound {
			add("%s: lower_bound %v above upper_bound %v", where, g.LowerBound, g.UpperBound)
		}
		if g.Layout != LayoutLine && g.Layout != LayoutGrid {
			add("%s: unknown layout %q", where, g.Layout)
		}
	}

	sgNames := make(map[string]bool)
	for i, c := range s.SynapseGroups {
		where := fmt.Sprintf("synapse_groups[%d]", i)
		if c.Name != "" {
			where = "synapses " + c.Name
			if sgNames[c.Name] {
				add("%s: duplicate name", where)
			}
			sgNames[c.Name] = true
		}
		if !names[c.Source] {
			add("%s: unknown source group %q", where, c.Source)
		}
		if !names[c.Target] {
			add("%s: unknown target group %q", where, c.Target)
		}
		if _, err := network.NewStrategy(c.Strategy, c.StrategyParams()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		if c.ExcitatoryRatio < 0 || c.ExcitatoryRatio > 1 {
			add("%s: excitatory_ratio must be within [0, 1], got %v", where, c.ExcitatoryRatio)
		}
		if _, err := c.ExcitatoryRandomizer(); err != nil {
			errs = append(errs, fmt.Errorf("%s: ex_dist: %w", where, err))
		}
		if _, err := c.InhibitoryRandomizer(); err != nil {
			errs = append(errs, fmt.Errorf("%s: in_dist: %w", where, err))
		}
		if _, err := nn.NewLearningRule(c.LearningRule, c.LearningRate); err != nil {
			errs = append(errs, fmt.Errorf("%s: learning_rule: %w", where, err))
		}
		if c.Delay < 0 {
			add("%s: delay must not be negative", where)
		}
	}

	for i, c := range s.IO {
		where := fmt.Sprintf("io[%d]", i)
		if c.Name != "" {
			where = "io " + c.Name
		}
		g, ok := s.Group(c.Group)
		if !ok {
			add("%s: unknown group %q", where, c.Group)
			continue
		}
		var err error
		switch c.Kind {
		case IOSensor:
			_, err = simio.ResolveSensor(c.Component, g.Size)
		case IOActuator:
			_, err = simio.ResolveActuator(c.Component, g.Size)
		default:
			add("%s: kind must be %q or %q, got %q", where, IOSensor, IOActuator, c.Kind)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
	}

	if s.Run.Ticks < 0 {
		add("run.ticks must not be negative")
	}
	switch s.Run.Store {
	case "", "memory", "sqlite", "badger":
	default:
		add("run.store: unsupported backend %q", s.Run.Store)
	}
	if s.Run.Store == "sqlite" && s.Run.DBPath == "" {
		add("run.db_path is required for the sqlite store")
	}
	if s.Run.RecordGroup != "" && !names[s.Run.RecordGroup] {
		add("run.record_group: unknown group %q", s.Run.RecordGroup)
	}
	if _, err := network.ParsePrecision(s.Run.Precision); err != nil {
		errs = append(errs, fmt.Errorf("run.precision: %w", err))
	}
	return errors.Join(errs...)
}
