package network

import (
	"fmt"
	"strings"
)

// ConnectionStrategy decides which (source, target) pairs of a SynapseGroup
// receive a synapse. Connect creates each synapse and hands it to
// AddNewSynapse so the group routes and stamps it.
type ConnectionStrategy interface {
	Name() string
	Connect(g *SynapseGroup)
}

const (
	StrategySparse   = "sparse"
	StrategyAllToAll = "all_to_all"
	StrategyOneToOne = "one_to_one"
	StrategyRadial   = "radial"
)

// StrategyParams is the union of every strategy's tunables. Fields a strategy
// does not use are ignored.
type StrategyParams struct {
	Density      float64 `yaml:"density" ini:"density"`
	Equalize     bool    `yaml:"equalize" ini:"equalize"`
	AllowSelf    bool    `yaml:"allow_self" ini:"allow_self"`
	Radius       float64 `yaml:"radius" ini:"radius"`
	MaxPerSource int     `yaml:"max_per_source" ini:"max_per_source"`
}

// NewStrategy builds a strategy by name.
func NewStrategy(name string, p StrategyParams) (ConnectionStrategy, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_") {
	case "", StrategySparse:
		density := p.Density
		if density == 0 {
			density = DefaultSparseDensity
		}
		if density < 0 || density > 1 {
			return nil, fmt.Errorf("sparse density must be in [0, 1]: %f", density)
		}
		return NewSparse(density, p.Equalize, p.AllowSelf), nil
	case StrategyAllToAll, "alltoall", "full":
		return &AllToAll{AllowSelfConnections: p.AllowSelf}, nil
	case StrategyOneToOne, "onetoone":
		return &OneToOne{}, nil
	case StrategyRadial, "radial_simple":
		r := &RadialSimple{Radius: p.Radius, MaxPerSource: p.MaxPerSource, AllowSelfConnections: p.AllowSelf}
		if r.Radius <= 0 {
			r.Radius = DefaultRadius
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown connection strategy: %s", name)
	}
}

// AllToAll connects every source to every target.
type AllToAll struct {
	AllowSelfConnections bool
}

func (a *AllToAll) Name() string { return StrategyAllToAll }

func (a *AllToAll) Connect(g *SynapseGroup) {
	targets := g.target.neurons
	for _, src := range g.source.neurons {
		for _, tgt := range targets {
			if g.recurrent && src == tgt && !a.AllowSelfConnections {
				continue
			}
			g.AddNewSynapse(NewSynapse(src, tgt))
		}
	}
}

// OneToOne pairs the i-th source with the i-th target up to the smaller
// group's size.
type OneToOne struct{}

func (o *OneToOne) Name() string { return StrategyOneToOne }

func (o *OneToOne) Connect(g *SynapseGroup) {
	n := min(g.source.Size(), g.target.Size())
	for i := 0; i < n; i++ {
		g.AddNewSynapse(NewSynapse(g.source.neurons[i], g.target.neurons[i]))
	}
}
