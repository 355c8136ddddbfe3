package network

import (
	"sort"

	"neuralsim/internal/nn"
)

const (
	DefaultRadius       = 100.0
	DefaultMaxPerSource = 5
)

// RadialSimple connects each source to the targets within Radius of it,
// nearest first, up to MaxPerSource per source. MaxPerSource <= 0 uses the
// default.
type RadialSimple struct {
	Radius               float64
	MaxPerSource         int
	AllowSelfConnections bool
}

func (r *RadialSimple) Name() string { return StrategyRadial }

func (r *RadialSimple) Connect(g *SynapseGroup) {
	limit := r.MaxPerSource
	if limit <= 0 {
		limit = DefaultMaxPerSource
	}
	type candidate struct {
		n    *Neuron
		dist float64
	}
	for _, src := range g.source.neurons {
		var near []candidate
		for _, tgt := range g.target.neurons {
			if src == tgt && !r.AllowSelfConnections {
				continue
			}
			d := nn.Distance(src.x, src.y, tgt.x, tgt.y)
			if d <= r.Radius {
				near = append(near, candidate{n: tgt, dist: d})
			}
		}
		sort.SliceStable(near, func(i, j int) bool { return near[i].dist < near[j].dist })
		if len(near) > limit {
			near = near[:limit]
		}
		for _, c := range near {
			g.AddNewSynapse(NewSynapse(src, c.n))
		}
	}
}
