package network

import (
	"errors"
	"fmt"
	"math/rand"

	"neuralsim/internal/nn"
)

const (
	DefaultSparseDensity = 0.1
	// Density editing keeps one permutation per source; above this many
	// possible pairs the orderings are not retained.
	maxEditablePairs = 1e9
)

var ErrDensityLocked = errors.New("connection density editing is disabled for this group")

// Sparse connects each source to a random subset of the targets. With
// equalization every source gets the same out-degree, otherwise each
// out-degree is drawn from Binomial(targets, density). The per-source target
// permutation is retained so density can be raised or lowered later without
// rebuilding the group.
type Sparse struct {
	density     float64
	equalize    bool
	allowSelf   bool
	editable    bool
	group       *SynapseGroup
	ordering    [][]int
	connections []int
}

func NewSparse(density float64, equalize, allowSelf bool) *Sparse {
	return &Sparse{density: density, equalize: equalize, allowSelf: allowSelf, editable: true}
}

func (s *Sparse) Name() string          { return StrategySparse }
func (s *Sparse) Density() float64      { return s.density }
func (s *Sparse) Equalized() bool       { return s.equalize }
func (s *Sparse) SelfConnections() bool { return s.allowSelf }
func (s *Sparse) DensityEditable() bool { return s.editable }

func (s *Sparse) Connect(g *SynapseGroup) {
	s.group = g
	numSrc, numTgt := g.source.Size(), g.target.Size()
	s.editable = float64(numSrc)*float64(numTgt) < maxEditablePairs
	s.ordering = s.permutations(g.rng())
	s.connections = make([]int, numSrc)

	numTars := s.targetsPerSource()
	if s.equalize {
		per := int(s.density * float64(numTars))
		_ = g.PreAllocateSynapses(per * numSrc)
		for i := range g.source.neurons {
			s.connectFirst(i, per)
		}
	} else {
		_ = g.PreAllocateSynapses(int(float64(numSrc*numTars) * s.density))
		for i := range g.source.neurons {
			s.connectFirst(i, nn.Binomial(g.rng(), numTars, s.density))
		}
	}
	if !s.editable {
		s.ordering = nil
	}
}

// targetsPerSource excludes the source itself in recurrent groups without
// self-connections.
func (s *Sparse) targetsPerSource() int {
	if s.group.recurrent && !s.allowSelf {
		return s.group.target.Size() - 1
	}
	return s.group.target.Size()
}

func (s *Sparse) permutations(r *rand.Rand) [][]int {
	g := s.group
	out := make([][]int, g.source.Size())
	for i := range out {
		perm := r.Perm(g.target.Size())
		if g.recurrent && !s.allowSelf {
			filtered := perm[:0]
			for _, t := range perm {
				if t != i {
					filtered = append(filtered, t)
				}
			}
			perm = filtered
		}
		out[i] = perm
	}
	return out
}

func (s *Sparse) connectFirst(i, k int) {
	k = min(k, len(s.ordering[i]))
	src := s.group.source.neurons[i]
	for j := s.connections[i]; j < k; j++ {
		tgt := s.group.target.neurons[s.ordering[i][j]]
		s.group.AddNewSynapse(NewSynapse(src, tgt))
	}
	if k > s.connections[i] {
		s.connections[i] = k
	}
}

func (s *Sparse) disconnectAfter(i, k int) {
	k = max(k, 0)
	src := s.group.source.neurons[i]
	for j := s.connections[i] - 1; j >= k; j-- {
		tgt := s.group.target.neurons[s.ordering[i][j]]
		if syn := s.ownedSynapse(src, tgt); syn != nil {
			s.group.RemoveSynapse(syn)
		}
	}
	if k < s.connections[i] {
		s.connections[i] = k
	}
}

func (s *Sparse) ownedSynapse(src, tgt *Neuron) *Synapse {
	for _, syn := range src.fanOut {
		if syn.target == tgt && syn.group == s.group {
			return syn
		}
	}
	return nil
}

// SetConnectionDensity adds or removes synapses to reach density d. Before
// Connect it only records the value.
func (s *Sparse) SetConnectionDensity(d float64) error {
	if d < 0 || d > 1 {
		return fmt.Errorf("sparse density must be in [0, 1]: %f", d)
	}
	if !s.editable {
		return ErrDensityLocked
	}
	if s.group == nil || s.ordering == nil {
		s.density = d
		return nil
	}
	switch {
	case d > s.density:
		s.addToDensity(d)
	case d < s.density:
		s.removeToDensity(d)
	}
	s.density = d
	return nil
}

func (s *Sparse) addToDensity(d float64) {
	g := s.group
	numTars := s.targetsPerSource()
	for i := range g.source.neurons {
		var k int
		if s.equalize {
			k = int(d * float64(numTars))
		} else {
			k = nn.Binomial(g.rng(), numTars, d)
		}
		s.connectFirst(i, max(k, s.connections[i]))
	}
}

func (s *Sparse) removeToDensity(d float64) {
	g := s.group
	numTars := s.targetsPerSource()
	for i := range g.source.neurons {
		if g.marked {
			return
		}
		var k int
		if s.equalize {
			k = int(d * float64(numTars))
		} else {
			k = nn.Binomial(g.rng(), numTars, d)
		}
		s.disconnectAfter(i, min(k, s.connections[i]))
	}
}
