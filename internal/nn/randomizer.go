package nn

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	DistUniform   = "uniform"
	DistNormal    = "normal"
	DistLogNormal = "lognormal"
)

var ErrUnknownDistribution = errors.New("unknown distribution")

// Randomizer draws weight magnitudes. Sign is applied by the caller according
// to the polarity being randomized.
type Randomizer interface {
	Name() string
	Sample(r *rand.Rand) float64
}

// rngSource lets gonum distributions draw from a simulation's *rand.Rand so a
// seeded run stays reproducible.
type rngSource struct {
	r *rand.Rand
}

func (s rngSource) Uint64() uint64 { return s.r.Uint64() }

func (s rngSource) Seed(seed uint64) { s.r.Seed(int64(seed)) }

// Source adapts r for gonum's distuv package.
func Source(r *rand.Rand) exprand.Source {
	return rngSource{r: r}
}

type UniformRandomizer struct {
	Floor float64
	Ceil  float64
}

func (u UniformRandomizer) Name() string { return DistUniform }

func (u UniformRandomizer) Sample(r *rand.Rand) float64 {
	if u.Ceil == u.Floor {
		return u.Floor
	}
	return distuv.Uniform{Min: u.Floor, Max: u.Ceil, Src: Source(r)}.Rand()
}

type NormalRandomizer struct {
	Mean float64
	Std  float64
}

func (n NormalRandomizer) Name() string { return DistNormal }

func (n NormalRandomizer) Sample(r *rand.Rand) float64 {
	if n.Std == 0 {
		return n.Mean
	}
	return distuv.Normal{Mu: n.Mean, Sigma: n.Std, Src: Source(r)}.Rand()
}

type LogNormalRandomizer struct {
	Location float64
	Scale    float64
}

func (l LogNormalRandomizer) Name() string { return DistLogNormal }

func (l LogNormalRandomizer) Sample(r *rand.Rand) float64 {
	return distuv.LogNormal{Mu: l.Location, Sigma: l.Scale, Src: Source(r)}.Rand()
}

// NewRandomizer builds a distribution from its name and two parameters:
// floor/ceil for uniform, mean/std for normal and location/scale for lognormal.
func NewRandomizer(name string, a, b float64) (Randomizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DistUniform:
		if b < a {
			return nil, fmt.Errorf("uniform ceil %f below floor %f", b, a)
		}
		return UniformRandomizer{Floor: a, Ceil: b}, nil
	case DistNormal, "gaussian":
		if b < 0 {
			return nil, fmt.Errorf("normal std must be non-negative: %f", b)
		}
		return NormalRandomizer{Mean: a, Std: b}, nil
	case DistLogNormal, "log_normal":
		if b < 0 {
			return nil, fmt.Errorf("lognormal scale must be non-negative: %f", b)
		}
		return LogNormalRandomizer{Location: a, Scale: b}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDistribution, name)
	}
}

// Binomial draws the number of successes in n trials with probability p.
func Binomial(r *rand.Rand, n int, p float64) int {
	if n <= 0 || p <= 0 {
		return 0
	}
	if p >= 1 {
		return n
	}
	return int(distuv.Binomial{N: float64(n), P: p, Src: Source(r)}.Rand())
}
