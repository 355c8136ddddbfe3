package network

import (
	"fmt"
	"math"
	"strings"
)

type Polarity int

const (
	Unpolarized Polarity = iota
	Excitatory
	Inhibitory
)

func (p Polarity) String() string {
	switch p {
	case Excitatory:
		return "excitatory"
	case Inhibitory:
		return "inhibitory"
	default:
		return "none"
	}
}

func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "unpolarized":
		return Unpolarized, nil
	case "excitatory", "ex":
		return Excitatory, nil
	case "inhibitory", "in":
		return Inhibitory, nil
	default:
		return Unpolarized, fmt.Errorf("unknown polarity: %s", s)
	}
}

// Clip forces w onto the polarity's side of zero.
func (p Polarity) Clip(w float64) float64 {
	switch p {
	case Excitatory:
		if w < 0 {
			return 0
		}
	case Inhibitory:
		if w > 0 {
			return 0
		}
	}
	return w
}

// Signed returns |v| for excitatory and -|v| for inhibitory.
func (p Polarity) Signed(v float64) float64 {
	switch p {
	case Excitatory:
		return math.Abs(v)
	case Inhibitory:
		return -math.Abs(v)
	default:
		return v
	}
}

// Selector picks the synapse sets a bulk operation applies to.
type Selector int

const (
	SelectBoth Selector = iota
	SelectExcitatory
	SelectInhibitory
)

func (s Selector) excitatory() bool { return s != SelectInhibitory }
func (s Selector) inhibitory() bool { return s != SelectExcitatory }

func ParseSelector(s string) (Selector, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both", "all":
		return SelectBoth, nil
	case "excitatory", "ex":
		return SelectExcitatory, nil
	case "inhibitory", "in":
		return SelectInhibitory, nil
	default:
		return SelectBoth, fmt.Errorf("unknown synapse selector: %s", s)
	}
}
