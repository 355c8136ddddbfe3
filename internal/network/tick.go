package network

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

var ErrNoTickStrategy = errors.New("script update method without a tick strategy")

type UpdateMethod int

const (
	UpdateDefault UpdateMethod = iota
	UpdatePriority
	UpdateScript
)

func (m UpdateMethod) String() string {
	switch m {
	case UpdatePriority:
		return "priority"
	case UpdateScript:
		return "script"
	default:
		return "default"
	}
}

func ParseUpdateMethod(s string) (UpdateMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default", "buffered":
		return UpdateDefault, nil
	case "priority", "priority_based", "priority-based":
		return UpdatePriority, nil
	case "script", "script_based", "script-based":
		return UpdateScript, nil
	default:
		return UpdateDefault, fmt.Errorf("unknown update method: %s", s)
	}
}

// TickStrategy replaces the coordinated update when the network runs in
// script mode. It is called once per tick after time has advanced.
type TickStrategy interface {
	Tick(n *Network) error
}

// TickFunc adapts a function to TickStrategy.
type TickFunc func(n *Network) error

func (f TickFunc) Tick(n *Network) error { return f(n) }

// SetTickStrategy installs s and switches to script mode. A nil s restores
// the default method.
func (n *Network) SetTickStrategy(s TickStrategy) {
	n.script = s
	if s == nil {
		n.method = UpdateDefault
		return
	}
	n.method = UpdateScript
}

// parallelThreshold is the smallest neuron list worth splitting.
const parallelThreshold = 256

// Update runs one tick: advance time, update, notify observers, clear
// external inputs. Ready is false for the duration.
func (n *Network) Update() error {
	n.ready.Store(false)
	defer n.ready.Store(true)
	start := time.Now()

	n.time += n.timeStep
	n.iterCount++

	var err error
	switch n.method {
	case UpdateScript:
		if n.script == nil {
			err = ErrNoTickStrategy
		} else {
			err = n.script.Tick(n)
		}
	case UpdatePriority:
		n.updateByPriority()
	default:
		n.updateBuffered()
	}

	tickDuration.WithLabelValues(n.method.String()).Observe(time.Since(start).Seconds())
	ticksTotal.Inc()
	n.ctx.emit(Event{Kind: UpdateCompleted, ID: n.id, Subject: n})
	n.ClearInputs()
	return err
}

// updateBuffered: loose neurons, loose synapses, subnetworks, then every
// other top-level group in registration order.
func (n *Network) updateBuffered() {
	n.UpdateLooseNeurons()
	n.UpdateLooseSynapses()
	for _, g := range n.top {
		if sn, ok := g.(*Subnetwork); ok {
			sn.Update()
		}
	}
	n.UpdateGroups()
}

// updateByPriority walks tiers from the smallest priority. Within a tier the
// loose neurons finish buffer and commit before that tier's subnetworks run.
func (n *Network) updateByPriority() {
	for _, p := range n.Priorities() {
		if !n.clampNeurons {
			var tier []*Neuron
			for _, neuron := range n.neurons {
				if neuron.priority == p {
					tier = append(tier, neuron)
				}
			}
			updateNeurons(tier, n)
		}
		for _, g := range n.top {
			if sn, ok := g.(*Subnetwork); ok && sn.priority == p {
				sn.Update()
			}
		}
	}
	n.UpdateLooseSynapses()
	n.UpdateGroups()
}

// UpdateLooseNeurons runs buffer then commit over the network's own neurons.
func (n *Network) UpdateLooseNeurons() {
	if n.clampNeurons {
		return
	}
	updateNeurons(n.neurons, n)
}

func (n *Network) UpdateLooseSynapses() {
	if n.clampSynapses {
		return
	}
	for _, s := range n.synapses {
		s.Update()
	}
}

// UpdateGroups updates top-level groups other than subnetworks.
func (n *Network) UpdateGroups() {
	for _, g := range append([]Group(nil), n.top...) {
		if _, ok := g.(*Subnetwork); ok {
			continue
		}
		g.Update()
	}
}

// updateNeurons computes every buffer before committing any of them.
func updateNeurons(neurons []*Neuron, net *Network) {
	workers := 0
	if net != nil {
		workers = net.parallel
	}
	if workers > 1 && len(neurons) >= parallelThreshold {
		var eg errgroup.Group
		eg.SetLimit(workers)
		chunk := (len(neurons) + workers - 1) / workers
		for lo := 0; lo < len(neurons); lo += chunk {
			part := neurons[lo:min(lo+chunk, len(neurons))]
			eg.Go(func() error {
				for _, neuron := range part {
					neuron.UpdateInputs()
					neuron.Update()
				}
				return nil
			})
		}
		_ = eg.Wait()
	} else {
		for _, neuron := range neurons {
			neuron.UpdateInputs()
			neuron.Update()
		}
	}
	for _, neuron := range neurons {
		neuron.Commit()
	}
}
