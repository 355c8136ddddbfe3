package network

// synapseSet is an insertion-indexed set. Removal swaps the last element into
// the hole, so iteration order is stable only between mutations. Methods are
// nil-safe because a group discards its sets while a save is in flight.
type synapseSet struct {
	items []*Synapse
	index map[*Synapse]int
}

func newSynapseSet(capacity int) *synapseSet {
	return &synapseSet{
		items: make([]*Synapse, 0, capacity),
		index: make(map[*Synapse]int, capacity),
	}
}

func (s *synapseSet) add(syn *Synapse) bool {
	if _, ok := s.index[syn]; ok {
		return false
	}
	s.index[syn] = len(s.items)
	s.items = append(s.items, syn)
	return true
}

func (s *synapseSet) remove(syn *Synapse) bool {
	if s == nil {
		return false
	}
	i, ok := s.index[syn]
	if !ok {
		return false
	}
	last := len(s.items) - 1
	if i != last {
		moved := s.items[last]
		s.items[i] = moved
		s.index[moved] = i
	}
	s.items[last] = nil
	s.items = s.items[:last]
	delete(s.index, syn)
	return true
}

func (s *synapseSet) contains(syn *Synapse) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[syn]
	return ok
}

func (s *synapseSet) len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// list returns a snapshot safe to iterate while mutating the set.
func (s *synapseSet) list() []*Synapse {
	if s == nil {
		return nil
	}
	return append([]*Synapse(nil), s.items...)
}
