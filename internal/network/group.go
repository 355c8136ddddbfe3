package network

// Group is a named, identified collection with a lifecycle.
type Group interface {
	ID() string
	Label() string
	SetLabel(label string)
	StateInfo() string
	Size() int
	Update()
	Delete()
	ParentGroup() Parent
	MarkedForDeletion() bool

	base() *groupBase
}

// Parent is implemented by containers that nest groups. ChildDeleted is
// called once a child has finished deleting itself.
type Parent interface {
	ChildDeleted(g Group)
}

type groupBase struct {
	id        string
	label     string
	stateInfo string
	parent    Parent
	marked    bool
	network   *Network
}

func (g *groupBase) ID() string              { return g.id }
func (g *groupBase) Label() string           { return g.label }
func (g *groupBase) StateInfo() string       { return g.stateInfo }
func (g *groupBase) ParentGroup() Parent     { return g.parent }
func (g *groupBase) MarkedForDeletion() bool { return g.marked }
func (g *groupBase) Network() *Network       { return g.network }
func (g *groupBase) base() *groupBase        { return g }

func (g *groupBase) SetStateInfo(info string) { g.stateInfo = info }

func (g *groupBase) emit(kind EventKind, subject any) {
	if g.network != nil {
		g.network.ctx.emit(Event{Kind: kind, ID: g.id, Subject: subject})
	}
}

// finishDelete unregisters a group from its network and parent. Callers mark
// the group first so cascades that reach it again stop early.
func finishDelete(g Group) {
	b := g.base()
	if b.network != nil {
		b.network.unregisterGroup(g)
	}
	if b.parent != nil {
		b.parent.ChildDeleted(g)
	}
	b.emit(GroupRemoved, g)
	groupDeletions.Inc()
}

// Subnetwork nests neuron and synapse groups and updates them as one unit.
type Subnetwork struct {
	groupBase
	priority int
	children []Group
}

func NewSubnetwork(net *Network, label string) *Subnetwork {
	s := &Subnetwork{}
	s.label = label
	net.AddGroup(s)
	return s
}

func (s *Subnetwork) SetLabel(label string) {
	s.label = label
	s.emit(LabelChanged, s)
}

func (s *Subnetwork) Priority() int { return s.priority }

func (s *Subnetwork) SetPriority(p int) {
	s.priority = p
	if s.network != nil {
		s.network.priorityChanged()
	}
}

// AddChild moves g under this subnetwork. g stays registered with the network
// for lookups but is updated only through its parent.
func (s *Subnetwork) AddChild(g Group) {
	b := g.base()
	b.parent = s
	if s.network != nil {
		s.network.detachTopLevel(g)
	}
	s.children = append(s.children, g)
}

func (s *Subnetwork) Children() []Group {
	return append([]Group(nil), s.children...)
}

// Size counts child groups.
func (s *Subnetwork) Size() int { return len(s.children) }

// Update runs neuron groups before synapse groups so learning sees this
// tick's activations.
func (s *Subnetwork) Update() {
	for _, g := range s.children {
		if ng, ok := g.(*NeuronGroup); ok {
			ng.Update()
		}
	}
	for _, g := range s.children {
		if _, ok := g.(*NeuronGroup); !ok {
			g.Update()
		}
	}
}

func (s *Subnetwork) ChildDeleted(g Group) {
	for i, c := range s.children {
		if c == g {
			s.children = append(s.children[:i], s.children[i+1:]...)
			break
		}
	}
	if len(s.children) == 0 && !s.marked {
		s.Delete()
	}
}

func (s *Subnetwork) Delete() {
	if s.marked {
		return
	}
	s.marked = true
	for _, g := range append([]Group(nil), s.children...) {
		g.Delete()
	}
	finishDelete(s)
}
