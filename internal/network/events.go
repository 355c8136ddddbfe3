package network

type EventKind int

const (
	NeuronAdded EventKind = iota
	NeuronRemoved
	SynapseAdded
	SynapseRemoved
	SynapseChanged
	GroupAdded
	GroupRemoved
	GroupChanged
	LabelChanged
	UpdateCompleted
)

var eventKindNames = map[EventKind]string{
	NeuronAdded:     "neuron_added",
	NeuronRemoved:   "neuron_removed",
	SynapseAdded:    "synapse_added",
	SynapseRemoved:  "synapse_removed",
	SynapseChanged:  "synapse_changed",
	GroupAdded:      "group_added",
	GroupRemoved:    "group_removed",
	GroupChanged:    "group_changed",
	LabelChanged:    "label_changed",
	UpdateCompleted: "update_completed",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is delivered to observers after the change it describes.
// Subject is the *Neuron, *Synapse, Group or *Network involved.
type Event struct {
	Kind    EventKind
	ID      string
	Subject any
}

type Observer func(Event)
