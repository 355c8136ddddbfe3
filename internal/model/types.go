package model

import "encoding/json"

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RuleRecord names a rule and carries its tunable parameters as the rule's
// own JSON form.
type RuleRecord struct {
	Name   string          `json:"name"`
	Params json.RawMessage `json:"params,omitempty"`
}

type NeuronRecord struct {
	ID         string     `json:"id"`
	Label      string     `json:"label,omitempty"`
	Activation float64    `json:"activation"`
	Aux        float64    `json:"aux,omitempty"`
	LowerBound float64    `json:"lower_bound"`
	UpperBound float64    `json:"upper_bound"`
	Increment  float64    `json:"increment"`
	Polarity   string     `json:"polarity,omitempty"`
	Clamped    bool       `json:"clamped,omitempty"`
	Priority   int        `json:"priority,omitempty"`
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	Input      bool       `json:"input,omitempty"`
	Output     bool       `json:"output,omitempty"`
	UpdateRule RuleRecord `json:"update_rule"`
}

// SynapseRecord references neurons by id for top-level synapses.
type SynapseRecord struct {
	ID             string      `json:"id"`
	Source         string      `json:"source"`
	Target         string      `json:"target"`
	Strength       float64     `json:"strength"`
	LowerBound     float64     `json:"lower_bound"`
	UpperBound     float64     `json:"upper_bound"`
	Increment      float64     `json:"increment"`
	Delay          int         `json:"delay,omitempty"`
	Enabled        bool        `json:"enabled"`
	Frozen         bool        `json:"frozen,omitempty"`
	LearningRule   RuleRecord  `json:"learning_rule"`
	SpikeResponder *RuleRecord `json:"spike_responder,omitempty"`
}

type NeuronGroupRecord struct {
	ID              string         `json:"id"`
	Label           string         `json:"label"`
	DeleteWhenEmpty bool           `json:"delete_when_empty"`
	Neurons         []NeuronRecord `json:"neurons"`
}

// SynapseGroupRecord stores a synapse group. Exactly one of SparseCode and
// FullCode is set; prototypes restore every field the sparse code omits.
type SynapseGroupRecord struct {
	ID                 string        `json:"id"`
	Label              string        `json:"label"`
	Source             string        `json:"source"`
	Target             string        `json:"target"`
	ExcitatoryRatio    float64       `json:"excitatory_ratio"`
	GroupLevelSettings bool          `json:"group_level_settings"`
	FullRepOnSave      bool          `json:"full_rep_on_save"`
	ExPrototype        SynapseRecord `json:"ex_prototype"`
	InPrototype        SynapseRecord `json:"in_prototype"`
	SparseCode         []byte        `json:"sparse_code,omitempty"`
	FullCode           []byte        `json:"full_code,omitempty"`
}

// SubnetworkRecord lists child groups by id.
type SubnetworkRecord struct {
	ID            string   `json:"id"`
	Label         string   `json:"label"`
	Priority      int      `json:"priority,omitempty"`
	NeuronGroups  []string `json:"neuron_groups,omitempty"`
	SynapseGroups []string `json:"synapse_groups,omitempty"`
}

type NetworkRecord struct {
	VersionedRecord
	ID            string               `json:"id"`
	Time          float64              `json:"time"`
	TimeStep      float64              `json:"time_step"`
	Iterations    int64                `json:"iterations"`
	UpdateMethod  string               `json:"update_method"`
	ClampNeurons  bool                 `json:"clamp_neurons,omitempty"`
	ClampSynapses bool                 `json:"clamp_synapses,omitempty"`
	Neurons       []NeuronRecord       `json:"neurons"`
	Synapses      []SynapseRecord      `json:"synapses"`
	NeuronGroups  []NeuronGroupRecord  `json:"neuron_groups"`
	SynapseGroups []SynapseGroupRecord `json:"synapse_groups"`
	Subnetworks   []SubnetworkRecord   `json:"subnetworks,omitempty"`
}

// RunRecord summarizes one simulation run.
type RunRecord struct {
	VersionedRecord
	ID               string             `json:"id"`
	NetworkID        string             `json:"network_id"`
	Ticks            int                `json:"ticks"`
	Seed             int64              `json:"seed"`
	FinalTime        float64            `json:"final_time"`
	RecordedGroup    string             `json:"recorded_group,omitempty"`
	FinalActivity    []float64          `json:"final_activity,omitempty"`
	ExcitatoryRatios map[string]float64 `json:"excitatory_ratios,omitempty"`
	CreatedAtUTC     string             `json:"created_at_utc"`
}
