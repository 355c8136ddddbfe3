package nn

const (
	ResponderNone         = "none"
	ResponderStep         = "step"
	ResponderJumpAndDecay = "jump_and_decay"
)

// SpikeResponder converts source spikes into a post-synaptic response.
// Responders may keep per-synapse state, so every synapse owns its own copy.
type SpikeResponder interface {
	Name() string
	Respond(spiked bool, strength, psr, timeStep float64) float64
	Copy() SpikeResponder
}

// StepResponder holds Height*strength for Duration updates after a spike.
type StepResponder struct {
	Height    float64
	Duration  int
	remaining int
}

func NewStepResponder() *StepResponder {
	return &StepResponder{Height: 1, Duration: 1}
}

func (r *StepResponder) Name() string { return ResponderStep }

func (r *StepResponder) Respond(spiked bool, strength, _, _ float64) float64 {
	if spiked {
		r.remaining = r.Duration
	}
	if r.remaining > 0 {
		r.remaining--
		return r.Height * strength
	}
	return 0
}

func (r *StepResponder) Copy() SpikeResponder {
	return &StepResponder{Height: r.Height, Duration: r.Duration}
}

// JumpAndDecay adds JumpHeight*strength on a spike and otherwise relaxes
// toward BaseLine with time constant TimeConstant.
type JumpAndDecay struct {
	JumpHeight   float64
	BaseLine     float64
	TimeConstant float64
}

func NewJumpAndDecay() *JumpAndDecay {
	return &JumpAndDecay{JumpHeight: 1, TimeConstant: 3}
}

func (r *JumpAndDecay) Name() string { return ResponderJumpAndDecay }

func (r *JumpAndDecay) Respond(spiked bool, strength, psr, timeStep float64) float64 {
	if spiked {
		return psr + r.JumpHeight*strength
	}
	if r.TimeConstant <= 0 {
		return r.BaseLine
	}
	return psr + timeStep*(r.BaseLine-psr)/r.TimeConstant
}

func (r *JumpAndDecay) Copy() SpikeResponder {
	c := *r
	return &c
}
