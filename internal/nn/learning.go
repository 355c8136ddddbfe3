package nn

import "strings"

const (
	LearningStatic  = "static"
	LearningHebbian = "hebbian"
	LearningOja     = "oja"

	defaultLearningRate = 0.01
)

// SynapseState is what a learning rule sees of a synapse: its weight, the
// activations on either end and its bounds.
type SynapseState struct {
	Strength float64
	Pre      float64
	Post     float64
	Lower    float64
	Upper    float64
}

// LearningRule returns the next strength for a synapse. The caller clips the
// result into the synapse bounds.
type LearningRule interface {
	Name() string
	Apply(s SynapseState) float64
	Copy() LearningRule
}

type RateSetter interface {
	SetLearningRate(rate float64)
}

func NormalizeLearningRuleName(rule string) string {
	switch strings.ToLower(strings.TrimSpace(rule)) {
	case "", LearningStatic, "none", "static_synapse":
		return LearningStatic
	case LearningHebbian, "hebbian_w", "hebb":
		return LearningHebbian
	case LearningOja, "ojas", "ojas_w", "oja_rule":
		return LearningOja
	default:
		return strings.ToLower(strings.TrimSpace(rule))
	}
}

// IsStatic reports whether rule never changes a weight.
func IsStatic(rule LearningRule) bool {
	if rule == nil {
		return true
	}
	_, ok := rule.(StaticRule)
	return ok
}

type StaticRule struct{}

func (StaticRule) Name() string                 { return LearningStatic }
func (StaticRule) Apply(s SynapseState) float64 { return s.Strength }
func (StaticRule) Copy() LearningRule           { return StaticRule{} }

// HebbianRule: w += rate * pre * post.
type HebbianRule struct {
	Rate float64
}

func (r *HebbianRule) Name() string { return LearningHebbian }

func (r *HebbianRule) Apply(s SynapseState) float64 {
	return s.Strength + r.Rate*s.Pre*s.Post
}

func (r *HebbianRule) SetLearningRate(rate float64) { r.Rate = rate }

func (r *HebbianRule) Copy() LearningRule {
	c := *r
	return &c
}

// OjaRule: w += rate * post * (pre - post*w).
type OjaRule struct {
	Rate float64
}

func (r *OjaRule) Name() string { return LearningOja }

func (r *OjaRule) Apply(s SynapseState) float64 {
	return s.Strength + r.Rate*s.Post*(s.Pre-s.Post*s.Strength)
}

func (r *OjaRule) SetLearningRate(rate float64) { r.Rate = rate }

func (r *OjaRule) Copy() LearningRule {
	c := *r
	return &c
}
