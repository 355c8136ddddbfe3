package nn

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

const (
	SupportedSchemaVersion = 1
	SupportedCodecVersion  = 1
)

var (
	ErrRuleExists   = errors.New("rule already registered")
	ErrRuleNotFound = errors.New("rule not found")
	ErrRuleVersion  = errors.New("rule version mismatch")
)

// RuleSpec describes a named rule factory. The same shape is used for neuron
// update rules, synapse learning rules and spike responders.
type RuleSpec[T any] struct {
	Name          string
	Factory       func() T
	SchemaVersion int
	CodecVersion  int
}

type registeredRule[T any] struct {
	factory       func() T
	schemaVersion int
	codecVersion  int
}

type ruleRegistry[T any] struct {
	kind string
	mu   sync.RWMutex
	m    map[string]registeredRule[T]
}

func newRuleRegistry[T any](kind string) *ruleRegistry[T] {
	return &ruleRegistry[T]{kind: kind, m: make(map[string]registeredRule[T])}
}

func (r *ruleRegistry[T]) register(spec RuleSpec[T]) error {
	if spec.Name == "" {
		return fmt.Errorf("%s name is required", r.kind)
	}
	if spec.Factory == nil {
		return fmt.Errorf("%s factory is required", r.kind)
	}
	if spec.SchemaVersion != SupportedSchemaVersion || spec.CodecVersion != SupportedCodecVersion {
		return fmt.Errorf("%w: %s schema=%d codec=%d", ErrRuleVersion, r.kind, spec.SchemaVersion, spec.CodecVersion)
	}
	name := normalizeRuleName(spec.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.m[name]; exists {
		return fmt.Errorf("%w: %s %s", ErrRuleExists, r.kind, name)
	}
	r.m[name] = registeredRule[T]{
		factory:       spec.Factory,
		schemaVersion: spec.SchemaVersion,
		codecVersion:  spec.CodecVersion,
	}
	return nil
}

func (r *ruleRegistry[T]) resolve(name string) (T, error) {
	var zero T
	key := normalizeRuleName(name)

	r.mu.RLock()
	entry, ok := r.m[key]
	r.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("%w: %s %s", ErrRuleNotFound, r.kind, name)
	}
	if entry.schemaVersion != SupportedSchemaVersion || entry.codecVersion != SupportedCodecVersion {
		return zero, fmt.Errorf("%w: %s %s", ErrRuleVersion, r.kind, name)
	}
	return entry.factory(), nil
}

func (r *ruleRegistry[T]) list() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.m))
	for name := range r.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *ruleRegistry[T]) reset() {
	r.mu.Lock()
	r.m = make(map[string]registeredRule[T])
	r.mu.Unlock()
}

func normalizeRuleName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(n, "-", "_")
}

var (
	neuronRules     = newRuleRegistry[NeuronRule]("neuron rule")
	learningRules   = newRuleRegistry[LearningRule]("learning rule")
	spikeResponders = newRuleRegistry[SpikeResponder]("spike responder")
)

func init() {
	initializeBuiltInRules()
}

func initializeBuiltInRules() {
	MustRegisterNeuronRule(RuleLinear, func() NeuronRule { return NewLinearRule() })
	MustRegisterNeuronRule(RuleBinary, func() NeuronRule { return NewBinaryRule() })
	MustRegisterNeuronRule(RuleSigmoidal, func() NeuronRule { return NewSigmoidalRule() })
	MustRegisterNeuronRule(RuleStochastic, func() NeuronRule { return NewStochasticRule() })
	MustRegisterNeuronRule(RuleIzhikevich, func() NeuronRule { return NewIzhikevichRule() })

	MustRegisterLearningRule(LearningStatic, func() LearningRule { return StaticRule{} })
	MustRegisterLearningRule(LearningHebbian, func() LearningRule { return &HebbianRule{Rate: defaultLearningRate} })
	MustRegisterLearningRule(LearningOja, func() LearningRule { return &OjaRule{Rate: defaultLearningRate} })

	MustRegisterSpikeResponder(ResponderStep, func() SpikeResponder { return NewStepResponder() })
	MustRegisterSpikeResponder(ResponderJumpAndDecay, func() SpikeResponder { return NewJumpAndDecay() })
}

func RegisterNeuronRule(name string, factory func() NeuronRule) error {
	return neuronRules.register(RuleSpec[NeuronRule]{
		Name:          name,
		Factory:       factory,
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
	})
}

func RegisterNeuronRuleWithSpec(spec RuleSpec[NeuronRule]) error {
	return neuronRules.register(spec)
}

func MustRegisterNeuronRule(name string, factory func() NeuronRule) {
	if err := RegisterNeuronRule(name, factory); err != nil {
		panic(err)
	}
}

// NewNeuronRule returns a fresh instance of the named update rule.
func NewNeuronRule(name string) (NeuronRule, error) {
	return neuronRules.resolve(name)
}

func ListNeuronRules() []string {
	return neuronRules.list()
}

func RegisterLearningRule(name string, factory func() LearningRule) error {
	return learningRules.register(RuleSpec[LearningRule]{
		Name:          name,
		Factory:       factory,
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
	})
}

func MustRegisterLearningRule(name string, factory func() LearningRule) {
	if err := RegisterLearningRule(name, factory); err != nil {
		panic(err)
	}
}

// NewLearningRule resolves a learning rule by name or alias and applies rate
// when the rule has one.
func NewLearningRule(name string, rate float64) (LearningRule, error) {
	rule, err := learningRules.resolve(NormalizeLearningRuleName(name))
	if err != nil {
		return nil, err
	}
	if r, ok := rule.(RateSetter); ok && rate != 0 {
		r.SetLearningRate(rate)
	}
	return rule, nil
}

func ListLearningRules() []string {
	return learningRules.list()
}

func RegisterSpikeResponder(name string, factory func() SpikeResponder) error {
	return spikeResponders.register(RuleSpec[SpikeResponder]{
		Name:          name,
		Factory:       factory,
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
	})
}

func MustRegisterSpikeResponder(name string, factory func() SpikeResponder) {
	if err := RegisterSpikeResponder(name, factory); err != nil {
		panic(err)
	}
}

// NewSpikeResponder returns nil for "" and "none".
func NewSpikeResponder(name string) (SpikeResponder, error) {
	switch normalizeRuleName(name) {
	case "", ResponderNone:
		return nil, nil
	}
	return spikeResponders.resolve(name)
}

func ListSpikeResponders() []string {
	return spikeResponders.list()
}

func resetRegistriesForTests() {
	neuronRules.reset()
	learningRules.reset()
	spikeResponders.reset()
	initializeBuiltInRules()
}
