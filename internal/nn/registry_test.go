package nn

import (
	"errors"
	"testing"
)

func TestRegisterAndResolveNeuronRule(t *testing.T) {
	resetRegistriesForTests()
	t.Cleanup(resetRegistriesForTests)

	if err := RegisterNeuronRule("doubler", func() NeuronRule { return &LinearRule{Slope: 2} }); err != nil {
		t.Fatalf("register rule: %v", err)
	}
	rule, err := NewNeuronRule("Doubler")
	if err != nil {
		t.Fatalf("resolve rule: %v", err)
	}
	got := rule.Step(NeuronState{Input: 3})
	if got.Activation != 6 {
		t.Fatalf("unexpected activation: got=%f want=6", got.Activation)
	}
}

func TestRegisterNeuronRuleValidation(t *testing.T) {
	resetRegistriesForTests()
	t.Cleanup(resetRegistriesForTests)

	if err := RegisterNeuronRule("", func() NeuronRule { return NewLinearRule() }); err == nil {
		t.Fatal("expected empty name error")
	}
	if err := RegisterNeuronRule("nil", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	if err := RegisterNeuronRuleWithSpec(RuleSpec[NeuronRule]{
		Name:          "bad-version",
		Factory:       func() NeuronRule { return NewLinearRule() },
		SchemaVersion: 99,
		CodecVersion:  1,
	}); !errors.Is(err, ErrRuleVersion) {
		t.Fatalf("expected ErrRuleVersion, got: %v", err)
	}
	if err := RegisterNeuronRule(RuleLinear, func() NeuronRule { return NewLinearRule() }); !errors.Is(err, ErrRuleExists) {
		t.Fatalf("expected ErrRuleExists, got: %v", err)
	}
}

func TestResolveMissingRules(t *testing.T) {
	if _, err := NewNeuronRule("missing"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got: %v", err)
	}
	if _, err := NewLearningRule("missing", 0); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got: %v", err)
	}
	if _, err := NewSpikeResponder("missing"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got: %v", err)
	}
}

func TestResolvedRulesAreIndependent(t *testing.T) {
	a, err := NewLearningRule("hebb", 0.5)
	if err != nil {
		t.Fatalf("resolve hebbian: %v", err)
	}
	b, err := NewLearningRule(LearningHebbian, 0)
	if err != nil {
		t.Fatalf("resolve hebbian: %v", err)
	}
	if a.(*HebbianRule).Rate != 0.5 {
		t.Fatalf("expected rate override, got=%f", a.(*HebbianRule).Rate)
	}
	if b.(*HebbianRule).Rate != defaultLearningRate {
		t.Fatalf("expected default rate, got=%f", b.(*HebbianRule).Rate)
	}
}

func TestBuiltinsAvailable(t *testing.T) {
	for _, name := range []string{RuleLinear, RuleBinary, RuleSigmoidal, RuleStochastic, RuleIzhikevich} {
		if _, err := NewNeuronRule(name); err != nil {
			t.Fatalf("builtin neuron rule %s: %v", name, err)
		}
	}
	if names := ListLearningRules(); len(names) != 3 || names[0] != LearningHebbian {
		t.Fatalf("unexpected learning rules: %+v", names)
	}
	r, err := NewSpikeResponder(ResponderNone)
	if err != nil || r != nil {
		t.Fatalf("expected nil responder for none, got=%v err=%v", r, err)
	}
	if names := ListSpikeResponders(); len(names) != 2 {
		t.Fatalf("unexpected responders: %+v", names)
	}
}
