package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuralsim/internal/network"
	"neuralsim/internal/nn"
)

const sampleINI = `
[network]
time_step = 0.5
update_method = priority
seed = 7

[group.retina]
size = 6
input = true
layout = grid

[group.cortex]
size = 3
rule = sigmoidal
lower_bound = 0
upper_bound = 1

[synapses.feedforward]
source = retina
target = cortex
strategy = all_to_all
excitatory_ratio = 0
learning_rule = hebbian
learning_rate = 0.05

[run]
ticks = 20
record_group = cortex
`

func TestParseINI(t *testing.T) {
	sim, err := ParseINI([]byte(sampleINI))
	require.NoError(t, err)
	require.NoError(t, sim.Validate())

	assert.Equal(t, 0.5, sim.Network.TimeStep)
	assert.Equal(t, "priority", sim.Network.UpdateMethod)
	assert.Equal(t, int64(7), sim.Network.Seed)

	require.Len(t, sim.Groups, 2)
	retina := sim.Groups[0]
	assert.Equal(t, "retina", retina.Name)
	assert.Equal(t, 6, retina.Size)
	assert.True(t, retina.Input)
	assert.Equal(t, LayoutGrid, retina.Layout)
	assert.Equal(t, nn.RuleLinear, retina.Rule)
	assert.True(t, retina.DeleteWhenEmpty)
	assert.False(t, retina.HasBounds())

	cortex := sim.Groups[1]
	assert.Equal(t, nn.RuleSigmoidal, cortex.Rule)
	assert.True(t, cortex.HasBounds())

	require.Len(t, sim.SynapseGroups, 1)
	sg := sim.SynapseGroups[0]
	assert.Equal(t, "feedforward", sg.Name)
	assert.Equal(t, network.StrategyAllToAll, sg.Strategy)
	assert.Equal(t, 0.0, sg.ExcitatoryRatio)
	assert.Equal(t, network.DefaultSparseDensity, sg.Density)
	assert.True(t, sg.GroupLevelSettings)
	assert.Equal(t, 0.05, sg.LearningRate)

	assert.Equal(t, 20, sim.Run.Ticks)
	assert.Equal(t, "memory", sim.Run.Store)
	assert.Equal(t, "cortex", sim.Run.RecordGroup)
}

func TestParseINIRejectsUnknownSection(t *testing.T) {
	_, err := ParseINI([]byte("[plugins]\nname = x\n"))
	require.Error(t, err)

	_, err = ParseINI([]byte("stray = 1\n[network]\n"))
	require.Error(t, err)
}

func TestParseYAMLKeepsDefaultsPerEntry(t *testing.T) {
	data := []byte(`
network:
  update_method: default
groups:
  - name: a
    size: 3
  - name: b
synapse_groups:
  - source: a
    target: b
    excitatory_ratio: 0.25
run:
  ticks: 5
`)
	sim, err := ParseYAML(data)
	require.NoError(t, err)
	require.NoError(t, sim.Validate())

	assert.Equal(t, network.DefaultTimeStep, sim.Network.TimeStep)
	require.Len(t, sim.Groups, 2)
	assert.Equal(t, 3, sim.Groups[0].Size)
	assert.Equal(t, 1, sim.Groups[1].Size)
	assert.Equal(t, LayoutLine, sim.Groups[1].Layout)

	sg := sim.SynapseGroups[0]
	assert.Equal(t, 0.25, sg.ExcitatoryRatio)
	assert.Equal(t, network.StrategySparse, sg.Strategy)
	assert.Equal(t, nn.LearningStatic, sg.LearningRule)
	assert.True(t, sg.GroupLevelSettings)
	assert.Equal(t, 5, sim.Run.Ticks)
	assert.Equal(t, network.Float64.String(), sim.Run.Precision)
}

func TestParseYAMLRejectsUnknownKeys(t *testing.T) {
	_, err := ParseYAML([]byte("network:\n  tick_rate: 3\n"))
	require.Error(t, err)
}

func TestParseYAMLEmptyDocumentIsDefault(t *testing.T) {
	sim, err := ParseYAML(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), sim)
}

func TestWriteINIRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteINI(&buf, Sample()))

	sim, err := ParseINI(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, Sample(), sim)
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, Sample()))

	sim, err := ParseYAML(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, Sample(), sim)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	sim := Default()
	sim.Network.TimeStep = 0
	sim.Network.UpdateMethod = "script"
	bad := DefaultGroup()
	bad.Name = "x"
	bad.Size = 0
	bad.Rule = "nonesuch"
	sim.Groups = []GroupConfig{bad, bad}
	sg := DefaultSynapseGroup()
	sg.Source = "x"
	sg.Target = "missing"
	sg.ExcitatoryRatio = 1.5
	sg.Strategy = "hexagonal"
	sim.SynapseGroups = []SynapseGroupConfig{sg}
	sim.Run.Store = "postgres"
	sim.Run.RecordGroup = "nope"

	err := sim.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"time_step",
		"script mode",
		"duplicate name",
		"size must be positive",
		"rule",
		"unknown target group",
		"excitatory_ratio",
		"hexagonal",
		"postgres",
		"record_group",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestSampleIsValid(t *testing.T) {
	require.NoError(t, Sample().Validate())
}

func TestLoadChoosesFormatByExtension(t *testing.T) {
	dir := t.TempDir()

	iniPath := filepath.Join(dir, "sim.ini")
	require.NoError(t, os.WriteFile(iniPath, []byte(sampleINI), 0o644))
	sim, err := Load(iniPath)
	require.NoError(t, err)
	assert.Len(t, sim.Groups, 2)

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, Sample()))
	yamlPath := filepath.Join(dir, "sim.yaml")
	require.NoError(t, os.WriteFile(yamlPath, buf.Bytes(), 0o644))
	sim, err = Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "input_to_output", sim.SynapseGroups[0].Name)

	txtPath := filepath.Join(dir, "sim.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("x"), 0o644))
	_, err = Load(txtPath)
	require.ErrorIs(t, err, ErrUnknownFormat)

	invalid := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("network:\n  time_step: -1\n"), 0o644))
	_, err = Load(invalid)
	require.Error(t, err)
}

func TestRandomizersFollowDistribution(t *testing.T) {
	c := DefaultSynapseGroup()
	ex, err := c.ExcitatoryRandomizer()
	require.NoError(t, err)
	assert.Equal(t, nn.UniformRandomizer{Floor: 0, Ceil: 1}, ex)

	c.InDist = nn.DistNormal
	c.InMean = 0.5
	c.InStd = 0.1
	in, err := c.InhibitoryRandomizer()
	require.NoError(t, err)
	assert.Equal(t, nn.NormalRandomizer{Mean: 0.5, Std: 0.1}, in)

	c.ExDist = "cauchy"
	_, err = c.ExcitatoryRandomizer()
	require.ErrorIs(t, err, nn.ErrUnknownDistribution)
}

func TestParseINIBindings(t *testing.T) {
	doc := sampleINI + `
[io.light]
group = retina
value = 0.4

[io.motor]
kind = actuator
component = wta
group = cortex
`
	sim, err := ParseINI([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, sim.Validate())

	require.Len(t, sim.IO, 2)
	light := sim.IO[0]
	assert.Equal(t, "light", light.Name)
	assert.Equal(t, IOSensor, light.Kind)
	assert.Equal(t, "constant", light.Component)
	assert.Equal(t, 0.4, light.Value)
	assert.Equal(t, 20.0, light.Period)

	motor := sim.IO[1]
	assert.Equal(t, IOActuator, motor.Kind)
	assert.Equal(t, "wta", motor.Component)
}

func TestValidateBindings(t *testing.T) {
	sim := Sample()
	narrow := DefaultGroup()
	narrow.Name = "single"
	sim.Groups = append(sim.Groups, narrow)

	ghost := DefaultIO()
	ghost.Name = "ghost"
	ghost.Group = "nowhere"
	odd := DefaultIO()
	odd.Name = "odd"
	odd.Kind = "motor"
	odd.Group = "input"
	tooNarrow := DefaultIO()
	tooNarrow.Name = "wta"
	tooNarrow.Kind = IOActuator
	tooNarrow.Component = "winner"
	tooNarrow.Group = "single"
	sim.IO = append(sim.IO, ghost, odd, tooNarrow)

	err := sim.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `io ghost: unknown group "nowhere"`)
	assert.Contains(t, msg, `io odd: kind must be`)
	assert.Contains(t, msg, "io wta: component incompatible with group")
}
