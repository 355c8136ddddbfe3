package config

import (
	simio "neuralsim/internal/io"
	"neuralsim/internal/nn"
)

// Sample is the blueprint written by `neuralsimctl init`: an input layer
// sparsely driving a sigmoidal output layer, fed by a sine wave and read
// out winner-take-all.
func Sample() Simulation {
	sim := Default()
	sim.Network.Seed = 1

	input := DefaultGroup()
	input.Name = "input"
	input.Size = 8
	input.Input = true

	output := DefaultGroup()
	output.Name = "output"
	output.Size = 4
	output.Rule = nn.RuleSigmoidal
	output.Y = 150
	output.Output = true

	sim.Groups = []GroupConfig{input, output}

	wiring := DefaultSynapseGroup()
	wiring.Name = "input_to_output"
	wiring.Source = "input"
	wiring.Target = "output"
	wiring.Density = 0.5
	wiring.Equalize = true
	wiring.ExcitatoryRatio = 0.8
	sim.SynapseGroups = []SynapseGroupConfig{wiring}

	drive := DefaultIO()
	drive.Name = "drive"
	drive.Component = simio.SineSensorName
	drive.Group = "input"
	drive.Amplitude = 0.8
	drive.Period = 16

	readout := DefaultIO()
	readout.Name = "readout"
	readout.Kind = IOActuator
	readout.Component = simio.WinnerActuatorName
	readout.Group = "output"
	sim.IO = []IOConfig{drive, readout}

	sim.Run.RecordGroup = "output"
	return sim
}
