package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"neuralsim/internal/nn"
)

// TraceSummary condenses an activation trace. SettledAt is the first tick
// (counted from 1) after which every row stays within the settle tolerance
// of the final row, or 0 for an empty trace.
type TraceSummary struct {
	Ticks      int       `json:"ticks"`
	Width      int       `json:"width"`
	MeanByTick []float64 `json:"mean_by_tick"`
	NeuronMean []float64 `json:"neuron_mean"`
	NeuronStd  []float64 `json:"neuron_std"`
	NeuronMin  []float64 `json:"neuron_min"`
	NeuronMax  []float64 `json:"neuron_max"`
	FinalMean  float64   `json:"final_mean"`
	SettledAt  int       `json:"settled_at"`
}

type PlotPoint struct {
	Tick  int     `json:"tick"`
	Value float64 `json:"value"`
}

func SummarizeTrace(trace [][]float64, tolerance float64) (TraceSummary, error) {
	summary := TraceSummary{Ticks: len(trace)}
	if len(trace) == 0 {
		return summary, nil
	}
	width := len(trace[0])
	for i, row := range trace {
		if len(row) != width {
			return TraceSummary{}, fmt.Errorf("%w: row %d has %d values, want %d", ErrRaggedTrace, i, len(row), width)
		}
	}
	summary.Width = width
	if width == 0 {
		summary.SettledAt = 1
		return summary, nil
	}

	summary.MeanByTick = make([]float64, len(trace))
	for t, row := range trace {
		summary.MeanByTick[t], _ = nn.Avg(row)
	}
	summary.FinalMean = summary.MeanByTick[len(trace)-1]

	summary.NeuronMean = make([]float64, width)
	summary.NeuronStd = make([]float64, width)
	summary.NeuronMin = make([]float64, width)
	summary.NeuronMax = make([]float64, width)
	column := make([]float64, len(trace))
	for i := 0; i < width; i++ {
		for t, row := range trace {
			column[t] = row[i]
		}
		summary.NeuronMean[i], _ = nn.Avg(column)
		summary.NeuronStd[i], _ = nn.Std(column)
		summary.NeuronMin[i] = floats.Min(column)
		summary.NeuronMax[i] = floats.Max(column)
	}

	final := trace[len(trace)-1]
	summary.SettledAt = len(trace)
	for t := len(trace) - 1; t >= 0; t-- {
		if !vectorWithin(trace[t], final, tolerance) {
			break
		}
		summary.SettledAt = t + 1
	}
	return summary, nil
}

// Downsample keeps every step-th value of series, starting with the first.
// Ticks are counted from 1.
func Downsample(series []float64, step int) []PlotPoint {
	if step <= 0 {
		step = 1
	}
	points := make([]PlotPoint, 0, len(series)/step+1)
	for i := 0; i < len(series); i += step {
		points = append(points, PlotPoint{Tick: i + 1, Value: series[i]})
	}
	return points
}

func vectorWithin(v1, v2 []float64, tolerance float64) bool {
	if len(v1) != len(v2) {
		return false
	}
	for i := range v1 {
		if math.Abs(v1[i]-v2[i]) > tolerance {
			return false
		}
	}
	return true
}
