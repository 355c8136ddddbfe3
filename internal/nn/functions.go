package nn

import (
	"fmt"
	"math"
)

// Clip bounds value to [lower, upper].
func Clip(value, lower, upper float64) float64 {
	if value > upper {
		return upper
	}
	if value < lower {
		return lower
	}
	return value
}

// Logistic is the standard sigmoid 1/(1+e^-x).
func Logistic(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// ScaleValue maps value from [lower, upper] to [-1, 1].
func ScaleValue(value, lower, upper float64) float64 {
	if upper == lower {
		return 0
	}
	return (value*2 - (upper + lower)) / (upper - lower)
}

// Avg returns the arithmetic mean of values.
func Avg(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("values must not be empty")
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values)), nil
}

// Std returns population standard deviation.
func Std(values []float64) (float64, error) {
	mean, err := Avg(values)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, value := range values {
		diff := mean - value
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values))), nil
}

// Distance is the euclidean distance between two points in the plane.
func Distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}
