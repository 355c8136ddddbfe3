package nn

import (
	"math"
	"testing"
)

func TestClip(t *testing.T) {
	cases := []struct {
		value, lower, upper, want float64
	}{
		{value: 5, lower: -1, upper: 1, want: 1},
		{value: -5, lower: -1, upper: 1, want: -1},
		{value: 0.25, lower: -1, upper: 1, want: 0.25},
		{value: 0, lower: 0, upper: 0, want: 0},
	}
	for _, tc := range cases {
		if got := Clip(tc.value, tc.lower, tc.upper); got != tc.want {
			t.Fatalf("clip(%f, %f, %f): got=%f want=%f", tc.value, tc.lower, tc.upper, got, tc.want)
		}
	}
}

func TestScaleAndLogistic(t *testing.T) {
	if got := ScaleValue(2, 0, 4); math.Abs(got) > 1e-12 {
		t.Fatalf("expected midpoint scale=0, got=%f", got)
	}
	if got := ScaleValue(3, 3, 3); got != 0 {
		t.Fatalf("expected degenerate range to scale to 0, got=%f", got)
	}
	if got := Logistic(0); got != 0.5 {
		t.Fatalf("expected logistic(0)=0.5, got=%f", got)
	}
}

func TestAvgAndStd(t *testing.T) {
	avg, err := Avg([]float64{1, 2, 3})
	if err != nil {
		t.Fatalf("avg failed: %v", err)
	}
	if math.Abs(avg-2) > 1e-12 {
		t.Fatalf("unexpected avg: %f", avg)
	}
	std, err := Std([]float64{1, 2, 3})
	if err != nil {
		t.Fatalf("std failed: %v", err)
	}
	if math.Abs(std-math.Sqrt(2.0/3.0)) > 1e-12 {
		t.Fatalf("unexpected std: %f", std)
	}
	if _, err := Avg(nil); err == nil {
		t.Fatal("expected avg empty error")
	}
}

func TestDistance(t *testing.T) {
	if got := Distance(1, 2, 4, 6); math.Abs(got-5) > 1e-12 {
		t.Fatalf("unexpected distance: %f", got)
	}
}
