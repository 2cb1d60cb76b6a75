package calibration

import (
	"math"
	"testing"
)

func TestFitIsotonicMonotoneNonDecreasing(t *testing.T) {
	// Observed rates dip in the middle (a violation PAVA must pool away).
	samples := []Sample{
		{Predicted: 0.10, Observed: 0.05},
		{Predicted: 0.10, Observed: 0.12},
		{Predicted: 0.30, Observed: 0.50},
		{Predicted: 0.30, Observed: 0.20}, // violates monotonicity locally
		{Predicted: 0.50, Observed: 0.40},
		{Predicted: 0.70, Observed: 0.75},
		{Predicted: 0.90, Observed: 0.85},
	}

	knots := FitIsotonic(samples)
	if len(knots) == 0 {
		t.Fatal("FitIsotonic returned no knots")
	}

	for i := 1; i < len(knots); i++ {
		if knots[i].Y < knots[i-1].Y-1e-12 {
			t.Errorf("knots[%d].Y = %.4f < knots[%d].Y = %.4f, want non-decreasing", i, knots[i].Y, i-1, knots[i-1].Y)
		}
		if knots[i].X < knots[i-1].X {
			t.Errorf("knots[%d].X = %.4f < knots[%d].X = %.4f, want non-decreasing x", i, knots[i].X, i-1, knots[i-1].X)
		}
	}
}

func TestFitIsotonicAlreadyMonotoneIsUnchanged(t *testing.T) {
	samples := []Sample{
		{Predicted: 0.1, Observed: 0.1},
		{Predicted: 0.5, Observed: 0.5},
		{Predicted: 0.9, Observed: 0.9},
	}

	knots := FitIsotonic(samples)
	if len(knots) != 3 {
		t.Fatalf("len(knots) = %d, want 3 (no pooling needed)", len(knots))
	}
	for i, k := range knots {
		if math.Abs(k.X-samples[i].Predicted) > 1e-12 || math.Abs(k.Y-samples[i].Observed) > 1e-12 {
			t.Errorf("knots[%d] = %+v, want unchanged sample %+v", i, k, samples[i])
		}
	}
}

func TestApplyKnotsInterpolatesAndClips(t *testing.T) {
	knots := FitIsotonic([]Sample{
		{Predicted: 0.2, Observed: 0.1},
		{Predicted: 0.4, Observed: 0.3},
		{Predicted: 0.6, Observed: 0.5},
	})

	if got := ApplyKnots(knots, 0.0); got != knots[0].Y {
		t.Errorf("ApplyKnots below range = %.4f, want clipped to first knot %.4f", got, knots[0].Y)
	}
	if got := ApplyKnots(knots, 1.0); got != knots[len(knots)-1].Y {
		t.Errorf("ApplyKnots above range = %.4f, want clipped to last knot %.4f", got, knots[len(knots)-1].Y)
	}

	mid := (knots[0].X + knots[1].X) / 2
	got := ApplyKnots(knots, mid)
	want := (knots[0].Y + knots[1].Y) / 2
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("ApplyKnots midpoint = %.9f, want %.9f (linear interpolation)", got, want)
	}
}

func TestApplyKnotsEmptyIsIdentity(t *testing.T) {
	if got := ApplyKnots(nil, 0.37); got != 0.37 {
		t.Errorf("ApplyKnots(nil, 0.37) = %.4f, want 0.37 (pass-through)", got)
	}
}
