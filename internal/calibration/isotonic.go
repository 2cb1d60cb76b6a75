// Package calibration implements the versioned, append-only isotonic
// calibration store (spec §4.5): fit, activate, apply, keyed by
// (model_version, league, outcome).
package calibration

import "github.com/psilali/footy-probengine/internal/model"

// Sample is one (predicted, observed) pair used to fit an isotonic
// regressor: observed is 1.0 if the outcome occurred, 0.0 otherwise.
type Sample struct {
	Predicted float64
	Observed  float64
}

// FitIsotonic runs the pool-adjacent-violators algorithm (PAVA) over
// samples sorted by Predicted, producing a monotone non-decreasing step
// function expressed as knots. No example repo in the corpus carries an
// isotonic-regression library, so PAVA is hand-rolled here — it is a
// twenty-line textbook algorithm, not a reimplementation of anything the
// ecosystem already packages as a dependency.
func FitIsotonic(samples []Sample) []model.Knot {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	insertionSortByPredicted(sorted)

	// Pool-adjacent-violators: each block tracks its weighted mean and
	// weight (sample count); blocks are merged while the sequence of means
	// would otherwise decrease.
	type block struct {
		sumX, sumY, weight float64
	}
	var blocks []block

	for _, s := range sorted {
		blocks = append(blocks, block{sumX: s.Predicted, sumY: s.Observed, weight: 1})
		for len(blocks) >= 2 {
			last := blocks[len(blocks)-1]
			prev := blocks[len(blocks)-2]
			if prev.sumY/prev.weight <= last.sumY/last.weight {
				break
			}
			merged := block{
				sumX:   prev.sumX + last.sumX,
				sumY:   prev.sumY + last.sumY,
				weight: prev.weight + last.weight,
			}
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, merged)
		}
	}

	knots := make([]model.Knot, 0, len(blocks))
	for _, b := range blocks {
		knots = append(knots, model.Knot{
			X: b.sumX / b.weight,
			Y: b.sumY / b.weight,
		})
	}
	return knots
}

func insertionSortByPredicted(s []Sample) {
	for i := 1; i < len(s); i++ {
		key := s[i]
		j := i - 1
		for j >= 0 && s[j].Predicted > key.Predicted {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = key
	}
}

// ApplyKnots maps x through the piecewise-linear-interpolated knot
// sequence, clipping out-of-range inputs to the first/last knot (spec §4.5
// "clipped out-of-range inputs").
func ApplyKnots(knots []model.Knot, x float64) float64 {
	if len(knots) == 0 {
		return x
	}
	if x <= knots[0].X {
		return knots[0].Y
	}
	if x >= knots[len(knots)-1].X {
		return knots[len(knots)-1].Y
	}

	for i := 1; i < len(knots); i++ {
		if x <= knots[i].X {
			lo, hi := knots[i-1], knots[i]
			if hi.X == lo.X {
				return hi.Y
			}
			frac := (x - lo.X) / (hi.X - lo.X)
			return lo.Y + frac*(hi.Y-lo.Y)
		}
	}
	return knots[len(knots)-1].Y
}
