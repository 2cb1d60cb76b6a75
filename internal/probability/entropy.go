package probability

import (
	"math"

	"github.com/psilali/footy-probengine/internal/model"
)

// Entropy computes H(p) = -Σ p log p for a 1X2 triple, guarding against
// log(0) for zero-probability outcomes.
func Entropy(p model.Triple) float64 {
	return term(p.Home) + term(p.Draw) + term(p.Away)
}

func term(p float64) float64 {
	if p <= 0 {
		return 0
	}
	return -p * math.Log(p)
}
