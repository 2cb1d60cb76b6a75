// Package odds converts bookmaker decimal odds to margin-removed market
// probabilities, the first step of the odds-blending stage (spec §4.4).
package odds

import "github.com/psilali/footy-probengine/internal/model"

// MarketProbs is a vig-free 1X2 probability triple plus the retained
// overround (bookmaker margin), itself used as a GLM feature.
type MarketProbs struct {
	Probs     model.Triple
	Overround float64
}

// RemoveVig2 converts two-way decimal odds to fair probabilities by
// stripping the bookmaker's overround.
func RemoveVig2(a, b float64) (float64, float64) {
	rawA := 1.0 / a
	rawB := 1.0 / b
	total := rawA + rawB
	return rawA / total, rawB / total
}

// RemoveVig3 converts three-way decimal odds to a vig-free market triple.
// The pre-normalisation sum minus 1 is the overround, retained as a feature
// for the odds-blending GLM (spec §4.4).
func RemoveVig3(o model.Odds) MarketProbs {
	rawH := 1.0 / o.Home
	rawD := 1.0 / o.Draw
	rawA := 1.0 / o.Away
	total := rawH + rawD + rawA

	return MarketProbs{
		Probs: model.Triple{
			Home: rawH / total,
			Draw: rawD / total,
			Away: rawA / total,
		},
		Overround: total - 1,
	}
}

// ImpliedOdds converts a probability triple back to decimal odds at the
// given overround — the inverse of RemoveVig3, used by the round-trip law
// in spec §8: odds re-derived from market probabilities should reproduce
// the original odds within the stored overround.
func ImpliedOdds(p model.Triple, overround float64) model.Odds {
	scale := 1 + overround
	return model.Odds{
		Home: 1 / (p.Home * scale),
		Draw: 1 / (p.Draw * scale),
		Away: 1 / (p.Away * scale),
	}
}
