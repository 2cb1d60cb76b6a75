package probability

import (
	"math"

	"github.com/psilali/footy-probengine/internal/model"
)

// drawBoostFactor is set D's draw multiplier before renormalisation.
const drawBoostFactor = 1.15

// entropyPenaltyScale is set E's logit scaling factor.
const entropyPenaltyScale = 1.5

// Inputs bundles every intermediate probability a fixture can produce, so
// the deriver can dispatch over the closed {A..G} tag set without needing
// to recompute anything (spec §4.6, §9: "prefer a tagged variant with a
// pure per-tag reducer over any inheritance hierarchy").
type Inputs struct {
	Base           model.Triple // calibrate(base)
	Blend          model.Triple // calibrate(blend), set B
	MarketDominant model.Triple // calibrate(0.2*base + 0.8*market)
	MarketOdds     *model.Odds
	BrierA, BrierB, BrierC float64 // historical Brier scores feeding the G ensemble weights
}

// DeriveAll computes every set the inputs support; a set whose precondition
// (spec §4.6 "Condition" column) is unmet is omitted from the result.
func DeriveAll(fixtureID string, in Inputs) []model.ProbabilitySet {
	var sets []model.ProbabilitySet

	sets = append(sets, setFromTriple(fixtureID, model.SetPure, in.Base, "calibrate(base)"))

	hasMarket := in.MarketOdds != nil
	if !hasMarket {
		return sets
	}

	setB := setFromTriple(fixtureID, model.SetBalanced, in.Blend, "calibrate(blend)")
	sets = append(sets, setB)

	setC := setFromTriple(fixtureID, model.SetMarketDominant, in.MarketDominant, "calibrate(0.2*base+0.8*market)")
	sets = append(sets, setC)

	sets = append(sets, deriveD(fixtureID, in.Blend))
	sets = append(sets, deriveE(fixtureID, in.Blend))
	sets = append(sets, deriveF(fixtureID, in.Blend, *in.MarketOdds))
	sets = append(sets, deriveG(fixtureID, in.Base, in.Blend, in.MarketDominant, in.BrierA, in.BrierB, in.BrierC))

	return sets
}

func setFromTriple(fixtureID string, key model.SetKey, p model.Triple, source string) model.ProbabilitySet {
	return model.ProbabilitySet{
		FixtureID: fixtureID,
		Key:       key,
		Probs:     p,
		Entropy:   Entropy(p),
		Source:    source,
	}
}

// deriveD boosts the draw probability of B by a fixed factor and
// renormalises (spec §4.6 set D).
func deriveD(fixtureID string, b model.Triple) model.ProbabilitySet {
	boosted := model.Triple{Home: b.Home, Draw: b.Draw * drawBoostFactor, Away: b.Away}
	normalised := normalise(boosted)
	return setFromTriple(fixtureID, model.SetDrawBoosted, normalised, "normalise(p_h, 1.15*p_d, p_a) on B")
}

// deriveE scales B's logits by a fixed factor and re-softmaxes, sharpening
// the distribution toward its mode (spec §4.6 set E).
func deriveE(fixtureID string, b model.Triple) model.ProbabilitySet {
	logits := []float64{logit(b.Home), logit(b.Draw), logit(b.Away)}
	for i := range logits {
		logits[i] *= entropyPenaltyScale
	}
	sm := softmax(logits)
	triple := model.Triple{Home: sm[0], Draw: sm[1], Away: sm[2]}
	return setFromTriple(fixtureID, model.SetEntropyPenalised, triple, "softmax(logit(B)*1.5)")
}

// deriveF surfaces per-pick Kelly fractions without altering B's
// probabilities (spec §4.6 set F).
func deriveF(fixtureID string, b model.Triple, o model.Odds) model.ProbabilitySet {
	kelly := model.Triple{
		Home: kellyFraction(b.Home, o.Home),
		Draw: kellyFraction(b.Draw, o.Draw),
		Away: kellyFraction(b.Away, o.Away),
	}
	set := setFromTriple(fixtureID, model.SetKellyWeighted, b, "B (unchanged), Kelly fractions surfaced")
	set.KellyFractions = &kelly
	return set
}

func kellyFraction(p, o float64) float64 {
	if o <= 1 {
		return 0
	}
	return (p*o - 1) / (o - 1)
}

// deriveG ensembles A, B, C weighted inversely by historical Brier score,
// so the more reliable component dominates the blend (spec §4.6 set G).
func deriveG(fixtureID string, a, b, c model.Triple, brierA, brierB, brierC float64) model.ProbabilitySet {
	wA := inverseWeight(brierA)
	wB := inverseWeight(brierB)
	wC := inverseWeight(brierC)
	total := wA + wB + wC
	if total == 0 {
		wA, wB, wC, total = 1, 1, 1, 3
	}
	wA, wB, wC = wA/total, wB/total, wC/total

	triple := model.Triple{
		Home: wA*a.Home + wB*b.Home + wC*c.Home,
		Draw: wA*a.Draw + wB*b.Draw + wC*c.Draw,
		Away: wA*a.Away + wB*b.Away + wC*c.Away,
	}
	return setFromTriple(fixtureID, model.SetEnsemble, normalise(triple), "w_A*A + w_B*B + w_C*C, w ~ 1/Brier")
}

func inverseWeight(brier float64) float64 {
	if brier <= 0 {
		return 0
	}
	return 1 / brier
}

func normalise(t model.Triple) model.Triple {
	sum := t.Sum()
	if sum <= 0 {
		return model.Triple{Home: 1.0 / 3, Draw: 1.0 / 3, Away: 1.0 / 3}
	}
	return model.Triple{Home: t.Home / sum, Draw: t.Draw / sum, Away: t.Away / sum}
}

func logit(p float64) float64 {
	const eps = 1e-9
	if p < eps {
		p = eps
	}
	if p > 1-eps {
		p = 1 - eps
	}
	return math.Log(p / (1 - p))
}
