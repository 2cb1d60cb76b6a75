// Package ticket generates candidate jackpot tickets under one of four
// archetypes, evaluates them with the Decision-Intelligence scorer, and
// selects a correlation-bounded portfolio from the accepted set (spec
// §4.7-§4.9).
package ticket

import "github.com/psilali/footy-probengine/internal/model"

// FixtureView is everything the generator and evaluator need about one
// fixture's probabilities and market context, independent of which
// probability set is in use.
type FixtureView struct {
	FixtureID    string
	Probs        model.Triple // the chosen probability set's triple for this fixture
	Odds         *model.Odds
	DCApplied    bool
	XGHome       float64
	XGAway       float64
	XGConfidence float64
	LambdaHome   float64
	LambdaAway   float64
	KellyFractions *model.Triple
}

// Favorite returns the outcome with the highest probability.
func (v FixtureView) Favorite() model.Outcome {
	switch {
	case v.Probs.Home >= v.Probs.Draw && v.Probs.Home >= v.Probs.Away:
		return model.OutcomeHome
	case v.Probs.Draw >= v.Probs.Away:
		return model.OutcomeDraw
	default:
		return model.OutcomeAway
	}
}

func (v FixtureView) MaxProb() float64 {
	p := v.Probs
	m := p.Home
	if p.Draw > m {
		m = p.Draw
	}
	if p.Away > m {
		m = p.Away
	}
	return m
}

// AwayEV returns the expected value of an away pick, or false if odds are
// unavailable.
func (v FixtureView) AwayEV() (float64, bool) {
	if v.Odds == nil {
		return 0, false
	}
	return expectedValue(v.Probs.Away, v.Odds.Away), true
}

func expectedValue(p, o float64) float64 {
	return p*(o-1) - (1 - p)
}

// SlateProfile summarizes a fixture list for archetype selection (spec
// §4.7 tie-break rule).
type SlateProfile struct {
	TotalFixtures       int
	HighConfidenceCount int // max(p) >= 0.55
	PositiveAwayEVCount int
	LowGoalDiffCount    int // |lambda_h - lambda_a| < 0.4
}

func BuildSlateProfile(views []FixtureView) SlateProfile {
	profile := SlateProfile{TotalFixtures: len(views)}
	for _, v := range views {
		if v.MaxProb() >= 0.55 {
			profile.HighConfidenceCount++
		}
		if ev, ok := v.AwayEV(); ok && ev > 0 {
			profile.PositiveAwayEVCount++
		}
		diff := v.LambdaHome - v.LambdaAway
		if diff < 0 {
			diff = -diff
		}
		if diff < 0.4 {
			profile.LowGoalDiffCount++
		}
	}
	return profile
}

func fraction(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// SelectArchetype applies the spec §4.7 tie-break rule in order.
func SelectArchetype(profile SlateProfile) model.Archetype {
	if fraction(profile.HighConfidenceCount, profile.TotalFixtures) >= 0.70 {
		return model.ArchetypeFavoriteLock
	}
	if fraction(profile.PositiveAwayEVCount, profile.TotalFixtures) >= 0.25 {
		return model.ArchetypeAwayEdge
	}
	if fraction(profile.LowGoalDiffCount, profile.TotalFixtures) >= 0.30 {
		return model.ArchetypeDrawSelective
	}
	return model.ArchetypeBalanced
}
