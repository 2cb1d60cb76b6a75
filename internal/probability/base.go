// Package probability turns fitted Dixon-Coles parameters into the seven
// canonical probability sets a fixture carries: the analytical base triple,
// the draw-structural adjustment, the market blend, and their derived
// variants (spec §4.2-§4.6).
package probability

import (
	"fmt"
	"math"

	"github.com/psilali/footy-probengine/internal/model"
	"github.com/psilali/footy-probengine/internal/strength"
)

const scoreGridMax = 8

// xgConfidenceEpsilon keeps xg_confidence finite when both expected-goal
// rates are zero.
const xgConfidenceEpsilon = 0.01

// tauGateThreshold is the combined-expected-goals ceiling below which the
// Dixon-Coles low-score correction is applied at all.
const tauGateThreshold = 2.4

// BaseGenerator computes the analytical Dixon-Coles 1X2 triple for a fixture.
type BaseGenerator struct{}

func NewBaseGenerator() *BaseGenerator { return &BaseGenerator{} }

// Generate implements spec §4.2: enumerate the 0..8 x 0..8 score grid,
// gate the tau correction by combined expected goals, aggregate into a 1X2
// triple, and redistribute the tail mass beyond the grid proportionally.
func (g *BaseGenerator) Generate(fixtureID string, home, away model.TeamStrength, params model.DixonColesParams, leagueID string) (model.BaseProbability, error) {
	rho, homeAdvantage := params.ForLeague(leagueID)

	lambdaHome, lambdaAway := strength.ExpectedGoals(home.Attack, home.Defense, away.Attack, away.Defense, homeAdvantage)

	if err := validateLambda(lambdaHome); err != nil {
		return model.BaseProbability{}, fmt.Errorf("fixture %s home lambda: %w", fixtureID, err)
	}
	if err := validateLambda(lambdaAway); err != nil {
		return model.BaseProbability{}, fmt.Errorf("fixture %s away lambda: %w", fixtureID, err)
	}

	dcApplied := lambdaHome+lambdaAway < tauGateThreshold

	var pHome, pDraw, pAway, massCovered float64
	for x := 0; x <= scoreGridMax; x++ {
		for y := 0; y <= scoreGridMax; y++ {
			tau := 1.0
			if dcApplied {
				tau = strength.Tau(x, y, lambdaHome, lambdaAway, rho)
			}
			p := strength.PoissonPMF(lambdaHome, x) * strength.PoissonPMF(lambdaAway, y) * tau
			massCovered += p

			switch {
			case x > y:
				pHome += p
			case x == y:
				pDraw += p
			default:
				pAway += p
			}
		}
	}

	// Residual mass beyond the grid is redistributed proportionally to the
	// mass already assigned, preserving normalisation to 1.0.
	if massCovered > 0 && massCovered < 1 {
		scale := 1 / massCovered
		pHome *= scale
		pDraw *= scale
		pAway *= scale
	}

	xgConfidence := 1 - math.Abs(lambdaHome-lambdaAway)/(lambdaHome+lambdaAway+xgConfidenceEpsilon)
	xgConfidence = clip(xgConfidence, 0.1, 1.0)

	return model.BaseProbability{
		FixtureID:    fixtureID,
		Probs:        model.Triple{Home: pHome, Draw: pDraw, Away: pAway},
		LambdaHome:   lambdaHome,
		LambdaAway:   lambdaAway,
		XGHome:       lambdaHome,
		XGAway:       lambdaAway,
		XGConfidence: xgConfidence,
		DCApplied:    dcApplied,
	}, nil
}

func validateLambda(lambda float64) error {
	if math.IsNaN(lambda) || math.IsInf(lambda, 0) || lambda < 0.01 || lambda > 10 {
		return fmt.Errorf("lambda %v out of [0.01, 10]: %w", lambda, model.ErrInvalidLambda)
	}
	return nil
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
