// Package strength fits Dixon-Coles team-strength parameters by maximum
// likelihood and turns them into per-fixture expected goals (spec §4.1).
package strength

import "math"

// PoissonPMF returns P(X = k) for X ~ Poisson(lambda), computed in log
// space for numerical stability at large k.
func PoissonPMF(lambda float64, k int) float64 {
	if k < 0 {
		return 0
	}
	if lambda <= 0 {
		if k == 0 {
			return 1
		}
		return 0
	}
	logProb := float64(k)*math.Log(lambda) - lambda - logFactorial(k)
	return math.Exp(logProb)
}

func logFactorial(n int) float64 {
	total := 0.0
	for i := 2; i <= n; i++ {
		total += math.Log(float64(i))
	}
	return total
}

// Tau is the Dixon-Coles low-score correlation correction. It only modifies
// the four scorelines 0-0, 1-0, 0-1, 1-1; every other scoreline is
// untouched (tau = 1).
func Tau(homeGoals, awayGoals int, lambdaHome, lambdaAway, rho float64) float64 {
	switch {
	case homeGoals == 0 && awayGoals == 0:
		return 1 - lambdaHome*lambdaAway*rho
	case homeGoals == 0 && awayGoals == 1:
		return 1 + lambdaHome*rho
	case homeGoals == 1 && awayGoals == 0:
		return 1 + lambdaAway*rho
	case homeGoals == 1 && awayGoals == 1:
		return 1 - rho
	default:
		return 1
	}
}

// ExpectedGoals computes (lambda_home, lambda_away) from attack/defense
// ratings, home advantage, per spec §4.1:
//
//	λ_h = exp(home_adv + α_home − β_away)
//	λ_a = exp(α_away − β_home)
func ExpectedGoals(homeAttack, homeDefense, awayAttack, awayDefense, homeAdvantage float64) (lambdaHome, lambdaAway float64) {
	lambdaHome = math.Exp(homeAdvantage + homeAttack - awayDefense)
	lambdaAway = math.Exp(awayAttack - homeDefense)
	return lambdaHome, lambdaAway
}
