package strength

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/psilali/footy-probengine/internal/model"
	"github.com/psilali/footy-probengine/internal/telemetry"
)

// MatchResult is one historical result used to fit team strengths.
type MatchResult struct {
	Date      time.Time
	LeagueID  string
	HomeTeam  string
	AwayTeam  string
	HomeGoals int
	AwayGoals int
}

// FitOptions parameterises the Dixon-Coles fit (spec §4.1).
type FitOptions struct {
	ReferenceDate time.Time
	LeagueID      string // "" fits across all leagues with a single home_advantage/rho
	Xi            float64
	RegWeight     float64 // L2 prior weight pulling team params toward the league mean
	MaxIterations int
	Tolerance     float64 // not passed to the optimiser; convergence is grad norm < GradTolerance or gonum's own function-convergence status
	GradTolerance float64
	MinMatchesPerTeam int
}

// DefaultFitOptions mirrors the literal constants named in spec §4.1.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		Xi:                0.0065,
		RegWeight:         0.01,
		MaxIterations:     200,
		Tolerance:         1e-5,
		GradTolerance:     1e-4,
		MinMatchesPerTeam: 5,
	}
}

// FitResult is the fitted parameter set plus convergence diagnostics.
type FitResult struct {
	Strengths map[string]model.TeamStrength
	Params    model.DixonColesParams
	Converged bool
	Iterations int
	LogLikelihood float64
}

// Estimator fits Dixon-Coles team strengths by maximum likelihood with
// exponential time decay, using gonum's L-BFGS quasi-Newton optimiser
// (spec §4.1: "any quasi-Newton/L-BFGS variant").
type Estimator struct{}

func NewEstimator() *Estimator { return &Estimator{} }

// paramVector packs (home_advantage, rho, attack[0..n), defense[0..n)) into
// a single flat slice for gonum's optimize.Problem.
type paramLayout struct {
	teams     []string
	teamIndex map[string]int
}

func newParamLayout(matches []MatchResult) paramLayout {
	seen := make(map[string]bool)
	var teams []string
	for _, m := range matches {
		if !seen[m.HomeTeam] {
			seen[m.HomeTeam] = true
			teams = append(teams, m.HomeTeam)
		}
		if !seen[m.AwayTeam] {
			seen[m.AwayTeam] = true
			teams = append(teams, m.AwayTeam)
		}
	}
	sort.Strings(teams)

	idx := make(map[string]int, len(teams))
	for i, t := range teams {
		idx[t] = i
	}
	return paramLayout{teams: teams, teamIndex: idx}
}

func (l paramLayout) size() int { return 2 + 2*len(l.teams) }

func (l paramLayout) homeAdv(x []float64) float64 { return x[0] }
func (l paramLayout) rho(x []float64) float64     { return x[1] }
func (l paramLayout) attack(x []float64, team string) float64 {
	return x[2+l.teamIndex[team]]
}
func (l paramLayout) defense(x []float64, team string) float64 {
	return x[2+len(l.teams)+l.teamIndex[team]]
}

// Fit runs maximum-likelihood estimation over every match passed in,
// weighted by exponential time decay; it applies no lookback window of its
// own. Returns model.ErrInsufficientData when any team has fewer than
// opts.MinMatchesPerTeam matches, and model.ErrNonConvergence
// (after one internal retry at a tighter tolerance) when the iteration
// budget is exhausted.
func (e *Estimator) Fit(modelVersion string, matches []MatchResult, opts FitOptions) (FitResult, error) {
	matchCount := make(map[string]int)
	for _, m := range matches {
		matchCount[m.HomeTeam]++
		matchCount[m.AwayTeam]++
	}
	for team, n := range matchCount {
		if n < opts.MinMatchesPerTeam {
			return FitResult{}, fmt.Errorf("team %s has %d matches (need %d): %w", team, n, opts.MinMatchesPerTeam, model.ErrInsufficientData)
		}
	}

	layout := newParamLayout(matches)
	weights := timeWeights(matches, opts.ReferenceDate, opts.Xi)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return negLogLikelihood(x, layout, matches, weights, opts.RegWeight)
		},
		Grad: func(grad, x []float64) {
			negLogLikelihoodGrad(grad, x, layout, matches, weights, opts.RegWeight)
		},
	}

	x0 := make([]float64, layout.size())
	x0[0] = 0.25 // initial home advantage
	x0[1] = opts.Rho0()

	result, converged, iters, err := runLBFGS(problem, x0, opts)
	if err != nil {
		return FitResult{}, fmt.Errorf("dixon-coles fit: %w", err)
	}

	if !converged {
		telemetry.Metrics.NonConvergenceRetries.Inc()
		tighter := opts
		tighter.Tolerance = opts.Tolerance / 10
		tighter.GradTolerance = opts.GradTolerance / 10
		result, converged, iters, err = runLBFGS(problem, result, tighter)
		if err != nil {
			return FitResult{}, fmt.Errorf("dixon-coles retry: %w", err)
		}
		if !converged {
			return FitResult{}, fmt.Errorf("%w after %d iterations", model.ErrNonConvergence, iters)
		}
	}

	normalizeIdentifiability(result, layout)

	strengths := make(map[string]model.TeamStrength, len(layout.teams))
	now := time.Now()
	for _, team := range layout.teams {
		strengths[team] = model.TeamStrength{
			TeamID:       team,
			ModelVersion: modelVersion,
			Attack:       layout.attack(result, team),
			Defense:      layout.defense(result, team),
			UpdatedAt:    now,
		}
	}

	params := model.DixonColesParams{
		ModelVersion:  modelVersion,
		HomeAdvantage: layout.homeAdv(result),
		Rho:           layout.rho(result),
		Xi:            opts.Xi,
		LeagueParams:  map[string]model.LeagueDCParams{},
		FittedAt:      now,
	}

	return FitResult{
		Strengths:     strengths,
		Params:        params,
		Converged:     true,
		Iterations:    iters,
		LogLikelihood: -negLogLikelihood(result, layout, matches, weights, opts.RegWeight),
	}, nil
}

// Rho0 is the standard Dixon-Coles starting value for the rho parameter.
func (FitOptions) Rho0() float64 { return -0.1 }

func runLBFGS(problem optimize.Problem, x0 []float64, opts FitOptions) (x []float64, converged bool, iterations int, err error) {
	method := &optimize.LBFGS{}
	settings := &optimize.Settings{
		MajorIterations:   opts.MaxIterations,
		GradientThreshold: opts.GradTolerance,
	}

	result, err := optimize.Minimize(problem, x0, settings, method)
	if err != nil {
		// gonum reports iteration-limit exhaustion as a Status, not
		// necessarily an error; treat a nil result as a hard failure only.
		if result == nil {
			return x0, false, 0, err
		}
	}

	converged = result.Status == optimize.GradientThreshold || result.Status == optimize.FunctionConverged
	return result.X, converged, result.Stats.MajorIterations, nil
}

func timeWeights(matches []MatchResult, refDate time.Time, xi float64) []float64 {
	w := make([]float64, len(matches))
	for i, m := range matches {
		days := refDate.Sub(m.Date).Hours() / 24
		if days < 0 {
			days = 0
		}
		w[i] = math.Exp(-xi * days)
	}
	return w
}

func negLogLikelihood(x []float64, l paramLayout, matches []MatchResult, weights []float64, regWeight float64) float64 {
	nll := 0.0
	homeAdv := l.homeAdv(x)
	rho := l.rho(x)

	for i, m := range matches {
		lh, la := ExpectedGoals(l.attack(x, m.HomeTeam), l.defense(x, m.HomeTeam), l.attack(x, m.AwayTeam), l.defense(x, m.AwayTeam), homeAdv)
		p := PoissonPMF(lh, m.HomeGoals) * PoissonPMF(la, m.AwayGoals) * Tau(m.HomeGoals, m.AwayGoals, lh, la, rho)
		if p <= 0 {
			p = 1e-12
		}
		nll -= weights[i] * math.Log(p)
	}

	// L2 prior pulling attack/defense toward the league mean (zero, since
	// parameters are differences from an implicit league-average team).
	reg := 0.0
	for _, team := range l.teams {
		reg += l.attack(x, team)*l.attack(x, team) + l.defense(x, team)*l.defense(x, team)
	}
	nll += regWeight * reg

	return nll
}

// negLogLikelihoodGrad computes the gradient by central finite differences.
// The per-match analytical gradient of the Dixon-Coles likelihood is
// piecewise (the tau correction only applies to four scorelines), so a
// numerical gradient keeps this tractable while still feeding gonum's
// quasi-Newton update, consistent with L-BFGS's use of an approximate
// Hessian rather than an exact one.
func negLogLikelihoodGrad(grad, x []float64, l paramLayout, matches []MatchResult, weights []float64, regWeight float64) {
	const h = 1e-6
	base := make([]float64, len(x))
	copy(base, x)

	for i := range x {
		base[i] = x[i] + h
		fPlus := negLogLikelihood(base, l, matches, weights, regWeight)
		base[i] = x[i] - h
		fMinus := negLogLikelihood(base, l, matches, weights, regWeight)
		base[i] = x[i]
		grad[i] = (fPlus - fMinus) / (2 * h)
	}
}

// normalizeIdentifiability enforces Σ α_i = 0 over teams (spec §4.1)
// by subtracting the league mean from every attack rating, and does the
// same for defense to keep both scales centered.
func normalizeIdentifiability(x []float64, l paramLayout) {
	n := float64(len(l.teams))
	if n == 0 {
		return
	}
	var attackSum, defenseSum float64
	for _, team := range l.teams {
		attackSum += l.attack(x, team)
		defenseSum += l.defense(x, team)
	}
	attackMean := attackSum / n
	defenseMean := defenseSum / n
	for _, team := range l.teams {
		x[2+l.teamIndex[team]] -= attackMean
		x[2+len(l.teams)+l.teamIndex[team]] -= defenseMean
	}
}
