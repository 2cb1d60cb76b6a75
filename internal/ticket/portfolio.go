package ticket

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/psilali/footy-probengine/internal/model"
)

const defaultPortfolioLambda = 0.5
const correlationRejectBound = 0.8

// Optimizer selects a correlation-penalised bundle of accepted tickets
// (spec §4.9).
type Optimizer struct {
	Lambda float64
	MaxN   int
}

func NewOptimizer(lambda float64, maxN int) *Optimizer {
	if lambda <= 0 {
		lambda = defaultPortfolioLambda
	}
	return &Optimizer{Lambda: lambda, MaxN: maxN}
}

// Select runs greedy-plus-swap bundle selection, computing the pairwise
// pick-overlap correlation matrix concurrently across ticket pairs via
// errgroup (mirroring the pipeline's per-fixture fan-out) before the
// sequential greedy pass.
func (o *Optimizer) Select(ctx context.Context, tickets []model.Ticket) ([]model.Ticket, model.PortfolioDiagnostics, error) {
	if len(tickets) == 0 {
		return nil, model.PortfolioDiagnostics{}, nil
	}

	corr, err := correlationMatrix(ctx, tickets)
	if err != nil {
		return nil, model.PortfolioDiagnostics{}, err
	}

	selected := greedyPlusSwap(tickets, corr, o.Lambda, o.MaxN)
	selected = enforceCorrelationBound(selected, corr)

	diag := diagnostics(selected, corr, o.Lambda)
	return selected, diag, nil
}

// correlationMatrix computes |pick overlap| / |fixtures| for every ticket
// pair, using gonum's mat.Dense as the shared representation (as the
// analytics corpus does for covariance/correlation matrices) and fanning
// the O(n^2) pairwise work out across goroutines.
func correlationMatrix(ctx context.Context, tickets []model.Ticket) (*mat.Dense, error) {
	n := len(tickets)
	m := mat.NewDense(n, n, nil)

	g, _ := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			for j := i + 1; j < n; j++ {
				c := pickOverlap(tickets[i], tickets[j])
				m.Set(i, j, c)
				m.Set(j, i, c)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

func pickOverlap(a, b model.Ticket) float64 {
	if len(a.Picks) == 0 || len(a.Picks) != len(b.Picks) {
		return 0
	}
	overlap := 0
	for i := range a.Picks {
		if a.Picks[i].FixtureID == b.Picks[i].FixtureID && a.Picks[i].Outcome == b.Picks[i].Outcome {
			overlap++
		}
	}
	return float64(overlap) / float64(len(a.Picks))
}

func bundleScore(idx []int, tickets []model.Ticket, corr *mat.Dense, lambda float64) float64 {
	score := 0.0
	for _, i := range idx {
		score += tickets[i].EVScore
	}
	for a := 0; a < len(idx); a++ {
		for b := a + 1; b < len(idx); b++ {
			score -= lambda * corr.At(idx[a], idx[b])
		}
	}
	return score
}

// greedyPlusSwap seeds with the highest-score ticket, greedily adds the
// ticket maximising marginal bundle score, then attempts pairwise swaps
// with unselected tickets until no improvement (spec §4.9 "Selection").
func greedyPlusSwap(tickets []model.Ticket, corr *mat.Dense, lambda float64, maxN int) []model.Ticket {
	if maxN <= 0 {
		maxN = len(tickets)
	}

	best := 0
	for i, t := range tickets {
		if t.EVScore > tickets[best].EVScore {
			best = i
		}
	}

	selected := []int{best}
	inBundle := map[int]bool{best: true}

	for len(selected) < maxN && len(selected) < len(tickets) {
		bestMarginal := 0.0
		bestCandidate := -1
		for i := range tickets {
			if inBundle[i] {
				continue
			}
			trial := append(append([]int{}, selected...), i)
			marginal := bundleScore(trial, tickets, corr, lambda) - bundleScore(selected, tickets, corr, lambda)
			if bestCandidate == -1 || marginal > bestMarginal {
				bestMarginal = marginal
				bestCandidate = i
			}
		}
		if bestCandidate == -1 || bestMarginal <= 0 {
			break
		}
		selected = append(selected, bestCandidate)
		inBundle[bestCandidate] = true
	}

	improved := true
	for improved {
		improved = false
		current := bundleScore(selected, tickets, corr, lambda)
		for si, sIdx := range selected {
			for cand := range tickets {
				if inBundle[cand] {
					continue
				}
				trial := append([]int{}, selected...)
				trial[si] = cand
				if bundleScore(trial, tickets, corr, lambda) > current {
					delete(inBundle, sIdx)
					inBundle[cand] = true
					selected = trial
					improved = true
					break
				}
			}
			if improved {
				break
			}
		}
	}

	out := make([]model.Ticket, len(selected))
	for i, idx := range selected {
		out[i] = tickets[idx]
	}
	return out
}

// enforceCorrelationBound guarantees at least one pair with corr < 0.8,
// else returns the best sub-bundle that satisfies it (spec §4.9).
func enforceCorrelationBound(bundle []model.Ticket, corr *mat.Dense) []model.Ticket {
	if len(bundle) < 2 {
		return bundle
	}
	for i := 0; i < len(bundle); i++ {
		for j := i + 1; j < len(bundle); j++ {
			if pickOverlap(bundle[i], bundle[j]) < correlationRejectBound {
				return bundle
			}
		}
	}
	// No pair satisfies the bound: fall back to the single best ticket.
	best := 0
	for i, t := range bundle {
		if t.EVScore > bundle[best].EVScore {
			best = i
		}
	}
	return bundle[best : best+1]
}

func diagnostics(bundle []model.Ticket, corr *mat.Dense, lambda float64) model.PortfolioDiagnostics {
	diag := model.PortfolioDiagnostics{ArchetypeDistribution: map[model.Archetype]int{}}
	if len(bundle) == 0 {
		return diag
	}

	var sum, max float64
	pairs := 0
	for i := 0; i < len(bundle); i++ {
		diag.ArchetypeDistribution[bundle[i].Archetype]++
		for j := i + 1; j < len(bundle); j++ {
			c := pickOverlap(bundle[i], bundle[j])
			sum += c
			pairs++
			if c > max {
				max = c
			}
		}
	}
	if pairs > 0 {
		diag.MeanPairwiseCorr = sum / float64(pairs)
	}
	diag.MaxPairwiseCorr = max

	idx := make([]int, len(bundle))
	for i := range idx {
		idx[i] = i
	}
	diag.BundleScore = 0
	for _, t := range bundle {
		diag.BundleScore += t.EVScore
	}
	diag.BundleScore -= lambda * sum

	return diag
}
