package ticket

import (
	"context"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/psilali/footy-probengine/internal/model"
)

func pick(fixtureID string, outcome model.Outcome) model.Pick {
	return model.Pick{FixtureID: fixtureID, Outcome: outcome}
}

func TestPickOverlapIdenticalPicksIsOne(t *testing.T) {
	a := model.Ticket{Picks: []model.Pick{pick("f1", model.OutcomeHome), pick("f2", model.OutcomeAway)}}
	b := model.Ticket{Picks: []model.Pick{pick("f1", model.OutcomeHome), pick("f2", model.OutcomeAway)}}
	if got := pickOverlap(a, b); got != 1.0 {
		t.Errorf("pickOverlap() = %v, want 1.0 for identical picks", got)
	}
}

func TestPickOverlapDisjointPicksIsZero(t *testing.T) {
	a := model.Ticket{Picks: []model.Pick{pick("f1", model.OutcomeHome), pick("f2", model.OutcomeAway)}}
	b := model.Ticket{Picks: []model.Pick{pick("f1", model.OutcomeAway), pick("f2", model.OutcomeHome)}}
	if got := pickOverlap(a, b); got != 0.0 {
		t.Errorf("pickOverlap() = %v, want 0.0 for fully disjoint picks", got)
	}
}

func TestPickOverlapDifferentPickCountsIsZero(t *testing.T) {
	a := model.Ticket{Picks: []model.Pick{pick("f1", model.OutcomeHome)}}
	b := model.Ticket{Picks: []model.Pick{pick("f1", model.OutcomeHome), pick("f2", model.OutcomeAway)}}
	if got := pickOverlap(a, b); got != 0.0 {
		t.Errorf("pickOverlap() = %v, want 0.0 when pick counts differ", got)
	}
}

func TestPickOverlapEmptyPicksIsZero(t *testing.T) {
	a := model.Ticket{}
	b := model.Ticket{}
	if got := pickOverlap(a, b); got != 0.0 {
		t.Errorf("pickOverlap() = %v, want 0.0 for empty tickets", got)
	}
}

func TestBundleScoreSumsEVMinusCorrelationPenalty(t *testing.T) {
	tickets := []model.Ticket{
		{TicketID: "a", EVScore: 0.3},
		{TicketID: "b", EVScore: 0.5},
	}
	corr := mat.NewDense(2, 2, []float64{0, 0.4, 0.4, 0})

	got := bundleScore([]int{0, 1}, tickets, corr, 0.5)
	want := 0.8 - 0.5*0.4 // 0.6
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("bundleScore() = %.9f, want %.9f", got, want)
	}
}

func TestBundleScoreSingleTicketHasNoPenalty(t *testing.T) {
	tickets := []model.Ticket{{TicketID: "a", EVScore: 0.4}}
	corr := mat.NewDense(1, 1, []float64{0})
	if got := bundleScore([]int{0}, tickets, corr, 0.5); got != 0.4 {
		t.Errorf("bundleScore() = %v, want 0.4 for a singleton bundle", got)
	}
}

func TestGreedyPlusSwapSeedsWithHighestEVAndRespectsMaxN(t *testing.T) {
	tickets := []model.Ticket{
		{TicketID: "a", EVScore: 0.5},
		{TicketID: "b", EVScore: 0.3},
		{TicketID: "c", EVScore: 0.2},
	}
	corr := mat.NewDense(3, 3, nil) // fully uncorrelated: greedy reduces to top-EV selection

	got := greedyPlusSwap(tickets, corr, 0.5, 2)
	if len(got) != 2 {
		t.Fatalf("len(greedyPlusSwap()) = %d, want 2 (bounded by maxN)", len(got))
	}

	ids := map[string]bool{got[0].TicketID: true, got[1].TicketID: true}
	if !ids["a"] || !ids["b"] {
		t.Errorf("greedyPlusSwap() = %v, want the two highest-EV tickets {a, b}", ids)
	}
}

func TestGreedyPlusSwapZeroMaxNSelectsAllTickets(t *testing.T) {
	tickets := []model.Ticket{
		{TicketID: "a", EVScore: 0.5},
		{TicketID: "b", EVScore: 0.3},
	}
	corr := mat.NewDense(2, 2, nil)

	got := greedyPlusSwap(tickets, corr, 0.5, 0)
	if len(got) != 2 {
		t.Errorf("len(greedyPlusSwap()) with maxN=0 = %d, want 2 (no cap)", len(got))
	}
}

func TestGreedyPlusSwapAvoidsHighlyCorrelatedSecondPick(t *testing.T) {
	// b has higher raw EV than c, but is heavily correlated with the seed a;
	// c is uncorrelated, so the correlation-penalised marginal should favor c.
	tickets := []model.Ticket{
		{TicketID: "a", EVScore: 0.5},
		{TicketID: "b", EVScore: 0.35},
		{TicketID: "c", EVScore: 0.30},
	}
	corr := mat.NewDense(3, 3, []float64{
		0, 0.95, 0.0,
		0.95, 0, 0.0,
		0.0, 0.0, 0,
	})

	got := greedyPlusSwap(tickets, corr, 1.0, 2)
	if len(got) != 2 {
		t.Fatalf("len(greedyPlusSwap()) = %d, want 2", len(got))
	}
	ids := map[string]bool{got[0].TicketID: true, got[1].TicketID: true}
	if !ids["a"] || !ids["c"] {
		t.Errorf("greedyPlusSwap() = %v, want {a, c}: heavy correlation should route the penalised pick away from b", ids)
	}
}

func TestEnforceCorrelationBoundPassesThroughBelowBound(t *testing.T) {
	bundle := []model.Ticket{
		{TicketID: "a", EVScore: 0.5, Picks: []model.Pick{pick("f1", model.OutcomeHome)}},
		{TicketID: "b", EVScore: 0.4, Picks: []model.Pick{pick("f1", model.OutcomeAway)}},
	}
	corr := mat.NewDense(2, 2, []float64{0, 0, 0, 0})

	got := enforceCorrelationBound(bundle, corr)
	if len(got) != 2 {
		t.Fatalf("len(enforceCorrelationBound()) = %d, want 2 when a pair already satisfies the bound", len(got))
	}
}

func TestEnforceCorrelationBoundFallsBackToSingleBestTicket(t *testing.T) {
	// Every pair shares identical picks (overlap 1.0 >= 0.8 reject bound),
	// so the whole bundle collapses to the single highest-EV ticket.
	bundle := []model.Ticket{
		{TicketID: "a", EVScore: 0.5, Picks: []model.Pick{pick("f1", model.OutcomeHome)}},
		{TicketID: "b", EVScore: 0.7, Picks: []model.Pick{pick("f1", model.OutcomeHome)}},
		{TicketID: "c", EVScore: 0.3, Picks: []model.Pick{pick("f1", model.OutcomeHome)}},
	}
	corr := mat.NewDense(3, 3, nil)

	got := enforceCorrelationBound(bundle, corr)
	if len(got) != 1 {
		t.Fatalf("len(enforceCorrelationBound()) = %d, want 1 when no pair satisfies the correlation bound", len(got))
	}
	if got[0].TicketID != "b" {
		t.Errorf("enforceCorrelationBound() fallback = %s, want highest-EV ticket b", got[0].TicketID)
	}
}

func TestEnforceCorrelationBoundSingleTicketPassesThrough(t *testing.T) {
	bundle := []model.Ticket{{TicketID: "a", EVScore: 0.5}}
	corr := mat.NewDense(1, 1, nil)
	got := enforceCorrelationBound(bundle, corr)
	if len(got) != 1 || got[0].TicketID != "a" {
		t.Errorf("enforceCorrelationBound() with a single ticket = %v, want unchanged", got)
	}
}

func TestDiagnosticsComputesMeanMaxAndArchetypeDistribution(t *testing.T) {
	bundle := []model.Ticket{
		{TicketID: "a", EVScore: 0.4, Archetype: model.ArchetypeFavoriteLock, Picks: []model.Pick{pick("f1", model.OutcomeHome), pick("f2", model.OutcomeHome)}},
		{TicketID: "b", EVScore: 0.2, Archetype: model.ArchetypeBalanced, Picks: []model.Pick{pick("f1", model.OutcomeHome), pick("f2", model.OutcomeAway)}},
	}
	corr := mat.NewDense(2, 2, nil) // unused directly by diagnostics; it recomputes via pickOverlap

	diag := diagnostics(bundle, corr, 0.5)

	wantCorr := 0.5 // one of two picks matches between a and b
	if diff := diag.MeanPairwiseCorr - wantCorr; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("MeanPairwiseCorr = %.9f, want %.9f", diag.MeanPairwiseCorr, wantCorr)
	}
	if diff := diag.MaxPairwiseCorr - wantCorr; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("MaxPairwiseCorr = %.9f, want %.9f", diag.MaxPairwiseCorr, wantCorr)
	}
	wantScore := 0.6 - 0.5*wantCorr
	if diff := diag.BundleScore - wantScore; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("BundleScore = %.9f, want %.9f", diag.BundleScore, wantScore)
	}
	if diag.ArchetypeDistribution[model.ArchetypeFavoriteLock] != 1 || diag.ArchetypeDistribution[model.ArchetypeBalanced] != 1 {
		t.Errorf("ArchetypeDistribution = %v, want one FavoriteLock and one Balanced", diag.ArchetypeDistribution)
	}
}

func TestDiagnosticsEmptyBundleIsZeroValue(t *testing.T) {
	diag := diagnostics(nil, mat.NewDense(0, 0, nil), 0.5)
	if diag.MeanPairwiseCorr != 0 || diag.MaxPairwiseCorr != 0 || diag.BundleScore != 0 {
		t.Errorf("diagnostics(nil) = %+v, want all-zero", diag)
	}
}

func TestCorrelationMatrixIsSymmetric(t *testing.T) {
	tickets := []model.Ticket{
		{TicketID: "a", Picks: []model.Pick{pick("f1", model.OutcomeHome)}},
		{TicketID: "b", Picks: []model.Pick{pick("f1", model.OutcomeHome)}},
		{TicketID: "c", Picks: []model.Pick{pick("f1", model.OutcomeAway)}},
	}

	corr, err := correlationMatrix(context.Background(), tickets)
	if err != nil {
		t.Fatalf("correlationMatrix() error = %v", err)
	}
	if corr.At(0, 1) != 1.0 {
		t.Errorf("corr[a][b] = %v, want 1.0 (identical picks)", corr.At(0, 1))
	}
	if corr.At(0, 2) != 0.0 {
		t.Errorf("corr[a][c] = %v, want 0.0 (disjoint picks)", corr.At(0, 2))
	}
	if corr.At(1, 0) != corr.At(0, 1) {
		t.Error("correlation matrix is not symmetric")
	}
}

func TestSelectWithNoTicketsReturnsEmptyDiagnostics(t *testing.T) {
	o := NewOptimizer(0.5, 5)
	selected, diag, err := o.Select(context.Background(), nil)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if selected != nil {
		t.Errorf("Select() with no tickets = %v, want nil", selected)
	}
	if diag.BundleScore != 0 || len(diag.ArchetypeDistribution) != 0 {
		t.Errorf("Select() diagnostics = %+v, want zero value", diag)
	}
}

func TestNewOptimizerDefaultsLambdaWhenNonPositive(t *testing.T) {
	o := NewOptimizer(0, 5)
	if o.Lambda != defaultPortfolioLambda {
		t.Errorf("NewOptimizer(0, ...).Lambda = %v, want default %v", o.Lambda, defaultPortfolioLambda)
	}
}
