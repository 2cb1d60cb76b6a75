package ticket

import (
	"math"

	"github.com/psilali/footy-probengine/internal/config"
	"github.com/psilali/footy-probengine/internal/model"
	"github.com/psilali/footy-probengine/internal/telemetry"
)

const (
	hardContradictionHomeDominance = 0.55
	hardContradictionXGGap         = 0.9
	hardContradictionAwayOdds      = 4.5
	hardContradictionAwayProb      = 0.20
	hardContradictionMarketGap     = 0.25

	penaltyHighDrawOdds     = 0.15
	penaltyDrawThreshold    = 4.0
	penaltyDrawXGGap        = 0.5
	penaltyDrawXGGapValue   = 0.15
	penaltyAwayOdds         = 3.0
	penaltyAwayOddsValue    = 0.10
)

// MarketContext carries a fixture's market-implied probability triple. The
// evaluator indexes it by each pick's own outcome, so a Draw or Away pick is
// judged against the market's Draw or Away probability, not Home's.
type MarketContext struct {
	Probs model.Triple
}

// marketGap is the per-pick model-vs-market comparison derived from a
// fixture's MarketContext and the pick's own outcome.
type marketGap struct {
	present    bool
	modelProb  float64
	marketProb float64
	isFavorite bool
}

func marketGapFor(v FixtureView, outcome model.Outcome, mc MarketContext, hasMarket bool) marketGap {
	if !hasMarket {
		return marketGap{}
	}
	return marketGap{
		present:    true,
		modelProb:  probFor(v, outcome),
		marketProb: tripleProb(mc.Probs, outcome),
		isFavorite: v.Favorite() == outcome,
	}
}

// Evaluator is the Decision-Intelligence scorer: per-pick EV, hard
// contradictions, structural penalties, aggregation (spec §4.8).
type Evaluator struct {
	cfg config.PipelineConfig
}

func NewEvaluator(cfg config.PipelineConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate scores a ticket against its fixture views and market contexts,
// mutating nothing — it returns a new, fully populated Ticket.
func (e *Evaluator) Evaluate(t model.Ticket, views map[string]FixtureView, market map[string]MarketContext, leagueID string) model.Ticket {
	var contradictions []string
	score := 0.0
	hardFail := false

	for _, pick := range t.Picks {
		v, ok := views[pick.FixtureID]
		if !ok {
			continue
		}
		mc, hasMarket := market[pick.FixtureID]
		mg := marketGapFor(v, pick.Outcome, mc, hasMarket)

		p := probFor(v, pick.Outcome)
		o := oddsFor(v, pick.Outcome)

		if reason, bad := hardContradiction(pick, v, mg); bad {
			contradictions = append(contradictions, reason)
			hardFail = true
			continue
		}

		ev := 0.0
		if o > 0 {
			ev = expectedValue(p, o)
		}

		penalty := structuralPenalty(pick, v, mg)
		score += ev*v.XGConfidence - penalty
	}

	t.Contradictions = contradictions

	if hardFail {
		t.EVScore = math.Inf(-1)
		t.Accepted = false
		t.Reason = "hard contradiction: " + contradictions[0]
		telemetry.Metrics.TicketsRejected.Inc()
		return t
	}

	t.EVScore = score
	threshold := e.cfg.EVThresholdFor(leagueID)
	if score >= threshold && len(contradictions) <= e.cfg.MaxContradictions {
		t.Accepted = true
		t.Reason = "accepted"
		telemetry.Metrics.TicketsAccepted.Inc()
	} else {
		t.Accepted = false
		t.Reason = "below ev_threshold or too many soft contradictions"
		telemetry.Metrics.TicketsRejected.Inc()
	}

	telemetry.Metrics.TicketsGenerated.Inc()
	return t
}

func hardContradiction(pick model.Pick, v FixtureView, mg marketGap) (string, bool) {
	xgGap := math.Abs(v.XGHome - v.XGAway)

	if pick.Outcome == model.OutcomeDraw && v.Probs.Home >= hardContradictionHomeDominance {
		return "draw pick against home-dominant probability", true
	}
	if pick.Outcome == model.OutcomeDraw && xgGap >= hardContradictionXGGap {
		return "draw pick against large xG gap", true
	}
	if pick.Outcome == model.OutcomeAway {
		o := oddsFor(v, model.OutcomeAway)
		if o >= hardContradictionAwayOdds && v.Probs.Away < hardContradictionAwayProb {
			return "away pick at long odds with low probability", true
		}
	}
	if mg.present {
		gap := math.Abs(mg.modelProb - mg.marketProb)
		if gap > hardContradictionMarketGap && !mg.isFavorite {
			return "extreme market disagreement on a non-favorite pick", true
		}
	}
	return "", false
}

func structuralPenalty(pick model.Pick, v FixtureView, mg marketGap) float64 {
	penalty := 0.0

	if pick.Outcome == model.OutcomeDraw {
		if oddsFor(v, model.OutcomeDraw) > penaltyDrawThreshold {
			penalty += penaltyHighDrawOdds
		}
		if math.Abs(v.XGHome-v.XGAway) > penaltyDrawXGGap {
			penalty += penaltyDrawXGGapValue
		}
	}

	if pick.Outcome == model.OutcomeAway && oddsFor(v, model.OutcomeAway) > penaltyAwayOdds {
		penalty += penaltyAwayOddsValue
	}

	if mg.present {
		gap := math.Abs(mg.modelProb - mg.marketProb)
		switch {
		case gap < 0.05:
			penalty += 0
		case gap < 0.10:
			penalty += 0.05
		case gap < 0.20:
			penalty += 0.15
		default:
			penalty += 0.30
		}
	}

	return penalty
}
