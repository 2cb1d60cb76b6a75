package probability

import (
	"context"

	"github.com/psilali/footy-probengine/internal/featurestore"
	"github.com/psilali/footy-probengine/internal/model"
	"github.com/psilali/footy-probengine/internal/telemetry"
)

// signalBounds clamps every individual structural signal before it enters
// the product (spec §3 DrawComponents invariant).
var signalBounds = struct{ min, max float64 }{0.75, 1.35}

// drawMultiplierBounds clamps the composed multiplier (same range as each
// signal, per spec §4.3).
var drawMultiplierBounds = signalBounds

// drawProbabilityBounds clamps the adjusted draw probability itself.
var drawProbabilityBounds = struct{ min, max float64 }{0.12, 0.38}

const leagueHighDrawRate = 0.26

// DrawAdjuster reshapes only the draw probability using eight structural
// signals, then renormalises home/away to preserve their ratio (spec §4.3).
type DrawAdjuster struct {
	store featurestore.FeatureStore
	cache *featurestore.Cache
}

func NewDrawAdjuster(store featurestore.FeatureStore, cache *featurestore.Cache) *DrawAdjuster {
	return &DrawAdjuster{store: store, cache: cache}
}

// FixtureContext is the subset of a Fixture and league metadata the draw
// adjuster needs beyond what the feature store supplies directly.
type FixtureContext struct {
	Fixture      model.Fixture
	TotalTeams   int
	RelegationZones int
}

// Adjust applies the eight draw-structural signals and renormalises
// home/away probabilities to keep the triple summing to 1.
func (a *DrawAdjuster) Adjust(ctx context.Context, base model.BaseProbability, fx FixtureContext) (model.Triple, model.DrawComponents, error) {
	comp := model.DefaultDrawComponents()

	comp.LeaguePrior = clip(a.leaguePriorSignal(ctx, fx), signalBounds.min, signalBounds.max)
	comp.EloSymmetry = clip(a.eloSymmetrySignal(ctx, fx.Fixture), signalBounds.min, signalBounds.max)
	comp.H2H = clip(a.h2hSignal(ctx, fx.Fixture), signalBounds.min, signalBounds.max)
	comp.Weather = clip(a.weatherSignal(ctx, fx.Fixture), signalBounds.min, signalBounds.max)
	comp.Fatigue = clip(a.fatigueSignal(ctx, fx.Fixture), signalBounds.min, signalBounds.max)
	comp.Referee = clip(a.refereeSignal(ctx, fx.Fixture), signalBounds.min, signalBounds.max)
	comp.OddsDrift = clip(a.oddsDriftSignal(fx.Fixture), signalBounds.min, signalBounds.max)
	comp.XGFactor = clip(a.xgFactorSignal(base), signalBounds.min, signalBounds.max)

	multiplier := clip(comp.Product(), drawMultiplierBounds.min, drawMultiplierBounds.max)

	pDraw := clip(base.Probs.Draw*multiplier, drawProbabilityBounds.min, drawProbabilityBounds.max)

	remainder := base.Probs.Home + base.Probs.Away
	k := 1.0
	if remainder > 0 {
		k = (1 - pDraw) / remainder
	}

	adjusted := model.Triple{
		Home: base.Probs.Home * k,
		Draw: pDraw,
		Away: base.Probs.Away * k,
	}

	return adjusted, comp, nil
}

func (a *DrawAdjuster) leaguePriorSignal(ctx context.Context, fx FixtureContext) float64 {
	rate, err := a.store.LeagueDrawRate(ctx, fx.Fixture.LeagueID)
	if err != nil {
		telemetry.Metrics.MissingFeatureWarnings.Inc()
		return 1.0
	}

	base := 1.0
	if rate > leagueHighDrawRate {
		base = 1.0 + (rate-leagueHighDrawRate)*2
	}

	teamFactor := 1 + (float64(fx.TotalTeams)-20)*0.005
	relegationFactor := 1 + (float64(fx.RelegationZones)/3)*0.02
	structural := clip(teamFactor*relegationFactor, 0.95, 1.05)

	return base * structural
}

func (a *DrawAdjuster) eloSymmetrySignal(ctx context.Context, fx model.Fixture) float64 {
	eloHome, err1 := a.store.Elo(ctx, fx.HomeTeamID)
	eloAway, err2 := a.store.Elo(ctx, fx.AwayTeamID)
	if err1 != nil || err2 != nil {
		telemetry.Metrics.MissingFeatureWarnings.Inc()
		return 1.0
	}

	diff := eloHome - eloAway
	if diff < 0 {
		diff = -diff
	}
	// Symmetric teams (diff -> 0) push the draw signal up; a 400-point gap
	// is treated as effectively asymmetric.
	closeness := clip(1-diff/400, 0, 1)
	return 1.0 + closeness*0.15
}

func (a *DrawAdjuster) h2hSignal(ctx context.Context, fx model.Fixture) float64 {
	rec, err := a.store.HeadToHead(ctx, fx.HomeTeamID, fx.AwayTeamID)
	if err != nil || rec.MatchesPlayed < 5 {
		if err != nil {
			telemetry.Metrics.MissingFeatureWarnings.Inc()
		}
		return 1.0
	}

	leagueRate, err := a.store.LeagueDrawRate(ctx, fx.LeagueID)
	if err != nil {
		leagueRate = leagueHighDrawRate
	}

	pairRate := float64(rec.DrawCount) / float64(rec.MatchesPlayed)
	if pairRate > leagueRate {
		return 1.0 + (pairRate-leagueRate)
	}
	return 1.0
}

func (a *DrawAdjuster) weatherSignal(ctx context.Context, fx model.Fixture) float64 {
	w, ok, err := a.store.Weather(ctx, fx.FixtureID)
	if err != nil || !ok {
		return 1.0
	}
	signal := 1.0
	if w.PrecipitationMM > 5 {
		signal += 0.05
	}
	if w.WindKPH > 30 {
		signal += 0.05
	}
	return signal
}

func (a *DrawAdjuster) fatigueSignal(ctx context.Context, fx model.Fixture) float64 {
	homeRest, err1 := a.store.RestDays(ctx, fx.HomeTeamID, fx.KickoffTime)
	awayRest, err2 := a.store.RestDays(ctx, fx.AwayTeamID, fx.KickoffTime)
	if err1 != nil || err2 != nil {
		telemetry.Metrics.MissingFeatureWarnings.Inc()
		return 1.0
	}
	if homeRest <= 3 || awayRest <= 3 {
		return 1.1
	}
	return 1.0
}

func (a *DrawAdjuster) refereeSignal(ctx context.Context, fx model.Fixture) float64 {
	ref, ok, err := a.store.Referee(ctx, fx.FixtureID)
	if err != nil || !ok {
		return 1.0
	}
	deviation := ref.DrawRate - leagueHighDrawRate
	return 1.0 + deviation
}

func (a *DrawAdjuster) oddsDriftSignal(fx model.Fixture) float64 {
	if a.cache == nil {
		return 1.0
	}
	drift, ok := a.cache.OddsDrift(fx.FixtureID)
	if !ok {
		return 1.0
	}
	// Closing draw odds shortening > 10% (drift < -0.10) signals market
	// consensus moving toward a draw.
	if drift < -0.10 {
		return 1.0 + (-drift-0.10)
	}
	return 1.0
}

func (a *DrawAdjuster) xgFactorSignal(base model.BaseProbability) float64 {
	combined := base.XGHome + base.XGAway
	if combined < 2.2 {
		return 1.0 + (2.2-combined)*0.05
	}
	return 1.0
}
