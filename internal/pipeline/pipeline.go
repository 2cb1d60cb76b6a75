// Package pipeline orchestrates one prediction or ticket-generation
// request end to end: fixtures -> base probabilities -> draw adjustment ->
// blend -> calibration -> set derivation -> generator -> evaluator ->
// optimiser (spec §2 "Control flow per request").
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/psilali/footy-probengine/internal/calibration"
	"github.com/psilali/footy-probengine/internal/config"
	"github.com/psilali/footy-probengine/internal/featurestore"
	"github.com/psilali/footy-probengine/internal/model"
	"github.com/psilali/footy-probengine/internal/odds"
	"github.com/psilali/footy-probengine/internal/probability"
	"github.com/psilali/footy-probengine/internal/telemetry"
	"github.com/psilali/footy-probengine/internal/ticket"
)

// ModelSnapshot is the consistent (DixonColesParams, model_version) view
// captured once at request entry, so concurrent per-fixture goroutines
// never observe a training job's parameter swap mid-request (spec §5).
type ModelSnapshot struct {
	ModelVersion string
	Params       model.DixonColesParams
}

// Pipeline wires every stage together. Its only mutable shared state is
// the atomically-published model snapshot; everything else is either
// read-only collaborators or request-local.
type Pipeline struct {
	store        featurestore.FeatureStore
	cache        *featurestore.Cache
	calib        *calibration.Store
	blender      *probability.Blender
	baseGen      *probability.BaseGenerator
	drawAdjuster *probability.DrawAdjuster
	cfg          config.PipelineConfig

	snapshot atomic.Pointer[ModelSnapshot]
}

func New(store featurestore.FeatureStore, cache *featurestore.Cache, calib *calibration.Store, blender *probability.Blender, cfg config.PipelineConfig) *Pipeline {
	p := &Pipeline{
		store:        store,
		cache:        cache,
		calib:        calib,
		blender:      blender,
		baseGen:      probability.NewBaseGenerator(),
		drawAdjuster: probability.NewDrawAdjuster(store, cache),
		cfg:          cfg,
	}
	return p
}

// PublishSnapshot atomically swaps in a new model version, published by the
// training job. Readers already mid-request keep using the snapshot they
// captured at entry.
func (p *Pipeline) PublishSnapshot(s ModelSnapshot) {
	p.snapshot.Store(&s)
}

// FixtureResult is everything the probability endpoint returns for one
// fixture (spec §6 "Probability endpoint").
type FixtureResult struct {
	FixtureID      string
	ModelVersion   string
	XGHome         float64
	XGAway         float64
	XGConfidence   float64
	DCApplied      bool
	Base           model.Triple
	Blended        model.Triple
	Calibrated     model.Triple
	DrawComponents model.DrawComponents
	Sets           []model.ProbabilitySet
}

// Run processes a fixture slate under the snapshot captured at entry,
// fanning the per-fixture numeric work out across goroutines. Fixtures are
// returned in their original input order regardless of completion order
// (spec §5 "Ordering guarantees").
func (p *Pipeline) Run(ctx context.Context, fixtures []model.Fixture, leagueMeta map[string]probability.FixtureContext) ([]FixtureResult, error) {
	snap := p.snapshot.Load()
	if snap == nil {
		return nil, fmt.Errorf("no published model snapshot: %w", model.ErrInvalidInput)
	}

	results := make([]FixtureResult, len(fixtures))

	g, gctx := errgroup.WithContext(ctx)
	for i, fx := range fixtures {
		i, fx := i, fx
		g.Go(func() error {
			res, err := p.runFixture(gctx, fx, *snap, leagueMeta[fx.FixtureID])
			if err != nil {
				return fmt.Errorf("fixture %s: %w", fx.FixtureID, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			telemetry.Metrics.TimeoutsAborted.Inc()
			return nil, fmt.Errorf("pipeline run: %w", model.ErrTimeout)
		}
		return nil, err
	}

	telemetry.Metrics.FixturesProcessed.Add(int64(len(fixtures)))
	return results, nil
}

func (p *Pipeline) runFixture(ctx context.Context, fx model.Fixture, snap ModelSnapshot, fxCtx probability.FixtureContext) (FixtureResult, error) {
	home, err := p.store.TeamStrength(ctx, snap.ModelVersion, fx.HomeTeamID)
	if err != nil {
		return FixtureResult{}, err
	}
	away, err := p.store.TeamStrength(ctx, snap.ModelVersion, fx.AwayTeamID)
	if err != nil {
		return FixtureResult{}, err
	}

	base, err := p.baseGen.Generate(fx.FixtureID, home, away, snap.Params, fx.LeagueID)
	if err != nil {
		return FixtureResult{}, err
	}

	if fxCtx.Fixture.FixtureID == "" {
		fxCtx.Fixture = fx
	}
	adjusted, drawComponents, err := p.drawAdjuster.Adjust(ctx, base, fxCtx)
	if err != nil {
		return FixtureResult{}, err
	}

	blended := p.blender.Blend(adjusted, fx)

	calibratedBase, err := p.calib.Apply(ctx, snap.ModelVersion, fx.LeagueID, adjusted)
	if err != nil {
		calibratedBase = adjusted
	}

	calibrated, err := p.calib.Apply(ctx, snap.ModelVersion, fx.LeagueID, blended)
	if err != nil {
		calibrated = blended
	}

	marketDominant := adjusted
	if fx.HasOdds() {
		market := marketTriple(fx)
		marketDominant = model.Triple{
			Home: 0.2*adjusted.Home + 0.8*market.Home,
			Draw: 0.2*adjusted.Draw + 0.8*market.Draw,
			Away: 0.2*adjusted.Away + 0.8*market.Away,
		}
	}
	calibratedMarketDominant, err := p.calib.Apply(ctx, snap.ModelVersion, fx.LeagueID, marketDominant)
	if err != nil {
		calibratedMarketDominant = marketDominant
	}

	sets := probability.DeriveAll(fx.FixtureID, probability.Inputs{
		Base:           calibratedBase,
		Blend:          calibrated,
		MarketDominant: calibratedMarketDominant,
		MarketOdds:     fx.Odds,
		BrierA:         1, BrierB: 1, BrierC: 1,
	})

	return FixtureResult{
		FixtureID:      fx.FixtureID,
		ModelVersion:   snap.ModelVersion,
		XGHome:         base.XGHome,
		XGAway:         base.XGAway,
		XGConfidence:   base.XGConfidence,
		DCApplied:      base.DCApplied,
		Base:           base.Probs,
		Blended:        blended,
		Calibrated:     calibrated,
		DrawComponents: drawComponents,
		Sets:           sets,
	}, nil
}

func marketTriple(fx model.Fixture) model.Triple {
	return odds.RemoveVig3(*fx.Odds).Probs
}

// GenerateTickets runs the full ticket pipeline for a computed slate: pick
// the requested probability set, generate archetype candidates, evaluate
// them, and optimise a bundle.
func (p *Pipeline) GenerateTickets(ctx context.Context, jackpotID string, results []FixtureResult, fixtures []model.Fixture, setKey model.SetKey, nTickets int) ([]model.Ticket, model.PortfolioDiagnostics, error) {
	views := make(map[string]ticket.FixtureView, len(results))
	var viewList []ticket.FixtureView

	byFixtureID := make(map[string]model.Fixture, len(fixtures))
	for _, fx := range fixtures {
		byFixtureID[fx.FixtureID] = fx
	}

	for _, r := range results {
		triple := setTriple(r.Sets, setKey)
		fx := byFixtureID[r.FixtureID]
		view := ticket.FixtureView{
			FixtureID:    r.FixtureID,
			Probs:        triple,
			Odds:         fx.Odds,
			DCApplied:    r.DCApplied,
			XGHome:       r.XGHome,
			XGAway:       r.XGAway,
			XGConfidence: r.XGConfidence,
			LambdaHome:   r.XGHome,
			LambdaAway:   r.XGAway,
		}
		views[r.FixtureID] = view
		viewList = append(viewList, view)
	}

	gen := ticket.NewGenerator()
	candidates := gen.Generate(jackpotID, setKey, viewList)

	evaluator := ticket.NewEvaluator(p.cfg)
	market := make(map[string]ticket.MarketContext, len(results))
	for _, r := range results {
		fx := byFixtureID[r.FixtureID]
		if fx.HasOdds() {
			market[r.FixtureID] = ticket.MarketContext{Probs: marketTriple(fx)}
		}
	}

	var accepted []model.Ticket
	leagueID := ""
	if len(fixtures) > 0 {
		leagueID = fixtures[0].LeagueID
	}
	for _, c := range candidates {
		evaluated := evaluator.Evaluate(c, views, market, leagueID)
		if evaluated.Accepted {
			accepted = append(accepted, evaluated)
		}
	}

	sort.Slice(accepted, func(i, j int) bool {
		if accepted[i].EVScore != accepted[j].EVScore {
			return accepted[i].EVScore > accepted[j].EVScore
		}
		return accepted[i].TicketID < accepted[j].TicketID
	})

	maxN := nTickets
	if maxN <= 0 || maxN > p.cfg.MaxTickets {
		maxN = p.cfg.MaxTickets
	}

	optimizer := ticket.NewOptimizer(p.cfg.PortfolioLambda, maxN)
	selected, diag, err := optimizer.Select(ctx, accepted)
	if err != nil {
		return nil, model.PortfolioDiagnostics{}, err
	}

	return selected, diag, nil
}

func setTriple(sets []model.ProbabilitySet, key model.SetKey) model.Triple {
	for _, s := range sets {
		if s.Key == key {
			return s.Probs
		}
	}
	if len(sets) > 0 {
		return sets[0].Probs
	}
	return model.Triple{}
}

// awaitDeadline derives a request deadline context from a configured
// timeout. Nothing in this package calls it; the API layer uses its own
// contextWithTimeout.
func awaitDeadline(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}
