package ticket

import (
	"math"
	"sort"

	"github.com/psilali/footy-probengine/internal/model"
)

const (
	favoriteLockMaxOdds    = 3.5
	favoriteLockMinFavShare = 0.60
	favoriteLockMaxDraws   = 1
	favoriteLockMaxAways   = 1

	drawSelectiveTargetRatio = 0.22
	drawSelectiveTolerance   = 1
	drawSelectiveXGGap       = 0.4

	awayEdgeMinRatio = 0.25
	awayEdgeMaxRatio = 0.40
)

// Generator proposes one candidate ticket per archetype for a slate under
// a chosen probability set. Each proposal either satisfies its archetype's
// constraints or is not emitted at all (spec §4.7).
type Generator struct{}

func NewGenerator() *Generator { return &Generator{} }

// Generate returns candidate tickets (zero, one, or several) for the
// given fixture slate, set key, and jackpot id.
func (g *Generator) Generate(jackpotID string, setKey model.SetKey, views []FixtureView) []model.Ticket {
	profile := BuildSlateProfile(views)
	selected := SelectArchetype(profile)

	var candidates []model.Ticket
	for _, archetype := range []model.Archetype{selected, model.ArchetypeBalanced} {
		if t, ok := g.generateFor(jackpotID, setKey, views, archetype); ok {
			candidates = append(candidates, t)
		}
		if archetype == selected && selected == model.ArchetypeBalanced {
			break // avoid emitting BALANCED twice
		}
	}
	return candidates
}

func (g *Generator) generateFor(jackpotID string, setKey model.SetKey, views []FixtureView, archetype model.Archetype) (model.Ticket, bool) {
	var picks []model.Pick
	var ok bool

	switch archetype {
	case model.ArchetypeFavoriteLock:
		picks, ok = g.favoriteLock(views)
	case model.ArchetypeDrawSelective:
		picks, ok = g.drawSelective(views)
	case model.ArchetypeAwayEdge:
		picks, ok = g.awayEdge(views)
	default:
		picks, ok = g.balanced(views)
	}
	if !ok {
		return model.Ticket{}, false
	}

	return model.Ticket{
		TicketID:        model.NewTicketID(),
		JackpotID:       jackpotID,
		Archetype:       archetype,
		Picks:           picks,
		SetKey:          setKey,
		DecisionVersion: model.DecisionVersion,
	}, true
}

func (g *Generator) balanced(views []FixtureView) ([]model.Pick, bool) {
	picks := make([]model.Pick, len(views))
	for i, v := range views {
		picks[i] = model.Pick{FixtureID: v.FixtureID, Outcome: v.Favorite()}
	}
	return picks, true
}

// favoriteLock picks the favorite everywhere, switching to the second-best
// outcome where the favorite's market odds exceed the cap, then demotes
// excess draws/aways to home. The ticket is rejected if any pick's odds
// still exceed the cap or the favorite share falls below the minimum.
func (g *Generator) favoriteLock(views []FixtureView) ([]model.Pick, bool) {
	picks := make([]model.Pick, len(views))
	drawCount, awayCount := 0, 0

	for i, v := range views {
		outcome := v.Favorite()
		if oddsFor(v, outcome) > favoriteLockMaxOdds {
			outcome = secondBest(v)
		}
		picks[i] = model.Pick{FixtureID: v.FixtureID, Outcome: outcome}
		switch outcome {
		case model.OutcomeDraw:
			drawCount++
		case model.OutcomeAway:
			awayCount++
		}
	}

	// Demote excess draws/aways to home, ordered by lowest pick probability
	// first so the strongest draw/away picks survive.
	picks = demoteExcess(views, picks, model.OutcomeDraw, favoriteLockMaxDraws)
	picks = demoteExcess(views, picks, model.OutcomeAway, favoriteLockMaxAways)

	for i, p := range picks {
		if oddsFor(views[i], p.Outcome) > favoriteLockMaxOdds {
			return nil, false
		}
	}

	favShare := 0
	for i, p := range picks {
		if p.Outcome == views[i].Favorite() {
			favShare++
		}
	}
	if fraction(favShare, len(views)) < favoriteLockMinFavShare {
		return nil, false
	}

	return picks, true
}

func demoteExcess(views []FixtureView, picks []model.Pick, outcome model.Outcome, max int) []model.Pick {
	type idxProb struct {
		idx  int
		prob float64
	}
	var candidates []idxProb
	for i, p := range picks {
		if p.Outcome == outcome {
			candidates = append(candidates, idxProb{i, probFor(views[i], outcome)})
		}
	}
	if len(candidates) <= max {
		return picks
	}
	sort.Slice(candidates, func(a, b int) bool { return candidates[a].prob < candidates[b].prob })
	for _, c := range candidates[:len(candidates)-max] {
		picks[c.idx] = model.Pick{FixtureID: views[c.idx].FixtureID, Outcome: model.OutcomeHome}
	}
	return picks
}

// drawSelective picks draws on eligible fixtures (dc_applied, tight xG
// gap) up to the slate's target draw count, favorite elsewhere.
func (g *Generator) drawSelective(views []FixtureView) ([]model.Pick, bool) {
	target := int(math.Round(float64(len(views)) * drawSelectiveTargetRatio))

	type eligible struct {
		idx  int
		prob float64
	}
	var candidates []eligible
	for i, v := range views {
		gap := math.Abs(v.XGHome - v.XGAway)
		if v.DCApplied && gap < drawSelectiveXGGap {
			candidates = append(candidates, eligible{i, v.Probs.Draw})
		}
	}
	sort.Slice(candidates, func(a, b int) bool { return candidates[a].prob > candidates[b].prob })

	if target > len(candidates) {
		target = len(candidates)
	}

	drawIdx := make(map[int]bool, target)
	for _, c := range candidates[:target] {
		drawIdx[c.idx] = true
	}

	picks := make([]model.Pick, len(views))
	for i, v := range views {
		if drawIdx[i] {
			picks[i] = model.Pick{FixtureID: v.FixtureID, Outcome: model.OutcomeDraw}
		} else {
			picks[i] = model.Pick{FixtureID: v.FixtureID, Outcome: favoriteExcluding(v, model.OutcomeDraw)}
		}
	}

	actualDraws := len(drawIdx)
	if abs(actualDraws-target) > drawSelectiveTolerance {
		return nil, false
	}
	return picks, true
}

// awayEdge picks away on every positive-EV fixture within the slate's
// target away-count band, favorite elsewhere.
func (g *Generator) awayEdge(views []FixtureView) ([]model.Pick, bool) {
	minAway := int(math.Round(float64(len(views)) * awayEdgeMinRatio))
	maxAway := int(math.Round(float64(len(views)) * awayEdgeMaxRatio))

	type eligible struct {
		idx int
		ev  float64
	}
	var candidates []eligible
	for i, v := range views {
		if ev, ok := v.AwayEV(); ok && ev > 0 {
			candidates = append(candidates, eligible{i, ev})
		}
	}
	sort.Slice(candidates, func(a, b int) bool { return candidates[a].ev > candidates[b].ev })

	target := len(candidates)
	if target > maxAway {
		target = maxAway
	}

	awayIdx := make(map[int]bool, target)
	for _, c := range candidates[:target] {
		awayIdx[c.idx] = true
	}

	picks := make([]model.Pick, len(views))
	for i, v := range views {
		if awayIdx[i] {
			picks[i] = model.Pick{FixtureID: v.FixtureID, Outcome: model.OutcomeAway}
		} else {
			picks[i] = model.Pick{FixtureID: v.FixtureID, Outcome: favoriteExcluding(v, model.OutcomeAway)}
		}
	}

	if len(awayIdx) < minAway {
		return nil, false
	}
	return picks, true
}

func oddsFor(v FixtureView, outcome model.Outcome) float64 {
	if v.Odds == nil {
		return 0
	}
	switch outcome {
	case model.OutcomeHome:
		return v.Odds.Home
	case model.OutcomeDraw:
		return v.Odds.Draw
	default:
		return v.Odds.Away
	}
}

func probFor(v FixtureView, outcome model.Outcome) float64 {
	return tripleProb(v.Probs, outcome)
}

func tripleProb(t model.Triple, outcome model.Outcome) float64 {
	switch outcome {
	case model.OutcomeHome:
		return t.Home
	case model.OutcomeDraw:
		return t.Draw
	default:
		return t.Away
	}
}

func secondBest(v FixtureView) model.Outcome {
	type op struct {
		o model.Outcome
		p float64
	}
	options := []op{{model.OutcomeHome, v.Probs.Home}, {model.OutcomeDraw, v.Probs.Draw}, {model.OutcomeAway, v.Probs.Away}}
	sort.Slice(options, func(a, b int) bool { return options[a].p > options[b].p })
	return options[1].o
}

func favoriteExcluding(v FixtureView, exclude model.Outcome) model.Outcome {
	fav := v.Favorite()
	if fav != exclude {
		return fav
	}
	return secondBest(v)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
