package probability

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/psilali/footy-probengine/internal/featurestore"
	"github.com/psilali/footy-probengine/internal/model"
)

// fakeFeatureStore lets each test control which signals resolve and which
// report missing, without standing up a SQLite-backed store.
type fakeFeatureStore struct {
	leagueDrawRate float64
	haveDrawRate   bool
	elo            map[string]float64
	h2h            featurestore.H2HRecord
	haveH2H        bool
	restDays       map[string]int
}

func (f *fakeFeatureStore) TeamStrength(ctx context.Context, modelVersion, teamID string) (model.TeamStrength, error) {
	return model.TeamStrength{}, model.ErrMissingFeature
}

func (f *fakeFeatureStore) LeagueDrawRate(ctx context.Context, leagueID string) (float64, error) {
	if !f.haveDrawRate {
		return 0, model.ErrMissingFeature
	}
	return f.leagueDrawRate, nil
}

func (f *fakeFeatureStore) HeadToHead(ctx context.Context, homeTeamID, awayTeamID string) (featurestore.H2HRecord, error) {
	if !f.haveH2H {
		return featurestore.H2HRecord{}, model.ErrMissingFeature
	}
	return f.h2h, nil
}

func (f *fakeFeatureStore) Elo(ctx context.Context, teamID string) (float64, error) {
	v, ok := f.elo[teamID]
	if !ok {
		return 0, model.ErrMissingFeature
	}
	return v, nil
}

func (f *fakeFeatureStore) RestDays(ctx context.Context, teamID string, asOf time.Time) (int, error) {
	v, ok := f.restDays[teamID]
	if !ok {
		return 0, model.ErrMissingFeature
	}
	return v, nil
}

func (f *fakeFeatureStore) Referee(ctx context.Context, fixtureID string) (featurestore.RefereeProfile, bool, error) {
	return featurestore.RefereeProfile{}, false, nil
}

func (f *fakeFeatureStore) Weather(ctx context.Context, fixtureID string) (featurestore.WeatherContext, bool, error) {
	return featurestore.WeatherContext{}, false, nil
}

func (f *fakeFeatureStore) OddsDrift(ctx context.Context, fixtureID string) (float64, bool, error) {
	return 0, false, nil
}

func (f *fakeFeatureStore) XGSampleSize(ctx context.Context, teamID string) (int, error) {
	return 0, model.ErrMissingFeature
}

func (f *fakeFeatureStore) Close() error { return nil }

func fixture(leagueID string) model.Fixture {
	return model.Fixture{
		FixtureID:   "f1",
		LeagueID:    leagueID,
		HomeTeamID:  "home",
		AwayTeamID:  "away",
		KickoffTime: time.Date(2026, 8, 1, 15, 0, 0, 0, time.UTC),
	}
}

func TestDrawAdjusterAllSignalsMissingIsNeutral(t *testing.T) {
	store := &fakeFeatureStore{}
	adj := NewDrawAdjuster(store, nil)

	base := model.BaseProbability{
		FixtureID: "f1",
		Probs:     model.Triple{Home: 0.45, Draw: 0.27, Away: 0.28},
		XGHome:    1.3,
		XGAway:    1.1,
	}

	adjusted, comp, err := adj.Adjust(context.Background(), base, FixtureContext{Fixture: fixture("EPL"), TotalTeams: 20})
	if err != nil {
		t.Fatalf("Adjust() error = %v", err)
	}

	// Combined expected goals (2.4) is above the xgFactorSignal threshold of
	// 2.2, so every one of the eight signals should resolve to neutral 1.0.
	if comp.LeaguePrior != 1.0 || comp.EloSymmetry != 1.0 || comp.H2H != 1.0 ||
		comp.Weather != 1.0 || comp.Fatigue != 1.0 || comp.Referee != 1.0 ||
		comp.OddsDrift != 1.0 || comp.XGFactor != 1.0 {
		t.Errorf("expected all signals neutral when data is missing, got %+v", comp)
	}

	sum := adjusted.Sum()
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("adjusted triple sums to %.9f, want 1.0", sum)
	}
}

func TestDrawAdjusterBoundsRespected(t *testing.T) {
	store := &fakeFeatureStore{
		leagueDrawRate: 0.40, // far above leagueHighDrawRate, would blow past 1.35 unclamped
		haveDrawRate:   true,
		elo:            map[string]float64{"home": 1500, "away": 1500},
		h2h: featurestore.H2HRecord{
			MatchesPlayed: 10,
			DrawCount:     8,
		},
		haveH2H:  true,
		restDays: map[string]int{"home": 2, "away": 2},
	}
	adj := NewDrawAdjuster(store, nil)

	base := model.BaseProbability{
		FixtureID: "f1",
		Probs:     model.Triple{Home: 0.40, Draw: 0.25, Away: 0.35},
		XGHome:    0.8,
		XGAway:    0.7,
	}

	adjusted, comp, err := adj.Adjust(context.Background(), base, FixtureContext{Fixture: fixture("EPL"), TotalTeams: 20})
	if err != nil {
		t.Fatalf("Adjust() error = %v", err)
	}

	for name, v := range map[string]float64{
		"LeaguePrior": comp.LeaguePrior, "EloSymmetry": comp.EloSymmetry, "H2H": comp.H2H,
		"Weather": comp.Weather, "Fatigue": comp.Fatigue, "Referee": comp.Referee,
		"OddsDrift": comp.OddsDrift, "XGFactor": comp.XGFactor,
	} {
		if v < signalBounds.min-1e-9 || v > signalBounds.max+1e-9 {
			t.Errorf("signal %s = %.4f, want within [%.2f, %.2f]", name, v, signalBounds.min, signalBounds.max)
		}
	}

	if adjusted.Draw < drawProbabilityBounds.min-1e-9 || adjusted.Draw > drawProbabilityBounds.max+1e-9 {
		t.Errorf("adjusted draw probability = %.4f, want within [%.2f, %.2f]", adjusted.Draw, drawProbabilityBounds.min, drawProbabilityBounds.max)
	}

	if math.Abs(adjusted.Sum()-1.0) > 1e-6 {
		t.Errorf("adjusted triple sums to %.9f, want 1.0", adjusted.Sum())
	}
}

func TestDrawAdjusterPreservesHomeAwayRatio(t *testing.T) {
	store := &fakeFeatureStore{}
	adj := NewDrawAdjuster(store, nil)

	base := model.BaseProbability{
		FixtureID: "f1",
		Probs:     model.Triple{Home: 0.50, Draw: 0.25, Away: 0.25},
	}

	adjusted, _, err := adj.Adjust(context.Background(), base, FixtureContext{Fixture: fixture("EPL"), TotalTeams: 20})
	if err != nil {
		t.Fatalf("Adjust() error = %v", err)
	}

	wantRatio := base.Probs.Home / base.Probs.Away
	gotRatio := adjusted.Home / adjusted.Away
	if math.Abs(wantRatio-gotRatio) > 1e-6 {
		t.Errorf("home/away ratio = %.6f, want %.6f (renormalisation must preserve it)", gotRatio, wantRatio)
	}
}
