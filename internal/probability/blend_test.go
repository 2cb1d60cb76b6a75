package probability

import (
	"math"
	"testing"

	"github.com/psilali/footy-probengine/internal/model"
	"github.com/psilali/footy-probengine/internal/odds"
)

func TestBlendNoOddsReturnsModelUnchanged(t *testing.T) {
	b := NewBlender(nil)
	modelProbs := model.Triple{Home: 0.5, Draw: 0.25, Away: 0.25}
	fx := model.Fixture{FixtureID: "f1"}

	got := b.Blend(modelProbs, fx)
	if got != modelProbs {
		t.Errorf("Blend() with no odds = %+v, want model probabilities unchanged %+v", got, modelProbs)
	}
}

func TestAdaptiveBlendSumsToOne(t *testing.T) {
	b := NewBlender(nil)
	modelProbs := model.Triple{Home: 0.45, Draw: 0.28, Away: 0.27}
	fx := model.Fixture{
		FixtureID: "f1",
		Odds:      &model.Odds{Home: 2.10, Draw: 3.40, Away: 3.60},
	}

	blended := b.Blend(modelProbs, fx)
	sum := blended.Sum()
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("blended triple sums to %.9f, want 1.0", sum)
	}
}

func TestAdaptiveBlendWeightsDropWhenModelUncertain(t *testing.T) {
	b := NewBlender(nil)
	fx := model.Fixture{FixtureID: "f1", Odds: &model.Odds{Home: 2, Draw: 4, Away: 4}}
	market := odds.RemoveVig3(*fx.Odds).Probs.Home

	confident := model.Triple{Home: 0.85, Draw: 0.08, Away: 0.07} // low entropy
	uncertain := model.Triple{Home: 0.36, Draw: 0.33, Away: 0.31} // high entropy, close to uniform

	if Entropy(confident) > entropyHighThreshold {
		t.Fatalf("test fixture invalid: confident entropy %.4f must stay below threshold %.4f", Entropy(confident), entropyHighThreshold)
	}
	if Entropy(uncertain) <= entropyHighThreshold {
		t.Fatalf("test fixture invalid: uncertain entropy %.4f must exceed threshold %.4f", Entropy(uncertain), entropyHighThreshold)
	}

	wantConfident := 0.5*confident.Home + 0.5*market
	wantUncertain := 0.4*uncertain.Home + 0.6*market

	gotConfident := b.Blend(confident, fx).Home
	gotUncertain := b.Blend(uncertain, fx).Home

	if math.Abs(gotConfident-wantConfident) > 1e-9 {
		t.Errorf("confident blend Home = %.9f, want %.9f (alpha=0.5)", gotConfident, wantConfident)
	}
	if math.Abs(gotUncertain-wantUncertain) > 1e-9 {
		t.Errorf("uncertain blend Home = %.9f, want %.9f (alpha=0.4)", gotUncertain, wantUncertain)
	}
}
