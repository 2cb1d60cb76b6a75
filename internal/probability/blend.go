package probability

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/psilali/footy-probengine/internal/model"
	"github.com/psilali/footy-probengine/internal/odds"
)

// entropyHighThreshold is the model-entropy cutoff used by the adaptive
// blend fallback (spec §4.4).
const entropyHighThreshold = 0.9

// GLM is a multinomial logistic regression over the blend feature vector,
// trained offline on historical (model, market, outcome) triples and
// applied here at request time. Coefficients are stored as a (3 x k)
// matrix: one row per outcome class, one column per feature, via
// gonum/mat so the offline trainer and the online apply path share the
// same linear-algebra representation.
type GLM struct {
	Coefficients *mat.Dense // 3 x numFeatures
	LeagueIndex  map[string]int
	NumLeagues   int
}

// Blender converts bookmaker odds to a margin-removed market triple and
// blends it with the model triple, using a trained GLM when present and
// falling back to the spec's adaptive weighting otherwise (spec §4.4).
type Blender struct {
	GLM *GLM // nil means "use the adaptive default everywhere"
}

func NewBlender(glm *GLM) *Blender {
	return &Blender{GLM: glm}
}

// Blend returns the market-aware triple for a fixture, or the model triple
// unchanged when no market odds are available.
func (b *Blender) Blend(modelProbs model.Triple, fx model.Fixture) model.Triple {
	if !fx.HasOdds() {
		return modelProbs
	}

	market := odds.RemoveVig3(*fx.Odds)

	if b.GLM != nil {
		if blended, ok := b.applyGLM(modelProbs, market, fx.LeagueID); ok {
			return blended
		}
	}

	return b.adaptiveBlend(modelProbs, market.Probs)
}

// adaptiveBlend implements the spec §4.4 fallback: alpha=0.5 when model
// entropy is low (confident model), 0.4 when the model is more uncertain
// and the market should carry more weight.
func (b *Blender) adaptiveBlend(modelProbs, marketProbs model.Triple) model.Triple {
	alpha := 0.5
	if Entropy(modelProbs) > entropyHighThreshold {
		alpha = 0.4
	}

	return model.Triple{
		Home: alpha*modelProbs.Home + (1-alpha)*marketProbs.Home,
		Draw: alpha*modelProbs.Draw + (1-alpha)*marketProbs.Draw,
		Away: alpha*modelProbs.Away + (1-alpha)*marketProbs.Away,
	}
}

// applyGLM evaluates the trained multinomial logistic model over the
// feature vector {p_model_h,d,a, p_mkt_h,d,a, H(model), H(market),
// league one-hot, overround} and returns its softmax prediction.
func (b *Blender) applyGLM(modelProbs model.Triple, market odds.MarketProbs, leagueID string) (model.Triple, bool) {
	leagueIdx, ok := b.GLM.LeagueIndex[leagueID]
	if !ok {
		return model.Triple{}, false
	}

	features := make([]float64, 9+b.GLM.NumLeagues)
	features[0] = modelProbs.Home
	features[1] = modelProbs.Draw
	features[2] = modelProbs.Away
	features[3] = market.Probs.Home
	features[4] = market.Probs.Draw
	features[5] = market.Probs.Away
	features[6] = Entropy(modelProbs)
	features[7] = Entropy(market.Probs)
	features[8] = market.Overround
	features[9+leagueIdx] = 1.0

	x := mat.NewVecDense(len(features), features)

	rows, cols := b.GLM.Coefficients.Dims()
	if cols != len(features) {
		return model.Triple{}, false
	}

	logits := make([]float64, rows)
	for i := 0; i < rows; i++ {
		row := b.GLM.Coefficients.RowView(i)
		logits[i] = mat.Dot(row, x)
	}

	probs := softmax(logits)
	return model.Triple{Home: probs[0], Draw: probs[1], Away: probs[2]}, true
}

func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	sum := 0.0
	exp := make([]float64, len(logits))
	for i, v := range logits {
		exp[i] = math.Exp(v - max)
		sum += exp[i]
	}
	for i := range exp {
		exp[i] /= sum
	}
	return exp
}
