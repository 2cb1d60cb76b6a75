package odds

import (
	"math"
	"testing"

	"github.com/psilali/footy-probengine/internal/model"
)

func TestRemoveVig3SumsToOne(t *testing.T) {
	tests := []struct {
		name string
		o    model.Odds
	}{
		{"typical favorite", model.Odds{Home: 1.80, Draw: 3.60, Away: 4.50}},
		{"tight three-way", model.Odds{Home: 2.90, Draw: 3.30, Away: 2.60}},
		{"heavy favorite", model.Odds{Home: 1.20, Draw: 6.50, Away: 12.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp := RemoveVig3(tt.o)
			sum := mp.Probs.Sum()
			if math.Abs(sum-1.0) > 1e-9 {
				t.Errorf("probs sum = %.9f, want 1.0", sum)
			}
			if mp.Overround <= 0 {
				t.Errorf("overround = %.4f, want > 0 for priced odds", mp.Overround)
			}
		})
	}
}

func TestRemoveVig3Ordering(t *testing.T) {
	mp := RemoveVig3(model.Odds{Home: 1.50, Draw: 4.00, Away: 6.00})
	if !(mp.Probs.Home > mp.Probs.Draw && mp.Probs.Draw > mp.Probs.Away) {
		t.Errorf("expected Home > Draw > Away probability ordering to match odds ordering, got %+v", mp.Probs)
	}
}

func TestImpliedOddsRoundTrip(t *testing.T) {
	original := model.Odds{Home: 2.10, Draw: 3.40, Away: 3.75}
	mp := RemoveVig3(original)

	back := ImpliedOdds(mp.Probs, mp.Overround)

	if math.Abs(back.Home-original.Home) > 1e-6 {
		t.Errorf("round-trip Home = %.6f, want %.6f", back.Home, original.Home)
	}
	if math.Abs(back.Draw-original.Draw) > 1e-6 {
		t.Errorf("round-trip Draw = %.6f, want %.6f", back.Draw, original.Draw)
	}
	if math.Abs(back.Away-original.Away) > 1e-6 {
		t.Errorf("round-trip Away = %.6f, want %.6f", back.Away, original.Away)
	}
}

func TestRemoveVig2(t *testing.T) {
	a, b := RemoveVig2(1.90, 1.90)
	if math.Abs(a-0.5) > 1e-9 || math.Abs(b-0.5) > 1e-9 {
		t.Errorf("RemoveVig2(1.90, 1.90) = (%.6f, %.6f), want (0.5, 0.5)", a, b)
	}
	if math.Abs((a+b)-1.0) > 1e-9 {
		t.Errorf("RemoveVig2 probabilities sum to %.9f, want 1.0", a+b)
	}
}
