package strength

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/psilali/footy-probengine/internal/model"
)

func TestFitInsufficientData(t *testing.T) {
	matches := []MatchResult{
		{Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), HomeTeam: "A", AwayTeam: "B", HomeGoals: 1, AwayGoals: 0},
	}

	opts := DefaultFitOptions()
	opts.ReferenceDate = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := NewEstimator().Fit("v1", matches, opts)
	if !errors.Is(err, model.ErrInsufficientData) {
		t.Fatalf("Fit() error = %v, want wrapping ErrInsufficientData", err)
	}
}

func TestFitConvergesAndNormalizesIdentifiability(t *testing.T) {
	teams := []string{"Alpha", "Bravo", "Charlie", "Delta"}
	// Deterministic synthetic round-robin (home+away) scorelines, enough
	// matches per team to clear the default 5-match floor.
	scores := [][2]int{
		{2, 1}, {1, 1}, {0, 2}, {3, 0}, {1, 0}, {2, 2},
	}

	var matches []MatchResult
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	idx := 0
	for i, home := range teams {
		for j, away := range teams {
			if i == j {
				continue
			}
			sc := scores[idx%len(scores)]
			matches = append(matches, MatchResult{
				Date:      base.Add(time.Duration(idx) * 24 * time.Hour),
				LeagueID:  "TestLeague",
				HomeTeam:  home,
				AwayTeam:  away,
				HomeGoals: sc[0],
				AwayGoals: sc[1],
			})
			idx++
		}
	}

	opts := DefaultFitOptions()
	opts.ReferenceDate = base.Add(time.Duration(len(matches)) * 24 * time.Hour)
	opts.LeagueID = "TestLeague"

	result, err := NewEstimator().Fit("v1", matches, opts)
	if err != nil {
		t.Fatalf("Fit() error = %v, want nil", err)
	}
	if !result.Converged {
		t.Errorf("Converged = false, want true for a well-conditioned synthetic league")
	}
	if len(result.Strengths) != len(teams) {
		t.Fatalf("len(Strengths) = %d, want %d", len(result.Strengths), len(teams))
	}

	var attackSum, defenseSum float64
	for _, team := range teams {
		ts, ok := result.Strengths[team]
		if !ok {
			t.Fatalf("missing TeamStrength for %s", team)
		}
		attackSum += ts.Attack
		defenseSum += ts.Defense
	}
	if math.Abs(attackSum) > 1e-4 {
		t.Errorf("sum of attack ratings = %.6f, want ~0 (identifiability constraint)", attackSum)
	}
	if math.Abs(defenseSum) > 1e-4 {
		t.Errorf("sum of defense ratings = %.6f, want ~0 (identifiability constraint)", defenseSum)
	}
}
