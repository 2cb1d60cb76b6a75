package ticket

import "sort"

const (
	thresholdMinAcceptanceRate = 0.55
	thresholdMaxAcceptanceRate = 0.80
)

// ScoredOutcome pairs a ticket's stored ev_score with its settled hit
// count, the join the threshold-learning job reads (spec §4.8
// "Threshold learning").
type ScoredOutcome struct {
	EVScore float64
	Hits    int
	PickCount int
}

// LearnThreshold finds the ev_threshold that maximises hit-rate lift over
// the baseline (mean hit rate at threshold -inf) while keeping the
// acceptance rate within [0.55, 0.80]. Monotone in the empirical-risk
// sense: candidate thresholds are every observed ev_score, evaluated in
// ascending order.
func LearnThreshold(outcomes []ScoredOutcome) (threshold float64, acceptanceRate float64) {
	if len(outcomes) == 0 {
		return 0, 0
	}

	sorted := make([]ScoredOutcome, len(outcomes))
	copy(sorted, outcomes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].EVScore < sorted[j].EVScore })

	baseline := meanHitRate(sorted)

	bestThreshold := sorted[0].EVScore
	bestLift := -1.0
	bestRate := 0.0

	for i, candidate := range sorted {
		accepted := sorted[i:]
		rate := float64(len(accepted)) / float64(len(sorted))
		if rate < thresholdMinAcceptanceRate || rate > thresholdMaxAcceptanceRate {
			continue
		}
		lift := meanHitRate(accepted) - baseline
		if lift > bestLift {
			bestLift = lift
			bestThreshold = candidate.EVScore
			bestRate = rate
		}
	}

	return bestThreshold, bestRate
}

func meanHitRate(outcomes []ScoredOutcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	var totalHits, totalPicks int
	for _, o := range outcomes {
		totalHits += o.Hits
		totalPicks += o.PickCount
	}
	if totalPicks == 0 {
		return 0
	}
	return float64(totalHits) / float64(totalPicks)
}
