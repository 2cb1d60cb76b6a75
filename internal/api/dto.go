package api

import "github.com/psilali/footy-probengine/internal/model"

// FixtureRequest is the wire shape of one fixture in a probability or
// ticket-generation request.
type FixtureRequest struct {
	FixtureID   string  `json:"fixture_id"`
	LeagueID    string  `json:"league_id"`
	HomeTeamID  string  `json:"home_team_id"`
	AwayTeamID  string  `json:"away_team_id"`
	KickoffTime string  `json:"kickoff_time"`
	OddsHome    *float64 `json:"odds_home,omitempty"`
	OddsDraw    *float64 `json:"odds_draw,omitempty"`
	OddsAway    *float64 `json:"odds_away,omitempty"`
}

// ProbabilityRequest is the spec §6 "Probability endpoint" input.
type ProbabilityRequest struct {
	JackpotID string           `json:"jackpot_id"`
	Fixtures  []FixtureRequest `json:"fixtures"`
}

// TripleDTO is the wire shape of a 1X2 probability triple.
type TripleDTO struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw"`
	Away float64 `json:"away"`
}

func tripleDTO(t model.Triple) TripleDTO {
	return TripleDTO{Home: t.Home, Draw: t.Draw, Away: t.Away}
}

// ProbabilitySetDTO is one of the seven A-G sets in the response.
type ProbabilitySetDTO struct {
	Key            string     `json:"key"`
	Probs          TripleDTO  `json:"probs"`
	Entropy        float64    `json:"entropy"`
	Source         string     `json:"source"`
	KellyFractions *TripleDTO `json:"kelly_fractions,omitempty"`
}

// FixtureProbabilityDTO is one fixture's full probability breakdown.
type FixtureProbabilityDTO struct {
	FixtureID    string                       `json:"fixture_id"`
	XGHome       float64                      `json:"xg_home"`
	XGAway       float64                      `json:"xg_away"`
	XGConfidence float64                      `json:"xg_confidence"`
	DCApplied    bool                         `json:"dc_applied"`
	Base         TripleDTO                    `json:"base"`
	Blended      TripleDTO                    `json:"blended"`
	Calibrated   TripleDTO                    `json:"calibrated"`
	Sets         map[string]ProbabilitySetDTO `json:"sets"`
}

// ProbabilityResponse is the spec §6 "Probability endpoint" output.
type ProbabilityResponse struct {
	JackpotID string                  `json:"jackpot_id"`
	Fixtures  []FixtureProbabilityDTO `json:"fixtures"`
}

// TicketGenerationRequest is the spec §6 "Ticket-generation endpoint" input.
// Fixtures are supplied fresh on every call (rather than referencing a
// prior /v1/probabilities response) so the pipeline always recomputes the
// slate under the current model snapshot before generating tickets.
type TicketGenerationRequest struct {
	JackpotID      string           `json:"jackpot_id"`
	ProbabilitySet string           `json:"probability_set"`
	NTickets       int              `json:"n_tickets"`
	Fixtures       []FixtureRequest `json:"fixtures"`
}

// TicketDTO is one accepted ticket in the response.
type TicketDTO struct {
	TicketID        string   `json:"ticket_id"`
	Archetype       string   `json:"archetype"`
	Picks           []string `json:"picks"`
	DecisionVersion string   `json:"decision_version"`
	Accepted        bool     `json:"accepted"`
	EVScore         float64  `json:"ev_score"`
	Contradictions  []string `json:"contradictions"`
	Reason          string   `json:"reason"`
}

// PortfolioDiagnosticsDTO mirrors model.PortfolioDiagnostics on the wire.
type PortfolioDiagnosticsDTO struct {
	MeanPairwiseCorr      float64        `json:"mean_pairwise_corr"`
	MaxPairwiseCorr       float64        `json:"max_pairwise_corr"`
	BundleScore           float64        `json:"bundle_score"`
	ArchetypeDistribution map[string]int `json:"archetype_distribution"`
}

// TicketGenerationResponse is the spec §6 "Ticket-generation endpoint" output.
type TicketGenerationResponse struct {
	JackpotID   string                  `json:"jackpot_id"`
	Tickets     []TicketDTO             `json:"tickets"`
	Considered  int                     `json:"considered"`
	Portfolio   PortfolioDiagnosticsDTO `json:"portfolio"`
}

// CalibrationSampleDTO is one (predicted, observed) pair used to fit an
// isotonic calibrator for a single outcome.
type CalibrationSampleDTO struct {
	Predicted float64 `json:"predicted"`
	Observed  float64 `json:"observed"`
}

// CalibrationFitRequest is the spec §6 "Calibration endpoints: fit" input.
// Samples is keyed by outcome ("H", "D", "A"); each bucket is fit
// independently against the spec's minimum-sample-size gate.
type CalibrationFitRequest struct {
	ModelVersion string                            `json:"model_version"`
	League       string                             `json:"league,omitempty"`
	MinSamples   int                                `json:"min_samples,omitempty"`
	Samples      map[string][]CalibrationSampleDTO `json:"samples"`
}

// CalibrationFitResponse lists the newly created (inactive) calibration ids.
type CalibrationFitResponse struct {
	CalibrationIDs []string `json:"calibration_ids"`
}

// CalibrationActivateRequest is the spec §6 "activate" input.
type CalibrationActivateRequest struct {
	CalibrationID string `json:"calibration_id"`
}

// ErrorResponse is the uniform error envelope for every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
