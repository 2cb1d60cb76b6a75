package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/psilali/footy-probengine/internal/model"
	"github.com/psilali/footy-probengine/internal/pipeline"
)

func fixtureFromDTO(fr FixtureRequest) model.Fixture {
	fx := model.Fixture{
		FixtureID:  fr.FixtureID,
		LeagueID:   fr.LeagueID,
		HomeTeamID: fr.HomeTeamID,
		AwayTeamID: fr.AwayTeamID,
	}
	if t, err := time.Parse(time.RFC3339, fr.KickoffTime); err == nil {
		fx.KickoffTime = t
	}
	if fr.OddsHome != nil && fr.OddsDraw != nil && fr.OddsAway != nil {
		fx.Odds = &model.Odds{Home: *fr.OddsHome, Draw: *fr.OddsDraw, Away: *fr.OddsAway}
	}
	return fx
}

func fixtureResultDTO(res pipeline.FixtureResult) FixtureProbabilityDTO {
	sets := make(map[string]ProbabilitySetDTO, len(res.Sets))
	for _, s := range res.Sets {
		dto := ProbabilitySetDTO{
			Key:     string(s.Key),
			Probs:   tripleDTO(s.Probs),
			Entropy: s.Entropy,
			Source:  s.Source,
		}
		if s.KellyFractions != nil {
			k := tripleDTO(*s.KellyFractions)
			dto.KellyFractions = &k
		}
		sets[string(s.Key)] = dto
	}

	return FixtureProbabilityDTO{
		FixtureID:    res.FixtureID,
		XGHome:       res.XGHome,
		XGAway:       res.XGAway,
		XGConfidence: res.XGConfidence,
		DCApplied:    res.DCApplied,
		Base:         tripleDTO(res.Base),
		Blended:      tripleDTO(res.Blended),
		Calibrated:   tripleDTO(res.Calibrated),
		Sets:         sets,
	}
}

func ticketDTO(t model.Ticket) TicketDTO {
	picks := make([]string, 0, len(t.Picks))
	for _, p := range t.Picks {
		picks = append(picks, p.FixtureID+":"+string(p.Outcome))
	}
	return TicketDTO{
		TicketID:        t.TicketID,
		Archetype:       string(t.Archetype),
		Picks:           picks,
		DecisionVersion: t.DecisionVersion,
		Accepted:        t.Accepted,
		EVScore:         t.EVScore,
		Contradictions:  t.Contradictions,
		Reason:          t.Reason,
	}
}

func portfolioDiagnosticsDTO(d model.PortfolioDiagnostics) PortfolioDiagnosticsDTO {
	dist := make(map[string]int, len(d.ArchetypeDistribution))
	for k, v := range d.ArchetypeDistribution {
		dist[string(k)] = v
	}
	return PortfolioDiagnosticsDTO{
		MeanPairwiseCorr:       d.MeanPairwiseCorr,
		MaxPairwiseCorr:        d.MaxPairwiseCorr,
		BundleScore:            d.BundleScore,
		ArchetypeDistribution:  dist,
	}
}

func contextWithTimeout(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(r.Context(), timeout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

func writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	case errors.Is(err, model.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, model.ErrMissingFeature):
		writeError(w, http.StatusUnprocessableEntity, "missing_feature", err.Error())
	case errors.Is(err, model.ErrInsufficientData):
		writeError(w, http.StatusUnprocessableEntity, "insufficient_data", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
