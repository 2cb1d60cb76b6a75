// Package api exposes the probability, ticket-generation, calibration and
// health endpoints over HTTP, following the webhook handler's routing idiom:
// a Handler struct wired to its collaborators, RegisterRoutes attaching
// Go 1.22 pattern routes to a *http.ServeMux.
//
// Routes:
//
//	POST /v1/probabilities        -> compute per-fixture A-G probability sets
//	POST /v1/tickets               -> generate and select a ticket bundle
//	POST /v1/calibration/fit       -> fit new (inactive) isotonic calibrators
//	POST /v1/calibration/activate  -> activate a fitted calibrator
//	GET  /v1/calibration/active    -> list active calibrators
//	GET  /health                   -> 200 OK
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/psilali/footy-probengine/internal/audit"
	"github.com/psilali/footy-probengine/internal/calibration"
	"github.com/psilali/footy-probengine/internal/config"
	"github.com/psilali/footy-probengine/internal/model"
	"github.com/psilali/footy-probengine/internal/pipeline"
	"github.com/psilali/footy-probengine/internal/probability"
	"github.com/psilali/footy-probengine/internal/telemetry"
)

// Handler serves the HTTP surface of the engine. It holds no mutable state
// of its own; all state lives in its collaborators.
type Handler struct {
	pipe  *pipeline.Pipeline
	snaps *pipeline.SnapshotStore
	calib *calibration.Store
	bus   *audit.Bus
	cfg   *config.Config
}

func NewHandler(pipe *pipeline.Pipeline, snaps *pipeline.SnapshotStore, calib *calibration.Store, bus *audit.Bus, cfg *config.Config) *Handler {
	return &Handler{pipe: pipe, snaps: snaps, calib: calib, bus: bus, cfg: cfg}
}

// RegisterRoutes wires every endpoint onto the provided mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/probabilities", h.postProbabilities)
	mux.HandleFunc("POST /v1/tickets", h.postTickets)
	mux.HandleFunc("POST /v1/calibration/fit", h.postCalibrationFit)
	mux.HandleFunc("POST /v1/calibration/activate", h.postCalibrationActivate)
	mux.HandleFunc("GET /v1/calibration/active", h.getCalibrationActive)
	mux.HandleFunc("GET /health", h.healthCheck)
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) postProbabilities(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	telemetry.Metrics.RequestsReceived.Inc()
	telemetry.Metrics.ActivePipelineRuns.Inc()
	defer telemetry.Metrics.ActivePipelineRuns.Dec()
	defer func() { telemetry.Metrics.RequestLatency.Record(time.Since(start)) }()

	var req ProbabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		telemetry.Metrics.RequestParseErrors.Inc()
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	fixtures := make([]model.Fixture, 0, len(req.Fixtures))
	for _, fr := range req.Fixtures {
		fixtures = append(fixtures, fixtureFromDTO(fr))
	}

	ctx, cancel := contextWithTimeout(r, h.cfg.RequestTimeout)
	defer cancel()

	results, err := h.pipe.Run(ctx, fixtures, map[string]probability.FixtureContext{})
	if err != nil {
		writePipelineError(w, err)
		return
	}

	resp := ProbabilityResponse{
		JackpotID: req.JackpotID,
		Fixtures:  make([]FixtureProbabilityDTO, 0, len(results)),
	}
	for _, res := range results {
		resp.Fixtures = append(resp.Fixtures, fixtureResultDTO(res))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) postTickets(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	telemetry.Metrics.RequestsReceived.Inc()
	telemetry.Metrics.ActivePipelineRuns.Inc()
	defer telemetry.Metrics.ActivePipelineRuns.Dec()
	defer func() { telemetry.Metrics.RequestLatency.Record(time.Since(start)) }()

	var req TicketGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		telemetry.Metrics.RequestParseErrors.Inc()
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	setKey := model.SetKey(req.ProbabilitySet)
	if setKey == "" {
		setKey = model.SetBalanced
	}

	fixtures := make([]model.Fixture, 0, len(req.Fixtures))
	for _, fr := range req.Fixtures {
		fixtures = append(fixtures, fixtureFromDTO(fr))
	}

	ctx, cancel := contextWithTimeout(r, h.cfg.RequestTimeout)
	defer cancel()

	// persistedTicketIDs tracks what this request has already written, so a
	// context-deadline abort at any later stage can roll it back rather than
	// leaving partial state behind (spec §7 "writes nothing" on timeout).
	var persistedTicketIDs []string
	rollback := func() {
		if h.snaps == nil || len(persistedTicketIDs) == 0 {
			return
		}
		if err := h.snaps.DeleteForRequest(context.Background(), persistedTicketIDs); err != nil {
			telemetry.Errorf("rollback snapshots for timed-out request: %v", err)
		}
	}

	results, err := h.pipe.Run(ctx, fixtures, map[string]probability.FixtureContext{})
	if err != nil {
		if errors.Is(err, model.ErrTimeout) {
			rollback()
		}
		writePipelineError(w, err)
		return
	}

	tickets, diag, err := h.pipe.GenerateTickets(ctx, req.JackpotID, results, fixtures, setKey, req.NTickets)
	if err != nil {
		if errors.Is(err, model.ErrTimeout) {
			rollback()
		}
		writePipelineError(w, err)
		return
	}

	if h.snaps != nil {
		resultsByFixture := make(map[string]pipeline.FixtureResult, len(results))
		for _, res := range results {
			resultsByFixture[res.FixtureID] = res
		}

		for _, t := range tickets {
			if ctx.Err() != nil {
				rollback()
				writePipelineError(w, fmt.Errorf("persist tickets: %w", model.ErrTimeout))
				return
			}

			snapshots := make([]model.PredictionSnapshot, 0, len(t.Picks))
			capturedAt := time.Now()
			for _, pick := range t.Picks {
				res, ok := resultsByFixture[pick.FixtureID]
				if !ok {
					continue
				}
				snapshots = append(snapshots, model.PredictionSnapshot{
					TicketID:     t.TicketID,
					FixtureID:    res.FixtureID,
					XGHome:       res.XGHome,
					XGAway:       res.XGAway,
					XGConfidence: res.XGConfidence,
					DCApplied:    res.DCApplied,
					ModelVersion: res.ModelVersion,
					Base:         res.Base,
					Blended:      res.Blended,
					Calibrated:   res.Calibrated,
					CapturedAt:   capturedAt,
				})
			}

			if err := h.snaps.PersistSnapshots(ctx, snapshots); err != nil {
				telemetry.Errorf("persist snapshots for ticket %s: %v", t.TicketID, err)
				continue
			}
			if err := h.snaps.PersistTicket(ctx, t); err != nil {
				telemetry.Errorf("persist ticket %s: %v", t.TicketID, err)
				continue
			}
			persistedTicketIDs = append(persistedTicketIDs, t.TicketID)
		}
	}

	if h.bus != nil {
		for _, t := range tickets {
			h.bus.Publish(audit.Event{
				ID:        t.TicketID,
				Type:      audit.EventTicketDecided,
				Timestamp: time.Now(),
				Payload: audit.TicketDecidedEvent{
					TicketID:  t.TicketID,
					JackpotID: req.JackpotID,
					Accepted:  t.Accepted,
					EVScore:   t.EVScore,
					Reason:    t.Reason,
				},
			})
		}
	}

	resp := TicketGenerationResponse{
		JackpotID:  req.JackpotID,
		Tickets:    make([]TicketDTO, 0, len(tickets)),
		Considered: len(results),
		Portfolio:  portfolioDiagnosticsDTO(diag),
	}
	for _, t := range tickets {
		resp.Tickets = append(resp.Tickets, ticketDTO(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) postCalibrationFit(w http.ResponseWriter, r *http.Request) {
	var req CalibrationFitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		telemetry.Metrics.RequestParseErrors.Inc()
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	minSamples := req.MinSamples
	if minSamples <= 0 {
		minSamples = calibration.DefaultMinSamples
	}

	dataset := calibration.Dataset{ByOutcome: make(map[model.Outcome][]calibration.Sample, len(req.Samples))}
	for outcomeKey, samples := range req.Samples {
		converted := make([]calibration.Sample, 0, len(samples))
		for _, s := range samples {
			converted = append(converted, calibration.Sample{Predicted: s.Predicted, Observed: s.Observed})
		}
		dataset.ByOutcome[model.Outcome(outcomeKey)] = converted
	}

	ids, err := h.calib.Fit(r.Context(), req.ModelVersion, req.League, dataset, minSamples)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CalibrationFitResponse{CalibrationIDs: ids})
}

func (h *Handler) postCalibrationActivate(w http.ResponseWriter, r *http.Request) {
	var req CalibrationActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		telemetry.Metrics.RequestParseErrors.Inc()
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.calib.Activate(r.Context(), req.CalibrationID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "activation_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "activated"})
}

func (h *Handler) getCalibrationActive(w http.ResponseWriter, r *http.Request) {
	modelVersion := r.URL.Query().Get("model_version")
	league := r.URL.Query().Get("league")

	versions, err := h.calib.ListActive(r.Context(), modelVersion, league)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, versions)
}
