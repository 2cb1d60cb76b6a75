package audit

import "time"

// Event is the envelope that flows through the audit bus. Every domain
// event the core emits (a snapshot written, a ticket decided, a
// calibration activated, a model published) is wrapped in one.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Payload   any
}

type EventType string

const (
	EventSnapshotPersisted    EventType = "snapshot_persisted"
	EventTicketDecided        EventType = "ticket_decided"
	EventCalibrationActivated EventType = "calibration_activated"
	EventModelPublished       EventType = "model_published"
)

// SnapshotPersistedEvent is published once a PredictionSnapshot has been
// durably written for a (ticket_id, fixture_id) pair.
type SnapshotPersistedEvent struct {
	TicketID     string `json:"ticket_id"`
	FixtureID    string `json:"fixture_id"`
	ModelVersion string `json:"model_version"`
}

// TicketDecidedEvent is published once the Decision-Intelligence evaluator
// has scored a candidate ticket, whether accepted or rejected.
type TicketDecidedEvent struct {
	TicketID  string  `json:"ticket_id"`
	JackpotID string  `json:"jackpot_id"`
	Accepted  bool    `json:"accepted"`
	EVScore   float64 `json:"ev_score"`
	Reason    string  `json:"reason"`
}

// CalibrationActivatedEvent is published when a calibration version
// transitions to active.
type CalibrationActivatedEvent struct {
	CalibrationID string `json:"calibration_id"`
	ModelVersion  string `json:"model_version"`
	League        string `json:"league"`
	Outcome       string `json:"outcome"`
}

// ModelPublishedEvent is published when the training job swaps in a new
// Dixon-Coles parameter snapshot.
type ModelPublishedEvent struct {
	ModelVersion string `json:"model_version"`
	Iterations   int    `json:"iterations"`
	Converged    bool   `json:"converged"`
}
