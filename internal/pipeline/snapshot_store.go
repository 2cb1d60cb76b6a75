package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/psilali/footy-probengine/internal/model"
	"github.com/psilali/footy-probengine/internal/telemetry"
)

// SnapshotStore persists PredictionSnapshot, Ticket, TicketPick, and
// TicketOutcome rows. Snapshots and tickets are written once per request
// and never mutated (spec §5 "Shared resources"); a timed-out request's
// rows are rolled back via DeleteForRequest rather than left as
// partial state (spec §7 Timeout: "writes nothing").
type SnapshotStore struct {
	db *sql.DB
	mu sync.Mutex
}

func OpenSnapshotStore(path string) (*SnapshotStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA auto_vacuum = INCREMENTAL`,
		`CREATE TABLE IF NOT EXISTS prediction_snapshot (
			ticket_id     TEXT NOT NULL,
			fixture_id    TEXT NOT NULL,
			xg_home       REAL NOT NULL,
			xg_away       REAL NOT NULL,
			xg_confidence REAL NOT NULL,
			dc_applied    INTEGER NOT NULL,
			model_version TEXT NOT NULL,
			base_home REAL, base_draw REAL, base_away REAL,
			blended_home REAL, blended_draw REAL, blended_away REAL,
			calibrated_home REAL, calibrated_draw REAL, calibrated_away REAL,
			captured_at TEXT NOT NULL,
			PRIMARY KEY (ticket_id, fixture_id)
		)`,
		`CREATE TABLE IF NOT EXISTS ticket (
			ticket_id        TEXT PRIMARY KEY,
			jackpot_id       TEXT NOT NULL,
			archetype        TEXT NOT NULL,
			set_key          TEXT NOT NULL,
			decision_version TEXT NOT NULL,
			ev_score         REAL NOT NULL,
			accepted         INTEGER NOT NULL,
			reason           TEXT,
			created_at       TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ticket_pick (
			ticket_id  TEXT NOT NULL,
			seq        INTEGER NOT NULL,
			fixture_id TEXT NOT NULL,
			outcome    TEXT NOT NULL,
			PRIMARY KEY (ticket_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS ticket_outcome (
			ticket_id  TEXT PRIMARY KEY,
			hits       INTEGER NOT NULL,
			settled_at TEXT NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init snapshot schema (%s): %w", stmt, err)
		}
	}

	telemetry.Infof("snapshot store opened path=%s", path)

	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PersistSnapshots writes one immutable row per (ticket_id, fixture_id).
func (s *SnapshotStore) PersistSnapshots(ctx context.Context, snapshots []model.PredictionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	for _, snap := range snapshots {
		_, err := tx.ExecContext(ctx, `INSERT INTO prediction_snapshot
			(ticket_id, fixture_id, xg_home, xg_away, xg_confidence, dc_applied, model_version,
			 base_home, base_draw, base_away, blended_home, blended_draw, blended_away,
			 calibrated_home, calibrated_draw, calibrated_away, captured_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			snap.TicketID, snap.FixtureID, snap.XGHome, snap.XGAway, snap.XGConfidence, boolToInt(snap.DCApplied), snap.ModelVersion,
			snap.Base.Home, snap.Base.Draw, snap.Base.Away,
			snap.Blended.Home, snap.Blended.Draw, snap.Blended.Away,
			snap.Calibrated.Home, snap.Calibrated.Draw, snap.Calibrated.Away,
			snap.CapturedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("insert snapshot %s/%s: %w", snap.TicketID, snap.FixtureID, err)
		}
	}

	return tx.Commit()
}

// PersistTicket writes the ticket header row plus its ordered picks.
func (s *SnapshotStore) PersistTicket(ctx context.Context, t model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ticket tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO ticket
		(ticket_id, jackpot_id, archetype, set_key, decision_version, ev_score, accepted, reason, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		t.TicketID, t.JackpotID, string(t.Archetype), string(t.SetKey), t.DecisionVersion, t.EVScore, boolToInt(t.Accepted), t.Reason,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert ticket %s: %w", t.TicketID, err)
	}

	for i, pick := range t.Picks {
		_, err := tx.ExecContext(ctx, `INSERT INTO ticket_pick (ticket_id, seq, fixture_id, outcome) VALUES (?,?,?,?)`,
			t.TicketID, i, pick.FixtureID, string(pick.Outcome))
		if err != nil {
			return fmt.Errorf("insert pick %s[%d]: %w", t.TicketID, i, err)
		}
	}

	return tx.Commit()
}

// DeleteForRequest rolls back any rows written for a request that later
// timed out (spec §7 Timeout semantics).
func (s *SnapshotStore) DeleteForRequest(ctx context.Context, ticketIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rollback tx: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ticketIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM prediction_snapshot WHERE ticket_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ticket_pick WHERE ticket_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ticket WHERE ticket_id = ?`, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecordOutcome writes the settlement result used by the threshold-learning
// job.
func (s *SnapshotStore) RecordOutcome(ctx context.Context, outcome model.TicketOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO ticket_outcome (ticket_id, hits, settled_at) VALUES (?,?,?)
		ON CONFLICT(ticket_id) DO UPDATE SET hits=excluded.hits, settled_at=excluded.settled_at`,
		outcome.TicketID, outcome.Hits, outcome.SettledAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record ticket outcome %s: %w", outcome.TicketID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
