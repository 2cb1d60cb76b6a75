package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/psilali/footy-probengine/internal/telemetry"
)

// LogStore subscribes to the audit Bus and durably records every event
// into an append-only ingestion_log table (spec §6 "Persisted state").
type LogStore struct {
	db *sql.DB
	mu sync.Mutex
}

func OpenLogStore(path string) (*LogStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ingestion log dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open ingestion log: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ingestion_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id   TEXT NOT NULL,
		event_type TEXT NOT NULL,
		ts         TEXT NOT NULL,
		payload    TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ingestion log schema: %w", err)
	}

	telemetry.Infof("ingestion log opened path=%s", path)

	return &LogStore{db: db}, nil
}

func (s *LogStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Subscribe wires this store to receive every event type the bus carries.
func (s *LogStore) Subscribe(bus *Bus) {
	for _, t := range []EventType{EventSnapshotPersisted, EventTicketDecided, EventCalibrationActivated, EventModelPublished} {
		bus.Subscribe(t, s.record)
	}
}

func (s *LogStore) record(e Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(context.Background(), `INSERT INTO ingestion_log (event_id, event_type, ts, payload) VALUES (?,?,?,?)`,
		e.ID, string(e.Type), e.Timestamp.UTC().Format(time.RFC3339Nano), string(payload))
	if err != nil {
		telemetry.Warnf("ingestion log write failed: %v", err)
		return err
	}
	return nil
}
