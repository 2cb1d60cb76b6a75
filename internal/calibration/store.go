package calibration

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

	"github.com/psilali/footy-probengine/internal/model"
	"github.com/psilali/footy-probengine/internal/telemetry"
)

// DefaultMinSamples is the spec's default minimum per-outcome sample count
// required to fit a calibrator.
const DefaultMinSamples = 200

// Store is the versioned, append-only isotonic calibrator store. Knots are
// never updated or deleted once written; activation flips a boolean under
// a per-key transaction instead (spec §4.5).
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create calibration store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open calibration store: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA auto_vacuum = INCREMENTAL`,
		`CREATE TABLE IF NOT EXISTS probability_calibration (
			calibration_id TEXT PRIMARY KEY,
			model_version  TEXT NOT NULL,
			league         TEXT,
			outcome        TEXT NOT NULL,
			knots_json     TEXT NOT NULL,
			samples_used   INTEGER NOT NULL,
			created_at     TEXT NOT NULL,
			valid_from     TEXT NOT NULL,
			active         INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_calib_key ON probability_calibration(model_version, league, outcome)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init calibration schema (%s): %w", stmt, err)
		}
	}

	telemetry.Infof("calibration store opened path=%s", path)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Dataset is the join of prediction snapshots and actual results the fit
// operation trains against, already filtered by model_version/league and
// bucketed by outcome (spec §4.5 "Dataset view").
type Dataset struct {
	ByOutcome map[model.Outcome][]Sample
}

// Fit pools samples by outcome, runs PAVA per outcome, and inserts three
// new inactive calibration versions. Fails with model.ErrInsufficientData
// if any outcome bucket falls short of minSamples.
func (s *Store) Fit(ctx context.Context, modelVersion, league string, data Dataset, minSamples int) ([]string, error) {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}

	for _, outcome := range []model.Outcome{model.OutcomeHome, model.OutcomeDraw, model.OutcomeAway} {
		samples := data.ByOutcome[outcome]
		if len(samples) < minSamples {
			return nil, fmt.Errorf("outcome %s has %d samples (need %d): %w", outcome, len(samples), minSamples, model.ErrInsufficientData)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var ids []string

	for _, outcome := range []model.Outcome{model.OutcomeHome, model.OutcomeDraw, model.OutcomeAway} {
		samples, ok := data.ByOutcome[outcome]
		if !ok {
			continue
		}

		knots := FitIsotonic(samples)
		knotsJSON, err := json.Marshal(knots)
		if err != nil {
			return nil, fmt.Errorf("marshal knots: %w", err)
		}

		id := model.NewCalibrationID()
		var leagueCol any
		if league != "" {
			leagueCol = league
		}

		_, err = s.db.ExecContext(ctx, `INSERT INTO probability_calibration
			(calibration_id, model_version, league, outcome, knots_json, samples_used, created_at, valid_from, active)
			VALUES (?,?,?,?,?,?,?,?,0)`,
			id, modelVersion, leagueCol, string(outcome), string(knotsJSON), len(samples),
			now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
		if err != nil {
			return nil, fmt.Errorf("insert calibration version: %w", err)
		}

		ids = append(ids, id)
	}

	telemetry.Metrics.CalibrationFits.Inc()
	return ids, nil
}

// Activate atomically activates calibrationID, deactivating any previous
// active entry for the same (model_version, league, outcome) key.
func (s *Store) Activate(ctx context.Context, calibrationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate tx: %w", err)
	}
	defer tx.Rollback()

	var modelVersion, outcome string
	var league sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT model_version, league, outcome FROM probability_calibration WHERE calibration_id = ?`, calibrationID).
		Scan(&modelVersion, &league, &outcome)
	if err != nil {
		return fmt.Errorf("lookup calibration %s: %w", calibrationID, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE probability_calibration SET active = 0
		WHERE model_version = ? AND outcome = ? AND ((league = ?) OR (league IS NULL AND ? IS NULL)) AND active = 1`,
		modelVersion, outcome, league, league); err != nil {
		return fmt.Errorf("deactivate previous calibration: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE probability_calibration SET active = 1 WHERE calibration_id = ?`, calibrationID); err != nil {
		return fmt.Errorf("activate calibration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activate tx: %w", err)
	}

	telemetry.Metrics.CalibrationActivations.Inc()
	return nil
}

// ListActive returns the active calibration versions for a model version,
// optionally narrowed to one league.
func (s *Store) ListActive(ctx context.Context, modelVersion, league string) ([]model.CalibrationVersion, error) {
	query := `SELECT calibration_id, model_version, league, outcome, knots_json, samples_used, created_at, valid_from
		FROM probability_calibration WHERE model_version = ? AND active = 1`
	args := []any{modelVersion}
	if league != "" {
		query += ` AND league = ?`
		args = append(args, league)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active calibrations: %w", err)
	}
	defer rows.Close()

	var out []model.CalibrationVersion
	for rows.Next() {
		var cv model.CalibrationVersion
		var leagueCol sql.NullString
		var knotsJSON, createdAt, validFrom string
		if err := rows.Scan(&cv.CalibrationID, &cv.ModelVersion, &leagueCol, &cv.Outcome, &knotsJSON, &cv.SamplesUsed, &createdAt, &validFrom); err != nil {
			return nil, fmt.Errorf("scan calibration row: %w", err)
		}
		if leagueCol.Valid {
			cv.League = leagueCol.String
		}
		if err := json.Unmarshal([]byte(knotsJSON), &cv.Knots); err != nil {
			return nil, fmt.Errorf("unmarshal knots: %w", err)
		}
		cv.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		cv.ValidFrom, _ = time.Parse(time.RFC3339Nano, validFrom)
		cv.Active = true
		out = append(out, cv)
	}
	return out, rows.Err()
}

// Apply maps a raw triple through the active per-outcome calibrators for
// (modelVersion, league), falling back to global (league="") and then to
// pass-through when neither is present (spec §4.5).
func (s *Store) Apply(ctx context.Context, modelVersion, league string, raw model.Triple) (model.Triple, error) {
	active, err := s.resolveActive(ctx, modelVersion, league)
	if err != nil {
		return model.Triple{}, err
	}

	calibrated := model.Triple{
		Home: applyOrPassthrough(active, model.OutcomeHome, raw.Home),
		Draw: applyOrPassthrough(active, model.OutcomeDraw, raw.Draw),
		Away: applyOrPassthrough(active, model.OutcomeAway, raw.Away),
	}

	sum := calibrated.Sum()
	if sum <= 0 {
		return raw, nil
	}
	return model.Triple{Home: calibrated.Home / sum, Draw: calibrated.Draw / sum, Away: calibrated.Away / sum}, nil
}

func (s *Store) resolveActive(ctx context.Context, modelVersion, league string) (map[model.Outcome]model.CalibrationVersion, error) {
	result := map[model.Outcome]model.CalibrationVersion{}

	if league != "" {
		versions, err := s.ListActive(ctx, modelVersion, league)
		if err != nil {
			return nil, err
		}
		for _, v := range versions {
			result[v.Outcome] = v
		}
	}

	if len(result) < 3 {
		global, err := s.ListActive(ctx, modelVersion, "")
		if err != nil {
			return nil, err
		}
		for _, v := range global {
			if v.League != "" {
				continue
			}
			if _, ok := result[v.Outcome]; !ok {
				result[v.Outcome] = v
			}
		}
	}

	return result, nil
}

func applyOrPassthrough(active map[model.Outcome]model.CalibrationVersion, outcome model.Outcome, x float64) float64 {
	v, ok := active[outcome]
	if !ok {
		return x
	}
	return ApplyKnots(v.Knots, x)
}
