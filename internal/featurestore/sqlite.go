package featurestore

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

// SQLiteStore is the durable FeatureStore backend: team strengths and
// league draw rates are written by the training job (cmd/train), referee and
// weather context by ingestion collaborators. It follows the same
// pragma/schema/single-connection idiom as the snapshot and calibration
// stores.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create feature store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open feature store: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA auto_vacuum = INCREMENTAL`,
		`CREATE TABLE IF NOT EXISTS team_strength (
			team_id       TEXT NOT NULL,
			model_version TEXT NOT NULL,
			attack        REAL NOT NULL,
			defense       REAL NOT NULL,
			promoted_match_count INTEGER NOT NULL DEFAULT 0,
			is_prior      INTEGER NOT NULL DEFAULT 0,
			updated_at    TEXT NOT NULL,
			PRIMARY KEY (team_id, model_version)
		)`,
		`CREATE TABLE IF NOT EXISTS league_draw_rate (
			league_id TEXT PRIMARY KEY,
			draw_rate REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS head_to_head (
			home_team_id   TEXT NOT NULL,
			away_team_id   TEXT NOT NULL,
			matches_played INTEGER NOT NULL,
			draw_count     INTEGER NOT NULL,
			last_meeting   TEXT,
			PRIMARY KEY (home_team_id, away_team_id)
		)`,
		`CREATE TABLE IF NOT EXISTS elo_rating (
			team_id TEXT PRIMARY KEY,
			elo     REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS last_match (
			team_id TEXT PRIMARY KEY,
			played_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS referee_profile (
			fixture_id TEXT PRIMARY KEY,
			referee_id TEXT NOT NULL,
			draw_rate  REAL NOT NULL,
			matches_refereed INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS weather_context (
			fixture_id TEXT PRIMARY KEY,
			precipitation_mm REAL NOT NULL,
			wind_kph         REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS odds_drift (
			fixture_id TEXT PRIMARY KEY,
			drift      REAL NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS xg_sample_size (
			team_id TEXT PRIMARY KEY,
			samples INTEGER NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init feature store schema (%s): %w", stmt, err)
		}
	}

	telemetry.Infof("feature store opened path=%s", path)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) TeamStrength(ctx context.Context, modelVersion, teamID string) (model.TeamStrength, error) {
	row := s.db.QueryRowContext(ctx, `SELECT attack, defense, promoted_match_count, is_prior, updated_at
		FROM team_strength WHERE team_id = ? AND model_version = ?`, teamID, modelVersion)

	var ts model.TeamStrength
	ts.TeamID = teamID
	ts.ModelVersion = modelVersion
	var updatedAt string
	var isPrior int
	if err := row.Scan(&ts.Attack, &ts.Defense, &ts.PromotedMatchCount, &isPrior, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return model.TeamStrength{}, fmt.Errorf("team strength %s/%s: %w", teamID, modelVersion, model.ErrMissingFeature)
		}
		return model.TeamStrength{}, fmt.Errorf("read team strength: %w", err)
	}
	ts.IsPrior = isPrior != 0
	ts.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return ts, nil
}

func (s *SQLiteStore) PutTeamStrength(ctx context.Context, ts model.TeamStrength) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO team_strength
		(team_id, model_version, attack, defense, promoted_match_count, is_prior, updated_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(team_id, model_version) DO UPDATE SET
			attack=excluded.attack, defense=excluded.defense,
			promoted_match_count=excluded.promoted_match_count,
			is_prior=excluded.is_prior, updated_at=excluded.updated_at`,
		ts.TeamID, ts.ModelVersion, ts.Attack, ts.Defense, ts.PromotedMatchCount, boolToInt(ts.IsPrior),
		ts.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write team strength: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LeagueDrawRate(ctx context.Context, leagueID string) (float64, error) {
	var rate float64
	err := s.db.QueryRowContext(ctx, `SELECT draw_rate FROM league_draw_rate WHERE league_id = ?`, leagueID).Scan(&rate)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("league draw rate %s: %w", leagueID, model.ErrMissingFeature)
	}
	if err != nil {
		return 0, fmt.Errorf("read league draw rate: %w", err)
	}
	return rate, nil
}

// PutLeagueDrawRate is written by the training job from historical results,
// feeding the draw adjuster's league_prior signal (spec §4.3).
func (s *SQLiteStore) PutLeagueDrawRate(ctx context.Context, leagueID string, rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO league_draw_rate (league_id, draw_rate) VALUES (?,?)
		ON CONFLICT(league_id) DO UPDATE SET draw_rate=excluded.draw_rate`, leagueID, rate)
	if err != nil {
		return fmt.Errorf("write league draw rate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) HeadToHead(ctx context.Context, homeTeamID, awayTeamID string) (H2HRecord, error) {
	var rec H2HRecord
	var lastMeeting sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT matches_played, draw_count, last_meeting
		FROM head_to_head WHERE home_team_id = ? AND away_team_id = ?`, homeTeamID, awayTeamID).
		Scan(&rec.MatchesPlayed, &rec.DrawCount, &lastMeeting)
	if err == sql.ErrNoRows {
		return H2HRecord{}, fmt.Errorf("h2h %s/%s: %w", homeTeamID, awayTeamID, model.ErrMissingFeature)
	}
	if err != nil {
		return H2HRecord{}, fmt.Errorf("read h2h: %w", err)
	}
	if lastMeeting.Valid {
		rec.LastMeeting, _ = time.Parse(time.RFC3339Nano, lastMeeting.String)
	}
	return rec, nil
}

func (s *SQLiteStore) Elo(ctx context.Context, teamID string) (float64, error) {
	var elo float64
	err := s.db.QueryRowContext(ctx, `SELECT elo FROM elo_rating WHERE team_id = ?`, teamID).Scan(&elo)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("elo %s: %w", teamID, model.ErrMissingFeature)
	}
	if err != nil {
		return 0, fmt.Errorf("read elo: %w", err)
	}
	return elo, nil
}

func (s *SQLiteStore) RestDays(ctx context.Context, teamID string, asOf time.Time) (int, error) {
	var playedAt string
	err := s.db.QueryRowContext(ctx, `SELECT played_at FROM last_match WHERE team_id = ?`, teamID).Scan(&playedAt)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("rest days %s: %w", teamID, model.ErrMissingFeature)
	}
	if err != nil {
		return 0, fmt.Errorf("read rest days: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, playedAt)
	if err != nil {
		return 0, fmt.Errorf("parse last match time: %w", err)
	}
	return int(asOf.Sub(t).Hours() / 24), nil
}

func (s *SQLiteStore) Referee(ctx context.Context, fixtureID string) (RefereeProfile, bool, error) {
	var p RefereeProfile
	err := s.db.QueryRowContext(ctx, `SELECT referee_id, draw_rate, matches_refereed
		FROM referee_profile WHERE fixture_id = ?`, fixtureID).Scan(&p.RefereeID, &p.DrawRate, &p.MatchesRefereed)
	if err == sql.ErrNoRows {
		return RefereeProfile{}, false, nil
	}
	if err != nil {
		return RefereeProfile{}, false, fmt.Errorf("read referee: %w", err)
	}
	return p, true, nil
}

func (s *SQLiteStore) Weather(ctx context.Context, fixtureID string) (WeatherContext, bool, error) {
	var w WeatherContext
	err := s.db.QueryRowContext(ctx, `SELECT precipitation_mm, wind_kph FROM weather_context WHERE fixture_id = ?`, fixtureID).
		Scan(&w.PrecipitationMM, &w.WindKPH)
	if err == sql.ErrNoRows {
		return WeatherContext{}, false, nil
	}
	if err != nil {
		return WeatherContext{}, false, fmt.Errorf("read weather: %w", err)
	}
	return w, true, nil
}

func (s *SQLiteStore) OddsDrift(ctx context.Context, fixtureID string) (float64, bool, error) {
	var drift float64
	err := s.db.QueryRowContext(ctx, `SELECT drift FROM odds_drift WHERE fixture_id = ?`, fixtureID).Scan(&drift)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read odds drift: %w", err)
	}
	return drift, true, nil
}

// PutOddsDrift is called by the odds-feed websocket consumer as live prices
// move, so pipeline requests see the latest drift without round-tripping to
// the upstream feed themselves.
func (s *SQLiteStore) PutOddsDrift(ctx context.Context, fixtureID string, drift float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO odds_drift (fixture_id, drift, updated_at) VALUES (?,?,?)
		ON CONFLICT(fixture_id) DO UPDATE SET drift=excluded.drift, updated_at=excluded.updated_at`,
		fixtureID, drift, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write odds drift: %w", err)
	}
	return nil
}

func (s *SQLiteStore) XGSampleSize(ctx context.Context, teamID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT samples FROM xg_sample_size WHERE team_id = ?`, teamID).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("xg sample size %s: %w", teamID, model.ErrMissingFeature)
	}
	if err != nil {
		return 0, fmt.Errorf("read xg sample size: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
