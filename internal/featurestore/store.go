// Package featurestore resolves the per-fixture signals the probability
// pipeline needs beyond the Dixon-Coles fit itself: team strengths, league
// draw priors, head-to-head history, Elo symmetry, rest days, referee and
// weather context, live odds drift, and expected-goals confidence inputs
// (spec §4.2, §4.3).
package featurestore

import (
	"context"
	"time"

	"github.com/psilali/footy-probengine/internal/model"
)

// H2HRecord summarizes the head-to-head history between two teams.
type H2HRecord struct {
	MatchesPlayed int
	DrawCount     int
	LastMeeting   time.Time
}

// RefereeProfile carries a referee's historical draw rate, used as one of
// the eight draw-structural signals.
type RefereeProfile struct {
	RefereeID    string
	DrawRate     float64
	MatchesRefereed int
}

// WeatherContext is the match-day weather snapshot for the draw adjuster.
type WeatherContext struct {
	PrecipitationMM float64
	WindKPH         float64
}

// TeamStrengthReader resolves the fitted Dixon-Coles rating for a team.
type TeamStrengthReader interface {
	TeamStrength(ctx context.Context, modelVersion, teamID string) (model.TeamStrength, error)
}

// LeaguePriorReader resolves a league's historical draw rate.
type LeaguePriorReader interface {
	LeagueDrawRate(ctx context.Context, leagueID string) (float64, error)
}

// H2HReader resolves head-to-head history between two teams.
type H2HReader interface {
	HeadToHead(ctx context.Context, homeTeamID, awayTeamID string) (H2HRecord, error)
}

// EloReader resolves Elo ratings used for the draw adjuster's symmetry signal.
type EloReader interface {
	Elo(ctx context.Context, teamID string) (float64, error)
}

// RestDaysReader resolves days since each team's last competitive match.
type RestDaysReader interface {
	RestDays(ctx context.Context, teamID string, asOf time.Time) (int, error)
}

// RefereeReader resolves the assigned referee's profile, when known.
type RefereeReader interface {
	Referee(ctx context.Context, fixtureID string) (RefereeProfile, bool, error)
}

// WeatherReader resolves match-day weather, when known ahead of kickoff.
type WeatherReader interface {
	Weather(ctx context.Context, fixtureID string) (WeatherContext, bool, error)
}

// OddsMovementReader resolves the live odds-drift signal fed by the odds feed.
type OddsMovementReader interface {
	OddsDrift(ctx context.Context, fixtureID string) (float64, bool, error)
}

// XGReader resolves an expected-goals-quality signal used to scale
// xg_confidence, when an external xG provider has data for the fixture.
type XGReader interface {
	XGSampleSize(ctx context.Context, teamID string) (int, error)
}

// FeatureStore composes every signal the pipeline consumes. A missing
// signal is reported via the (ok bool, err error) conventions on each
// sub-interface, not by a sentinel zero value — callers fall back to the
// spec's documented neutral default and record MissingFeatureWarnings.
type FeatureStore interface {
	TeamStrengthReader
	LeaguePriorReader
	H2HReader
	EloReader
	RestDaysReader
	RefereeReader
	WeatherReader
	OddsMovementReader
	XGReader

	Close() error
}
