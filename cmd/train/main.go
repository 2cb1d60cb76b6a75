// Command train fits Dixon-Coles team strengths from historical match
// results and writes them into the feature store, one run per league.
//
// Historical results are downloaded over HTTP as football-data.co.uk CSVs
// (HomeTeam/AwayTeam/FTHG/FTAG/FTR/Date columns); local files are not read.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/psilali/footy-probengine/internal/config"
	"github.com/psilali/footy-probengine/internal/featurestore"
	"github.com/psilali/footy-probengine/internal/strength"
	"github.com/psilali/footy-probengine/internal/telemetry"
)

var leagueSources = map[string]string{
	"EPL":        "https://www.football-data.co.uk/mmz4281/2425/E0.csv",
	"La Liga":    "https://www.football-data.co.uk/mmz4281/2425/SP1.csv",
	"Serie A":    "https://www.football-data.co.uk/mmz4281/2425/I1.csv",
	"Bundesliga": "https://www.football-data.co.uk/mmz4281/2425/D1.csv",
	"Ligue 1":    "https://www.football-data.co.uk/mmz4281/2425/F1.csv",
}

func main() {
	modelVersion := flag.String("model-version", "", "model version tag to write (required)")
	featureStorePath := flag.String("feature-store-db", "", "feature store sqlite path (defaults to FEATURE_STORE_DB_PATH)")
	flag.Parse()

	if *modelVersion == "" {
		fmt.Fprintln(os.Stderr, "train: --model-version is required")
		os.Exit(1)
	}

	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))

	path := *featureStorePath
	if path == "" {
		path = cfg.FeatureStoreDBPath
	}

	store, err := featurestore.OpenSQLiteStore(path)
	if err != nil {
		telemetry.Errorf("feature store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	opts := strength.DefaultFitOptions()
	opts.ReferenceDate = time.Now()
	estimator := strength.NewEstimator()

	for league, url := range leagueSources {
		matches, err := downloadAndParse(url, league)
		if err != nil {
			telemetry.Warnf("%s: download: %v", league, err)
			continue
		}
		if len(matches) == 0 {
			telemetry.Warnf("%s: no matches parsed", league)
			continue
		}

		leagueOpts := opts
		leagueOpts.LeagueID = league

		result, err := estimator.Fit(*modelVersion, matches, leagueOpts)
		if err != nil {
			telemetry.Errorf("%s: fit failed: %v", league, err)
			continue
		}

		for _, ts := range result.Strengths {
			if err := store.PutTeamStrength(ctx, ts); err != nil {
				telemetry.Errorf("%s: write team strength %s: %v", league, ts.TeamID, err)
			}
		}

		drawRate := observedDrawRate(matches)
		if err := store.PutLeagueDrawRate(ctx, league, drawRate); err != nil {
			telemetry.Errorf("%s: write draw rate: %v", league, err)
		}

		telemetry.Infof("%s: fitted %d teams, converged=%v iterations=%d loglik=%.2f draw_rate=%.3f",
			league, len(result.Strengths), result.Converged, result.Iterations, result.LogLikelihood, drawRate)
	}
}

func observedDrawRate(matches []strength.MatchResult) float64 {
	if len(matches) == 0 {
		return 0
	}
	draws := 0
	for _, m := range matches {
		if m.HomeGoals == m.AwayGoals {
			draws++
		}
	}
	return float64(draws) / float64(len(matches))
}

func downloadAndParse(url, league string) ([]strength.MatchResult, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	colIdx := make(map[string]int)
	for i, h := range header {
		colIdx[strings.TrimSpace(h)] = i
	}

	required := []string{"Date", "HomeTeam", "AwayTeam", "FTHG", "FTAG", "FTR"}
	for _, r := range required {
		if _, ok := colIdx[r]; !ok {
			return nil, fmt.Errorf("missing column: %s", r)
		}
	}

	var matches []strength.MatchResult
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		date := parseDate(getCol(row, colIdx, "Date"))
		if date.IsZero() {
			continue
		}

		home := getCol(row, colIdx, "HomeTeam")
		away := getCol(row, colIdx, "AwayTeam")
		ftr := getCol(row, colIdx, "FTR")
		if home == "" || away == "" || ftr == "" {
			continue
		}

		matches = append(matches, strength.MatchResult{
			Date:      date,
			LeagueID:  league,
			HomeTeam:  league + ":" + home,
			AwayTeam:  league + ":" + away,
			HomeGoals: getColInt(row, colIdx, "FTHG"),
			AwayGoals: getColInt(row, colIdx, "FTAG"),
		})
	}

	return matches, nil
}

func parseDate(s string) time.Time {
	for _, layout := range []string{"02/01/06", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func getCol(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func getColInt(row []string, idx map[string]int, name string) int {
	s := getCol(row, idx, name)
	v, _ := strconv.Atoi(s)
	return v
}
