// Command calibrate fits isotonic calibration curves from historical
// Pinnacle closing odds and full-time results. The vig-free market
// probability stands in for the model's pregame probability for seasons
// that predate a live pipeline snapshot; once prediction_snapshot rows
// accumulate from real requests, a later run can source Dataset directly
// from SnapshotStore instead.
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

	"github.com/psilali/footy-probengine/internal/calibration"
	"github.com/psilali/footy-probengine/internal/config"
	"github.com/psilali/footy-probengine/internal/model"
	"github.com/psilali/footy-probengine/internal/odds"
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
	modelVersion := flag.String("model-version", "", "model version tag to fit against (required)")
	league := flag.String("league", "", "league to fit (empty fits a global calibrator across all leagues)")
	calibrationDBPath := flag.String("calibration-db", "", "calibration sqlite path (defaults to CALIBRATION_DB_PATH)")
	minSamples := flag.Int("min-samples", 0, "minimum samples per outcome bucket (defaults to the store's floor)")
	activate := flag.Bool("activate", false, "activate each fitted calibrator immediately")
	flag.Parse()

	if *modelVersion == "" {
		fmt.Fprintln(os.Stderr, "calibrate: --model-version is required")
		os.Exit(1)
	}

	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))

	path := *calibrationDBPath
	if path == "" {
		path = cfg.CalibrationDBPath
	}

	store, err := calibration.OpenStore(path)
	if err != nil {
		telemetry.Errorf("calibration store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	sources := leagueSources
	if *league != "" {
		url, ok := leagueSources[*league]
		if !ok {
			fmt.Fprintf(os.Stderr, "calibrate: unknown league %q\n", *league)
			os.Exit(1)
		}
		sources = map[string]string{*league: url}
	}

	dataset := calibration.Dataset{ByOutcome: make(map[model.Outcome][]calibration.Sample)}
	for league, url := range sources {
		n, err := downloadAndAccumulate(url, dataset)
		if err != nil {
			telemetry.Warnf("%s: %v", league, err)
			continue
		}
		telemetry.Infof("%s: accumulated %d matches", league, n)
	}

	min := *minSamples
	if min <= 0 {
		min = calibration.DefaultMinSamples
	}

	ids, err := store.Fit(context.Background(), *modelVersion, *league, dataset, min)
	if err != nil {
		telemetry.Errorf("fit: %v", err)
		os.Exit(1)
	}

	telemetry.Infof("fitted %d calibrators: %v", len(ids), ids)

	if *activate {
		for _, id := range ids {
			if err := store.Activate(context.Background(), id); err != nil {
				telemetry.Errorf("activate %s: %v", id, err)
				continue
			}
			telemetry.Infof("activated %s", id)
		}
	}
}

func downloadAndAccumulate(url string, dataset calibration.Dataset) (int, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return 0, fmt.Errorf("status %d", resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}

	colIdx := make(map[string]int)
	for i, h := range header {
		colIdx[strings.TrimSpace(h)] = i
	}

	required := []string{"FTR", "PSH", "PSD", "PSA"}
	for _, r := range required {
		if _, ok := colIdx[r]; !ok {
			return 0, fmt.Errorf("missing column: %s", r)
		}
	}

	n := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		oddsHome := getColFloat(row, colIdx, "PSH")
		oddsDraw := getColFloat(row, colIdx, "PSD")
		oddsAway := getColFloat(row, colIdx, "PSA")
		ftr := getCol(row, colIdx, "FTR")
		if oddsHome <= 1 || oddsDraw <= 1 || oddsAway <= 1 || ftr == "" {
			continue
		}

		market := odds.RemoveVig3(model.Odds{Home: oddsHome, Draw: oddsDraw, Away: oddsAway})

		dataset.ByOutcome[model.OutcomeHome] = append(dataset.ByOutcome[model.OutcomeHome],
			calibration.Sample{Predicted: market.Probs.Home, Observed: indicator(ftr == "H")})
		dataset.ByOutcome[model.OutcomeDraw] = append(dataset.ByOutcome[model.OutcomeDraw],
			calibration.Sample{Predicted: market.Probs.Draw, Observed: indicator(ftr == "D")})
		dataset.ByOutcome[model.OutcomeAway] = append(dataset.ByOutcome[model.OutcomeAway],
			calibration.Sample{Predicted: market.Probs.Away, Observed: indicator(ftr == "A")})

		n++
	}

	return n, nil
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func getCol(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func getColFloat(row []string, idx map[string]int, name string) float64 {
	s := getCol(row, idx, name)
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
