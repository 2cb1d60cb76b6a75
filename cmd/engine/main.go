package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/psilali/footy-probengine/internal/api"
	"github.com/psilali/footy-probengine/internal/audit"
	"github.com/psilali/footy-probengine/internal/calibration"
	"github.com/psilali/footy-probengine/internal/config"
	"github.com/psilali/footy-probengine/internal/featurestore"
	"github.com/psilali/footy-probengine/internal/oddsfeed"
	"github.com/psilali/footy-probengine/internal/pipeline"
	"github.com/psilali/footy-probengine/internal/probability"
	"github.com/psilali/footy-probengine/internal/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))
	telemetry.Infof("Starting footy-probengine")

	pipelineCfg, err := config.LoadPipelineConfig(cfg.PipelineConfigPath)
	if err != nil {
		telemetry.Warnf("pipeline config: %v, using defaults", err)
		pipelineCfg = config.DefaultPipelineConfig()
	}

	// ── Stores ───────────────────────────────────────────────────
	featureStore, err := featurestore.OpenSQLiteStore(cfg.FeatureStoreDBPath)
	if err != nil {
		telemetry.Errorf("feature store: %v", err)
		os.Exit(1)
	}
	defer featureStore.Close()

	calibStore, err := calibration.OpenStore(cfg.CalibrationDBPath)
	if err != nil {
		telemetry.Errorf("calibration store: %v", err)
		os.Exit(1)
	}
	defer calibStore.Close()

	snapshotStore, err := pipeline.OpenSnapshotStore(cfg.SnapshotStoreDBPath)
	if err != nil {
		telemetry.Errorf("snapshot store: %v", err)
		os.Exit(1)
	}
	defer snapshotStore.Close()

	logStore, err := audit.OpenLogStore(cfg.IngestionLogDBPath)
	if err != nil {
		telemetry.Errorf("ingestion log: %v", err)
		os.Exit(1)
	}
	defer logStore.Close()

	bus := audit.NewBus()
	logStore.Subscribe(bus)

	driftCache := featurestore.NewCache(featureStore)

	// No fitted GLM coefficients on disk yet; the blender falls back to the
	// entropy-gated adaptive blend until one is trained and loaded.
	blender := probability.NewBlender(nil)

	pipe := pipeline.New(featureStore, driftCache, calibStore, blender, pipelineCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Live odds-movement feed ─────────────────────────────────
	if cfg.OddsFeedEnabled {
		oddsClient := oddsfeed.NewClient(cfg.OddsFeedWSURL, featureStore)
		go func() {
			if err := oddsClient.Connect(ctx); err != nil {
				telemetry.Warnf("odds feed: %v", err)
			}
		}()

		go func() {
			t := time.NewTicker(30 * time.Second)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					driftCache.Refresh(ctx, nil)
				}
			}
		}()
	}

	// ── HTTP API ─────────────────────────────────────────────────
	handler := api.NewHandler(pipe, snapshotStore, calibStore, bus, cfg)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort),
		Handler: mux,
	}

	go func() {
		telemetry.Infof("API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Errorf("API server: %v", err)
			os.Exit(1)
		}
	}()

	// ── Shutdown ─────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	telemetry.Infof("Shutting down footy-probengine...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		telemetry.Warnf("API shutdown: %v", err)
	}

	telemetry.Infof("Shutdown complete requests=%d tickets_generated=%d tickets_accepted=%d",
		telemetry.Metrics.RequestsReceived.Value(),
		telemetry.Metrics.TicketsGenerated.Value(),
		telemetry.Metrics.TicketsAccepted.Value(),
	)
}
