// oddsfeedmock simulates a live odds-movement feed locally so the engine's
// odds-feed client can be exercised without a real market-data subscription.
//
// Usage:
//
//	go run ./cmd/oddsfeedmock
//
// Then point the engine at it:
//
//	ODDS_FEED_ENABLED=true
//	ODDS_FEED_WS_URL=ws://localhost:9200/odds
package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

const listenAddr = ":9200"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

var mockFixtures = []string{"fx_demo_001", "fx_demo_002", "fx_demo_003"}

type driftMessage struct {
	FixtureID string  `json:"fixture_id"`
	Drift     float64 `json:"drift"`
}

func serveOdds(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	drift := make(map[string]float64, len(mockFixtures))
	for _, id := range mockFixtures {
		drift[id] = 0
	}

	for range ticker.C {
		id := mockFixtures[rand.Intn(len(mockFixtures))]
		drift[id] += (rand.Float64() - 0.5) * 0.02
		if drift[id] > 0.3 {
			drift[id] = 0.3
		}
		if drift[id] < -0.3 {
			drift[id] = -0.3
		}

		msg := driftMessage{FixtureID: id, Drift: drift[id]}
		data, _ := json.Marshal(msg)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/odds", serveOdds)

	server := &http.Server{Addr: listenAddr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}
