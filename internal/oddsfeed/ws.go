// Package oddsfeed consumes a live odds-movement feed and keeps the
// feature store's odds_drift signal current, so the draw adjuster and odds
// blender never hit the upstream provider synchronously during a pipeline
// request (spec §4.3, §4.4).
package oddsfeed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/psilali/footy-probengine/internal/telemetry"
)

// DriftSink receives drift updates as they arrive. featurestore.SQLiteStore
// satisfies this via PutOddsDrift.
type DriftSink interface {
	PutOddsDrift(ctx context.Context, fixtureID string, drift float64) error
}

// Client connects to the odds-movement WebSocket feed and writes each
// update into a DriftSink. mu guards the conn field, which dial replaces on
// every reconnect; the only frames written are pong replies sent with
// WriteControl, which gorilla/websocket allows concurrently with reads.
type Client struct {
	url  string
	sink DriftSink
	done chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewClient(wsURL string, sink DriftSink) *Client {
	return &Client{url: wsURL, sink: sink, done: make(chan struct{})}
}

func (c *Client) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return err
	}
	go c.runLoop(ctx)
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// runLoop reads drift updates and reconnects on failure with exponential
// backoff, identical in shape to the teacher's live feed clients.
func (c *Client) runLoop(ctx context.Context) {
	defer close(c.done)

	first := true
	for {
		if first {
			telemetry.Infof("odds feed connected to %s", c.url)
			first = false
		} else {
			telemetry.Infof("odds feed reconnected")
		}

		c.readLoop(ctx)

		select {
		case <-ctx.Done():
			return
		default:
		}

		backoff := 1 * time.Second
		const maxBackoff = 30 * time.Second
		for attempt := 1; ; attempt++ {
			telemetry.Warnf("odds feed reconnecting (attempt %d) in %s", attempt, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if err := c.dial(ctx); err != nil {
				telemetry.Warnf("odds feed dial failed: %v", err)
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}
			break
		}
	}
}

// driftMessage is the wire shape of one odds-movement update.
type driftMessage struct {
	FixtureID string  `json:"fixture_id"`
	Drift     float64 `json:"drift"`
}

func (c *Client) readLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	defer conn.Close()

	const pingWait = 30 * time.Second
	conn.SetReadDeadline(time.Now().Add(pingWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pingWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			telemetry.Warnf("odds feed read error: %v", err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(pingWait))

		var msg driftMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			telemetry.Warnf("odds feed malformed message: %v", err)
			continue
		}

		if err := c.sink.PutOddsDrift(ctx, msg.FixtureID, msg.Drift); err != nil {
			telemetry.Warnf("odds feed sink write failed: %v", err)
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) Done() <-chan struct{} { return c.done }
