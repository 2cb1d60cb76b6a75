package oddsfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeDriftSink struct {
	mu     sync.Mutex
	writes map[string]float64
}

func newFakeDriftSink() *fakeDriftSink {
	return &fakeDriftSink{writes: map[string]float64{}}
}

func (f *fakeDriftSink) PutOddsDrift(ctx context.Context, fixtureID string, drift float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes[fixtureID] = drift
	return nil
}

func (f *fakeDriftSink) get(fixtureID string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.writes[fixtureID]
	return v, ok
}

var upgrader = websocket.Upgrader{}

func TestClientConnectWritesDriftUpdatesToSink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("server upgrade error: %v", err)
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"fixture_id":"f1","drift":0.12}`))
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	sink := newFakeDriftSink()
	c := NewClient(wsURL, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if drift, ok := sink.get("f1"); ok {
			if drift != 0.12 {
				t.Errorf("drift = %v, want 0.12", drift)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("sink never received the f1 drift update")
}

func TestClientIgnoresMalformedMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"fixture_id":"f2","drift":0.05}`))
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	sink := newFakeDriftSink()
	c := NewClient(wsURL, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := sink.get("f2"); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("sink never received the f2 drift update after a malformed message")
}

func TestClientConnectFailsOnBadURL(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/doesnotexist", newFakeDriftSink())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := c.Connect(ctx); err == nil {
		t.Fatal("Connect() error = nil, want a dial error for an unreachable address")
	}
}
