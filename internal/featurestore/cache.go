package featurestore

import (
	"context"
	"sync/atomic"
	"time"
)

// snapshot is the set of feature-store reads a pipeline run wants to see as
// a single consistent point-in-time view, rather than drifting mid-request
// as background writers (the odds feed, a training job) land new rows.
type snapshot struct {
	capturedAt time.Time
	oddsDrift  map[string]float64
}

// Cache holds the latest snapshot behind an atomic pointer so pipeline
// goroutines can read it without locking, while a background refresher
// swaps in a new snapshot periodically. This mirrors the request-entry
// atomic.Pointer[ModelSnapshot] pattern used for Dixon-Coles parameters in
// the pipeline package: fast, allocation-light consistent reads under
// concurrent fixture fan-out.
type Cache struct {
	store   OddsMovementReader
	current atomic.Pointer[snapshot]
}

func NewCache(store OddsMovementReader) *Cache {
	c := &Cache{store: store}
	c.current.Store(&snapshot{capturedAt: time.Unix(0, 0), oddsDrift: map[string]float64{}})
	return c
}

// Refresh re-reads odds drift for the given fixtures and publishes a new
// snapshot atomically. Callers already holding the old snapshot via Load
// keep seeing consistent data until they call Load again.
func (c *Cache) Refresh(ctx context.Context, fixtureIDs []string) error {
	drift := make(map[string]float64, len(fixtureIDs))
	for _, id := range fixtureIDs {
		if v, ok, err := c.store.OddsDrift(ctx, id); err == nil && ok {
			drift[id] = v
		}
	}
	c.current.Store(&snapshot{capturedAt: time.Now(), oddsDrift: drift})
	return nil
}

// OddsDrift returns the drift captured in the currently published snapshot,
// without touching the underlying store.
func (c *Cache) OddsDrift(fixtureID string) (float64, bool) {
	snap := c.current.Load()
	v, ok := snap.oddsDrift[fixtureID]
	return v, ok
}

// CapturedAt reports when the currently published snapshot was taken.
func (c *Cache) CapturedAt() time.Time {
	return c.current.Load().capturedAt
}
