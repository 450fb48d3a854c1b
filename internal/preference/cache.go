package preference

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slotwise/slotwise/internal/core"
)

// HistorySource supplies the past events a rebuild learns from
type HistorySource interface {
	ListSince(ctx context.Context, since time.Time) ([]core.Event, error)
}

// Cache holds the current Profile behind a read lock so request handlers
// can score slots while a background rebuild replaces the profile. The
// profile is swapped whole; readers never observe a half-built one.
type Cache struct {
	source   HistorySource
	window   time.Duration
	halfLife time.Duration

	mu      sync.RWMutex
	profile *Profile
}

// NewCache creates a cache that learns from events within window of now,
// recency-weighted with the given half-life. The initial profile is
// empty; call Rebuild to populate it.
func NewCache(source HistorySource, window, halfLife time.Duration) *Cache {
	return &Cache{
		source:   source,
		window:   window,
		halfLife: halfLife,
		profile:  &Profile{Contacts: map[string]float64{}},
	}
}

// Profile returns the current profile. The returned value must be
// treated as read-only; it is shared with concurrent readers.
func (c *Cache) Profile() *Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile
}

// Score rates a candidate window against the current profile
func (c *Cache) Score(w core.Window, weights Weights) float64 {
	return c.Profile().Score(w, weights)
}

// Rebuild relearns the profile from the history source and swaps it in.
// On error the previous profile stays in place.
func (c *Cache) Rebuild(ctx context.Context) error {
	now := time.Now()
	events, err := c.source.ListSince(ctx, now.Add(-c.window))
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	fresh := Learn(events, now, c.halfLife)

	c.mu.Lock()
	c.profile = fresh
	c.mu.Unlock()
	return nil
}
