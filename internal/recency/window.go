// Package recency provides the sliding time window shared by every read-side
// freshness filter: the 24h donation window, the 24h local telemetry gate and
// the 7-day wishlist display cut.
package recency

import "time"

// Window is a fixed look-back duration ending at "now".
type Window struct {
	Age time.Duration
}

// Common windows used across the service.
var (
	Donations       = Window{Age: 24 * time.Hour}
	FallbackRows    = Window{Age: 24 * time.Hour}
	WishlistDisplay = Window{Age: 7 * 24 * time.Hour}
)

// Cutoff returns the oldest timestamp still inside the window at now.
func (w Window) Cutoff(now time.Time) time.Time {
	return now.Add(-w.Age)
}

// Contains reports whether ts falls inside the window at now. The cutoff
// itself is excluded: a timestamp exactly Age old is already stale.
func (w Window) Contains(now, ts time.Time) bool {
	return ts.After(w.Cutoff(now))
}
