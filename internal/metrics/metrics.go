// Package metrics defines the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every counter the service maintains. A single instance is
// created at startup and injected where needed.
type Metrics struct {
	WishlistSubmissions prometheus.Counter
	WishlistConflicts   prometheus.Counter
	WishlistExhausted   prometheus.Counter
	Classifications     *prometheus.CounterVec
}

// New registers the service metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WishlistSubmissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "pantrymap_wishlist_submissions_total",
			Help: "Accepted wishlist submissions.",
		}),
		WishlistConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "pantrymap_wishlist_conflicts_total",
			Help: "Conditional-write conflicts resolved by retrying.",
		}),
		WishlistExhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pantrymap_wishlist_retry_exhausted_total",
			Help: "Submissions that failed after the retry budget ran out.",
		}),
		Classifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pantrymap_stock_classifications_total",
			Help: "Stock classifications by answering source.",
		}, []string{"source"}),
	}
}

// NewUnregistered returns metrics backed by a private registry, for tests.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
