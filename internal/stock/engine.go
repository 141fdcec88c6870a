// Package stock derives a pantry's stock badge from heterogeneous,
// unreliable signals. Sources are tried in strict trust order — live sensor
// weight, then recent donation reports, then a local time-series import —
// and the first trustworthy answer wins, even if a lower tier is fresher.
package stock

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/micropantry/pantrymap/internal/metrics"
	"github.com/micropantry/pantrymap/internal/models"
	"github.com/micropantry/pantrymap/internal/repository"
	"github.com/micropantry/pantrymap/internal/stock/fallbackdata"
	"github.com/micropantry/pantrymap/pkg/logger"
)

// Engine runs the stock-level inference chain. Every call recomputes from
// scratch; there is no persisted state.
type Engine struct {
	telemetry repository.TelemetryRepository
	donations repository.DonationRepository
	fallback  *fallbackdata.Dataset // nil when no fallback files are configured
	policy    Policy
	logger    *logrus.Entry
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewEngine creates an Engine. fallback may be nil, in which case the local
// tier always misses.
func NewEngine(telemetry repository.TelemetryRepository, donations repository.DonationRepository,
	fallback *fallbackdata.Dataset, policy Policy, log *logrus.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		telemetry: telemetry,
		donations: donations,
		fallback:  fallback,
		policy:    policy,
		logger:    logger.WithComponent(log, "stock"),
		metrics:   m,
		now:       time.Now,
	}
}

// SetClock overrides the engine clock, for tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Classify produces the pantry's stock classification. A source with no
// usable data is not an error — the chain falls through; only when every
// tier misses does the result become level "unknown" with source "none",
// which the UI renders as "data unavailable" rather than low stock. Real
// source failures are logged and treated as misses as well, so a broken
// sensor feed never blocks the donation heuristic.
func (e *Engine) Classify(ctx context.Context, pantryID string) models.StockClassification {
	var sourceErrs error

	if c, err := e.trySensor(ctx, pantryID); err != nil {
		sourceErrs = multierror.Append(sourceErrs, err)
	} else if c != nil {
		e.metrics.Classifications.WithLabelValues(string(c.Source)).Inc()
		return *c
	}

	if c, err := e.tryDonations(ctx, pantryID); err != nil {
		sourceErrs = multierror.Append(sourceErrs, err)
	} else if c != nil {
		e.metrics.Classifications.WithLabelValues(string(c.Source)).Inc()
		return *c
	}

	if c := e.tryLocalFallback(pantryID); c != nil {
		e.metrics.Classifications.WithLabelValues(string(c.Source)).Inc()
		return *c
	}

	if sourceErrs != nil {
		e.logger.WithError(sourceErrs).WithField("pantry_id", pantryID).
			Warn("stock sources failed before chain was exhausted")
	}
	e.metrics.Classifications.WithLabelValues(string(models.SourceNone)).Inc()
	return models.StockClassification{Level: models.StockUnknown, Source: models.SourceNone}
}

// trySensor classifies from the latest telemetry reading. Slightly negative
// weights are a real artifact of unloaded drifting scales, so they clamp to
// zero instead of being rejected; weights above the plausible ceiling are
// untrusted and fall through.
func (e *Engine) trySensor(ctx context.Context, pantryID string) (*models.StockClassification, error) {
	reading, err := e.telemetry.GetLatest(ctx, pantryID)
	if err != nil {
		return nil, err
	}
	if reading == nil {
		return nil, nil
	}

	weight := reading.WeightKg
	if weight < 0 {
		weight = 0
	}
	if weight > e.policy.PlausibleMaxKg {
		return nil, nil
	}

	w := weight
	return &models.StockClassification{
		Level:    e.policy.ClassifyWeight(w),
		Source:   models.SourceSensor,
		WeightKg: &w,
	}, nil
}

// tryDonations classifies from donation reports inside the 24h window.
// Repeated medium donations promote straight to high, an accumulation of
// small ones to medium; otherwise the single most recent report's own
// bucket decides.
func (e *Engine) tryDonations(ctx context.Context, pantryID string) (*models.StockClassification, error) {
	now := e.now()
	reports, err := e.donations.ListRecent(ctx, pantryID, e.policy.DonationWindow.Cutoff(now))
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, nil
	}

	var countLow, countMedium int
	for _, r := range reports {
		switch r.DonationSize {
		case models.DonationLow:
			countLow++
		case models.DonationMedium:
			countMedium++
		}
	}

	var level models.StockLevel
	switch {
	case countMedium >= e.policy.MediumPromoteCount:
		level = models.StockHigh
	case countLow >= e.policy.LowPromoteCount:
		level = models.StockMedium
	default:
		// ListRecent returns newest first.
		mapped, ok := sizeLevel[reports[0].DonationSize]
		if !ok {
			return nil, nil
		}
		level = mapped
	}

	w := levelWeightKg[level]
	return &models.StockClassification{
		Level:    level,
		Source:   models.SourceDonations,
		WeightKg: &w,
	}, nil
}

// tryLocalFallback classifies from the static device time-series import.
// This tier only exists to backstop known hardware-equipped pantries during
// bring-up.
func (e *Engine) tryLocalFallback(pantryID string) *models.StockClassification {
	if e.fallback == nil {
		return nil
	}
	device, ok := e.fallback.DeviceForPantry(pantryID)
	if !ok {
		return nil
	}
	row, ok := e.fallback.LatestRow(device)
	if !ok {
		return nil
	}
	if !e.policy.FallbackWindow.Contains(e.now(), row.Timestamp) {
		return nil
	}
	sum, ok := row.SumScales()
	if !ok {
		return nil
	}
	if sum < 0 {
		sum = 0
	}
	if sum > e.policy.PlausibleMaxKg {
		return nil
	}

	w := sum
	return &models.StockClassification{
		Level:    e.policy.ClassifyWeight(w),
		Source:   models.SourceFallback,
		WeightKg: &w,
	}
}
