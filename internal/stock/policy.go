package stock

import (
	"github.com/micropantry/pantrymap/internal/models"
	"github.com/micropantry/pantrymap/internal/recency"
)

// Policy holds the classification constants. They are global configuration
// with service-wide defaults, not per-pantry settings.
type Policy struct {
	// PlausibleMaxKg is the upper bound of a trustworthy scale reading.
	// Readings above it are ignored rather than clamped.
	PlausibleMaxKg float64

	// LowMaxKg and HighMinKg are the two weight cut points:
	// w <= LowMaxKg -> low, w <= HighMinKg -> medium, else high.
	LowMaxKg  float64
	HighMinKg float64

	// MediumPromoteCount many medium donations within the window imply a
	// fully stocked pantry; LowPromoteCount many small donations imply a
	// moderate restock.
	MediumPromoteCount int
	LowPromoteCount    int

	DonationWindow recency.Window
	FallbackWindow recency.Window
}

// DefaultPolicy returns the reference thresholds: 5 kg / 25 kg cut points
// against a 150 kg plausible ceiling, 2x medium or 5x low promotion, and
// 24-hour windows for both donations and imported telemetry rows.
func DefaultPolicy() Policy {
	return Policy{
		PlausibleMaxKg:     150,
		LowMaxKg:           5,
		HighMinKg:          25,
		MediumPromoteCount: 2,
		LowPromoteCount:    5,
		DonationWindow:     recency.Donations,
		FallbackWindow:     recency.FallbackRows,
	}
}

// levelWeightKg maps a stock level to the notional donation weight behind
// it (one-or-few items 2 kg, a grocery bag 10 kg, more than a bag 25 kg),
// attached to donation-sourced classifications so the badge can render a kg
// figure the same way sensor badges do.
var levelWeightKg = map[models.StockLevel]float64{
	models.StockLow:    2,
	models.StockMedium: 10,
	models.StockHigh:   25,
}

// sizeLevel maps a donation bucket directly onto a stock level.
var sizeLevel = map[models.DonationSize]models.StockLevel{
	models.DonationLow:    models.StockLow,
	models.DonationMedium: models.StockMedium,
	models.DonationHigh:   models.StockHigh,
}

// ClassifyWeight maps a non-negative weight onto a level using the two cut
// points. Callers clamp negatives to zero and reject implausible highs
// before getting here.
func (p Policy) ClassifyWeight(weightKg float64) models.StockLevel {
	switch {
	case weightKg <= p.LowMaxKg:
		return models.StockLow
	case weightKg <= p.HighMinKg:
		return models.StockMedium
	default:
		return models.StockHigh
	}
}
