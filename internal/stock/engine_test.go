package stock

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micropantry/pantrymap/internal/metrics"
	"github.com/micropantry/pantrymap/internal/models"
	"github.com/micropantry/pantrymap/internal/repository/memory"
	"github.com/micropantry/pantrymap/internal/stock/fallbackdata"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestEngine(t *testing.T, fallback *fallbackdata.Dataset) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	eng := NewEngine(store, store, fallback, DefaultPolicy(), quietLogger(), metrics.NewUnregistered())
	eng.SetClock(func() time.Time { return testNow })
	return eng, store
}

func addSensor(t *testing.T, store *memory.Store, pantryID string, weightKg float64, at time.Time) {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), &models.TelemetryReading{
		PantryID:  pantryID,
		Timestamp: at,
		WeightKg:  weightKg,
	}))
}

func addDonation(t *testing.T, store *memory.Store, pantryID string, size models.DonationSize, at time.Time) {
	t.Helper()
	_, err := store.Create(context.Background(), &models.DonationReport{
		ID:           "don_" + at.Format(time.RFC3339Nano) + string(size),
		PantryID:     pantryID,
		DonationSize: size,
		CreatedAt:    at,
	})
	require.NoError(t, err)
}

func TestClassifyUnknownWhenNoSources(t *testing.T) {
	eng, _ := newTestEngine(t, nil)

	got := eng.Classify(context.Background(), "p-1")

	assert.Equal(t, models.StockUnknown, got.Level)
	assert.Equal(t, models.SourceNone, got.Source)
	assert.Nil(t, got.WeightKg)
}

func TestClassifySensorWeights(t *testing.T) {
	tests := []struct {
		name   string
		weight float64
		want   models.StockLevel
	}{
		{name: "empty scale", weight: 0, want: models.StockLow},
		{name: "at low cut", weight: 5, want: models.StockLow},
		{name: "above low cut", weight: 5.1, want: models.StockMedium},
		{name: "at high cut", weight: 25, want: models.StockMedium},
		{name: "above high cut", weight: 25.5, want: models.StockHigh},
		{name: "heavy pantry", weight: 78, want: models.StockHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, store := newTestEngine(t, nil)
			addSensor(t, store, "p-1", tt.weight, testNow.Add(-time.Hour))

			got := eng.Classify(context.Background(), "p-1")

			assert.Equal(t, tt.want, got.Level)
			assert.Equal(t, models.SourceSensor, got.Source)
			require.NotNil(t, got.WeightKg)
			assert.Equal(t, tt.weight, *got.WeightKg)
		})
	}
}

func TestClassifyNegativeSensorWeightClampsToZero(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	addSensor(t, store, "p-1", -2, testNow.Add(-time.Hour))

	got := eng.Classify(context.Background(), "p-1")

	// Drifting unloaded scales read slightly negative; that is an empty
	// pantry, not missing data.
	assert.Equal(t, models.StockLow, got.Level)
	assert.Equal(t, models.SourceSensor, got.Source)
	require.NotNil(t, got.WeightKg)
	assert.Equal(t, 0.0, *got.WeightKg)
}

func TestClassifySensorBeatsContradictingDonations(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	addSensor(t, store, "p-1", 3, testNow.Add(-time.Hour))
	addDonation(t, store, "p-1", models.DonationMedium, testNow.Add(-time.Hour))
	addDonation(t, store, "p-1", models.DonationMedium, testNow.Add(-30*time.Minute))

	got := eng.Classify(context.Background(), "p-1")

	assert.Equal(t, models.SourceSensor, got.Source)
	assert.Equal(t, models.StockLow, got.Level)
}

func TestClassifyImplausibleSensorFallsThrough(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	addSensor(t, store, "p-1", 900, testNow.Add(-time.Hour))
	addDonation(t, store, "p-1", models.DonationHigh, testNow.Add(-time.Hour))

	got := eng.Classify(context.Background(), "p-1")

	assert.Equal(t, models.SourceDonations, got.Source)
	assert.Equal(t, models.StockHigh, got.Level)
}

func TestClassifyDonationPromotionRules(t *testing.T) {
	tests := []struct {
		name  string
		sizes []models.DonationSize
		want  models.StockLevel
	}{
		{
			name:  "two mediums promote to high",
			sizes: []models.DonationSize{models.DonationMedium, models.DonationMedium},
			want:  models.StockHigh,
		},
		{
			name: "five lows promote to medium",
			sizes: []models.DonationSize{
				models.DonationLow, models.DonationLow, models.DonationLow,
				models.DonationLow, models.DonationLow,
			},
			want: models.StockMedium,
		},
		{
			name: "one medium and four lows use the most recent report",
			sizes: []models.DonationSize{
				models.DonationMedium, models.DonationLow, models.DonationLow,
				models.DonationLow, models.DonationLow,
			},
			want: models.StockLow, // most recent is the last low added
		},
		{
			name:  "single high report maps directly",
			sizes: []models.DonationSize{models.DonationHigh},
			want:  models.StockHigh,
		},
		{
			name:  "single low report maps directly",
			sizes: []models.DonationSize{models.DonationLow},
			want:  models.StockLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, store := newTestEngine(t, nil)
			for i, size := range tt.sizes {
				// Later entries are more recent.
				addDonation(t, store, "p-1", size, testNow.Add(-time.Hour+time.Duration(i)*time.Minute))
			}

			got := eng.Classify(context.Background(), "p-1")

			assert.Equal(t, models.SourceDonations, got.Source)
			assert.Equal(t, tt.want, got.Level)
		})
	}
}

func TestClassifyDonationWeightEstimateAttached(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	addDonation(t, store, "p-1", models.DonationMedium, testNow.Add(-time.Hour))
	addDonation(t, store, "p-1", models.DonationMedium, testNow.Add(-30*time.Minute))

	got := eng.Classify(context.Background(), "p-1")

	require.NotNil(t, got.WeightKg)
	assert.Equal(t, 25.0, *got.WeightKg)
}

func TestClassifyExcludesDonationsOutsideWindow(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	// 25 hours old: outside the 24h window even as the only report.
	addDonation(t, store, "p-1", models.DonationHigh, testNow.Add(-25*time.Hour))

	got := eng.Classify(context.Background(), "p-1")

	assert.Equal(t, models.StockUnknown, got.Level)
	assert.Equal(t, models.SourceNone, got.Source)
}

func TestClassifyEndToEndDonationScenario(t *testing.T) {
	// Pantry p-1, no sensor, [medium, medium] within the last hour.
	eng, store := newTestEngine(t, nil)
	addDonation(t, store, "p-1", models.DonationMedium, testNow.Add(-50*time.Minute))
	addDonation(t, store, "p-1", models.DonationMedium, testNow.Add(-10*time.Minute))

	got := eng.Classify(context.Background(), "p-1")

	assert.Equal(t, models.StockHigh, got.Level)
	assert.Equal(t, models.SourceDonations, got.Source)
}

// ---------------------------------------------------------------------------
// Local fallback tier
// ---------------------------------------------------------------------------

func writeFallbackFiles(t *testing.T, mapping map[string]string, csv string) *fallbackdata.Dataset {
	t.Helper()
	dir := t.TempDir()

	mapPath := filepath.Join(dir, "device_to_pantry.json")
	raw, err := json.Marshal(mapping)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(mapPath, raw, 0o600))

	csvPath := filepath.Join(dir, "pantry_data.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(csv), 0o600))

	dataset, err := fallbackdata.Load(mapPath, csvPath)
	require.NoError(t, err)
	return dataset
}

func TestClassifyLocalFallback(t *testing.T) {
	fresh := testNow.Add(-2 * time.Hour).Format(time.RFC3339)
	older := testNow.Add(-3 * time.Hour).Format(time.RFC3339)
	dataset := writeFallbackFiles(t,
		map[string]string{"BeaconHill": "254"},
		"device_id,timestamp,scale1,scale2,scale3,scale4\n"+
			"BeaconHill,"+older+",1,1,1,1\n"+
			"BeaconHill,"+fresh+",20,20,20,18\n")

	eng, _ := newTestEngine(t, dataset)
	got := eng.Classify(context.Background(), "254")

	assert.Equal(t, models.SourceFallback, got.Source)
	assert.Equal(t, models.StockHigh, got.Level)
	require.NotNil(t, got.WeightKg)
	assert.Equal(t, 78.0, *got.WeightKg)
}

func TestClassifyLocalFallbackMatchesPrefixedPantryID(t *testing.T) {
	fresh := testNow.Add(-time.Hour).Format(time.RFC3339)
	dataset := writeFallbackFiles(t,
		map[string]string{"PantryLogger": "p-1"},
		"device_id,timestamp,scale1,scale2,scale3,scale4\n"+
			"PantryLogger,"+fresh+",4,,,\n")

	eng, _ := newTestEngine(t, dataset)
	got := eng.Classify(context.Background(), "1")

	assert.Equal(t, models.SourceFallback, got.Source)
	assert.Equal(t, models.StockLow, got.Level)
}

func TestClassifyLocalFallbackIgnoresStaleRows(t *testing.T) {
	stale := testNow.Add(-25 * time.Hour).Format(time.RFC3339)
	dataset := writeFallbackFiles(t,
		map[string]string{"BeaconHill": "254"},
		"device_id,timestamp,scale1,scale2,scale3,scale4\n"+
			"BeaconHill,"+stale+",20,20,20,18\n")

	eng, _ := newTestEngine(t, dataset)
	got := eng.Classify(context.Background(), "254")

	assert.Equal(t, models.SourceNone, got.Source)
	assert.Equal(t, models.StockUnknown, got.Level)
}

func TestClassifyLocalFallbackAllZeroChannelsYieldsNothing(t *testing.T) {
	fresh := testNow.Add(-time.Hour).Format(time.RFC3339)
	dataset := writeFallbackFiles(t,
		map[string]string{"BeaconHill": "254"},
		"device_id,timestamp,scale1,scale2,scale3,scale4\n"+
			"BeaconHill,"+fresh+",0,0,,not-a-number\n")

	eng, _ := newTestEngine(t, dataset)
	got := eng.Classify(context.Background(), "254")

	assert.Equal(t, models.SourceNone, got.Source)
	assert.Equal(t, models.StockUnknown, got.Level)
}

func TestClassifyLocalFallbackClampsNegativeSum(t *testing.T) {
	fresh := testNow.Add(-time.Hour).Format(time.RFC3339)
	dataset := writeFallbackFiles(t,
		map[string]string{"BeaconHill": "254"},
		"device_id,timestamp,scale1,scale2,scale3,scale4\n"+
			"BeaconHill,"+fresh+",-1.5,-0.5,,\n")

	eng, _ := newTestEngine(t, dataset)
	got := eng.Classify(context.Background(), "254")

	assert.Equal(t, models.SourceFallback, got.Source)
	assert.Equal(t, models.StockLow, got.Level)
	require.NotNil(t, got.WeightKg)
	assert.Equal(t, 0.0, *got.WeightKg)
}

func TestClassifyDonationsBeatLocalFallback(t *testing.T) {
	fresh := testNow.Add(-time.Hour).Format(time.RFC3339)
	dataset := writeFallbackFiles(t,
		map[string]string{"BeaconHill": "254"},
		"device_id,timestamp,scale1,scale2,scale3,scale4\n"+
			"BeaconHill,"+fresh+",30,30,10,8\n")

	eng, store := newTestEngine(t, dataset)
	addDonation(t, store, "254", models.DonationLow, testNow.Add(-time.Hour))

	got := eng.Classify(context.Background(), "254")

	assert.Equal(t, models.SourceDonations, got.Source)
	assert.Equal(t, models.StockLow, got.Level)
}
