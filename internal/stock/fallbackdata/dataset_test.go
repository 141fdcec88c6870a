package fallbackdata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFiles(t *testing.T, mapping, csv string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	mapPath := filepath.Join(dir, "device_to_pantry.json")
	require.NoError(t, os.WriteFile(mapPath, []byte(mapping), 0o600))
	csvPath := filepath.Join(dir, "pantry_data.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(csv), 0o600))
	return mapPath, csvPath
}

func TestLoad(t *testing.T) {
	mapPath, csvPath := writeTestFiles(t,
		`{"BeaconHill": "254", "PantryLogger": 17, "Broken": null}`,
		"device_id,timestamp,scale1,scale2,scale3,scale4\n"+
			"BeaconHill,2026-03-10T10:00:00Z,1.5,2,0,\n"+
			"BeaconHill,2026-03-10 11:30:00,3,,,\n"+
			"PantryLogger,2026-03-10T09:00:00Z,,,,\n"+
			",2026-03-10T09:00:00Z,1,1,1,1\n"+
			"BeaconHill,garbage-timestamp,1,1,1,1\n")

	dataset, err := Load(mapPath, csvPath)
	require.NoError(t, err)

	device, ok := dataset.DeviceForPantry("254")
	require.True(t, ok)
	assert.Equal(t, "BeaconHill", device)

	// Numeric pantry ids in the mapping are normalized to strings;
	// null values are dropped.
	device, ok = dataset.DeviceForPantry("17")
	require.True(t, ok)
	assert.Equal(t, "PantryLogger", device)

	// Rows with an empty device or an unparseable timestamp are skipped.
	row, ok := dataset.LatestRow("BeaconHill")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 10, 11, 30, 0, 0, time.UTC), row.Timestamp)
}

func TestLoadMissingRequiredColumn(t *testing.T) {
	mapPath, csvPath := writeTestFiles(t,
		`{"BeaconHill": "254"}`,
		"device,when,scale1\nBeaconHill,2026-03-10T10:00:00Z,1\n")

	_, err := Load(mapPath, csvPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device_id")
}

func TestLoadMissingFiles(t *testing.T) {
	mapPath, csvPath := writeTestFiles(t, `{}`, "device_id,timestamp\n")

	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), csvPath)
	assert.Error(t, err)

	_, err = Load(mapPath, filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestSumScales(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		scales  [4]*float64
		wantSum float64
		wantOK  bool
	}{
		{name: "all channels", scales: [4]*float64{f(1), f(2), f(3), f(4)}, wantSum: 10, wantOK: true},
		{name: "partial channels", scales: [4]*float64{f(1.5), nil, nil, f(0.5)}, wantSum: 2, wantOK: true},
		{name: "all missing", scales: [4]*float64{}, wantOK: false},
		{name: "all zero", scales: [4]*float64{f(0), f(0), f(0), f(0)}, wantOK: false},
		{name: "negative drift counts", scales: [4]*float64{f(-0.3), nil, nil, nil}, wantSum: -0.3, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := Row{Scales: tt.scales}
			sum, ok := row.SumScales()
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.wantSum, sum, 1e-9)
			}
		})
	}
}

func TestDeviceForPantryPrefixVariants(t *testing.T) {
	d := &Dataset{deviceToPantry: map[string]string{
		"bare":     "254",
		"prefixed": "p-17",
	}}

	tests := []struct {
		pantryID   string
		wantDevice string
		wantOK     bool
	}{
		{pantryID: "254", wantDevice: "bare", wantOK: true},
		{pantryID: "p-254", wantDevice: "bare", wantOK: true},
		{pantryID: "p-17", wantDevice: "prefixed", wantOK: true},
		{pantryID: "17", wantDevice: "prefixed", wantOK: true},
		{pantryID: "99", wantOK: false},
	}

	for _, tt := range tests {
		device, ok := d.DeviceForPantry(tt.pantryID)
		assert.Equal(t, tt.wantOK, ok, "pantry %q", tt.pantryID)
		if tt.wantOK {
			assert.Equal(t, tt.wantDevice, device, "pantry %q", tt.pantryID)
		}
	}
}

func TestLatestRow(t *testing.T) {
	d := &Dataset{rows: map[string][]Row{
		"dev": {
			{DeviceID: "dev", Timestamp: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)},
			{DeviceID: "dev", Timestamp: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
			{DeviceID: "dev", Timestamp: time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)},
		},
	}}

	row, ok := d.LatestRow("dev")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), row.Timestamp)

	_, ok = d.LatestRow("unknown")
	assert.False(t, ok)
}
