// Package fallbackdata loads the two static files backing the last-resort
// stock source: a device-to-pantry mapping (JSON) and a device time-series
// table (CSV) with up to four independent scale channels. Both files are
// produced by the surrounding data-ingestion tooling; their schema is fixed.
package fallbackdata

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// channel column names in the time-series table.
var scaleColumns = []string{"scale1", "scale2", "scale3", "scale4"}

// Row is one time-series measurement for a device. A nil channel means the
// column was missing or non-numeric; consumers treat it as zero.
type Row struct {
	DeviceID  string
	Timestamp time.Time
	Scales    [4]*float64
}

// SumScales sums the channels, treating missing ones as 0. ok is false when
// every channel is zero or missing, which consumers treat as "no reading".
func (r *Row) SumScales() (sum float64, ok bool) {
	for _, s := range r.Scales {
		if s == nil || *s == 0 {
			continue
		}
		sum += *s
		ok = true
	}
	return sum, ok
}

// Dataset is the loaded fallback data, read once at startup and immutable
// afterwards.
type Dataset struct {
	deviceToPantry map[string]string
	rows           map[string][]Row
}

// Load reads the mapping and time-series files from disk.
func Load(mappingPath, seriesPath string) (*Dataset, error) {
	mapping, err := loadMapping(mappingPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load device mapping: %w", err)
	}
	rows, err := loadSeries(seriesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load device time series: %w", err)
	}
	return &Dataset{deviceToPantry: mapping, rows: rows}, nil
}

func loadMapping(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	mapping := make(map[string]string, len(raw))
	for device, pantry := range raw {
		// Pantry ids appear both as strings and as bare numbers.
		switch v := pantry.(type) {
		case string:
			mapping[device] = strings.TrimSpace(v)
		case float64:
			mapping[device] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return mapping, nil
}

func loadSeries(path string) (map[string][]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return map[string][]Row{}, nil
	}

	header := records[0]
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	deviceIdx, ok := col["device_id"]
	if !ok {
		return nil, fmt.Errorf("time series is missing a device_id column")
	}
	tsIdx, ok := col["timestamp"]
	if !ok {
		return nil, fmt.Errorf("time series is missing a timestamp column")
	}

	rows := make(map[string][]Row)
	for _, record := range records[1:] {
		if deviceIdx >= len(record) || tsIdx >= len(record) {
			continue
		}
		device := strings.TrimSpace(record[deviceIdx])
		ts, err := parseTimestamp(record[tsIdx])
		if device == "" || err != nil {
			continue
		}
		row := Row{DeviceID: device, Timestamp: ts}
		for i, name := range scaleColumns {
			idx, ok := col[name]
			if !ok || idx >= len(record) {
				continue
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64); err == nil {
				value := v
				row.Scales[i] = &value
			}
		}
		rows[device] = append(rows[device], row)
	}
	return rows, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// DeviceForPantry reverse-looks-up the device assigned to the pantry. The
// mapping historically stores ids both bare ("254") and prefixed ("p-254"),
// so both spellings match.
func (d *Dataset) DeviceForPantry(pantryID string) (string, bool) {
	for device, pantry := range d.deviceToPantry {
		if pantry == pantryID || pantry == "p-"+pantryID || "p-"+pantry == pantryID {
			return device, true
		}
	}
	return "", false
}

// LatestRow returns the row with the maximum timestamp for the device.
func (d *Dataset) LatestRow(deviceID string) (*Row, bool) {
	var latest *Row
	for i := range d.rows[deviceID] {
		row := &d.rows[deviceID][i]
		if latest == nil || row.Timestamp.After(latest.Timestamp) {
			latest = row
		}
	}
	if latest == nil {
		return nil, false
	}
	out := *latest
	return &out, true
}
