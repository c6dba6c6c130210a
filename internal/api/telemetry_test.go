package api

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/mussel-core/internal/device"
	"github.com/nerrad567/mussel-core/internal/telemetry"
)

var sampleBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// seedSamples appends n samples one minute apart starting at sampleBase.
// Temperatures are 20, 21, ... so each sample is identifiable.
func seedSamples(t *testing.T, f *fixture, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		s := &telemetry.Sample{
			Timestamp: sampleBase.Add(time.Duration(i) * time.Minute),
			Status: telemetry.Status{
				Temperature:    float(20 + float64(i)),
				OpticalDensity: float(0.5),
				LampState:      device.LampOff.Ptr(),
			},
		}
		if err := f.samples.Append(context.Background(), s); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
}

func temperatures(samples []telemetry.Sample) []float64 {
	out := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Temperature == nil {
			out = append(out, -1)
			continue
		}
		out = append(out, *s.Temperature)
	}
	return out
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestData_Empty(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/data", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestData_Filters(t *testing.T) {
	f := newFixture(t)
	seedSamples(t, f, 5)

	tests := []struct {
		name  string
		query string
		want  []float64
	}{
		{"all ascending", "", []float64{20, 21, 22, 23, 24}},
		{"limit keeps newest", "?limit=2", []float64{23, 24}},
		{"inclusive window", "?from_time=2026-03-01T12:01:00Z&to_time=2026-03-01T12:03:00Z", []float64{21, 22, 23}},
		{"naive time read as UTC", "?from_time=2026-03-01T12:03", []float64{23, 24}},
		{"date only", "?to_time=2026-03-01", []float64{}},
		{"window and limit", "?from_time=2026-03-01T12:01:00Z&limit=2", []float64{23, 24}},
		{"malformed from ignored", "?from_time=yesterday", []float64{20, 21, 22, 23, 24}},
		{"malformed to ignored", "?to_time=2026-13-45", []float64{20, 21, 22, 23, 24}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, "/api/v1/data"+tt.query, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
			}
			var samples []telemetry.Sample
			decodeBody(t, w, &samples)
			if got := temperatures(samples); !equalFloats(got, tt.want) {
				t.Errorf("temperatures = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestData_InvalidLimit(t *testing.T) {
	f := newFixture(t)

	for _, limit := range []string{"abc", "0", "-3", "10001"} {
		w := f.do(t, http.MethodGet, "/api/v1/data?limit="+limit, "")
		assertError(t, w, http.StatusBadRequest, ErrCodeBadRequest)
	}
}

func TestData_WireFormat(t *testing.T) {
	f := newFixture(t)
	seedSamples(t, f, 1)

	w := f.do(t, http.MethodGet, "/api/v1/data", "")
	var rows []map[string]any
	decodeBody(t, w, &rows)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]
	for _, key := range []string{"id", "timestamp", "temperature", "od_value", "pump_speed", "target_temp", "pid_p", "pid_i", "pid_d", "lamp_state"} {
		if _, ok := row[key]; !ok {
			t.Errorf("row missing %q: %v", key, row)
		}
	}
	if row["pump_speed"] != nil {
		t.Errorf("pump_speed = %v, want null for an unreported reading", row["pump_speed"])
	}
	if row["lamp_state"] != "OFF" {
		t.Errorf("lamp_state = %v, want OFF", row["lamp_state"])
	}
}

func TestLatest(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/latest", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("latest on empty log status = %d, want 204", w.Code)
	}

	seedSamples(t, f, 3)
	w = f.do(t, http.MethodGet, "/api/v1/latest", "")
	if w.Code != http.StatusOK {
		t.Fatalf("latest status = %d, want 200", w.Code)
	}
	var sample telemetry.Sample
	decodeBody(t, w, &sample)
	if sample.Temperature == nil || *sample.Temperature != 22 {
		t.Errorf("latest temperature = %v, want 22", sample.Temperature)
	}
	if !sample.Timestamp.Equal(sampleBase.Add(2 * time.Minute)) {
		t.Errorf("latest timestamp = %v", sample.Timestamp)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/status", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status before first message = %d, want 204", w.Code)
	}

	f.cache.Write(telemetry.Snapshot{
		ReceivedAt: sampleBase,
		Status: telemetry.Status{
			Temperature: float(26.5),
			PumpSpeed:   float(40),
			LampState:   device.LampOn.Ptr(),
		},
	})

	w = f.do(t, http.MethodGet, "/api/v1/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var snap map[string]any
	decodeBody(t, w, &snap)
	if snap["temperature"] != 26.5 || snap["pump_speed"] != 40.0 || snap["lamp_state"] != "ON" {
		t.Errorf("snapshot = %v", snap)
	}
	if snap["od_value"] != nil {
		t.Errorf("od_value = %v, want null", snap["od_value"])
	}
	if _, ok := snap["received_at"]; !ok {
		t.Error("snapshot missing received_at")
	}
}

func TestParseTimeFilter(t *testing.T) {
	tests := []struct {
		raw    string
		want   time.Time
		wantOK bool
	}{
		{"", time.Time{}, false},
		{"2026-03-01T12:00:00Z", sampleBase, true},
		{"2026-03-01T14:00:00+02:00", sampleBase, true},
		{"2026-03-01T12:00:00.5Z", sampleBase.Add(500 * time.Millisecond), true},
		{"2026-03-01T12:00:00", sampleBase, true},
		{"2026-03-01T12:00", sampleBase, true},
		{"2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"  2026-03-01  ", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"not-a-time", time.Time{}, false},
		{"1772366400", time.Time{}, false},
		{strings.Repeat("2", maxQueryParamLen+1), time.Time{}, false},
	}

	for _, tt := range tests {
		got, ok := parseTimeFilter(tt.raw)
		if ok != tt.wantOK {
			t.Errorf("parseTimeFilter(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("parseTimeFilter(%q) = %v, want %v", tt.raw, got, tt.want)
		}
		if ok && got.Location() != time.UTC {
			t.Errorf("parseTimeFilter(%q) location = %v, want UTC", tt.raw, got.Location())
		}
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 50, false},
		{"1", 1, false},
		{"500", 500, false},
		{"501", 0, true},
		{"0", 0, true},
		{"-1", 0, true},
		{"ten", 0, true},
	}

	for _, tt := range tests {
		got, err := parseLimit(tt.raw, 50, 500)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLimit(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
