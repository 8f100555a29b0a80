package csvdecode

import (
	"strings"
	"testing"

	"github.com/banshee-data/kart-power-curve/internal/kerrors"
)

func TestDecodeZeroInputEmptySessionIsMalformed(t *testing.T) {
	csv := "Time,Distance,RPM,GPS_Speed,GPS_LatAcc,GPS_LonAcc\n"
	_, err := Decode([]byte(csv))
	if err == nil {
		t.Fatal("expected malformed-input error, got nil")
	}
	if kind, ok := kerrors.KindOf(err); !ok || kind != kerrors.KindMalformedInput {
		t.Fatalf("expected KindMalformedInput, got %v", err)
	}
}

func TestDecodeMetadataAndDataRows(t *testing.T) {
	lines := []string{
		"Format,RaceCapture",
		"Venue,Test Track",
		"Sample Rate,10",
		"Time,RPM,GPS_Speed,GPS_LonAcc",
		"sec,rpm,km/h,g",
		"0.0,8000,20.0,0.5",
		"0.1,8100,20.5,0.5",
		"0.2,8200,21.0,0.5",
	}
	data := strings.Join(lines, "\n")

	got, err := Decode([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Metadata.Format != "RaceCapture" {
		t.Errorf("format = %q", got.Metadata.Format)
	}
	if got.Metadata.SampleRateHz != 10 {
		t.Errorf("sample rate = %v", got.Metadata.SampleRateHz)
	}
	if len(got.Headers) != 4 {
		t.Fatalf("headers = %v", got.Headers)
	}
	if len(got.Rows) != 3 {
		t.Fatalf("expected 3 data rows, got %d: %v", len(got.Rows), got.Rows)
	}
}

func TestDecodeBeaconMarkers(t *testing.T) {
	lines := []string{
		"Beacon Markers,60.0,125.3,188.1",
		"Time,RPM,GPS_Speed,GPS_LonAcc",
		"0.0,8000,20.0,0.5",
	}
	got, err := Decode([]byte(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{60.0, 125.3, 188.1}
	if len(got.Metadata.BeaconMarkers) != len(want) {
		t.Fatalf("beacon markers = %v", got.Metadata.BeaconMarkers)
	}
	for i, v := range want {
		if got.Metadata.BeaconMarkers[i] != v {
			t.Errorf("beacon[%d] = %v, want %v", i, got.Metadata.BeaconMarkers[i], v)
		}
	}
}

func TestDecodeSkipsUnitAndIndexRows(t *testing.T) {
	lines := []string{
		"Time,RPM,GPS_Speed,GPS_LonAcc",
		"sec,rpm,km/h,g",
		"0,1,2,3",
		"0.0,8000,20.0,0.5",
	}
	got, err := Decode([]byte(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Rows) != 1 {
		t.Fatalf("expected 1 data row after skipping unit/index rows, got %d: %v", len(got.Rows), got.Rows)
	}
}

func TestDecodeSegmentTimesCumulativeVsPerLap(t *testing.T) {
	// Monotone-increasing: already cumulative.
	lines := []string{
		"Segment Times,60.0,125.3,188.1",
		"Time,RPM,GPS_Speed,GPS_LonAcc",
		"0.0,8000,20.0,0.5",
	}
	got, err := Decode([]byte(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Metadata.SegmentTimesPerLap) != 0 {
		t.Errorf("expected no explicit per-lap times for monotone input, got %v", got.Metadata.SegmentTimesPerLap)
	}
	if got.Metadata.SegmentTimesCumulative[2] != 188.1 {
		t.Errorf("cumulative = %v", got.Metadata.SegmentTimesCumulative)
	}

	// Individual per-lap times: needs prefix-sum conversion.
	lines2 := []string{
		"Segment Times,60.0,65.3,62.8",
		"Time,RPM,GPS_Speed,GPS_LonAcc",
		"0.0,8000,20.0,0.5",
	}
	got2, err := Decode([]byte(strings.Join(lines2, "\n")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got2.Metadata.SegmentTimesPerLap) != 3 {
		t.Fatalf("expected explicit per-lap times, got %v", got2.Metadata.SegmentTimesPerLap)
	}
	wantCumulative := []float64{60.0, 125.3, 188.1}
	for i, v := range wantCumulative {
		if diff := got2.Metadata.SegmentTimesCumulative[i] - v; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("cumulative[%d] = %v, want %v", i, got2.Metadata.SegmentTimesCumulative[i], v)
		}
	}
}
