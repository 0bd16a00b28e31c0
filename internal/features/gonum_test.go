package features

import (
	"math"
	"testing"
	"time"

	"github.com/lettse/littlemovers/internal/types"
)

func TestGonumExtractorBasicStats(t *testing.T) {
	ex := NewGonumExtractor()
	names := ex.Names()
	window := []float64{1, 2, 3, 4}
	values := ex.Extract(window)

	if len(values) != len(names) {
		t.Fatalf("extracted %d values for %d names", len(values), len(names))
	}

	byName := make(map[string]float64, len(names))
	for i, n := range names {
		byName[n] = values[i]
	}

	epsilon := 1e-9
	expected := map[string]float64{
		"mean":                   2.5,
		"standard_deviation":     math.Sqrt(1.25),
		"minimum":                1,
		"maximum":                4,
		"sum_values":             10,
		"root_mean_square":       math.Sqrt(7.5),
		"fft_coefficient_real_0": 10, // DC term equals the window sum
		"fft_coefficient_imag_0": 0,
	}
	for name, want := range expected {
		got, ok := byName[name]
		if !ok {
			t.Fatalf("missing feature %q", name)
		}
		if math.Abs(got-want) > epsilon {
			t.Errorf("%s: expected %.6f, got %.6f", name, want, got)
		}
	}

	// Quantiles must be ordered and bounded by min/max.
	qs := []string{"quantile_q0.10", "quantile_q0.25", "quantile_q0.50", "quantile_q0.75", "quantile_q0.95"}
	prev := byName["minimum"]
	for _, q := range qs {
		v := byName[q]
		if v < prev-epsilon || v > byName["maximum"]+epsilon {
			t.Errorf("%s = %.4f out of order (prev %.4f, max %.4f)", q, v, prev, byName["maximum"])
		}
		prev = v
	}
}

func TestGonumExtractorDegenerateWindows(t *testing.T) {
	ex := NewGonumExtractor()

	tests := []struct {
		name   string
		window []float64
	}{
		{name: "single sample", window: []float64{0.7}},
		{name: "two samples", window: []float64{0.7, 0.9}},
		{name: "constant signal", window: []float64{1, 1, 1, 1, 1, 1}},
		{name: "all zeros", window: []float64{0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := ex.Extract(tt.window)
			if len(values) != len(ex.Names()) {
				t.Fatalf("expected %d values, got %d", len(ex.Names()), len(values))
			}
			for i, v := range values {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Errorf("feature %s is not finite: %v", ex.Names()[i], v)
				}
			}
		})
	}
}

func TestExtractRows(t *testing.T) {
	start := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	samples := make([]types.Sample, 310)
	for i := range samples {
		samples[i] = types.NewSample(start.Add(time.Duration(i)*time.Second/30), float64(i%7)*0.1, 0.2, -0.3)
	}

	ex := NewGonumExtractor()
	rows, startTimes := ExtractRows(samples, 5, 30, ex)

	// 310 samples at 150/window: two full epochs plus one short one.
	if len(rows) != 3 {
		t.Fatalf("expected 3 feature rows, got %d", len(rows))
	}
	if len(startTimes) != len(rows) {
		t.Fatalf("start times (%d) not parallel to rows (%d)", len(startTimes), len(rows))
	}

	wantWidth := len(Channels) * len(ex.Names())
	if wantWidth != len(FeatureNames(ex)) {
		t.Fatalf("FeatureNames width %d, expected %d", len(FeatureNames(ex)), wantWidth)
	}
	for i, row := range rows {
		if len(row.Values) != wantWidth {
			t.Errorf("row %d: expected %d values, got %d", i, wantWidth, len(row.Values))
		}
		if !row.StartTime.Equal(startTimes[i]) {
			t.Errorf("row %d: start time mismatch", i)
		}
	}
	if !rows[0].StartTime.Equal(start) {
		t.Errorf("first row start time %v, want %v", rows[0].StartTime, start)
	}
}

func TestExtractRowsEmptyStream(t *testing.T) {
	rows, startTimes := ExtractRows(nil, 5, 30, NewGonumExtractor())
	if len(rows) != 0 || len(startTimes) != 0 {
		t.Fatalf("empty stream should yield no rows, got %d/%d", len(rows), len(startTimes))
	}
}
