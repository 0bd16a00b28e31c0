// Package types holds the core records passed between pipeline stages.
package types

import (
	"math"
	"time"
)

// Sample is a single triaxial accelerometer reading. VectorMagnitude is
// derived once when the sample is decoded and never recomputed.
type Sample struct {
	Time            time.Time
	X               float64
	Y               float64
	Z               float64
	VectorMagnitude float64
}

// NewSample builds a Sample with its vector magnitude populated.
func NewSample(t time.Time, x, y, z float64) Sample {
	return Sample{
		Time:            t,
		X:               x,
		Y:               y,
		Z:               z,
		VectorMagnitude: math.Sqrt(x*x + y*y + z*z),
	}
}

// WearInterval is a confirmed-worn time span for one subject, sourced
// from a logbook. The span is inclusive on both ends.
type WearInterval struct {
	SubjectID string
	Start     time.Time
	End       time.Time
}

// Contains reports whether t falls within the interval.
func (w WearInterval) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Minutes returns the interval length in minutes.
func (w WearInterval) Minutes() float64 {
	return w.End.Sub(w.Start).Minutes()
}

// FeatureRow is one epoch's worth of extracted features. Values are
// ordered to match the extractor's feature names.
type FeatureRow struct {
	StartTime time.Time
	Values    []float64
}

// LabeledEpoch is a feature row with its assigned activity label.
type LabeledEpoch struct {
	StartTime time.Time
	Label     string
	Features  []float64
}

// DailyWearSummary is one subject-day of wear/non-wear minutes. For a
// fully covered day WearMinutes+NonWearMinutes equals 1440.
type DailyWearSummary struct {
	SubjectID      string
	Date           time.Time
	WearMinutes    float64
	NonWearMinutes float64
}

// DailyActivitySummary is one subject-day of per-label activity
// minutes. Labels with zero epochs on a date are absent from Minutes,
// not present with a zero value.
type DailyActivitySummary struct {
	SubjectID string
	Date      time.Time
	Minutes   map[string]float64
}

// ReportRow is one row of the final merged report: the outer join of a
// wear summary and an activity summary on (subject, date). A nil side
// means that side had no row for the key.
type ReportRow struct {
	SubjectID string
	Date      time.Time
	Wear      *DailyWearSummary
	Activity  *DailyActivitySummary
}

// DateOf truncates t to midnight UTC, the key used for all per-day
// grouping.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
