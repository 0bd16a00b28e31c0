package storage

import (
	"fmt"
	"path/filepath"

	"github.com/lettse/littlemovers/internal/summary"
	"github.com/lettse/littlemovers/internal/types"
)

// WriteMode controls how the cumulative stores handle rows whose
// (subject, date) key already exists from a previous run.
type WriteMode string

const (
	// ModeAppend keeps the historical behavior: every run appends its
	// rows, so rerunning the same inputs duplicates them.
	ModeAppend WriteMode = "append"

	// ModeReplace dedups by key, replacing a prior run's rows for the
	// same subject and date.
	ModeReplace WriteMode = "replace"
)

// Accumulator is the single owner of cross-file pipeline state: the
// cumulative wear-interval, daily-wear and daily-activity stores. The
// batch aggregator hands it to the trimmer and summarizer stages and
// calls Flush after every file, which is exactly when on-disk state is
// synchronized.
type Accumulator struct {
	outputDir string
	mode      WriteMode
	labels    []string
	results   *ResultsDB

	wearIntervals []types.WearInterval
	wearSummaries []types.DailyWearSummary
	activity      []types.DailyActivitySummary

	// Pending rows not yet appended to the on-disk logs.
	pendingIntervals []types.WearInterval
	pendingWear      []types.DailyWearSummary
	pendingActivity  []types.DailyActivitySummary
}

// NewAccumulator opens the cumulative stores in outputDir, loading any
// rows left by previous runs so the merged report spans them. labels is
// the active vocabulary, fixing the activity columns for this run.
// results may be nil.
func NewAccumulator(outputDir string, mode WriteMode, labels []string, results *ResultsDB) (*Accumulator, error) {
	a := &Accumulator{
		outputDir: outputDir,
		mode:      mode,
		labels:    labels,
		results:   results,
	}

	var err error
	if a.wearIntervals, err = loadWearIntervals(a.path(WearIntervalsFile)); err != nil {
		return nil, err
	}
	if a.wearSummaries, err = loadWearSummaries(a.path(WearSummaryFile)); err != nil {
		return nil, err
	}
	if a.activity, err = loadActivitySummaries(a.path(ActivitySummaryFile)); err != nil {
		return nil, err
	}

	if mode == ModeReplace {
		a.wearSummaries = dedupWear(a.wearSummaries)
		a.activity = dedupActivity(a.activity)
	}
	return a, nil
}

func (a *Accumulator) path(name string) string {
	return filepath.Join(a.outputDir, name)
}

// AddWearIntervals records a subject's logbook intervals.
func (a *Accumulator) AddWearIntervals(intervals []types.WearInterval) {
	a.wearIntervals = append(a.wearIntervals, intervals...)
	a.pendingIntervals = append(a.pendingIntervals, intervals...)
}

// AddDailyWear records a subject's per-day wear summaries.
func (a *Accumulator) AddDailyWear(rows []types.DailyWearSummary) {
	a.wearSummaries = append(a.wearSummaries, rows...)
	a.pendingWear = append(a.pendingWear, rows...)
}

// AddDailyActivity records a subject's per-day activity summaries.
func (a *Accumulator) AddDailyActivity(rows []types.DailyActivitySummary) {
	a.activity = append(a.activity, rows...)
	a.pendingActivity = append(a.pendingActivity, rows...)
}

// WearSummaries returns the accumulated wear rows, deduplicated when
// the write mode is replace.
func (a *Accumulator) WearSummaries() []types.DailyWearSummary {
	if a.mode == ModeReplace {
		return dedupWear(a.wearSummaries)
	}
	return a.wearSummaries
}

// ActivitySummaries returns the accumulated activity rows,
// deduplicated when the write mode is replace.
func (a *Accumulator) ActivitySummaries() []types.DailyActivitySummary {
	if a.mode == ModeReplace {
		return dedupActivity(a.activity)
	}
	return a.activity
}

// Flush synchronizes the on-disk stores with the accumulated state and
// rewrites the merged final report. The aggregator calls it after every
// file so a mid-batch crash loses at most the file in flight.
func (a *Accumulator) Flush() error {
	if err := a.flushStores(); err != nil {
		return err
	}
	if err := a.writeFinalReport(); err != nil {
		return err
	}

	if a.results != nil {
		if err := a.results.StoreRun(a.pendingIntervals, a.pendingWear, a.pendingActivity, a.mode); err != nil {
			return fmt.Errorf("results database: %w", err)
		}
	}

	a.pendingIntervals = nil
	a.pendingWear = nil
	a.pendingActivity = nil
	return nil
}

func (a *Accumulator) flushStores() error {
	switch a.mode {
	case ModeReplace:
		if err := writeCSV(a.path(WearIntervalsFile), wearIntervalHeader, wearIntervalRows(a.wearIntervals)); err != nil {
			return err
		}
		if err := writeCSV(a.path(WearSummaryFile), wearSummaryHeader, wearSummaryRows(dedupWear(a.wearSummaries))); err != nil {
			return err
		}
		return writeCSV(a.path(ActivitySummaryFile), activityHeader(a.labels), activityRows(dedupActivity(a.activity), a.labels))
	default:
		if err := appendCSV(a.path(WearIntervalsFile), wearIntervalHeader, wearIntervalRows(a.pendingIntervals)); err != nil {
			return err
		}
		if err := appendCSV(a.path(WearSummaryFile), wearSummaryHeader, wearSummaryRows(a.pendingWear)); err != nil {
			return err
		}
		return appendCSV(a.path(ActivitySummaryFile), activityHeader(a.labels), activityRows(a.pendingActivity, a.labels))
	}
}

// writeFinalReport outer-joins the wear and activity stores and
// overwrites FinalSummaryByParticipant.csv.
func (a *Accumulator) writeFinalReport() error {
	merged := summary.MergeReports(a.WearSummaries(), a.ActivitySummaries())

	header := append([]string{"studyid", "Date", "WearDuration", "NonWearDuration"}, a.labels...)
	rows := make([][]string, 0, len(merged))
	for _, row := range merged {
		rec := []string{row.SubjectID, row.Date.Format(dateLayout)}
		if row.Wear != nil {
			rec = append(rec, formatMinutes(row.Wear.WearMinutes), formatMinutes(row.Wear.NonWearMinutes))
		} else {
			rec = append(rec, "", "")
		}
		for _, label := range a.labels {
			if row.Activity != nil {
				if minutes, ok := row.Activity.Minutes[label]; ok {
					rec = append(rec, formatMinutes(minutes))
					continue
				}
			}
			rec = append(rec, "")
		}
		rows = append(rows, rec)
	}
	return writeCSV(a.path(FinalReportFile), header, rows)
}

type summaryKey struct {
	subject string
	date    int64
}

// dedupWear keeps the last row per (subject, date), preserving
// first-seen order.
func dedupWear(rows []types.DailyWearSummary) []types.DailyWearSummary {
	seen := make(map[summaryKey]int)
	out := make([]types.DailyWearSummary, 0, len(rows))
	for _, row := range rows {
		k := summaryKey{row.SubjectID, row.Date.Unix()}
		if idx, ok := seen[k]; ok {
			out[idx] = row
			continue
		}
		seen[k] = len(out)
		out = append(out, row)
	}
	return out
}

func dedupActivity(rows []types.DailyActivitySummary) []types.DailyActivitySummary {
	seen := make(map[summaryKey]int)
	out := make([]types.DailyActivitySummary, 0, len(rows))
	for _, row := range rows {
		k := summaryKey{row.SubjectID, row.Date.Unix()}
		if idx, ok := seen[k]; ok {
			out[idx] = row
			continue
		}
		seen[k] = len(out)
		out = append(out, row)
	}
	return out
}
