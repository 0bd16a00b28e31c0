package nonwear

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/lettse/littlemovers/internal/types"
)

// Method selects how non-wear time is identified.
type Method string

const (
	// MethodLogbook trims samples to the wear intervals declared in a
	// study logbook.
	MethodLogbook Method = "logbook"

	// MethodNone performs no trimming; the whole stream counts as wear
	// time.
	MethodNone Method = "none"
)

// Outcome reports which path a trim took, making the fail-open
// passthrough cases observable instead of implicit.
type Outcome string

const (
	// OutcomeTrimmed means wear intervals were found and applied.
	OutcomeTrimmed Outcome = "trimmed"

	// OutcomeNoMethod means trimming was disabled for the run.
	OutcomeNoMethod Outcome = "passthrough_no_method"

	// OutcomeNoLogbook means the logbook file was absent or unset.
	// The stream passes through untrimmed; this is deliberate, not an
	// error.
	OutcomeNoLogbook Outcome = "passthrough_no_logbook"

	// OutcomeSubjectNotFound means the subject has no logbook rows.
	// The stream passes through untrimmed.
	OutcomeSubjectNotFound Outcome = "passthrough_subject_not_found"
)

// Result is the outcome of trimming one subject's stream.
type Result struct {
	// Samples is the (possibly) trimmed stream. For any passthrough
	// outcome it is the input stream, unchanged in content and order.
	Samples []types.Sample

	// Outcome tags which path was taken.
	Outcome Outcome

	// Intervals holds the subject's wear intervals when Outcome is
	// OutcomeTrimmed, nil otherwise.
	Intervals []types.WearInterval

	// DailySummaries holds one wear/non-wear row per calendar date
	// covered by Intervals, nil for passthrough outcomes.
	DailySummaries []types.DailyWearSummary
}

// Trimmer filters sample streams to declared wear time. Missing
// logbook data never fails a run: the affected stream passes through
// untrimmed with the reason tagged on the result.
type Trimmer struct {
	method  Method
	logbook *Logbook
	logger  *zap.SugaredLogger
}

// NewTrimmer builds a trimmer for the configured method. With
// MethodLogbook, a missing or unreadable logbook file degrades to
// passthrough for every subject rather than failing the run.
func NewTrimmer(method Method, logbookPath string, logger *zap.SugaredLogger) (*Trimmer, error) {
	t := &Trimmer{method: method, logger: logger}
	if method != MethodLogbook {
		return t, nil
	}
	if logbookPath == "" {
		logger.Warnw("logbook method selected but no logbook file configured, streams will pass through untrimmed")
		return t, nil
	}
	if _, err := os.Stat(logbookPath); err != nil {
		logger.Warnw("logbook file not accessible, streams will pass through untrimmed",
			"path", logbookPath, "error", err)
		return t, nil
	}

	lb, err := LoadLogbook(logbookPath)
	if err != nil {
		// A present-but-malformed logbook is a real error: silently
		// ignoring it would discard the operator's wear data.
		return nil, fmt.Errorf("loading logbook: %w", err)
	}
	t.logbook = lb
	return t, nil
}

// Trim filters one subject's stream to its declared wear intervals and
// derives the per-day wear summaries.
func (t *Trimmer) Trim(subjectID string, samples []types.Sample) Result {
	if t.method != MethodLogbook {
		return Result{Samples: samples, Outcome: OutcomeNoMethod}
	}
	if t.logbook == nil {
		return Result{Samples: samples, Outcome: OutcomeNoLogbook}
	}

	intervals := t.logbook.Intervals(subjectID)
	if len(intervals) == 0 {
		t.logger.Warnw("subject not found in logbook, stream passes through untrimmed",
			"subject", subjectID)
		return Result{Samples: samples, Outcome: OutcomeSubjectNotFound}
	}

	trimmed := make([]types.Sample, 0, len(samples))
	for _, s := range samples {
		for _, iv := range intervals {
			if iv.Contains(s.Time) {
				trimmed = append(trimmed, s)
				break
			}
		}
	}

	return Result{
		Samples:        trimmed,
		Outcome:        OutcomeTrimmed,
		Intervals:      intervals,
		DailySummaries: DailyWear(subjectID, intervals),
	}
}

// DailyWear aggregates wear intervals into per-day wear/non-wear
// minutes. An interval's full duration attributes to its start date;
// non-wear is the remainder of the 1440-minute day.
func DailyWear(subjectID string, intervals []types.WearInterval) []types.DailyWearSummary {
	byDate := make(map[int64]*types.DailyWearSummary)
	var order []int64
	for _, iv := range intervals {
		date := types.DateOf(iv.Start)
		key := date.Unix()
		row, ok := byDate[key]
		if !ok {
			row = &types.DailyWearSummary{SubjectID: subjectID, Date: date}
			byDate[key] = row
			order = append(order, key)
		}
		row.WearMinutes += iv.Minutes()
	}

	summaries := make([]types.DailyWearSummary, 0, len(order))
	for _, key := range order {
		row := byDate[key]
		row.NonWearMinutes = 1440 - row.WearMinutes
		summaries = append(summaries, *row)
	}
	return summaries
}
