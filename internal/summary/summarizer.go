// Package summary aggregates labeled epoch predictions into per-day
// activity minutes and merges wear and activity summaries into the
// final per-participant report.
package summary

import (
	"sort"
	"time"

	"github.com/lettse/littlemovers/internal/types"
)

// Summarize pivots one subject's labeled predictions into one row per
// observed date with minutes per label: epoch count times epochSeconds
// over 60. Dates and labels with no epochs are absent, not zero.
func Summarize(predictions []types.LabeledEpoch, epochSeconds int, subjectID string) []types.DailyActivitySummary {
	byDate := make(map[int64]*types.DailyActivitySummary)
	var order []int64

	minutesPerEpoch := float64(epochSeconds) / 60
	for _, p := range predictions {
		date := types.DateOf(p.StartTime)
		key := date.Unix()
		row, ok := byDate[key]
		if !ok {
			row = &types.DailyActivitySummary{
				SubjectID: subjectID,
				Date:      date,
				Minutes:   make(map[string]float64),
			}
			byDate[key] = row
			order = append(order, key)
		}
		row.Minutes[p.Label] += minutesPerEpoch
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	summaries := make([]types.DailyActivitySummary, 0, len(order))
	for _, key := range order {
		summaries = append(summaries, *byDate[key])
	}
	return summaries
}

// MergeReports outer-joins wear summaries and activity summaries on
// (subject, date). Keys present on only one side produce a row with the
// other side nil. Rows are ordered by subject then date.
func MergeReports(wear []types.DailyWearSummary, activity []types.DailyActivitySummary) []types.ReportRow {
	type key struct {
		subject string
		date    int64
	}

	rows := make(map[key]*types.ReportRow)
	var order []key
	get := func(k key) *types.ReportRow {
		row, ok := rows[k]
		if !ok {
			row = &types.ReportRow{SubjectID: k.subject, Date: time.Unix(k.date, 0).UTC()}
			rows[k] = row
			order = append(order, k)
		}
		return row
	}

	for i := range wear {
		w := wear[i]
		get(key{subject: w.SubjectID, date: w.Date.Unix()}).Wear = &w
	}
	for i := range activity {
		a := activity[i]
		get(key{subject: a.SubjectID, date: a.Date.Unix()}).Activity = &a
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].subject != order[j].subject {
			return order[i].subject < order[j].subject
		}
		return order[i].date < order[j].date
	})

	merged := make([]types.ReportRow, 0, len(order))
	for _, k := range order {
		merged = append(merged, *rows[k])
	}
	return merged
}
