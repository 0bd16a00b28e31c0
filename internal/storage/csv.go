// Package storage persists the pipeline's cumulative stores and
// per-subject artifacts: the CSV report files of every batch run and an
// optional SQLite results database.
package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lettse/littlemovers/internal/types"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	dateLayout      = "2006-01-02"

	// Output file names, fixed across runs so repeated batches
	// accumulate into the same stores.
	WearIntervalsFile   = "all_wear_times.csv"
	WearSummaryFile     = "wear_daily_summary.csv"
	ActivitySummaryFile = "by_day_by_participants.csv"
	FinalReportFile     = "FinalSummaryByParticipant.csv"
	trimmedSuffix       = "_trimmed_data.csv"
	predictionsSuffix   = "_predictions.csv"
)

// TrimmedStreamFile returns the per-subject trimmed stream filename.
func TrimmedStreamFile(subjectID string) string {
	return subjectID + trimmedSuffix
}

// PredictionsFile returns the per-recording predictions filename.
func PredictionsFile(inputFileName string) string {
	return inputFileName + predictionsSuffix
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}

// appendCSV appends rows to path, writing the header first only when
// the file does not exist yet.
func appendCSV(path string, header []string, rows [][]string) error {
	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s for append: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("appending to %s: %w", path, err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("appending to %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	return cr.ReadAll()
}

func formatMinutes(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteTrimmedStream overwrites the per-subject trimmed stream CSV.
func WriteTrimmedStream(outputDir, subjectID string, samples []types.Sample) error {
	rows := make([][]string, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, []string{
			s.Time.UTC().Format(timestampLayout),
			strconv.FormatFloat(s.X, 'f', -1, 64),
			strconv.FormatFloat(s.Y, 'f', -1, 64),
			strconv.FormatFloat(s.Z, 'f', -1, 64),
			strconv.FormatFloat(s.VectorMagnitude, 'f', -1, 64),
		})
	}
	path := filepath.Join(outputDir, TrimmedStreamFile(subjectID))
	return writeCSV(path, []string{"Datetime", "X", "Y", "Z", "vector_magnitude"}, rows)
}

// WritePredictions overwrites the per-recording predictions CSV: one
// row per epoch with its start time, label and full feature vector.
func WritePredictions(outputDir, inputFileName string, predictions []types.LabeledEpoch, featureNames []string) error {
	header := append([]string{"Time", "Prediction"}, featureNames...)
	rows := make([][]string, 0, len(predictions))
	for _, p := range predictions {
		row := make([]string, 0, len(header))
		row = append(row, p.StartTime.UTC().Format(timestampLayout), p.Label)
		for _, v := range p.Features {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		rows = append(rows, row)
	}
	path := filepath.Join(outputDir, PredictionsFile(inputFileName))
	return writeCSV(path, header, rows)
}

func wearIntervalRows(intervals []types.WearInterval) [][]string {
	rows := make([][]string, 0, len(intervals))
	for _, iv := range intervals {
		rows = append(rows, []string{
			iv.SubjectID,
			iv.Start.UTC().Format(timestampLayout),
			iv.End.UTC().Format(timestampLayout),
		})
	}
	return rows
}

func wearSummaryRows(summaries []types.DailyWearSummary) [][]string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.SubjectID,
			s.Date.Format(dateLayout),
			formatMinutes(s.WearMinutes),
			formatMinutes(s.NonWearMinutes),
		})
	}
	return rows
}

func activityRows(summaries []types.DailyActivitySummary, labels []string) [][]string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		row := []string{s.SubjectID, s.Date.Format(dateLayout)}
		for _, label := range labels {
			if minutes, ok := s.Minutes[label]; ok {
				row = append(row, formatMinutes(minutes))
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func activityHeader(labels []string) []string {
	return append([]string{"studyid", "Date"}, labels...)
}

var wearIntervalHeader = []string{"studyid", "WearTimeStart", "WearTimeEnd"}
var wearSummaryHeader = []string{"studyid", "Date", "WearDuration", "NonWearDuration"}

// loadWearSummaries reads an existing wear_daily_summary.csv, if any.
func loadWearSummaries(path string) ([]types.DailyWearSummary, error) {
	records, err := readCSV(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var rows []types.DailyWearSummary
	for i, rec := range records {
		if i == 0 || len(rec) < 4 {
			continue
		}
		date, err := time.ParseInLocation(dateLayout, rec[1], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		wear, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		nonWear, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		rows = append(rows, types.DailyWearSummary{
			SubjectID:      rec[0],
			Date:           date,
			WearMinutes:    wear,
			NonWearMinutes: nonWear,
		})
	}
	return rows, nil
}

// loadActivitySummaries reads an existing by_day_by_participants.csv.
// Label columns come from the file header.
func loadActivitySummaries(path string) ([]types.DailyActivitySummary, error) {
	records, err := readCSV(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	labels := records[0][2:]
	var rows []types.DailyActivitySummary
	for i, rec := range records[1:] {
		if len(rec) < 2 {
			continue
		}
		date, err := time.ParseInLocation(dateLayout, rec[1], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		minutes := make(map[string]float64)
		for j, label := range labels {
			col := j + 2
			if col >= len(rec) || strings.TrimSpace(rec[col]) == "" {
				continue
			}
			v, err := strconv.ParseFloat(rec[col], 64)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
			}
			minutes[label] = v
		}
		rows = append(rows, types.DailyActivitySummary{
			SubjectID: rec[0],
			Date:      date,
			Minutes:   minutes,
		})
	}
	return rows, nil
}

// loadWearIntervals reads an existing all_wear_times.csv.
func loadWearIntervals(path string) ([]types.WearInterval, error) {
	records, err := readCSV(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var rows []types.WearInterval
	for i, rec := range records {
		if i == 0 || len(rec) < 3 {
			continue
		}
		start, err := time.Parse(timestampLayout, rec[1])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		end, err := time.Parse(timestampLayout, rec[2])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		rows = append(rows, types.WearInterval{SubjectID: rec[0], Start: start.UTC(), End: end.UTC()})
	}
	return rows, nil
}
