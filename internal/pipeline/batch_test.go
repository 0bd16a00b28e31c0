package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lettse/littlemovers/internal/classifier"
	"github.com/lettse/littlemovers/internal/config"
	"github.com/lettse/littlemovers/internal/storage"
)

// stubClassifier cycles through class indices without a model file.
type stubClassifier struct {
	classes int
	calls   int
}

func (s *stubClassifier) NumClasses() int {
	return s.classes
}

func (s *stubClassifier) PredictClass(features []float64) (int, error) {
	idx := s.calls % s.classes
	s.calls++
	return idx, nil
}

func stubLoader(classes int) ModelLoader {
	return func(path string) (classifier.EpochClassifier, error) {
		return &stubClassifier{classes: classes}, nil
	}
}

// writeRecording writes n samples at hz starting at start.
func writeRecording(t *testing.T, dir, name string, start time.Time, n, hz int) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("timestamp,x,y,z\n")
	step := time.Second / time.Duration(hz)
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * step)
		fmt.Fprintf(&sb, "%s,%.3f,%.3f,%.3f\n", ts.Format(time.RFC3339Nano), 0.1+float64(i%5)*0.01, -0.2, 0.97)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(inputDir, outputDir string) *config.Config {
	return &config.Config{
		Input:   config.InputConfig{Folder: inputDir, Extension: ".csv", EpochSeconds: 5, SampleRateHz: 30},
		Output:  config.OutputConfig{Folder: outputDir, WriteMode: string(storage.ModeAppend)},
		Model:   config.ModelConfig{Dir: "./models", Outcome: "tpa"},
		NonWear: config.NonWearConfig{Method: "none"},
	}
}

func drain(t *testing.T, events <-chan Progress) []Progress {
	t.Helper()
	var all []Progress
	for ev := range events {
		all = append(all, ev)
	}
	if len(all) == 0 {
		t.Fatal("no progress events emitted")
	}
	return all
}

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func TestBatchEndToEnd(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	start := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

	// Two 10-second recordings at 30 Hz: 2 epochs each at 5 s.
	writeRecording(t, inputDir, "P001.csv", start, 300, 30)
	writeRecording(t, inputDir, "P002.csv", start, 300, 30)

	batch := New(testConfig(inputDir, outputDir), zap.NewNop().Sugar(), WithModelLoader(stubLoader(3)))
	events := drain(t, batch.Start(context.Background()))

	final := events[len(events)-1]
	if final.State != StateComplete || final.Err != nil {
		t.Fatalf("expected clean completion, got %+v", final)
	}
	if final.Percent != 100 {
		t.Errorf("final percent %d, want 100", final.Percent)
	}

	prev := 0
	for i, ev := range events {
		if ev.Percent < prev {
			t.Errorf("event %d: percent decreased from %d to %d", i, prev, ev.Percent)
		}
		prev = ev.Percent
	}

	// One predictions CSV per file, 2 epochs each.
	for _, name := range []string{"P001.csv", "P002.csv"} {
		records := readCSVFile(t, filepath.Join(outputDir, storage.PredictionsFile(name)))
		if len(records) != 3 {
			t.Errorf("%s: expected header plus 2 predictions, got %d records", name, len(records))
		}
	}

	// Activity store: one row per (subject, date).
	records := readCSVFile(t, filepath.Join(outputDir, storage.ActivitySummaryFile))
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 activity rows, got %d", len(records))
	}

	// Each file's per-label minutes sum to 2 epochs * 5 s / 60.
	for _, rec := range records[1:] {
		total := 0.0
		for _, cell := range rec[2:] {
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				t.Fatal(err)
			}
			total += v
		}
		if math.Abs(total-10.0/60) > 1e-9 {
			t.Errorf("subject %s: activity minutes sum %.6f, want %.6f", rec[0], total, 10.0/60)
		}
	}

	// Merged report: one row per (subject, date), activity side only.
	records = readCSVFile(t, filepath.Join(outputDir, storage.FinalReportFile))
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 report rows, got %d", len(records))
	}
	for _, rec := range records[1:] {
		if rec[2] != "" || rec[3] != "" {
			t.Errorf("method none should leave wear columns null: %v", rec)
		}
	}

	// Method none: no wear artifacts.
	if _, err := os.Stat(filepath.Join(outputDir, storage.WearSummaryFile)); err == nil {
		records := readCSVFile(t, filepath.Join(outputDir, storage.WearSummaryFile))
		if len(records) > 1 {
			t.Errorf("method none must not emit wear summaries, got %d rows", len(records)-1)
		}
	}
}

func TestBatchWithLogbookTrimming(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	start := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	writeRecording(t, inputDir, "P001.csv", start, 300, 30)

	logbook := filepath.Join(t.TempDir(), "logbook.csv")
	content := "studyid,WearTimeStart,WearTimeEnd\nP001,2024-03-04 09:00:00,2024-03-04 09:00:05\n"
	if err := os.WriteFile(logbook, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(inputDir, outputDir)
	cfg.NonWear = config.NonWearConfig{Method: "logbook", LogbookFile: logbook}

	batch := New(cfg, zap.NewNop().Sugar(), WithModelLoader(stubLoader(3)))
	events := drain(t, batch.Start(context.Background()))
	if final := events[len(events)-1]; final.State != StateComplete {
		t.Fatalf("expected completion, got %+v", final)
	}

	// Wear interval covers the first 5 seconds plus the boundary
	// sample: the trimmed stream holds 151 samples.
	records := readCSVFile(t, filepath.Join(outputDir, storage.TrimmedStreamFile("P001")))
	if len(records) != 152 {
		t.Errorf("expected header plus 151 trimmed samples, got %d", len(records))
	}

	records = readCSVFile(t, filepath.Join(outputDir, storage.WearIntervalsFile))
	if len(records) != 2 {
		t.Errorf("expected header plus 1 wear interval, got %d", len(records))
	}

	records = readCSVFile(t, filepath.Join(outputDir, storage.WearSummaryFile))
	if len(records) != 2 {
		t.Fatalf("expected header plus 1 wear summary, got %d", len(records))
	}
	// Final report joins wear and activity for the same subject-date.
	records = readCSVFile(t, filepath.Join(outputDir, storage.FinalReportFile))
	if len(records) != 2 {
		t.Fatalf("expected header plus 1 merged row, got %d", len(records))
	}
	if records[1][2] == "" {
		t.Error("merged row should carry wear minutes")
	}
}

func TestBatchFailFastAbortsOnBadFile(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(inputDir, "A_corrupt.csv"), []byte("timestamp,x,y,z\nnot,a,sample\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeRecording(t, inputDir, "B_good.csv", time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC), 300, 30)

	cfg := testConfig(inputDir, outputDir)
	cfg.Batch.FailFast = true

	batch := New(cfg, zap.NewNop().Sugar(), WithModelLoader(stubLoader(3)))
	events := drain(t, batch.Start(context.Background()))

	final := events[len(events)-1]
	if final.State != StateError || final.Err == nil {
		t.Fatalf("expected terminal error, got %+v", final)
	}
	// The good file after the failure was never processed.
	if _, err := os.Stat(filepath.Join(outputDir, storage.PredictionsFile("B_good.csv"))); err == nil {
		t.Error("fail-fast batch should abort before later files")
	}
}

func TestBatchSkipsBadFileByDefault(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(inputDir, "A_corrupt.csv"), []byte("timestamp,x,y,z\nnot,a,sample\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeRecording(t, inputDir, "B_good.csv", time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC), 300, 30)

	batch := New(testConfig(inputDir, outputDir), zap.NewNop().Sugar(), WithModelLoader(stubLoader(3)))
	events := drain(t, batch.Start(context.Background()))

	final := events[len(events)-1]
	if final.State != StateComplete || final.Err != nil {
		t.Fatalf("expected completion despite bad file, got %+v", final)
	}

	skipped := false
	for _, ev := range events {
		if strings.HasPrefix(ev.Status, "Skipped A_corrupt.csv") {
			skipped = true
		}
	}
	if !skipped {
		t.Error("expected a skip event for the corrupt file")
	}
	if _, err := os.Stat(filepath.Join(outputDir, storage.PredictionsFile("B_good.csv"))); err != nil {
		t.Errorf("good file should still be processed: %v", err)
	}
}

func TestBatchNoOutcomeSelected(t *testing.T) {
	cfg := testConfig(t.TempDir(), t.TempDir())
	cfg.Model.Outcome = ""

	batch := New(cfg, zap.NewNop().Sugar(), WithModelLoader(stubLoader(3)))
	events := drain(t, batch.Start(context.Background()))

	final := events[len(events)-1]
	if final.State != StateError || final.Err == nil {
		t.Fatalf("expected terminal error for missing outcome, got %+v", final)
	}
}

func TestBatchModelLoadFailureIsFatal(t *testing.T) {
	inputDir := t.TempDir()
	writeRecording(t, inputDir, "P001.csv", time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC), 300, 30)

	cfg := testConfig(inputDir, t.TempDir())
	batch := New(cfg, zap.NewNop().Sugar(), WithModelLoader(func(path string) (classifier.EpochClassifier, error) {
		return nil, fmt.Errorf("artifact unreadable")
	}))
	events := drain(t, batch.Start(context.Background()))

	final := events[len(events)-1]
	if final.State != StateError || final.Err == nil {
		t.Fatalf("expected terminal error for model load failure, got %+v", final)
	}
}
