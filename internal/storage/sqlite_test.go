package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lettse/littlemovers/internal/types"
)

func TestResultsDBStoreRun(t *testing.T) {
	db, err := OpenResultsDB(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if db.RunID() == "" {
		t.Fatal("expected a run id")
	}

	start := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)
	intervals := []types.WearInterval{{SubjectID: "P001", Start: start, End: start.Add(4 * time.Hour)}}
	wear := []types.DailyWearSummary{{SubjectID: "P001", Date: date(4), WearMinutes: 240, NonWearMinutes: 1200}}
	activity := []types.DailyActivitySummary{{SubjectID: "P001", Date: date(4), Minutes: map[string]float64{"SED": 5, "TPA": 2.5}}}

	if err := db.StoreRun(intervals, wear, activity, ModeAppend); err != nil {
		t.Fatal(err)
	}

	counts := map[string]int{
		"wear_intervals":         1,
		"wear_daily_summary":     1,
		"activity_daily_summary": 2,
	}
	for table, want := range counts {
		var got int
		if err := db.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&got); err != nil {
			t.Fatalf("counting %s: %v", table, err)
		}
		if got != want {
			t.Errorf("%s: expected %d rows, got %d", table, want, got)
		}
	}
}

func TestResultsDBReplaceModeUpserts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")

	for run := 0; run < 2; run++ {
		db, err := OpenResultsDB(path)
		if err != nil {
			t.Fatal(err)
		}
		wear := []types.DailyWearSummary{{SubjectID: "P001", Date: date(4), WearMinutes: 240 + float64(run), NonWearMinutes: 1200 - float64(run)}}
		if err := db.StoreRun(nil, wear, nil, ModeReplace); err != nil {
			t.Fatal(err)
		}
		db.Close()
	}

	db, err := OpenResultsDB(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var count int
	var minutes float64
	if err := db.db.QueryRow("SELECT COUNT(*), MAX(wear_minutes) FROM wear_daily_summary").Scan(&count, &minutes); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("replace mode should keep one row per key, got %d", count)
	}
	if minutes != 241 {
		t.Errorf("expected last-write-wins minutes 241, got %v", minutes)
	}
}
