// Package nonwear removes samples recorded while the device was not
// worn, using wear intervals from a study logbook, and derives per-day
// wear duration summaries.
package nonwear

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lettse/littlemovers/internal/types"
)

// Logbook holds the wear intervals declared for each subject in a
// study, keyed by subject id.
type Logbook struct {
	intervals map[string][]types.WearInterval
}

// LoadLogbook parses a logbook CSV with header columns
// studyid,WearTimeStart,WearTimeEnd.
func LoadLogbook(path string) (*Logbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening logbook: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing logbook %s: %w", path, err)
	}
	if len(records) == 0 {
		return &Logbook{intervals: map[string][]types.WearInterval{}}, nil
	}

	cols, err := headerIndex(records[0])
	if err != nil {
		return nil, fmt.Errorf("logbook %s: %w", path, err)
	}

	lb := &Logbook{intervals: make(map[string][]types.WearInterval)}
	for i, rec := range records[1:] {
		if len(rec) <= cols.subject || len(rec) <= cols.start || len(rec) <= cols.end {
			return nil, fmt.Errorf("logbook %s row %d: too few columns", path, i+2)
		}
		start, err := parseLogbookTime(rec[cols.start])
		if err != nil {
			return nil, fmt.Errorf("logbook %s row %d: %w", path, i+2, err)
		}
		end, err := parseLogbookTime(rec[cols.end])
		if err != nil {
			return nil, fmt.Errorf("logbook %s row %d: %w", path, i+2, err)
		}
		id := strings.TrimSpace(rec[cols.subject])
		lb.intervals[id] = append(lb.intervals[id], types.WearInterval{
			SubjectID: id,
			Start:     start,
			End:       end,
		})
	}
	return lb, nil
}

// Intervals returns the wear intervals for one subject, or nil if the
// subject does not appear in the logbook.
func (l *Logbook) Intervals(subjectID string) []types.WearInterval {
	return l.intervals[subjectID]
}

type logbookColumns struct {
	subject, start, end int
}

func headerIndex(header []string) (logbookColumns, error) {
	cols := logbookColumns{subject: -1, start: -1, end: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "studyid":
			cols.subject = i
		case "weartimestart":
			cols.start = i
		case "weartimeend":
			cols.end = i
		}
	}
	if cols.subject < 0 || cols.start < 0 || cols.end < 0 {
		return cols, fmt.Errorf("missing required columns studyid,WearTimeStart,WearTimeEnd")
	}
	return cols, nil
}

func parseLogbookTime(field string) (time.Time, error) {
	field = strings.TrimSpace(field)
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if ts, err := time.Parse(layout, field); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable wear time %q", field)
}
