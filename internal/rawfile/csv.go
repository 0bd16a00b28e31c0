package rawfile

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lettse/littlemovers/internal/types"
)

// CSVReader decodes recordings exported as delimited text with columns
// timestamp,x,y,z. Timestamps may be RFC 3339 or fractional epoch
// seconds. A header row is detected and skipped.
type CSVReader struct{}

// NewCSVReader returns a reader for .csv recordings.
func NewCSVReader() *CSVReader {
	return &CSVReader{}
}

// Extension returns ".csv".
func (r *CSVReader) Extension() string {
	return ".csv"
}

// Read decodes the recording at path into a sample stream.
func (r *CSVReader) Read(path string) ([]types.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing recording %s: %w", path, err)
	}

	samples := make([]types.Sample, 0, len(records))
	for i, rec := range records {
		if len(rec) < 4 {
			return nil, fmt.Errorf("recording %s: row %d has %d columns, need 4", path, i+1, len(rec))
		}
		ts, err := parseTimestamp(rec[0])
		if err != nil {
			if i == 0 {
				// Header row
				continue
			}
			return nil, fmt.Errorf("recording %s: row %d: %w", path, i+1, err)
		}

		var axes [3]float64
		for j := 0; j < 3; j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("recording %s: row %d column %d: %w", path, i+1, j+2, err)
			}
			axes[j] = v
		}
		samples = append(samples, types.NewSample(ts, axes[0], axes[1], axes[2]))
	}
	return samples, nil
}

func parseTimestamp(field string) (time.Time, error) {
	field = strings.TrimSpace(field)
	if secs, err := strconv.ParseFloat(field, 64); err == nil {
		sec := int64(secs)
		nsec := int64((secs - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, field); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", field)
}
