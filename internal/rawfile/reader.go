// Package rawfile decodes raw accelerometer recordings into sample
// streams. The decoder is a capability boundary: any Reader producing a
// time-ordered stream with vector magnitudes populated can feed the
// pipeline.
package rawfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lettse/littlemovers/internal/types"
)

// Reader decodes one recording file into a per-sample time series.
type Reader interface {
	// Read returns the full sample stream for one subject, strictly
	// time-ordered, with vector magnitude derived at ingestion.
	Read(path string) ([]types.Sample, error)

	// Extension returns the filename extension this reader accepts,
	// including the leading dot.
	Extension() string
}

// SubjectID derives the subject identifier from a recording filename:
// the filename stem without its extension.
func SubjectID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ListInputFiles enumerates the wear-eligible recordings in dir: plain
// files whose extension matches ext, in sorted name order.
func ListInputFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input folder: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
