// Package epoch segments a continuous sample stream into fixed-size,
// non-overlapping windows for feature extraction and classification.
package epoch

import (
	"time"

	"github.com/lettse/littlemovers/internal/types"
)

// Epoch is one fixed-duration window of consecutive samples. Samples is
// a view into the source stream, not a copy.
type Epoch struct {
	StartTime time.Time
	Samples   []types.Sample
}

// Size returns the number of samples in the epoch.
func (e Epoch) Size() int {
	return len(e.Samples)
}

// WindowSize returns the nominal number of samples per epoch for the
// given epoch length and sample rate.
func WindowSize(epochSeconds, hz int) int {
	return epochSeconds * hz
}

// Split divides samples into contiguous non-overlapping epochs of
// epochSeconds*hz samples each, in stream order, covering every sample
// exactly once. The final epoch may be shorter than the nominal window;
// it is kept, not dropped. An empty stream yields no epochs.
func Split(samples []types.Sample, epochSeconds, hz int) []Epoch {
	window := WindowSize(epochSeconds, hz)
	if window <= 0 || len(samples) == 0 {
		return nil
	}

	epochs := make([]Epoch, 0, (len(samples)+window-1)/window)
	for start := 0; start < len(samples); start += window {
		end := start + window
		if end > len(samples) {
			end = len(samples)
		}
		epochs = append(epochs, Epoch{
			StartTime: samples[start].Time,
			Samples:   samples[start:end],
		})
	}
	return epochs
}
