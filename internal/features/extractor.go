// Package features computes the fixed per-epoch descriptor set used by
// the activity classifier. The statistical backend is a capability
// boundary: any WindowedFeatureExtractor producing the same named
// descriptors over a numeric window is substitutable.
package features

import (
	"time"

	"github.com/lettse/littlemovers/internal/epoch"
	"github.com/lettse/littlemovers/internal/types"
)

// Channels are the per-sample signals features are computed over, in
// fixed order. The order determines feature-vector layout and must
// match the layout the model was trained on.
var Channels = []string{"X", "Y", "Z", "vector_magnitude"}

// WindowedFeatureExtractor computes a fixed, ordered set of named
// descriptors over one channel of a fixed-size numeric window. Windows
// shorter than the nominal size (the final partial epoch of a stream)
// must still produce a full set of values.
type WindowedFeatureExtractor interface {
	// Names returns the descriptor names in extraction order. The
	// result is constant across calls.
	Names() []string

	// Extract computes the descriptors for one window, parallel to
	// Names. The window is never empty.
	Extract(window []float64) []float64
}

// FeatureNames returns the full feature-vector column names: every
// backend descriptor for every channel, channel-major.
func FeatureNames(ex WindowedFeatureExtractor) []string {
	base := ex.Names()
	names := make([]string, 0, len(Channels)*len(base))
	for _, ch := range Channels {
		for _, n := range base {
			names = append(names, ch+"__"+n)
		}
	}
	return names
}

// ExtractRows segments the stream into epochs and computes one feature
// row per epoch, returning the rows and a parallel slice of epoch start
// times.
func ExtractRows(samples []types.Sample, epochSeconds, hz int, ex WindowedFeatureExtractor) ([]types.FeatureRow, []time.Time) {
	epochs := epoch.Split(samples, epochSeconds, hz)
	if len(epochs) == 0 {
		return nil, nil
	}

	perChannel := len(ex.Names())
	rows := make([]types.FeatureRow, 0, len(epochs))
	startTimes := make([]time.Time, 0, len(epochs))

	// Channel buffers are reused across epochs; only the final short
	// epoch reslices them.
	window := epoch.WindowSize(epochSeconds, hz)
	buffers := make([][]float64, len(Channels))
	for i := range buffers {
		buffers[i] = make([]float64, window)
	}

	for _, e := range epochs {
		values := make([]float64, 0, len(Channels)*perChannel)
		for ci := range Channels {
			buf := buffers[ci][:e.Size()]
			fillChannel(buf, e.Samples, ci)
			values = append(values, ex.Extract(buf)...)
		}
		rows = append(rows, types.FeatureRow{StartTime: e.StartTime, Values: values})
		startTimes = append(startTimes, e.StartTime)
	}
	return rows, startTimes
}

func fillChannel(dst []float64, samples []types.Sample, channel int) {
	for i, s := range samples {
		switch channel {
		case 0:
			dst[i] = s.X
		case 1:
			dst[i] = s.Y
		case 2:
			dst[i] = s.Z
		default:
			dst[i] = s.VectorMagnitude
		}
	}
}
