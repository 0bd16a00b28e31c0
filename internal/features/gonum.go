package features

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Quantiles computed per channel, in output order.
var quantiles = []float64{0.1, 0.25, 0.5, 0.75, 0.95}

// FFT coefficients reported per channel (real/imag/abs/angle each).
const fftCoefficients = 5

// Bins used for the spectral entropy estimate.
const entropyBins = 10

// GonumExtractor is the production feature backend, built on gonum's
// stat and fourier packages. It produces the same descriptor set for
// every window; undefined moments on degenerate windows (single-sample
// epochs, constant signals) come out as 0 rather than NaN so the
// feature vector stays numerically valid.
type GonumExtractor struct {
	names []string
}

// NewGonumExtractor returns the standard statistical/spectral backend.
func NewGonumExtractor() *GonumExtractor {
	return &GonumExtractor{names: buildNames()}
}

func buildNames() []string {
	names := []string{"mean", "standard_deviation", "minimum", "maximum"}
	for _, q := range quantiles {
		names = append(names, fmt.Sprintf("quantile_q%.2f", q))
	}
	names = append(names,
		"variation_coefficient", "sum_values", "median", "skewness",
		"kurtosis", "root_mean_square",
		"fft_aggregated_centroid", "fft_aggregated_variance",
		"fft_aggregated_skew", "fft_aggregated_kurtosis",
		fmt.Sprintf("fourier_entropy_bins%d", entropyBins),
	)
	for _, attr := range []string{"real", "imag", "abs", "angle"} {
		for c := 0; c < fftCoefficients; c++ {
			names = append(names, fmt.Sprintf("fft_coefficient_%s_%d", attr, c))
		}
	}
	return names
}

// Names returns the descriptor names in extraction order.
func (g *GonumExtractor) Names() []string {
	return g.names
}

// Extract computes all descriptors over one window.
func (g *GonumExtractor) Extract(window []float64) []float64 {
	out := make([]float64, 0, len(g.names))

	mean := stat.Mean(window, nil)
	std := stat.PopStdDev(window, nil)
	out = append(out, mean, std, floats.Min(window), floats.Max(window))

	sorted := make([]float64, len(window))
	copy(sorted, window)
	sort.Float64s(sorted)
	for _, q := range quantiles {
		out = append(out, stat.Quantile(q, stat.LinInterp, sorted, nil))
	}

	variation := 0.0
	if mean != 0 {
		variation = std / mean
	}
	out = append(out,
		variation,
		floats.Sum(window),
		stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		safe(stat.Skew(window, nil)),
		safe(stat.ExKurtosis(window, nil)),
		rootMeanSquare(window),
	)

	spectrum := magnitudeSpectrum(window)
	centroid, variance, skew, kurtosis := spectralMoments(spectrum)
	out = append(out, safe(centroid), safe(variance), safe(skew), safe(kurtosis))
	out = append(out, safe(binnedEntropy(spectrum, entropyBins)))

	out = append(out, fftCoefficientValues(window)...)
	return out
}

func rootMeanSquare(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

// magnitudeSpectrum returns |rfft(x)| for the window.
func magnitudeSpectrum(x []float64) []float64 {
	fft := fourier.NewFFT(len(x))
	coeffs := fft.Coefficients(nil, x)
	spectrum := make([]float64, len(coeffs))
	for i, c := range coeffs {
		spectrum[i] = cmplx.Abs(c)
	}
	return spectrum
}

// spectralMoments treats the magnitude spectrum as a distribution over
// bin index and returns its centroid, variance, skew and kurtosis.
func spectralMoments(spectrum []float64) (centroid, variance, skew, kurtosis float64) {
	total := floats.Sum(spectrum)
	if total == 0 {
		return 0, 0, 0, 0
	}

	for i, m := range spectrum {
		centroid += float64(i) * m / total
	}
	var m3, m4 float64
	for i, m := range spectrum {
		d := float64(i) - centroid
		w := m / total
		variance += d * d * w
		m3 += d * d * d * w
		m4 += d * d * d * d * w
	}
	if variance > 0 {
		skew = m3 / math.Pow(variance, 1.5)
		kurtosis = m4 / (variance * variance)
	}
	return centroid, variance, skew, kurtosis
}

// binnedEntropy computes the Shannon entropy of values histogrammed
// into equal-width bins across their range.
func binnedEntropy(values []float64, bins int) float64 {
	if len(values) == 0 {
		return 0
	}
	lo, hi := floats.Min(values), floats.Max(values)
	if hi == lo {
		return 0
	}

	counts := make([]int, bins)
	width := (hi - lo) / float64(bins)
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}

	entropy := 0.0
	n := float64(len(values))
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		entropy -= p * math.Log(p)
	}
	return entropy
}

func fftCoefficientValues(window []float64) []float64 {
	fft := fourier.NewFFT(len(window))
	coeffs := fft.Coefficients(nil, window)

	attr := func(f func(complex128) float64) []float64 {
		vals := make([]float64, fftCoefficients)
		for c := 0; c < fftCoefficients; c++ {
			if c < len(coeffs) {
				vals[c] = safe(f(coeffs[c]))
			}
		}
		return vals
	}

	out := make([]float64, 0, 4*fftCoefficients)
	out = append(out, attr(func(c complex128) float64 { return real(c) })...)
	out = append(out, attr(func(c complex128) float64 { return imag(c) })...)
	out = append(out, attr(cmplx.Abs)...)
	out = append(out, attr(cmplx.Phase)...)
	return out
}

// safe maps NaN and infinities to 0 so degenerate windows still yield
// usable feature vectors.
func safe(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
