// Package analysis derives scalar statistics and a power spectrum from a
// single fixed-length waveform.
//
// The analyzer is a pure function: it never mutates its input and the same
// samples and sampling rate always produce the same output (to floating-point
// tolerance for the spectral estimate).
package analysis

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SampleCount is the fixed waveform length the analyzer accepts.
const SampleCount = 8192

// Scalar metric names.
const (
	MetricMinimum           = "minimum"
	MetricMaximum           = "maximum"
	MetricPeakToPeak        = "peak_to_peak"
	MetricMean              = "mean"
	MetricMedian            = "median"
	MetricStdDev            = "standard_deviation"
	MetricRMS               = "rms"
	MetricQ25               = "25th_quartile"
	MetricQ75               = "75th_quartile"
	MetricDominantFrequency = "dominant_frequency"
)

// Derived array (process) names.
const (
	ArrayPowerSpectrum = "power_spectrum"
	ArrayFrequencies   = "frequencies"
)

var (
	// ErrInvalidShape is returned when the input does not hold exactly SampleCount samples.
	ErrInvalidShape = errors.New("invalid waveform shape")
	// ErrInvalidType is returned when an input element is not a finite number.
	ErrInvalidType = errors.New("invalid waveform element type")
)

// Result holds everything Analyze derives from one waveform.
type Result struct {
	Scalars map[string]float64
	Arrays  map[string][]float64
}

// Analyze computes scalar statistics and a one-sided periodogram for samples
// recorded at rateHz.
func Analyze(samples []float64, rateHz float64) (Result, error) {
	if len(samples) != SampleCount {
		return Result{}, fmt.Errorf("%w: need exactly %d samples, got %d", ErrInvalidShape, SampleCount, len(samples))
	}
	for i, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Result{}, fmt.Errorf("%w: sample %d is not finite", ErrInvalidType, i)
		}
	}
	if rateHz <= 0 || math.IsNaN(rateHz) || math.IsInf(rateHz, 0) {
		return Result{}, fmt.Errorf("sampling rate must be positive, got %v", rateHz)
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	mean := stat.Mean(samples, nil)
	rms := math.Sqrt(floats.Dot(samples, samples) / float64(len(samples)))

	freqs, psd := Periodogram(samples, rateHz)

	scalars := map[string]float64{
		MetricMinimum:           lo,
		MetricMaximum:           hi,
		MetricPeakToPeak:        hi - lo,
		MetricMean:              mean,
		MetricMedian:            Percentile(sorted, 50),
		MetricStdDev:            math.Sqrt(stat.PopVariance(samples, nil)),
		MetricRMS:               rms,
		MetricQ25:               Percentile(sorted, 25),
		MetricQ75:               Percentile(sorted, 75),
		MetricDominantFrequency: freqs[floats.MaxIdx(psd)],
	}

	return Result{
		Scalars: scalars,
		Arrays: map[string][]float64{
			ArrayPowerSpectrum: psd,
			ArrayFrequencies:   freqs,
		},
	}, nil
}

// AnalyzeValues is Analyze for loosely typed input such as decoded JSON.
// Every element must be a Go numeric type.
func AnalyzeValues(values []any, rateHz float64) (Result, error) {
	samples, err := Samples(values)
	if err != nil {
		return Result{}, err
	}
	return Analyze(samples, rateHz)
}

// Samples converts loosely typed input to a sample slice, applying the same
// length check as Analyze before looking at element types.
func Samples(values []any) ([]float64, error) {
	if len(values) != SampleCount {
		return nil, fmt.Errorf("%w: need exactly %d samples, got %d", ErrInvalidShape, SampleCount, len(values))
	}
	samples := make([]float64, len(values))
	for i, v := range values {
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: sample %d has type %T", ErrInvalidType, i, v)
		}
		samples[i] = f
	}
	return samples, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// Percentile returns the p-th percentile (0..100) of an ascending slice,
// interpolating linearly between the closest ranks at position p/100*(n-1).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := p / 100 * float64(n-1)
	i := int(math.Floor(pos))
	if i >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(i)
	return sorted[i] + frac*(sorted[i+1]-sorted[i])
}

// Periodogram returns the frequency axis and one-sided power spectral density
// of x sampled at rateHz. The estimate uses a single boxcar window over the
// whole input with the mean removed and density scaling (units²/Hz).
func Periodogram(x []float64, rateHz float64) (freqs, psd []float64) {
	n := len(x)
	mean := stat.Mean(x, nil)
	detrended := make([]float64, n)
	for i, v := range x {
		detrended[i] = v - mean
	}

	coeffs := fourier.NewFFT(n).Coefficients(nil, detrended)

	bins := n/2 + 1
	freqs = make([]float64, bins)
	psd = make([]float64, bins)
	scale := 1 / (rateHz * float64(n))
	for i, c := range coeffs[:bins] {
		freqs[i] = float64(i) * rateHz / float64(n)
		p := (real(c)*real(c) + imag(c)*imag(c)) * scale
		// Fold negative frequencies in, except DC and (for even n) Nyquist.
		if i != 0 && !(n%2 == 0 && i == bins-1) {
			p *= 2
		}
		psd[i] = p
	}
	return freqs, psd
}
