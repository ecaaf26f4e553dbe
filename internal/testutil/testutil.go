// Package testutil provides shared test utilities and fixtures.
//
// This package centralises signal fixtures used by the analysis, scan,
// store, query and CLI tests.
package testutil

import "math"

// Samples is the waveform length used by fixtures.
const Samples = 8192

// DefaultRateHz is the sampling rate used by most fixtures (5 kHz).
const DefaultRateHz = 5000.0

// Cosine returns n samples of offset + amp*cos(2πft) sampled at rateHz.
func Cosine(n int, rateHz, freqHz, amp, offset float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / rateHz
		out[i] = offset + amp*math.Cos(2*math.Pi*freqHz*t)
	}
	return out
}

// TimeAxis returns n sample timestamps in seconds for rateHz.
func TimeAxis(n int, rateHz float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) / rateHz
	}
	return out
}

// Ramp returns the sequence 0, 1, ..., n-1.
func Ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}
