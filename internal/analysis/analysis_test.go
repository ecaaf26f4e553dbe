package analysis

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scopedb/internal/testutil"
)

func TestAnalyze_RampStatistics(t *testing.T) {
	x := testutil.Ramp(SampleCount)
	res, err := Analyze(x, testutil.DefaultRateHz)
	require.NoError(t, err)

	n := float64(SampleCount)
	s := res.Scalars
	assert.Equal(t, 0.0, s[MetricMinimum])
	assert.Equal(t, n-1, s[MetricMaximum])
	assert.Equal(t, n-1, s[MetricPeakToPeak])
	assert.InDelta(t, (n-1)/2, s[MetricMean], 1e-9)
	assert.InDelta(t, 4095.5, s[MetricMedian], 1e-12)
	assert.InDelta(t, 2047.75, s[MetricQ25], 1e-12)
	assert.InDelta(t, 6143.25, s[MetricQ75], 1e-12)
	assert.InDelta(t, math.Sqrt((n*n-1)/12), s[MetricStdDev], 1e-6)
	assert.InDelta(t, math.Sqrt((n-1)*(2*n-1)/6), s[MetricRMS], 1e-6)
	assert.Len(t, s, 10)
}

func TestAnalyze_DominantFrequency(t *testing.T) {
	const rate = testutil.DefaultRateHz
	binWidth := rate / SampleCount

	for _, f := range []float64{6.103, 100, 437.5, 1234.5} {
		x := testutil.Cosine(SampleCount, rate, f, 0.5, 1)
		res, err := Analyze(x, rate)
		require.NoError(t, err)
		assert.InDelta(t, f, res.Scalars[MetricDominantFrequency], binWidth, "f=%v", f)
	}
}

func TestAnalyze_SpectrumShape(t *testing.T) {
	const rate = 5000.0
	res, err := Analyze(testutil.Cosine(SampleCount, rate, 50, 1, 0), rate)
	require.NoError(t, err)

	freqs := res.Arrays[ArrayFrequencies]
	psd := res.Arrays[ArrayPowerSpectrum]
	require.Len(t, freqs, SampleCount/2+1)
	require.Len(t, psd, SampleCount/2+1)
	assert.Equal(t, 0.0, freqs[0])
	assert.InDelta(t, rate/2, freqs[len(freqs)-1], 1e-9)
	for i := range freqs {
		assert.InDelta(t, float64(i)*rate/SampleCount, freqs[i], 1e-9)
	}
}

func TestPeriodogram_ExactBinCosine(t *testing.T) {
	const (
		rate = 8192.0
		bin  = 10
		amp  = 2.0
	)
	f := bin * rate / SampleCount
	x := testutil.Cosine(SampleCount, rate, f, amp, 3)

	freqs, psd := Periodogram(x, rate)
	assert.InDelta(t, f, freqs[bin], 1e-12)
	assert.InDelta(t, amp*amp*SampleCount/(2*rate), psd[bin], 1e-6)
	// The constant offset is removed before the transform.
	assert.InDelta(t, 0, psd[0], 1e-9)

	// Total power matches the signal variance.
	var total float64
	for _, p := range psd {
		total += p
	}
	assert.InDelta(t, amp*amp/2, total*rate/SampleCount, 1e-6)
}

func TestAnalyze_DoesNotMutateInput(t *testing.T) {
	x := testutil.Cosine(SampleCount, 5000, 20, 1, 0)
	orig := slices.Clone(x)
	_, err := Analyze(x, 5000)
	require.NoError(t, err)
	assert.Equal(t, orig, x)
}

func TestAnalyze_Reproducible(t *testing.T) {
	x := testutil.Cosine(SampleCount, 5000, 73, 1.5, -2)
	a, err := Analyze(x, 5000)
	require.NoError(t, err)
	b, err := Analyze(x, 5000)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAnalyze_InvalidShape(t *testing.T) {
	for _, n := range []int{0, 1, SampleCount - 1, SampleCount + 1} {
		_, err := Analyze(make([]float64, n), 5000)
		assert.ErrorIs(t, err, ErrInvalidShape, "n=%d", n)
	}
}

func TestAnalyze_NonFiniteSample(t *testing.T) {
	x := testutil.Ramp(SampleCount)
	x[17] = math.NaN()
	_, err := Analyze(x, 5000)
	assert.ErrorIs(t, err, ErrInvalidType)

	x[17] = math.Inf(1)
	_, err = Analyze(x, 5000)
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestAnalyze_InvalidRate(t *testing.T) {
	_, err := Analyze(testutil.Ramp(SampleCount), 0)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidShape)
}

func TestAnalyzeValues(t *testing.T) {
	vals := make([]any, SampleCount)
	for i := range vals {
		switch i % 3 {
		case 0:
			vals[i] = i
		case 1:
			vals[i] = float32(i)
		default:
			vals[i] = float64(i)
		}
	}
	res, err := AnalyzeValues(vals, 5000)
	require.NoError(t, err)
	assert.InDelta(t, 4095.5, res.Scalars[MetricMedian], 1e-12)
}

func TestAnalyzeValues_NonNumeric(t *testing.T) {
	vals := make([]any, SampleCount)
	for i := range vals {
		vals[i] = "1.0"
	}
	_, err := AnalyzeValues(vals, 5000)
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestAnalyzeValues_WrongLengthNonNumeric(t *testing.T) {
	vals := []any{"a", "b"}
	_, err := AnalyzeValues(vals, 5000)
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestSamples(t *testing.T) {
	vals := make([]any, SampleCount)
	for i := range vals {
		vals[i] = int64(i)
	}
	got, err := Samples(vals)
	require.NoError(t, err)
	assert.Equal(t, testutil.Ramp(SampleCount), got)

	vals[10] = nil
	_, err = Samples(vals)
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestPercentile(t *testing.T) {
	s := []float64{1, 2, 3, 4}
	assert.Equal(t, 2.5, Percentile(s, 50))
	assert.Equal(t, 1.75, Percentile(s, 25))
	assert.Equal(t, 3.25, Percentile(s, 75))
	assert.Equal(t, 1.0, Percentile(s, 0))
	assert.Equal(t, 4.0, Percentile(s, 100))
	assert.Equal(t, 7.0, Percentile([]float64{7}, 50))
	assert.True(t, math.IsNaN(Percentile(nil, 50)))
}
