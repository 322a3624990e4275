package testutil

import (
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// DominantFrequency estimates the strongest spectral component of data in Hz
// using an FFT peak search with parabolic interpolation. data is truncated to
// the largest power-of-two length. Returns 0 when no peak can be measured.
func DominantFrequency(data []float64, sampleRate float64) float64 {
	n := 1
	for n*2 <= len(data) {
		n *= 2
	}
	if n < 8 {
		return 0
	}

	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return 0
	}

	buf := make([]complex128, n)
	for i := range n {
		// Hann weighting keeps leakage from smearing the peak search.
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
		buf[i] = complex(data[i]*w, 0)
	}

	if err := plan.Forward(buf, buf); err != nil {
		return 0
	}

	half := n / 2
	peak := 1
	peakMag := 0.0
	for k := 1; k < half; k++ {
		mag := math.Hypot(real(buf[k]), imag(buf[k]))
		if mag > peakMag {
			peakMag = mag
			peak = k
		}
	}

	if peakMag == 0 {
		return 0
	}

	// Parabolic interpolation around the peak bin.
	magAt := func(k int) float64 {
		if k < 0 || k > half {
			return 0
		}
		return math.Hypot(real(buf[k]), imag(buf[k]))
	}
	alpha := magAt(peak - 1)
	beta := peakMag
	gamma := magAt(peak + 1)
	denom := alpha - 2*beta + gamma
	delta := 0.0
	if denom != 0 {
		delta = 0.5 * (alpha - gamma) / denom
	}

	return (float64(peak) + delta) * sampleRate / float64(n)
}
