package interp

// Linear interpolates between a and b with frac in [0, 1].
func Linear(a, b, frac float64) float64 {
	return a + frac*(b-a)
}

// Hermite4 computes cubic 4-point interpolation.
// It interpolates from x0 to x1 using neighbor points xm1 and x2.
func Hermite4(t, xm1, x0, x1, x2 float64) float64 {
	c0 := x0
	c1 := 0.5 * (x1 - xm1)
	c2 := xm1 - 2.5*x0 + 2*x1 - 0.5*x2
	c3 := 0.5*(x2-xm1) + 1.5*(x0-x1)
	return ((c3*t+c2)*t+c1)*t + c0
}

// LagrangeInterpolator provides fractional interpolation at a configurable
// order. Order 1 is linear; order 3 is cubic 4-point (Hermite style).
type LagrangeInterpolator struct {
	order int
}

// NewLagrangeInterpolator creates an interpolator. Unsupported orders fall
// back to linear.
func NewLagrangeInterpolator(order int) *LagrangeInterpolator {
	return &LagrangeInterpolator{order: order}
}

// Interpolate evaluates the window of samples at frac in [0, 1]. Order 3
// needs at least 4 samples and interpolates between samples[1] and
// samples[2]; shorter windows degrade to linear.
func (l *LagrangeInterpolator) Interpolate(samples []float64, frac float64) float64 {
	switch {
	case len(samples) == 0:
		return 0
	case len(samples) == 1:
		return samples[0]
	case l.order == 3 && len(samples) >= 4:
		return Hermite4(frac, samples[0], samples[1], samples[2], samples[3])
	default:
		return Linear(samples[0], samples[1], frac)
	}
}

// At reads samples at a fractional index using linear interpolation.
// Positions outside [0, len-1] return 0.
func At(samples []float64, pos float64) float64 {
	if len(samples) == 0 || pos < 0 {
		return 0
	}

	idx := int(pos)
	if idx >= len(samples) {
		return 0
	}

	frac := pos - float64(idx)
	if idx == len(samples)-1 {
		if frac == 0 {
			return samples[idx]
		}
		// Fade into silence past the last sample.
		return Linear(samples[idx], 0, frac)
	}

	return Linear(samples[idx], samples[idx+1], frac)
}

// AtHermite reads samples at a fractional index using cubic Hermite
// interpolation, falling back to linear at the edges.
func AtHermite(samples []float64, pos float64) float64 {
	idx := int(pos)
	if idx < 1 || idx >= len(samples)-2 {
		return At(samples, pos)
	}

	frac := pos - float64(idx)

	return Hermite4(frac, samples[idx-1], samples[idx], samples[idx+1], samples[idx+2])
}
