// Package window generates analysis/synthesis window functions for
// short-time Fourier processing.
//
// Windows can be generated in symmetric form (filter design) or periodic
// form (FFT framing) via WithPeriodic.
package window
