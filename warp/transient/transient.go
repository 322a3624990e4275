// Package transient detects sharp-attack events in audio material.
//
// The warp processor treats detection as an opaque analysis service: any
// Detector implementation may be supplied. EnergyDetector is the built-in
// implementation, comparing short-window RMS energy against a rolling
// history average.
package transient

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

const (
	defaultWindowMs       = 10.0
	defaultThresholdRatio = 2.0
	defaultFloor          = 1e-3
	defaultMinSpacingMs   = 50.0

	// historyAlpha is the smoothing coefficient of the rolling energy
	// average; roughly the last dozen windows contribute.
	historyAlpha = 0.15
)

// Event is one detected transient.
type Event struct {
	// TimeSeconds is the event position from the start of the material.
	TimeSeconds float64
	// Strength is a relative attack strength in (0, 1].
	Strength float64
}

// Detector locates transient events in a mono sample buffer.
type Detector interface {
	Detect(mono []float64, sampleRate float64) []Event
}

// EnergyDetector detects transients by comparing the RMS energy of short
// analysis windows against a rolling average of recent window energies.
// A window whose energy exceeds the average by the configured threshold
// ratio, and clears the silence floor, produces one event.
type EnergyDetector struct {
	windowMs       float64
	thresholdRatio float64
	floor          float64
	minSpacingMs   float64
}

// Option configures an EnergyDetector.
type Option func(*EnergyDetector)

// WithWindowMs sets the analysis window length in milliseconds.
func WithWindowMs(ms float64) Option {
	return func(d *EnergyDetector) {
		if ms > 0 {
			d.windowMs = ms
		}
	}
}

// WithThresholdRatio sets the multiple of the rolling average a window's
// RMS must exceed to count as a transient.
func WithThresholdRatio(ratio float64) Option {
	return func(d *EnergyDetector) {
		if ratio > 1 {
			d.thresholdRatio = ratio
		}
	}
}

// WithFloor sets the RMS level below which windows are treated as silence.
func WithFloor(floor float64) Option {
	return func(d *EnergyDetector) {
		if floor >= 0 {
			d.floor = floor
		}
	}
}

// WithMinSpacingMs sets the minimum spacing between reported events.
func WithMinSpacingMs(ms float64) Option {
	return func(d *EnergyDetector) {
		if ms >= 0 {
			d.minSpacingMs = ms
		}
	}
}

// NewEnergyDetector creates a detector with musically useful defaults.
func NewEnergyDetector(opts ...Option) *EnergyDetector {
	d := &EnergyDetector{
		windowMs:       defaultWindowMs,
		thresholdRatio: defaultThresholdRatio,
		floor:          defaultFloor,
		minSpacingMs:   defaultMinSpacingMs,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	return d
}

// Detect locates transient events in mono. Events are reported at the peak
// sample within the triggering window, ordered by time.
func (d *EnergyDetector) Detect(mono []float64, sampleRate float64) []Event {
	if len(mono) == 0 || sampleRate <= 0 {
		return nil
	}

	windowLen := int(d.windowMs / 1000.0 * sampleRate)
	if windowLen < 1 {
		windowLen = 1
	}
	hop := windowLen / 2
	if hop < 1 {
		hop = 1
	}

	minSpacing := d.minSpacingMs / 1000.0

	var events []Event
	avg := 0.0
	lastTime := math.Inf(-1)

	for pos := 0; pos < len(mono); pos += hop {
		end := pos + windowLen
		if end > len(mono) {
			end = len(mono)
		}

		win := mono[pos:end]
		rms := rmsOf(win)

		ref := avg
		if ref < d.floor {
			ref = d.floor
		}

		if rms > d.floor && rms > d.thresholdRatio*ref {
			peak := pos + peakIndex(win)
			t := float64(peak) / sampleRate

			if t-lastTime >= minSpacing {
				ratio := rms / ref
				events = append(events, Event{
					TimeSeconds: t,
					Strength:    ratio / (ratio + d.thresholdRatio),
				})
				lastTime = t
			}
		}

		avg += historyAlpha * (rms - avg)
	}

	return events
}

func rmsOf(win []float64) float64 {
	if len(win) == 0 {
		return 0
	}

	return math.Sqrt(vecmath.DotProduct(win, win) / float64(len(win)))
}

func peakIndex(win []float64) int {
	peak := 0
	peakAbs := 0.0
	for i, v := range win {
		if a := math.Abs(v); a > peakAbs {
			peakAbs = a
			peak = i
		}
	}

	return peak
}
