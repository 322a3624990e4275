// Package tempo converts between musical time (beats), wall time (seconds)
// and sample positions for a given project tempo and sample rate.
package tempo

import "fmt"

// Validate reports an error for non-positive bpm or sample rate.
func Validate(bpm, sampleRate float64) error {
	if bpm <= 0 {
		return fmt.Errorf("tempo bpm must be > 0: %f", bpm)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("tempo sample rate must be > 0: %f", sampleRate)
	}
	return nil
}

// BeatsToSeconds converts beats to seconds at the given tempo.
func BeatsToSeconds(beats, bpm float64) float64 {
	return beats * 60.0 / bpm
}

// SecondsToBeats converts seconds to beats at the given tempo.
func SecondsToBeats(seconds, bpm float64) float64 {
	return seconds * bpm / 60.0
}

// SecondsToSamples converts seconds to a sample position.
func SecondsToSamples(seconds, sampleRate float64) float64 {
	return seconds * sampleRate
}

// SamplesToSeconds converts a sample position to seconds.
func SamplesToSeconds(samples, sampleRate float64) float64 {
	return samples / sampleRate
}

// BeatsToSamples converts beats to a sample position.
func BeatsToSamples(beats, bpm, sampleRate float64) float64 {
	return SecondsToSamples(BeatsToSeconds(beats, bpm), sampleRate)
}

// SamplesToBeats converts a sample position to beats.
func SamplesToBeats(samples, bpm, sampleRate float64) float64 {
	return SecondsToBeats(SamplesToSeconds(samples, sampleRate), bpm)
}
